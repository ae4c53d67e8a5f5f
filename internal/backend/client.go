// Package backend implements the endpoint catalog: one typed method per
// recruitment backend operation, built on the timeout-bounded transport.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"recruit-portal/internal/common/errors"
	transport "recruit-portal/internal/common/http"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/common/validation"
	"recruit-portal/pkg/registry"
)

// Doer issues one backend request. *transport.Client implements it.
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

type Client struct {
	transport Doer
	catalog   *registry.EndpointRegistry
	schemas   *validation.SchemaSet
	logger    logger.Logger
}

// New validates the catalog and compiles its response schemas.
func New(t Doer, catalog *registry.EndpointRegistry, log logger.Logger) (*Client, error) {
	if catalog == nil {
		catalog = registry.Default()
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid endpoint catalog: %w", err)
	}
	schemas := validation.NewSchemaSet()
	if err := catalog.Schemas(schemas); err != nil {
		return nil, err
	}
	return &Client{
		transport: t,
		catalog:   catalog,
		schemas:   schemas,
		logger:    log.WithFields(map[string]interface{}{"component": "backend"}),
	}, nil
}

// Catalog exposes the endpoint metadata (retry counts, cache keys, invalidations).
func (c *Client) Catalog() *registry.EndpointRegistry {
	return c.catalog
}

type call struct {
	op          string
	params      map[string]string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonCall(op string, params map[string]string, payload interface{}) (call, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return call{}, errors.NewInternalError(fmt.Errorf("encode %s body: %w", op, err))
	}
	return call{op: op, params: params, body: bytes.NewReader(data), contentType: "application/json"}, nil
}

// do runs c, validates the body against the operation's schema and decodes it
// into out.
func (c *Client) do(ctx context.Context, cl call, out interface{}) error {
	ep, ok := c.catalog.Lookup(cl.op)
	if !ok {
		return errors.NewInternalError(fmt.Errorf("unknown operation %s", cl.op))
	}

	path, err := registry.Expand(ep.Path, cl.params)
	if err != nil {
		return errors.NewValidationError(err.Error())
	}

	resp, err := c.transport.Do(ctx, &transport.Request{
		Operation:   ep.ID,
		Method:      ep.Method,
		Path:        path,
		Query:       cl.query,
		Body:        cl.body,
		ContentType: cl.contentType,
		Upload:      ep.Upload,
	})
	if err != nil {
		if se, ok := errors.AsStandard(err); ok && se.Code == errors.ErrCodeRequestFailed {
			se.Message = ep.FailureMessage
		}
		return err
	}

	result, err := c.schemas.Validate(ep.ID, resp.Body)
	if err != nil {
		return errors.NewMalformedResponseError(ep.ID, err)
	}
	if !result.Valid {
		c.logger.Warn("Backend response failed schema validation", map[string]interface{}{
			"operation":  ep.ID,
			"request_id": resp.RequestID,
			"errors":     result.GetErrorMessages(),
		})
		return errors.NewMalformedResponseError(ep.ID, result)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.NewMalformedResponseError(ep.ID, err)
	}
	return nil
}

func required(name, value string) error {
	if value == "" {
		return errors.NewValidationError(name + " is required")
	}
	return nil
}
