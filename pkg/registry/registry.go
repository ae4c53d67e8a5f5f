// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"recruit-portal/internal/common/validation"
)

var placeholder = regexp.MustCompile(`\{([a-zA-Z]+)\}`)

func LoadRegistry(path string) (*EndpointRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg EndpointRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Lookup returns the endpoint with the given id.
func (r *EndpointRegistry) Lookup(id string) (Endpoint, bool) {
	for _, ep := range r.Endpoints {
		if ep.ID == id {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// MustLookup is Lookup for ids compiled into the binary.
func (r *EndpointRegistry) MustLookup(id string) Endpoint {
	ep, ok := r.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("registry: unknown endpoint %q", id))
	}
	return ep
}

// Validate checks ids, required fields, placeholders and that every response
// schema compiles.
func (r *EndpointRegistry) Validate() error {
	if len(r.Endpoints) == 0 {
		return fmt.Errorf("registry contains no endpoints")
	}

	ids := make(map[string]bool)
	for _, ep := range r.Endpoints {
		if ep.ID == "" {
			return fmt.Errorf("endpoint missing required field: ID")
		}
		if ids[ep.ID] {
			return fmt.Errorf("duplicate endpoint ID: %s", ep.ID)
		}
		ids[ep.ID] = true

		if ep.Method == "" || ep.Path == "" {
			return fmt.Errorf("endpoint %s missing method or path", ep.ID)
		}
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("endpoint %s path must start with /", ep.ID)
		}
		if ep.IsMutation() && ep.Retries != 0 {
			return fmt.Errorf("endpoint %s is a mutation and must not retry", ep.ID)
		}
		if !ep.IsMutation() && len(ep.Invalidates) > 0 {
			return fmt.Errorf("endpoint %s is a query and cannot invalidate", ep.ID)
		}

		params := make(map[string]bool)
		for _, name := range append(Params(ep.Path), ep.Query...) {
			params[name] = true
		}
		for _, tmpl := range append([]string{ep.CacheKey}, ep.Invalidates...) {
			for _, name := range Params(tmpl) {
				if !params[name] {
					return fmt.Errorf("endpoint %s: template %q uses unknown parameter %s", ep.ID, tmpl, name)
				}
			}
		}

		schema, err := json.Marshal(ep.ResponseSchema)
		if err != nil {
			return fmt.Errorf("endpoint %s: %w", ep.ID, err)
		}
		if _, err := validation.Compile(string(schema)); err != nil {
			return fmt.Errorf("endpoint %s: response schema: %w", ep.ID, err)
		}
	}
	return nil
}

// Schemas registers every response schema in set under its endpoint id.
func (r *EndpointRegistry) Schemas(set *validation.SchemaSet) error {
	for _, ep := range r.Endpoints {
		schema, err := json.Marshal(ep.ResponseSchema)
		if err != nil {
			return fmt.Errorf("endpoint %s: %w", ep.ID, err)
		}
		if err := set.Register(ep.ID, string(schema)); err != nil {
			return err
		}
	}
	return nil
}

// Params lists the placeholder names of a template in order.
func Params(tmpl string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		names = append(names, m[1])
	}
	return names
}

// Expand fills a template. Values are path-escaped; a missing value is an error.
func Expand(tmpl string, params map[string]string) (string, error) {
	var missing string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := params[name]
		if !ok || v == "" {
			missing = name
			return m
		}
		return url.PathEscape(v)
	})
	if missing != "" {
		return "", fmt.Errorf("missing parameter %s for %s", missing, tmpl)
	}
	return out, nil
}

// InvalidationKeys expands the endpoint's invalidation templates.
func (e Endpoint) InvalidationKeys(params map[string]string) ([]string, error) {
	keys := make([]string, 0, len(e.Invalidates))
	for _, tmpl := range e.Invalidates {
		k, err := Expand(tmpl, params)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
