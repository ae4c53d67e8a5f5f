// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/models"
)

// KeycloakClient talks to one Keycloak realm: password sign-in, token
// introspection, logout and self-service user registration.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	adminToken  string
	adminExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID            string       `json:"id,omitempty"`
	Email         string       `json:"email"`
	FirstName     string       `json:"firstName,omitempty"`
	LastName      string       `json:"lastName,omitempty"`
	Username      string       `json:"username"`
	Enabled       bool         `json:"enabled"`
	EmailVerified bool         `json:"emailVerified"`
	Credentials   []Credential `json:"credentials,omitempty"`
}

type Credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
}

// TokenInfo holds the information returned by the token introspection endpoint.
type TokenInfo struct {
	Active      bool   `json:"active"`
	ClientID    string `json:"client_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
	Exp         int64  `json:"exp,omitempty"` // seconds since epoch
	Sub         string `json:"sub,omitempty"` // user ID
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// Identity maps an active token onto a portal identity. hr_admin takes
// precedence when a user holds both portal roles.
func (t *TokenInfo) Identity() (*models.Identity, error) {
	var role models.Role
	for _, r := range t.RealmAccess.Roles {
		switch models.Role(r) {
		case models.RoleHRAdmin:
			role = models.RoleHRAdmin
		case models.RoleCandidate:
			if role == "" {
				role = models.RoleCandidate
			}
		}
	}
	if role == "" {
		return nil, errors.NewUnauthorizedError("account has no portal role")
	}
	email := t.Email
	if email == "" {
		email = t.Username
	}
	return &models.Identity{
		UserID:      t.Sub,
		Email:       email,
		DisplayName: t.Name,
		Role:        role,
	}, nil
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (k *KeycloakClient) realmURL(path string) string {
	return fmt.Sprintf("%s/realms/%s/%s", k.baseURL, k.realm, path)
}

func (k *KeycloakClient) adminURL(path string) string {
	return fmt.Sprintf("%s/admin/realms/%s/%s", k.baseURL, k.realm, path)
}

// postForm sends a form to a realm endpoint and returns the response body for
// the accepted statuses.
func (k *KeycloakClient) postForm(ctx context.Context, op, endpoint string, form url.Values, accept ...int) ([]byte, int, error) {
	form.Set("client_id", k.clientID)
	if k.clientSecret != "" {
		form.Set("client_secret", k.clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, errors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.NewNetworkError(op, err)
	}
	for _, s := range accept {
		if resp.StatusCode == s {
			return body, resp.StatusCode, nil
		}
	}
	return body, resp.StatusCode, k.apiError(op, resp.StatusCode, body)
}

func (k *KeycloakClient) apiError(op string, status int, body []byte) *errors.StandardError {
	se := errors.NewRequestFailedError(op, status, strings.TrimSpace(string(body)))
	se.Retryable = k.isTransientHTTPError(status)
	return se
}

// PasswordGrant signs a user in with email and password.
func (k *KeycloakClient) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", "openid")

	body, status, err := k.postForm(ctx, "keycloak.token", k.realmURL("protocol/openid-connect/token"), form, http.StatusOK)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusBadRequest {
			return nil, errors.NewUnauthorizedError("Invalid email or password")
		}
		return nil, err
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, errors.NewMalformedResponseError("keycloak.token", err)
	}
	return &tokenResp, nil
}

// Introspect checks if an access token is valid and active.
func (k *KeycloakClient) Introspect(ctx context.Context, token string) (*TokenInfo, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	body, _, err := k.postForm(ctx, "keycloak.introspect", k.realmURL("protocol/openid-connect/token/introspect"), form, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var info TokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errors.NewMalformedResponseError("keycloak.introspect", err)
	}
	if !info.Active {
		return nil, errors.NewUnauthorizedError("token is not active")
	}
	return &info, nil
}

// Logout revokes a user's refresh token.
func (k *KeycloakClient) Logout(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	form.Set("refresh_token", refreshToken)
	_, _, err := k.postForm(ctx, "keycloak.logout", k.realmURL("protocol/openid-connect/logout"), form,
		http.StatusNoContent, http.StatusOK)
	return err
}

// adminAccessToken fetches a service-account token with the client
// credentials flow and caches it until expiry.
func (k *KeycloakClient) adminAccessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.adminToken != "" && k.adminExpiry.After(time.Now()) {
		return k.adminToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	body, _, err := k.postForm(ctx, "keycloak.admin_token", k.realmURL("protocol/openid-connect/token"), form, http.StatusOK)
	if err != nil {
		return "", err
	}
	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", errors.NewMalformedResponseError("keycloak.admin_token", err)
	}
	k.adminToken = tokenResp.AccessToken
	// renew 5s before expiry
	k.adminExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - 5*time.Second)
	return k.adminToken, nil
}

func (k *KeycloakClient) adminDo(ctx context.Context, op, method, endpoint string, payload interface{}, accept ...int) (*http.Response, []byte, error) {
	token, err := k.adminAccessToken(ctx)
	if err != nil {
		return nil, nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, errors.NewInternalError(err)
		}
		body = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, errors.NewInternalError(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, nil, errors.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.NewNetworkError(op, err)
	}
	for _, s := range accept {
		if resp.StatusCode == s {
			return resp, respBody, nil
		}
	}
	return resp, respBody, k.apiError(op, resp.StatusCode, respBody)
}

// CreateUser registers a user with a password credential and grants it a
// realm role. The returned user carries the id from the Location header.
func (k *KeycloakClient) CreateUser(ctx context.Context, user *User, role models.Role) (*User, error) {
	if user.Username == "" {
		user.Username = user.Email
	}

	resp, _, err := k.adminDo(ctx, "keycloak.create_user", http.MethodPost, k.adminURL("users"), user, http.StatusCreated)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, errors.NewValidationError("An account with this email already exists")
		}
		return nil, err
	}

	if location := resp.Header.Get("Location"); location != "" {
		parts := strings.Split(location, "/")
		user.ID = parts[len(parts)-1]
	}
	if user.ID == "" {
		return nil, errors.NewMalformedResponseError("keycloak.create_user", fmt.Errorf("missing Location header"))
	}

	if err := k.assignRealmRole(ctx, user.ID, role); err != nil {
		return nil, err
	}
	user.Credentials = nil
	return user, nil
}

type realmRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (k *KeycloakClient) assignRealmRole(ctx context.Context, userID string, role models.Role) error {
	_, body, err := k.adminDo(ctx, "keycloak.get_role", http.MethodGet,
		k.adminURL("roles/"+url.PathEscape(string(role))), nil, http.StatusOK)
	if err != nil {
		return err
	}
	var rr realmRole
	if err := json.Unmarshal(body, &rr); err != nil {
		return errors.NewMalformedResponseError("keycloak.get_role", err)
	}

	_, _, err = k.adminDo(ctx, "keycloak.assign_role", http.MethodPost,
		k.adminURL("users/"+url.PathEscape(userID)+"/role-mappings/realm"), []realmRole{rr}, http.StatusNoContent)
	return err
}

// isTransientHTTPError returns true if the HTTP status code indicates a potentially transient error.
func (k *KeycloakClient) isTransientHTTPError(statusCode int) bool {
	switch statusCode {
	case http.StatusInternalServerError, // 500
		http.StatusBadGateway,         // 502
		http.StatusServiceUnavailable, // 503
		http.StatusGatewayTimeout:     // 504
		return true
	default:
		return false
	}
}

// Refresh exchanges a refresh token for a new token pair.
func (k *KeycloakClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	body, status, err := k.postForm(ctx, "keycloak.refresh", k.realmURL("protocol/openid-connect/token"), form, http.StatusOK)
	if err != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return nil, errors.NewUnauthorizedError("session expired")
		}
		return nil, err
	}
	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, errors.NewMalformedResponseError("keycloak.refresh", err)
	}
	return &tokenResp, nil
}
