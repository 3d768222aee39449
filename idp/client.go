// Package idp wraps the identity provider's REST surface. It is the only
// component that interprets token or credential values; everything above
// it treats them as opaque strings.
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.pilab.hu/sessiongate/domain"
)

// maxSessionTTL is the provider's ceiling for minted session credentials.
// Mint requests above it are refused locally instead of burning a round
// trip on a guaranteed rejection.
const maxSessionTTL = 14 * 24 * time.Hour

// Client talks to the provider over HTTP. It holds no local state beyond
// the connection pool.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a provider client with a tuned HTTP transport.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// identityResponse is the provider's identity payload shared by the
// verify and lookup endpoints.
type identityResponse struct {
	SubjectID   string         `json:"subjectId"`
	Email       string         `json:"email"`
	DisplayName string         `json:"displayName"`
	ExpiresAt   int64          `json:"expiresAt"`
	Claims      map[string]any `json:"claims"`
}

func (r *identityResponse) toDomain() *domain.Identity {
	return &domain.Identity{
		SubjectID:   r.SubjectID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		ExpiresAt:   time.Unix(r.ExpiresAt, 0),
		Claims:      r.Claims,
	}
}

// authResponse is the provider's answer to primary authentication.
type authResponse struct {
	IDToken     string `json:"idToken"`
	SubjectID   string `json:"subjectId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

func (r *authResponse) toDomain() *domain.AuthResult {
	return &domain.AuthResult{
		IDToken:   r.IDToken,
		SubjectID: r.SubjectID,
		Profile: domain.ProfileHint{
			Email:       r.Email,
			DisplayName: r.DisplayName,
		},
	}
}

// errorResponse is the provider's error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// post sends a JSON request and decodes a JSON response into out. A nil
// out discards the body. Non-2xx statuses come back as *apiError.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request for %s: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&envelope)
		return &apiError{status: resp.StatusCode, code: envelope.Error.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response from %s: %w", domain.ErrProviderUnavailable, path, err)
	}
	return nil
}

// apiError carries the provider's status and symbolic error code until the
// calling method maps it into the domain taxonomy.
type apiError struct {
	status int
	code   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider returned status %d (%s)", e.status, e.code)
}

// VerifyIDToken implements domain.IdentityProvider.
func (c *Client) VerifyIDToken(ctx context.Context, idToken string) (*domain.Identity, error) {
	if idToken == "" {
		return nil, domain.ErrInvalidToken
	}

	var out identityResponse
	err := c.post(ctx, "/v1/token:verify", map[string]string{"idToken": idToken}, &out)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			if apiErr.status == http.StatusUnauthorized || apiErr.status == http.StatusBadRequest {
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidToken, apiErr.code)
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, apiErr)
		}
		return nil, err
	}
	return out.toDomain(), nil
}

// VerifySessionCredential implements domain.IdentityProvider. The provider
// checks signature, expiry and the revocation generation in one call, and
// rejects ID tokens presented in place of session credentials.
func (c *Client) VerifySessionCredential(ctx context.Context, credential string) (*domain.Identity, error) {
	if credential == "" {
		return nil, domain.ErrInvalidSession
	}

	body := map[string]any{"sessionCredential": credential, "checkRevoked": true}
	var out identityResponse
	err := c.post(ctx, "/v1/session:verify", body, &out)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			if apiErr.status == http.StatusUnauthorized || apiErr.status == http.StatusBadRequest {
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidSession, apiErr.code)
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, apiErr)
		}
		return nil, err
	}
	return out.toDomain(), nil
}

// MintSessionCredential implements domain.IdentityProvider.
func (c *Client) MintSessionCredential(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	if ttl > maxSessionTTL {
		return "", fmt.Errorf("%w: ttl %s exceeds provider maximum %s", domain.ErrMintFailed, ttl, maxSessionTTL)
	}

	body := map[string]any{
		"idToken":              idToken,
		"validDurationSeconds": int64(ttl.Seconds()),
	}
	var out struct {
		SessionCredential string `json:"sessionCredential"`
	}
	err := c.post(ctx, "/v1/session:mint", body, &out)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			if apiErr.status >= http.StatusInternalServerError {
				return "", fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, apiErr)
			}
			return "", fmt.Errorf("%w: %s", domain.ErrMintFailed, apiErr.code)
		}
		return "", err
	}
	if out.SessionCredential == "" {
		return "", fmt.Errorf("%w: provider returned empty credential", domain.ErrMintFailed)
	}
	return out.SessionCredential, nil
}

// RevokeSubject implements domain.IdentityProvider.
func (c *Client) RevokeSubject(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return fmt.Errorf("%w: empty subject id", domain.ErrRevokeFailed)
	}

	path := "/v1/subjects/" + url.PathEscape(subjectID) + ":revoke"
	if err := c.post(ctx, path, nil, nil); err != nil {
		if apiErr, ok := asAPIError(err); ok {
			return fmt.Errorf("%w: %v", domain.ErrRevokeFailed, apiErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrRevokeFailed, err)
	}
	return nil
}

// GetSubject implements domain.IdentityProvider.
func (c *Client) GetSubject(ctx context.Context, subjectID string) (*domain.Identity, error) {
	path := "/v1/subjects/" + url.PathEscape(subjectID) + ":lookup"
	var out identityResponse
	err := c.post(ctx, path, nil, &out)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			if apiErr.status == http.StatusNotFound {
				return nil, domain.ErrUserNotFound
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, apiErr)
		}
		return nil, err
	}
	return out.toDomain(), nil
}

// SignUp implements domain.PrimaryAuthenticator.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*domain.AuthResult, error) {
	body := map[string]string{
		"email":       email,
		"password":    password,
		"displayName": displayName,
	}
	var out authResponse
	if err := c.post(ctx, "/v1/accounts:signUp", body, &out); err != nil {
		return nil, mapAccountError(err)
	}
	return out.toDomain(), nil
}

// SignInWithPassword implements domain.PrimaryAuthenticator.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var out authResponse
	if err := c.post(ctx, "/v1/accounts:signInWithPassword", body, &out); err != nil {
		return nil, mapAccountError(err)
	}
	return out.toDomain(), nil
}

// SignInWithIdP implements domain.PrimaryAuthenticator. The idpToken is
// the federated provider's assertion obtained by the client application.
func (c *Client) SignInWithIdP(ctx context.Context, providerID, idpToken string) (*domain.AuthResult, error) {
	body := map[string]string{"providerId": providerID, "idpToken": idpToken}
	var out authResponse
	if err := c.post(ctx, "/v1/accounts:signInWithIdp", body, &out); err != nil {
		return nil, mapAccountError(err)
	}
	return out.toDomain(), nil
}

func asAPIError(err error) (*apiError, bool) {
	apiErr, ok := err.(*apiError)
	return apiErr, ok
}

// mapAccountError translates the provider's symbolic account error codes
// into the domain taxonomy. Unknown codes degrade to "provider
// unavailable" so nothing provider-specific leaks upward.
func mapAccountError(err error) error {
	apiErr, ok := asAPIError(err)
	if !ok {
		return err
	}
	switch apiErr.code {
	case "EMAIL_EXISTS":
		return domain.ErrEmailExists
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return domain.ErrInvalidCredentials
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED":
		return fmt.Errorf("%w: %s", domain.ErrInvalidToken, apiErr.code)
	default:
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, apiErr)
	}
}

var (
	_ domain.IdentityProvider     = (*Client)(nil)
	_ domain.PrimaryAuthenticator = (*Client)(nil)
)
