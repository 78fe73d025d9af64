package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/madhur53/library-management-system/internal/domain"
	"github.com/madhur53/library-management-system/internal/identity"
	"github.com/madhur53/library-management-system/internal/webutil"
)

// IdentityClient talks to the identity service over HTTP. A non-empty token
// is attached as a bearer credential on every request.
type IdentityClient struct {
	baseURL string
	client  *http.Client
	token   string
}

func NewIdentityClient(baseURL string, client *http.Client) *IdentityClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &IdentityClient{baseURL: baseURL, client: client}
}

// WithToken returns a copy of the client that authenticates as the holder of
// the given token.
func (c *IdentityClient) WithToken(token string) *IdentityClient {
	clone := *c
	clone.token = token
	return &clone
}

func (c *IdentityClient) RegisterUser(ctx context.Context, input identity.RegisterUserInput) (*identity.User, error) {
	var user identity.User
	if err := c.roundTrip(ctx, http.MethodPost, "/api/users", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *IdentityClient) LoginUser(ctx context.Context, username, password string) (*identity.LoginResult, error) {
	return c.login(ctx, "/api/users/login", username, password)
}

func (c *IdentityClient) LoginAdmin(ctx context.Context, username, password string) (*identity.LoginResult, error) {
	return c.login(ctx, "/api/admins/login", username, password)
}

func (c *IdentityClient) login(ctx context.Context, path, username, password string) (*identity.LoginResult, error) {
	credentials := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}

	var result identity.LoginResult
	if err := c.roundTrip(ctx, http.MethodPost, path, credentials, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *IdentityClient) CreateMember(ctx context.Context, userID int64) (*identity.Member, error) {
	input := struct {
		UserID int64 `json:"userId"`
	}{UserID: userID}

	var member identity.Member
	if err := c.roundTrip(ctx, http.MethodPost, "/api/members", input, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *IdentityClient) ListMembers(ctx context.Context) ([]identity.MemberRecord, error) {
	var members []identity.MemberRecord
	if err := c.roundTrip(ctx, http.MethodGet, "/api/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *IdentityClient) DeactivateMember(ctx context.Context, memberID int64) error {
	path := fmt.Sprintf("/api/members/%d", memberID)
	return c.roundTrip(ctx, http.MethodDelete, path, nil, nil)
}

func (c *IdentityClient) RestoreMember(ctx context.Context, memberID int64) error {
	path := fmt.Sprintf("/api/members/%d/restore", memberID)
	return c.roundTrip(ctx, http.MethodPost, path, nil, nil)
}

func (c *IdentityClient) roundTrip(ctx context.Context, method, path string, in, out interface{}) error {
	var body *bytes.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeIdentityError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeIdentityError(resp *http.Response) error {
	var envelope webutil.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}

	switch envelope.Code {
	case domain.CodeConflict:
		return fmt.Errorf("%w: %s", domain.ErrActiveLoans, envelope.Error)
	case domain.CodeNotFound:
		return fmt.Errorf("%w: %s", domain.ErrMemberNotFound, envelope.Error)
	case domain.CodeUnauthenticated:
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, envelope.Error)
	case domain.CodeRateLimited:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, envelope.Error)
	default:
		return fmt.Errorf("identity: %s", envelope.Error)
	}
}
