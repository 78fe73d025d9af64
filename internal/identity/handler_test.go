package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()
	f := newFixture(t)
	tokens := NewTokenIssuer("test-secret", time.Hour)
	server := httptest.NewServer(NewHandler(f.svc, tokens).Routes())
	t.Cleanup(server.Close)
	return server, f
}

func TestDeactivateEndpoint(t *testing.T) {
	server, f := newTestServer(t)
	member := f.seedMember(t, StatusActive)

	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/members/%d", server.URL, member.ID), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "deactivated", body["status"])
}

func TestDeactivateEndpointBlockedByLoans(t *testing.T) {
	server, f := newTestServer(t)
	member := f.seedMember(t, StatusActive)
	f.loans.hasLoans = true

	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/members/%d", server.URL, member.ID), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "CONFLICT", body.Code)
	assert.Contains(t, body.Error, "active borrowed books")
}

func TestRestoreEndpoint(t *testing.T) {
	server, f := newTestServer(t)
	member := f.seedMember(t, StatusInactive)

	resp, err := http.Post(
		fmt.Sprintf("%s/api/members/%d/restore", server.URL, member.ID), "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "restored", body["status"])

	user, err := f.store.UserByID(context.Background(), member.UserID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, user.Status)
}

func TestRestoreMissingMemberIs404(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/members/999/restore", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterAndLoginEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	payload, _ := json.Marshal(RegisterUserInput{Username: "reader", Password: "sekret"})
	resp, err := http.Post(server.URL+"/api/users", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	creds, _ := json.Marshal(map[string]string{"username": "reader", "password": "sekret"})
	resp, err = http.Post(server.URL+"/api/users/login", "application/json", bytes.NewReader(creds))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result LoginResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.NotEmpty(t, result.Token)
	require.NotNil(t, result.User)
	assert.Empty(t, result.User.PasswordHash, "credentials never leave the service")
}

func TestInvalidBearerTokenRejected(t *testing.T) {
	server, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/members", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAnonymousRequestsPassThrough(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/members")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
