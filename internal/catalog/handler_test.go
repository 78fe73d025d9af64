package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	server := httptest.NewServer(NewHandler(svc).Routes())
	t.Cleanup(server.Close)
	return server, svc
}

func TestActiveBorrowsEndpointContract(t *testing.T) {
	server, svc := newTestServer(t)
	book := seedBook(t, svc, 1)

	// No active borrows: the check endpoint answers 404.
	resp, err := http.Get(fmt.Sprintf("%s/api/catalog/borrows/active/member/%d", server.URL, 7))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.NoError(t, err)

	// With a loan held, the same endpoint answers 200 with the borrow list.
	resp, err = http.Get(fmt.Sprintf("%s/api/catalog/borrows/active/member/%d", server.URL, 7))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var borrows []Borrow
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&borrows))
	require.Len(t, borrows, 1)
	assert.Equal(t, BorrowActive, borrows[0].Status)
}

func TestBorrowEndpointConflictResponse(t *testing.T) {
	server, svc := newTestServer(t)
	book := seedBook(t, svc, 1)

	body, _ := json.Marshal(BorrowRequest{BookID: book.ID, UserID: 7})
	resp, err := http.Post(server.URL+"/api/catalog/borrow/book", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ = json.Marshal(BorrowRequest{BookID: book.ID, UserID: 8})
	resp, err = http.Post(server.URL+"/api/catalog/borrow/book", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var envelope struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "CONFLICT", envelope.Code)
	assert.NotEmpty(t, envelope.Error)
}

func TestBorrowEndpointRejectsMissingIdentity(t *testing.T) {
	server, svc := newTestServer(t)
	book := seedBook(t, svc, 1)

	body, _ := json.Marshal(BorrowRequest{BookID: book.ID})
	resp, err := http.Post(server.URL+"/api/catalog/borrow/book", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAvailabilityEndpoint(t *testing.T) {
	server, svc := newTestServer(t)
	book := seedBook(t, svc, 3)

	resp, err := http.Get(fmt.Sprintf("%s/api/catalog/books/%d/availability", server.URL, book.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var avail Availability
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&avail))
	assert.Equal(t, 3, avail.TotalCopies)
	assert.Equal(t, 3, avail.AvailableCopies)

	resp, err = http.Get(server.URL + "/api/catalog/books/999/availability")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
