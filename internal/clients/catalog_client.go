package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/madhur53/library-management-system/internal/catalog"
	"github.com/madhur53/library-management-system/internal/domain"
	"github.com/madhur53/library-management-system/internal/webutil"
)

// CatalogClient talks to the catalog service over HTTP.
type CatalogClient struct {
	baseURL string
	client  *http.Client
	tracer  trace.Tracer
}

func NewCatalogClient(baseURL string, client *http.Client) *CatalogClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &CatalogClient{
		baseURL: baseURL,
		client:  client,
		tracer:  otel.Tracer("library/clients"),
	}
}

func (c *CatalogClient) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	var books []catalog.Book
	if err := c.getJSON(ctx, "/api/catalog/books", &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *CatalogClient) SearchBooks(ctx context.Context, query string) ([]catalog.Book, error) {
	var books []catalog.Book
	path := "/api/catalog/books/search?q=" + url.QueryEscape(query)
	if err := c.getJSON(ctx, path, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *CatalogClient) GetAvailability(ctx context.Context, bookID int64) (*catalog.Availability, error) {
	var avail catalog.Availability
	path := fmt.Sprintf("/api/catalog/books/%d/availability", bookID)
	if err := c.getJSON(ctx, path, &avail); err != nil {
		return nil, err
	}
	return &avail, nil
}

// BorrowByBook asks the catalog to allocate any available copy of the book.
func (c *CatalogClient) BorrowByBook(ctx context.Context, bookID, userID int64, days int) (*catalog.BorrowReceipt, error) {
	req := catalog.BorrowRequest{BookID: bookID, UserID: userID, Days: days}
	var receipt catalog.BorrowReceipt
	if err := c.postJSON(ctx, "/api/catalog/borrow/book", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// BorrowCopy asks the catalog to allocate one specific copy.
func (c *CatalogClient) BorrowCopy(ctx context.Context, bookCopyID, userID int64, days int) (*catalog.BorrowReceipt, error) {
	req := catalog.BorrowRequest{BookCopyID: bookCopyID, UserID: userID, Days: days}
	var receipt catalog.BorrowReceipt
	if err := c.postJSON(ctx, "/api/catalog/borrow", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ReturnCopy returns a held copy, compensating a prior borrow.
func (c *CatalogClient) ReturnCopy(ctx context.Context, bookCopyID, userID, borrowID int64) (*catalog.ReturnReceipt, error) {
	req := catalog.ReturnRequest{BookCopyID: bookCopyID, UserID: userID, BorrowID: borrowID}
	var receipt catalog.ReturnReceipt
	if err := c.postJSON(ctx, "/api/catalog/return", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *CatalogClient) BorrowHistory(ctx context.Context, userID int64) ([]catalog.Borrow, error) {
	var borrows []catalog.Borrow
	path := fmt.Sprintf("/api/catalog/borrows/user/%d", userID)
	if err := c.getJSON(ctx, path, &borrows); err != nil {
		return nil, err
	}
	return borrows, nil
}

func (c *CatalogClient) getJSON(ctx context.Context, path string, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "catalog.client.get",
		trace.WithAttributes(attribute.String("http.path", path)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *CatalogClient) postJSON(ctx context.Context, path string, in, out interface{}) error {
	ctx, span := c.tracer.Start(ctx, "catalog.client.post",
		trace.WithAttributes(attribute.String("http.path", path)))
	defer span.End()

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *CatalogClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError maps the catalog's error envelope back onto domain sentinels so
// callers can branch with errors.Is instead of sniffing status codes.
func decodeError(resp *http.Response) error {
	var envelope webutil.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("catalog: unexpected status %d", resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrNoCopyAvailable, envelope.Error)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrBookNotFound, envelope.Error)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthenticated, envelope.Error)
	case http.StatusBadRequest:
		return fmt.Errorf("catalog: %s", envelope.Error)
	default:
		return fmt.Errorf("catalog: status %d: %s", resp.StatusCode, envelope.Error)
	}
}
