package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/madhur53/library-management-system/internal/domain"
	"github.com/madhur53/library-management-system/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	store       Store
	journal     Journal
	logger      *slog.Logger
	borrowCount metric.Int64Counter
}

// NewService creates the catalog/borrowing service.
func NewService(store Store, journal Journal, logger *slog.Logger) Service {
	meter := otel.Meter("library/catalog")
	borrowCount, _ := meter.Int64Counter("catalog.borrows",
		metric.WithDescription("copies allocated, by outcome"))

	return &service{
		store:       store,
		journal:     journal,
		logger:      logger,
		borrowCount: borrowCount,
	}
}

func (s *service) CreateBook(ctx context.Context, book *Book) error {
	return s.store.CreateBook(ctx, book)
}

func (s *service) GetBook(ctx context.Context, id int64) (*Book, error) {
	return s.store.BookByID(ctx, id)
}

func (s *service) ListBooks(ctx context.Context) ([]Book, error) {
	return s.store.ListBooks(ctx)
}

func (s *service) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	return s.store.SearchBooks(ctx, query)
}

func (s *service) UpdateBook(ctx context.Context, book *Book) error {
	return s.store.UpdateBook(ctx, book)
}

func (s *service) DeleteBook(ctx context.Context, id int64) error {
	return s.store.DeleteBook(ctx, id)
}

func (s *service) CreateCopy(ctx context.Context, copy *BookCopy) error {
	if _, err := s.store.BookByID(ctx, copy.BookID); err != nil {
		return err
	}
	return s.store.CreateCopy(ctx, copy)
}

func (s *service) ListCopies(ctx context.Context) ([]BookCopy, error) {
	return s.store.ListCopies(ctx)
}

func (s *service) CopiesByBook(ctx context.Context, bookID int64) ([]BookCopy, error) {
	return s.store.CopiesByBook(ctx, bookID)
}

func (s *service) GetAvailability(ctx context.Context, bookID int64) (*Availability, error) {
	return s.store.Availability(ctx, bookID)
}

// Borrow allocates a copy. The store guarantees at most one active borrow per
// copy; a lost race surfaces as the same conflict as an exhausted pool.
func (s *service) Borrow(ctx context.Context, req BorrowRequest) (*BorrowReceipt, error) {
	if req.UserID <= 0 {
		return nil, fmt.Errorf("%w: userId required", domain.ErrUnauthenticated)
	}

	days := req.Days
	if days <= 0 {
		days = domain.DefaultLoanDays
	}
	if days > domain.MaxLoanDays {
		return nil, domain.ErrInvalidDuration
	}

	issuedOn := time.Now().UTC().Truncate(24 * time.Hour)
	dueOn := issuedOn.AddDate(0, 0, days)

	var borrow *Borrow
	var err error
	switch {
	case req.BookCopyID > 0:
		borrow, err = s.store.AllocateCopy(ctx, req.BookCopyID, req.UserID, issuedOn, dueOn)
	case req.BookID > 0:
		borrow, err = s.store.AllocateFirstAvailable(ctx, req.BookID, req.UserID, issuedOn, dueOn)
	default:
		return nil, fmt.Errorf("bookId or bookCopyId required")
	}

	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrNoCopyAvailable) || errors.Is(err, domain.ErrCopyNotAvailable) {
			outcome = "conflict"
		}
		s.borrowCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		return nil, err
	}

	s.borrowCount.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "issued")))
	s.appendCopyEvent(ctx, borrow.BookCopyID, "CopyIssued", CopyIssuedEvent{
		CopyID:   borrow.BookCopyID,
		BookID:   borrow.BookID,
		BorrowID: borrow.ID,
		UserID:   borrow.UserID,
		DueOn:    borrow.DueOn,
	})

	return &BorrowReceipt{
		Status:     "issued",
		BookCopyID: borrow.BookCopyID,
		BookID:     borrow.BookID,
		BorrowID:   borrow.ID,
		IssuedOn:   borrow.IssuedOn.Format("2006-01-02"),
		DueOn:      borrow.DueOn.Format("2006-01-02"),
	}, nil
}

// Return frees the copy and closes the matching borrow. A return without a
// borrow record still frees the copy.
func (s *service) Return(ctx context.Context, req ReturnRequest) (*ReturnReceipt, error) {
	if req.BookCopyID <= 0 {
		return nil, fmt.Errorf("bookCopyId required")
	}

	returnedOn := time.Now().UTC()
	borrow, err := s.store.ReleaseCopy(ctx, req.BookCopyID, req.BorrowID, returnedOn)
	if err != nil {
		return nil, err
	}

	if borrow == nil {
		s.logger.Warn("return with no borrow record, copy freed anyway", "copy_id", req.BookCopyID)
		s.appendCopyEvent(ctx, req.BookCopyID, "CopyReturned", CopyReturnedEvent{
			CopyID:     req.BookCopyID,
			ReturnedOn: returnedOn,
		})
		return &ReturnReceipt{
			Status: "returned",
			Note:   "no borrow record found; copy marked AVAILABLE",
		}, nil
	}

	s.appendCopyEvent(ctx, borrow.BookCopyID, "CopyReturned", CopyReturnedEvent{
		CopyID:     borrow.BookCopyID,
		BorrowID:   borrow.ID,
		ReturnedOn: returnedOn,
	})

	return &ReturnReceipt{
		Status:     "returned",
		BorrowID:   borrow.ID,
		ReturnedOn: returnedOn.Format("2006-01-02"),
	}, nil
}

func (s *service) HasActiveBorrows(ctx context.Context, userID int64) (bool, []Borrow, error) {
	borrows, err := s.store.ActiveBorrowsByUser(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	return len(borrows) > 0, borrows, nil
}

func (s *service) BorrowHistory(ctx context.Context, userID int64) ([]Borrow, error) {
	return s.store.BorrowsByUser(ctx, userID)
}

// appendCopyEvent journals a copy transition. The borrow itself has already
// committed; a journal failure is logged, not propagated, so the client is
// never told an issued copy failed.
func (s *service) appendCopyEvent(ctx context.Context, copyID int64, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("marshal copy event", "error", err)
		return
	}

	version, err := s.journal.CurrentVersion(ctx, StreamCopy, copyID)
	if err != nil {
		s.logger.Error("journal version for copy event", "copy_id", copyID, "error", err)
		return
	}

	err = s.journal.Append(ctx, StreamCopy, copyID, version, []eventstore.Event{{
		EventType: eventType,
		EventData: jsonData,
	}})
	if err != nil {
		s.logger.Error("append copy event", "copy_id", copyID, "event", eventType, "error", err)
	}
}
