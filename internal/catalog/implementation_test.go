package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	metricsdk "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"pgregory.net/rapid"

	"github.com/madhur53/library-management-system/internal/domain"
	"github.com/madhur53/library-management-system/pkg/eventstore"
)

// memStore is an in-memory Store with the same allocation contract as the
// postgres implementation: at most one active borrow per copy, conflicts
// surfaced as sentinels.
type memStore struct {
	mu       sync.Mutex
	books    map[int64]*Book
	copies   map[int64]*BookCopy
	borrows  map[int64]*Borrow
	nextBook int64
	nextCopy int64
	nextBrw  int64
}

func newMemStore() *memStore {
	return &memStore{
		books:   map[int64]*Book{},
		copies:  map[int64]*BookCopy{},
		borrows: map[int64]*Borrow{},
	}
}

func (m *memStore) CreateBook(_ context.Context, book *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBook++
	book.ID = m.nextBook
	m.books[book.ID] = book
	return nil
}

func (m *memStore) BookByID(_ context.Context, id int64) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	book, ok := m.books[id]
	if !ok {
		return nil, domain.ErrBookNotFound
	}
	return book, nil
}

func (m *memStore) ListBooks(_ context.Context) ([]Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Book
	for _, b := range m.books {
		out = append(out, *b)
	}
	return out, nil
}

func (m *memStore) SearchBooks(_ context.Context, _ string) ([]Book, error) {
	return m.ListBooks(context.Background())
}

func (m *memStore) UpdateBook(_ context.Context, book *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[book.ID]; !ok {
		return domain.ErrBookNotFound
	}
	m.books[book.ID] = book
	return nil
}

func (m *memStore) DeleteBook(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return domain.ErrBookNotFound
	}
	delete(m.books, id)
	return nil
}

func (m *memStore) CreateCopy(_ context.Context, copy *BookCopy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCopy++
	copy.ID = m.nextCopy
	if copy.Status == "" {
		copy.Status = CopyAvailable
	}
	m.copies[copy.ID] = copy
	return nil
}

func (m *memStore) ListCopies(_ context.Context) ([]BookCopy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BookCopy
	for _, c := range m.copies {
		out = append(out, *c)
	}
	return out, nil
}

func (m *memStore) CopiesByBook(_ context.Context, bookID int64) ([]BookCopy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []BookCopy
	for _, c := range m.copies {
		if c.BookID == bookID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) Availability(_ context.Context, bookID int64) (*Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[bookID]; !ok {
		return nil, domain.ErrBookNotFound
	}
	avail := &Availability{BookID: bookID}
	for _, c := range m.copies {
		if c.BookID != bookID {
			continue
		}
		avail.TotalCopies++
		if c.Status == CopyAvailable {
			avail.AvailableCopies++
		}
	}
	return avail, nil
}

func (m *memStore) AllocateFirstAvailable(_ context.Context, bookID, userID int64, issuedOn, dueOn time.Time) (*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for id, c := range m.copies {
		if c.BookID == bookID && c.Status == CopyAvailable {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, domain.ErrNoCopyAvailable
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return m.issueLocked(ids[0], userID, issuedOn, dueOn), nil
}

func (m *memStore) AllocateCopy(_ context.Context, copyID, userID int64, issuedOn, dueOn time.Time) (*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy, ok := m.copies[copyID]
	if !ok {
		return nil, domain.ErrCopyNotFound
	}
	if copy.Status != CopyAvailable {
		return nil, domain.ErrCopyNotAvailable
	}
	return m.issueLocked(copyID, userID, issuedOn, dueOn), nil
}

func (m *memStore) issueLocked(copyID, userID int64, issuedOn, dueOn time.Time) *Borrow {
	copy := m.copies[copyID]
	copy.Status = CopyIssued
	m.nextBrw++
	borrow := &Borrow{
		ID:         m.nextBrw,
		BookCopyID: copyID,
		BookID:     copy.BookID,
		UserID:     userID,
		IssuedOn:   issuedOn,
		DueOn:      dueOn,
		Status:     BorrowActive,
	}
	m.borrows[borrow.ID] = borrow
	return borrow
}

func (m *memStore) ReleaseCopy(_ context.Context, copyID, borrowID int64, returnedOn time.Time) (*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copy, ok := m.copies[copyID]
	if !ok {
		return nil, domain.ErrCopyNotFound
	}

	// Mirrors the postgres contract: an explicit borrow id wins regardless of
	// which copy it names, otherwise the latest active borrow on the copy.
	var target *Borrow
	if borrowID > 0 {
		if b, ok := m.borrows[borrowID]; ok && b.Status == BorrowActive {
			target = b
		}
	} else {
		for _, b := range m.borrows {
			if b.BookCopyID != copyID || b.Status != BorrowActive {
				continue
			}
			if target == nil || b.ID > target.ID {
				target = b
			}
		}
	}

	copy.Status = CopyAvailable
	if target == nil {
		return nil, nil
	}
	target.Status = BorrowReturned
	target.ReturnedOn = &returnedOn
	return target, nil
}

func (m *memStore) ActiveBorrowsByUser(_ context.Context, userID int64) ([]Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Borrow
	for _, b := range m.borrows {
		if b.UserID == userID && b.Status == BorrowActive {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memStore) BorrowsByUser(_ context.Context, userID int64) ([]Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Borrow
	for _, b := range m.borrows {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

type copyJournal struct {
	mu      sync.Mutex
	streams map[int64][]eventstore.Event
}

func newCopyJournal() *copyJournal {
	return &copyJournal{streams: map[int64][]eventstore.Event{}}
}

func (j *copyJournal) Append(_ context.Context, _ string, streamID int64, expectedVersion int, events []eventstore.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.streams[streamID]) != expectedVersion {
		return eventstore.ErrConcurrencyConflict
	}
	j.streams[streamID] = append(j.streams[streamID], events...)
	return nil
}

func (j *copyJournal) CurrentVersion(_ context.Context, _ string, streamID int64) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.streams[streamID]), nil
}

func newTestService(t *testing.T) (Service, *memStore, *copyJournal) {
	t.Helper()
	store := newMemStore()
	journal := newCopyJournal()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, journal, logger), store, journal
}

func seedBook(t *testing.T, svc Service, copies int) *Book {
	t.Helper()
	book := &Book{Title: "The Go Programming Language", Author: "Donovan & Kernighan"}
	require.NoError(t, svc.CreateBook(context.Background(), book))
	for i := 0; i < copies; i++ {
		require.NoError(t, svc.CreateCopy(context.Background(), &BookCopy{BookID: book.ID}))
	}
	return book
}

func TestBorrowAllocatesAndDecrementsAvailability(t *testing.T) {
	svc, _, journal := newTestService(t)
	book := seedBook(t, svc, 2)

	receipt, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, "issued", receipt.Status)
	assert.NotZero(t, receipt.BookCopyID)

	avail, err := svc.GetAvailability(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.AvailableCopies)
	assert.Equal(t, 2, avail.TotalCopies)

	events := journal.streams[receipt.BookCopyID]
	require.Len(t, events, 1)
	assert.Equal(t, "CopyIssued", events[0].EventType)
}

func TestBorrowExhaustedPoolConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	book := seedBook(t, svc, 1)

	_, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.NoError(t, err)

	_, err = svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 8})
	assert.ErrorIs(t, err, domain.ErrNoCopyAvailable)
}

func TestBorrowSpecificCopy(t *testing.T) {
	svc, _, _ := newTestService(t)
	book := seedBook(t, svc, 1)

	copies, err := svc.CopiesByBook(context.Background(), book.ID)
	require.NoError(t, err)
	require.Len(t, copies, 1)

	receipt, err := svc.Borrow(context.Background(), BorrowRequest{BookCopyID: copies[0].ID, UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, copies[0].ID, receipt.BookCopyID)

	_, err = svc.Borrow(context.Background(), BorrowRequest{BookCopyID: copies[0].ID, UserID: 8})
	assert.ErrorIs(t, err, domain.ErrCopyNotAvailable)
}

func TestBorrowValidatesIdentityAndDuration(t *testing.T) {
	svc, _, _ := newTestService(t)
	book := seedBook(t, svc, 1)

	_, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.Borrow(context.Background(), BorrowRequest{
		BookID: book.ID, UserID: 7, Days: domain.MaxLoanDays + 1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDuration)

	receipt, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.NoError(t, err)
	issued, err := time.Parse("2006-01-02", receipt.IssuedOn)
	require.NoError(t, err)
	due, err := time.Parse("2006-01-02", receipt.DueOn)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLoanDays, int(due.Sub(issued).Hours()/24))
}

func TestReturnClosesBorrowAndFreesCopy(t *testing.T) {
	svc, _, _ := newTestService(t)
	book := seedBook(t, svc, 1)

	receipt, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.NoError(t, err)

	ret, err := svc.Return(context.Background(), ReturnRequest{
		BookCopyID: receipt.BookCopyID, UserID: 7, BorrowID: receipt.BorrowID,
	})
	require.NoError(t, err)
	assert.Equal(t, receipt.BorrowID, ret.BorrowID)

	avail, err := svc.GetAvailability(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.AvailableCopies)

	active, _, err := svc.HasActiveBorrows(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestReturnWithoutBorrowRecordStillFreesCopy(t *testing.T) {
	svc, store, _ := newTestService(t)
	book := seedBook(t, svc, 1)

	copies, err := svc.CopiesByBook(context.Background(), book.ID)
	require.NoError(t, err)
	store.copies[copies[0].ID].Status = CopyIssued

	ret, err := svc.Return(context.Background(), ReturnRequest{BookCopyID: copies[0].ID, UserID: 7})
	require.NoError(t, err)
	assert.Zero(t, ret.BorrowID)
	assert.NotEmpty(t, ret.Note)

	avail, err := svc.GetAvailability(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, avail.AvailableCopies)
}

func TestReturnByBorrowIDClosesBorrowRegardlessOfCopy(t *testing.T) {
	svc, store, _ := newTestService(t)
	book := seedBook(t, svc, 2)

	receipt, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.NoError(t, err)

	var otherCopy int64
	for id := range store.copies {
		if id != receipt.BookCopyID {
			otherCopy = id
		}
	}
	require.NotZero(t, otherCopy)

	// An explicit borrow id wins even when the request names a different copy.
	ret, err := svc.Return(context.Background(), ReturnRequest{BookCopyID: otherCopy, BorrowID: receipt.BorrowID, UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, receipt.BorrowID, ret.BorrowID)
	assert.Equal(t, BorrowReturned, store.borrows[receipt.BorrowID].Status)

	// Only the copy named in the request is freed.
	assert.Equal(t, CopyAvailable, store.copies[otherCopy].Status)
	assert.Equal(t, CopyIssued, store.copies[receipt.BookCopyID].Status)
}

type brokenAllocStore struct {
	*memStore
}

func (brokenAllocStore) AllocateFirstAvailable(context.Context, int64, int64, time.Time, time.Time) (*Borrow, error) {
	return nil, errors.New("deadlock detected")
}

func TestBorrowMetricSeparatesConflictFromError(t *testing.T) {
	reader := metricsdk.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(metricsdk.NewMeterProvider(metricsdk.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(store, newCopyJournal(), logger)
	book := seedBook(t, svc, 0)
	_, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.ErrorIs(t, err, domain.ErrNoCopyAvailable)

	broken := NewService(brokenAllocStore{store}, newCopyJournal(), logger)
	_, err = broken.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "catalog.borrows" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("outcome")); ok {
					counts[v.AsString()] += dp.Value
				}
			}
		}
	}
	assert.EqualValues(t, 1, counts["conflict"], "an exhausted pool is a conflict")
	assert.EqualValues(t, 1, counts["error"], "a store failure is not a conflict")
}

func TestHasActiveBorrows(t *testing.T) {
	svc, _, _ := newTestService(t)
	book := seedBook(t, svc, 2)

	active, borrows, err := svc.HasActiveBorrows(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, borrows)

	_, err = svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.NoError(t, err)

	active, borrows, err = svc.HasActiveBorrows(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, active)
	assert.Len(t, borrows, 1)
}

func TestJournalFailureDoesNotFailBorrow(t *testing.T) {
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, failingJournal{}, logger)
	book := seedBook(t, svc, 1)

	receipt, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: 7})
	require.NoError(t, err, "the allocation already committed; journaling is best effort")
	assert.NotZero(t, receipt.BookCopyID)
}

type failingJournal struct{}

func (failingJournal) Append(context.Context, string, int64, int, []eventstore.Event) error {
	return errors.New("journal down")
}

func (failingJournal) CurrentVersion(context.Context, string, int64) (int, error) {
	return 0, errors.New("journal down")
}

// TestAvailabilityInvariant drives random borrow/return sequences and checks
// the copy-count invariant after every step.
func TestAvailabilityInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		svc := NewService(newMemStore(), newCopyJournal(),
			slog.New(slog.NewTextHandler(io.Discard, nil)))
		total := rapid.IntRange(1, 5).Draw(t, "copies")

		book := &Book{Title: "x"}
		if err := svc.CreateBook(context.Background(), book); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < total; i++ {
			if err := svc.CreateCopy(context.Background(), &BookCopy{BookID: book.ID}); err != nil {
				t.Fatal(err)
			}
		}

		var held []BorrowReceipt
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			borrowNext := len(held) == 0 || rapid.Bool().Draw(t, "borrow")
			if borrowNext {
				userID := int64(rapid.IntRange(1, 3).Draw(t, "user"))
				receipt, err := svc.Borrow(context.Background(), BorrowRequest{BookID: book.ID, UserID: userID})
				if err == nil {
					held = append(held, *receipt)
				} else if !errors.Is(err, domain.ErrNoCopyAvailable) {
					t.Fatalf("unexpected borrow error: %v", err)
				}
			} else {
				idx := rapid.IntRange(0, len(held)-1).Draw(t, "which")
				receipt := held[idx]
				if _, err := svc.Return(context.Background(), ReturnRequest{
					BookCopyID: receipt.BookCopyID, BorrowID: receipt.BorrowID,
				}); err != nil {
					t.Fatalf("unexpected return error: %v", err)
				}
				held = append(held[:idx], held[idx+1:]...)
			}

			avail, err := svc.GetAvailability(context.Background(), book.ID)
			if err != nil {
				t.Fatal(err)
			}
			if avail.AvailableCopies < 0 || avail.AvailableCopies > avail.TotalCopies {
				t.Fatalf("availability out of range: %d of %d", avail.AvailableCopies, avail.TotalCopies)
			}
			if got := avail.TotalCopies - avail.AvailableCopies; got != len(held) {
				t.Fatalf("issued count %d does not match held receipts %d", got, len(held))
			}
		}
	})
}
