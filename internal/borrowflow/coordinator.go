// Package borrowflow drives the client-side borrow cycle: an optimistic
// allocation against the catalog's copy pool, a time-boxed undo in which the
// borrower may issue a compensating return, and an availability refresh after
// every terminal outcome. The two services involved share no transaction, so
// the flow is an explicit state machine rather than an ad hoc set of
// callbacks.
package borrowflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/madhur53/library-management-system/internal/catalog"
	"github.com/madhur53/library-management-system/internal/domain"
)

type State string

const (
	StateIdle         State = "IDLE"
	StatePending      State = "PENDING"
	StateHeld         State = "HELD"
	StateCompensating State = "COMPENSATING"
	StateCommitted    State = "COMMITTED"
)

var (
	// ErrFlowBusy gates re-submission: exactly one allocation call may be in
	// flight per coordinator.
	ErrFlowBusy = errors.New("a borrow is already in progress")
	// ErrNothingToUndo is returned when undo is invoked outside the window or
	// with no held copy.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrFlowClosed is returned after Close.
	ErrFlowClosed = errors.New("borrow flow is closed")
)

// Catalog is the slice of the catalog service the coordinator consumes.
type Catalog interface {
	BorrowByBook(ctx context.Context, bookID, userID int64, days int) (*catalog.BorrowReceipt, error)
	ReturnCopy(ctx context.Context, bookCopyID, userID, borrowID int64) (*catalog.ReturnReceipt, error)
	GetAvailability(ctx context.Context, bookID int64) (*catalog.Availability, error)
}

// Snapshot is a point-in-time view of the flow for display.
type Snapshot struct {
	State        State
	BookID       int64
	BookCopyID   int64
	BorrowID     int64
	DueOn        string
	Availability *catalog.Availability
}

// DefaultWindow is how long a fresh allocation stays undoable.
const DefaultWindow = 10 * time.Second

type Option func(*Flow)

// WithWindow overrides the undo window. Tests use sub-second windows.
func WithWindow(w time.Duration) Option {
	return func(f *Flow) { f.window = w }
}

// Flow is the borrow/return state machine for one borrower. All methods are
// safe for concurrent use; the state gate serializes the actual flow.
type Flow struct {
	catalog Catalog
	userID  int64
	window  time.Duration
	logger  *slog.Logger

	mu            sync.Mutex
	state         State
	attemptID     uuid.UUID
	bookID        int64
	bookCopyID    int64
	borrowID      int64
	dueOn         string
	availability  *catalog.Availability
	timer         *time.Timer
	timerGen      uint64
	windowExpired bool
	closed        bool
}

func New(cat Catalog, userID int64, logger *slog.Logger, opts ...Option) *Flow {
	f := &Flow{
		catalog: cat,
		userID:  userID,
		window:  DefaultWindow,
		logger:  logger,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Borrow confirms a borrow of any available copy of the book for the given
// duration. On success the flow holds the allocated copy and the undo window
// is open. On conflict or failure the flow is back at IDLE and retry is safe.
func (f *Flow) Borrow(ctx context.Context, bookID int64, days int) (*catalog.BorrowReceipt, error) {
	if f.userID <= 0 {
		return nil, fmt.Errorf("%w: no borrower identity", domain.ErrUnauthenticated)
	}
	if days <= 0 {
		days = domain.DefaultLoanDays
	}
	if days > domain.MaxLoanDays {
		return nil, fmt.Errorf("%w: %d days exceeds the %d day maximum",
			domain.ErrInvalidDuration, days, domain.MaxLoanDays)
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFlowClosed
	}
	if f.state != StateIdle && f.state != StateCommitted {
		f.mu.Unlock()
		return nil, ErrFlowBusy
	}
	f.stopTimerLocked()
	f.state = StatePending
	f.attemptID = uuid.New()
	f.bookID = bookID
	f.bookCopyID = 0
	f.borrowID = 0
	f.dueOn = ""
	f.windowExpired = false
	f.mu.Unlock()

	receipt, err := f.catalog.BorrowByBook(ctx, bookID, f.userID, days)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = StateIdle
		return nil, err
	}

	f.bookCopyID = receipt.BookCopyID
	f.borrowID = receipt.BorrowID
	f.dueOn = receipt.DueOn
	if f.closed {
		// Close raced the allocation. The borrow stands on the server, but a
		// closed flow must not arm an undo timer.
		f.state = StateCommitted
		return receipt, nil
	}
	f.state = StateHeld
	f.armTimerLocked()

	f.logger.Info("copy held, undo window open",
		slog.String("attempt_id", f.attemptID.String()),
		slog.Int64("book_id", bookID),
		slog.Int64("book_copy_id", receipt.BookCopyID),
		slog.Duration("window", f.window))
	return receipt, nil
}

// Undo issues the compensating return for the held copy. It succeeds only
// while the window is open; after expiry the borrow is final on this side and
// undo reports ErrNothingToUndo. A failed return leaves the copy held and
// does not restart the window.
func (f *Flow) Undo(ctx context.Context) (*catalog.ReturnReceipt, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrFlowClosed
	}
	if f.state != StateHeld {
		f.mu.Unlock()
		return nil, ErrNothingToUndo
	}
	f.state = StateCompensating
	copyID, borrowID := f.bookCopyID, f.borrowID
	f.mu.Unlock()

	receipt, err := f.catalog.ReturnCopy(ctx, copyID, f.userID, borrowID)

	f.mu.Lock()
	if err != nil {
		// The remaining window keeps running; if it ran out while the return
		// was in flight the borrow is final.
		if f.windowExpired {
			f.state = StateCommitted
			f.logger.Warn("undo failed and window elapsed, borrow stands",
				slog.Int64("book_copy_id", copyID), slog.Any("error", err))
		} else {
			f.state = StateHeld
			f.logger.Warn("undo failed, copy still held",
				slog.Int64("book_copy_id", copyID), slog.Any("error", err))
		}
		f.mu.Unlock()
		return nil, err
	}

	f.stopTimerLocked()
	f.state = StateIdle
	f.bookCopyID = 0
	f.borrowID = 0
	f.dueOn = ""
	bookID := f.bookID
	f.mu.Unlock()

	f.logger.Info("borrow undone", slog.Int64("book_copy_id", copyID))

	// Best-effort refresh so the snapshot reflects the restored copy.
	if avail, aerr := f.catalog.GetAvailability(ctx, bookID); aerr == nil {
		f.mu.Lock()
		f.availability = avail
		f.mu.Unlock()
	}
	return receipt, nil
}

// Refresh re-queries availability for the flow's book so displayed counts
// reflect the latest allocation outcome.
func (f *Flow) Refresh(ctx context.Context) (*catalog.Availability, error) {
	f.mu.Lock()
	bookID := f.bookID
	f.mu.Unlock()
	if bookID <= 0 {
		return nil, domain.ErrBookNotFound
	}

	avail, err := f.catalog.GetAvailability(ctx, bookID)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.availability = avail
	f.mu.Unlock()
	return avail, nil
}

// Snapshot returns the flow's current state for display.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		State:        f.state,
		BookID:       f.bookID,
		BookCopyID:   f.bookCopyID,
		BorrowID:     f.borrowID,
		DueOn:        f.dueOn,
		Availability: f.availability,
	}
}

// Close tears the flow down. A pending undo window is cancelled and will
// never fire; a held borrow simply stands.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.stopTimerLocked()
}

// armTimerLocked starts the single-shot undo timer. The generation counter
// keeps a stale timer from a previous flow iteration from touching the
// current one.
func (f *Flow) armTimerLocked() {
	f.timerGen++
	gen := f.timerGen
	f.timer = time.AfterFunc(f.window, func() { f.expire(gen) })
}

func (f *Flow) stopTimerLocked() {
	f.timerGen++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

// expire closes the undo affordance. It never calls return: window expiry
// means the borrow is final from this side, not that the server cancels it.
func (f *Flow) expire(gen uint64) {
	f.mu.Lock()
	if f.closed || gen != f.timerGen {
		f.mu.Unlock()
		return
	}
	switch f.state {
	case StateHeld:
		f.state = StateCommitted
	case StateCompensating:
		f.windowExpired = true
		f.mu.Unlock()
		return
	default:
		f.mu.Unlock()
		return
	}
	bookID := f.bookID
	copyID := f.bookCopyID
	f.mu.Unlock()

	f.logger.Info("undo window elapsed, borrow committed",
		slog.Int64("book_copy_id", copyID))

	// Best-effort availability refresh so stale counts do not linger.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if avail, err := f.catalog.GetAvailability(ctx, bookID); err == nil {
		f.mu.Lock()
		f.availability = avail
		f.mu.Unlock()
	}
}
