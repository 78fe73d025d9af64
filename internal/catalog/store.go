package catalog

import (
	"context"
	"time"

	"github.com/madhur53/library-management-system/pkg/eventstore"
)

// Store owns all BookCopy.status and Borrow.status writes. Allocation mutual
// exclusion per copy is enforced here; callers only see the conflict signal.
type Store interface {
	CreateBook(ctx context.Context, book *Book) error
	BookByID(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	SearchBooks(ctx context.Context, query string) ([]Book, error)
	UpdateBook(ctx context.Context, book *Book) error
	DeleteBook(ctx context.Context, id int64) error

	CreateCopy(ctx context.Context, copy *BookCopy) error
	ListCopies(ctx context.Context) ([]BookCopy, error)
	CopiesByBook(ctx context.Context, bookID int64) ([]BookCopy, error)

	Availability(ctx context.Context, bookID int64) (*Availability, error)

	// AllocateFirstAvailable issues the first AVAILABLE copy of the book in
	// one transaction: copy flips to ISSUED and an ACTIVE borrow is created.
	// Returns ErrNoCopyAvailable when every copy is out.
	AllocateFirstAvailable(ctx context.Context, bookID, userID int64, issuedOn, dueOn time.Time) (*Borrow, error)

	// AllocateCopy issues a specific copy. ErrCopyNotFound when the copy does
	// not exist, ErrCopyNotAvailable when it is already issued.
	AllocateCopy(ctx context.Context, copyID, userID int64, issuedOn, dueOn time.Time) (*Borrow, error)

	// ReleaseCopy marks the copy AVAILABLE and closes the matching borrow:
	// by id when borrowID > 0, otherwise the newest ACTIVE borrow for the
	// copy. A nil borrow with nil error means the copy was freed without a
	// borrow record to close.
	ReleaseCopy(ctx context.Context, copyID, borrowID int64, returnedOn time.Time) (*Borrow, error)

	ActiveBorrowsByUser(ctx context.Context, userID int64) ([]Borrow, error)
	BorrowsByUser(ctx context.Context, userID int64) ([]Borrow, error)
}

// Journal is the slice of the event store the catalog service uses.
type Journal interface {
	Append(ctx context.Context, streamType string, streamID int64, expectedVersion int, events []eventstore.Event) error
	CurrentVersion(ctx context.Context, streamType string, streamID int64) (int, error)
}
