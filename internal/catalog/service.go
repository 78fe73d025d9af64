package catalog

import "context"

// BorrowRequest carries an allocation request. Exactly one of BookID or
// BookCopyID is set: BookID lets the service pick any free copy, BookCopyID
// asks for that copy. Days <= 0 falls back to the default loan period.
type BorrowRequest struct {
	BookID     int64 `json:"bookId,omitempty"`
	BookCopyID int64 `json:"bookCopyId,omitempty"`
	UserID     int64 `json:"userId"`
	Days       int   `json:"days,omitempty"`
}

// ReturnRequest identifies the allocation to compensate.
type ReturnRequest struct {
	BookCopyID int64 `json:"bookCopyId"`
	UserID     int64 `json:"userId,omitempty"`
	BorrowID   int64 `json:"borrowId,omitempty"`
}

// Service defines the catalog/borrowing service.
type Service interface {
	CreateBook(ctx context.Context, book *Book) error
	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	SearchBooks(ctx context.Context, query string) ([]Book, error)
	UpdateBook(ctx context.Context, book *Book) error
	DeleteBook(ctx context.Context, id int64) error

	CreateCopy(ctx context.Context, copy *BookCopy) error
	ListCopies(ctx context.Context) ([]BookCopy, error)
	CopiesByBook(ctx context.Context, bookID int64) ([]BookCopy, error)

	GetAvailability(ctx context.Context, bookID int64) (*Availability, error)

	Borrow(ctx context.Context, req BorrowRequest) (*BorrowReceipt, error)
	Return(ctx context.Context, req ReturnRequest) (*ReturnReceipt, error)

	// HasActiveBorrows is the boolean signal membership deactivation consumes.
	HasActiveBorrows(ctx context.Context, userID int64) (bool, []Borrow, error)
	BorrowHistory(ctx context.Context, userID int64) ([]Borrow, error)
}
