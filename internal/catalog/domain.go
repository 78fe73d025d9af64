package catalog

import "time"

// CopyStatus tracks whether a physical copy can be allocated.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyIssued    CopyStatus = "ISSUED"
)

// BorrowStatus: a borrow transitions ACTIVE -> RETURNED exactly once and is
// never re-opened.
type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "ACTIVE"
	BorrowReturned BorrowStatus = "RETURNED"
)

// Book is a catalog title. Copies are tracked separately.
type Book struct {
	ID              int64  `json:"bookId" db:"book_id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author" db:"author"`
	ISBN            string `json:"isbn" db:"isbn"`
	Publisher       string `json:"publisher,omitempty" db:"publisher"`
	PublicationYear int    `json:"publicationYear,omitempty" db:"publication_year"`
	ShelfLocation   string `json:"shelfLocation,omitempty" db:"shelf_location"`
}

// BookCopy is one physical copy of a book.
type BookCopy struct {
	ID      int64      `json:"copyId" db:"copy_id"`
	BookID  int64      `json:"bookId" db:"book_id"`
	Barcode string     `json:"barcode" db:"barcode"`
	Status  CopyStatus `json:"status" db:"status"`
}

// Borrow records a copy issued to a user.
type Borrow struct {
	ID         int64        `json:"borrowId" db:"borrow_id"`
	BookCopyID int64        `json:"bookCopyId" db:"book_copy_id"`
	BookID     int64        `json:"bookId" db:"book_id"`
	UserID     int64        `json:"userId" db:"user_id"`
	IssuedOn   time.Time    `json:"issuedOn" db:"issued_on"`
	DueOn      time.Time    `json:"dueOn" db:"due_on"`
	ReturnedOn *time.Time   `json:"returnedOn,omitempty" db:"returned_on"`
	Status     BorrowStatus `json:"status" db:"status"`
}

// Availability is the read-only projection of a book's copy counts.
// Invariant: AvailableCopies <= TotalCopies.
type Availability struct {
	BookID          int64 `json:"bookId" db:"book_id"`
	TotalCopies     int   `json:"totalCopies" db:"total_copies"`
	AvailableCopies int   `json:"availableCopies" db:"available_copies"`
}

// BorrowReceipt is the allocation response.
type BorrowReceipt struct {
	Status     string `json:"status"`
	BookCopyID int64  `json:"bookCopyId"`
	BookID     int64  `json:"bookId,omitempty"`
	BorrowID   int64  `json:"borrowId"`
	IssuedOn   string `json:"issuedOn"`
	DueOn      string `json:"dueOn"`
}

// ReturnReceipt confirms a compensating return.
type ReturnReceipt struct {
	Status     string `json:"status"`
	BorrowID   int64  `json:"borrowId,omitempty"`
	ReturnedOn string `json:"returnedOn,omitempty"`
	Note       string `json:"note,omitempty"`
}

// StreamCopy journals issue/return transitions per physical copy.
const StreamCopy = "copy"

// CopyIssuedEvent is appended when a copy is allocated.
type CopyIssuedEvent struct {
	CopyID   int64     `json:"copy_id"`
	BookID   int64     `json:"book_id"`
	BorrowID int64     `json:"borrow_id"`
	UserID   int64     `json:"user_id"`
	DueOn    time.Time `json:"due_on"`
}

// CopyReturnedEvent is appended when a copy comes back.
type CopyReturnedEvent struct {
	CopyID     int64     `json:"copy_id"`
	BorrowID   int64     `json:"borrow_id,omitempty"`
	ReturnedOn time.Time `json:"returned_on"`
}
