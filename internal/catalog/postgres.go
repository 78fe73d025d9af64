package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/madhur53/library-management-system/internal/domain"
)

// PostgresStore implements Store against the catalog schema.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateBook(ctx context.Context, book *Book) error {
	query := `
		INSERT INTO books (title, author, isbn, publisher, publication_year, shelf_location)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING book_id
	`
	err := s.db.QueryRowContext(ctx, query,
		book.Title, book.Author, book.ISBN, book.Publisher, book.PublicationYear, book.ShelfLocation,
	).Scan(&book.ID)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (s *PostgresStore) BookByID(ctx context.Context, id int64) (*Book, error) {
	var book Book
	query := `
		SELECT book_id, title, author, isbn, publisher, publication_year, shelf_location
		FROM books
		WHERE book_id = $1
	`
	if err := s.db.GetContext(ctx, &book, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBookNotFound
		}
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}
	return &book, nil
}

func (s *PostgresStore) ListBooks(ctx context.Context) ([]Book, error) {
	var books []Book
	query := `
		SELECT book_id, title, author, isbn, publisher, publication_year, shelf_location
		FROM books
		ORDER BY book_id
	`
	if err := s.db.SelectContext(ctx, &books, query); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

func (s *PostgresStore) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	var books []Book
	sqlQuery := `
		SELECT book_id, title, author, isbn, publisher, publication_year, shelf_location
		FROM books
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY book_id
	`
	if err := s.db.SelectContext(ctx, &books, sqlQuery, query); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

func (s *PostgresStore) UpdateBook(ctx context.Context, book *Book) error {
	query := `
		UPDATE books
		SET title = $1, author = $2, isbn = $3, publisher = $4, publication_year = $5, shelf_location = $6
		WHERE book_id = $7
	`
	res, err := s.db.ExecContext(ctx, query,
		book.Title, book.Author, book.ISBN, book.Publisher, book.PublicationYear, book.ShelfLocation, book.ID,
	)
	if err != nil {
		return fmt.Errorf("update book %d: %w", book.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteBook(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE book_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrBookNotFound
	}
	return nil
}

func (s *PostgresStore) CreateCopy(ctx context.Context, copy *BookCopy) error {
	if copy.Status == "" {
		copy.Status = CopyAvailable
	}
	query := `
		INSERT INTO book_copies (book_id, barcode, status)
		VALUES ($1, $2, $3)
		RETURNING copy_id
	`
	err := s.db.QueryRowContext(ctx, query, copy.BookID, copy.Barcode, copy.Status).Scan(&copy.ID)
	if err != nil {
		return fmt.Errorf("insert copy: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCopies(ctx context.Context) ([]BookCopy, error) {
	var copies []BookCopy
	query := `SELECT copy_id, book_id, barcode, status FROM book_copies ORDER BY copy_id`
	if err := s.db.SelectContext(ctx, &copies, query); err != nil {
		return nil, fmt.Errorf("list copies: %w", err)
	}
	return copies, nil
}

func (s *PostgresStore) CopiesByBook(ctx context.Context, bookID int64) ([]BookCopy, error) {
	var copies []BookCopy
	query := `SELECT copy_id, book_id, barcode, status FROM book_copies WHERE book_id = $1 ORDER BY copy_id`
	if err := s.db.SelectContext(ctx, &copies, query, bookID); err != nil {
		return nil, fmt.Errorf("copies of book %d: %w", bookID, err)
	}
	return copies, nil
}

func (s *PostgresStore) Availability(ctx context.Context, bookID int64) (*Availability, error) {
	if _, err := s.BookByID(ctx, bookID); err != nil {
		return nil, err
	}

	avail := Availability{BookID: bookID}
	query := `
		SELECT COUNT(*) AS total_copies,
		       COUNT(*) FILTER (WHERE status = 'AVAILABLE') AS available_copies
		FROM book_copies
		WHERE book_id = $1
	`
	err := s.db.QueryRowContext(ctx, query, bookID).Scan(&avail.TotalCopies, &avail.AvailableCopies)
	if err != nil {
		return nil, fmt.Errorf("availability of book %d: %w", bookID, err)
	}
	return &avail, nil
}

func (s *PostgresStore) AllocateFirstAvailable(ctx context.Context, bookID, userID int64, issuedOn, dueOn time.Time) (*Borrow, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin allocation: %w", err)
	}
	defer tx.Rollback()

	// Lock the first free copy; concurrent allocators skip locked rows so two
	// requests can never issue the same copy.
	var copyID int64
	err = tx.QueryRowContext(ctx, `
		SELECT copy_id
		FROM book_copies
		WHERE book_id = $1 AND status = 'AVAILABLE'
		ORDER BY copy_id
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, bookID).Scan(&copyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoCopyAvailable
		}
		return nil, fmt.Errorf("select free copy: %w", err)
	}

	borrow, err := issueCopyTx(ctx, tx, copyID, bookID, userID, issuedOn, dueOn)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}
	return borrow, nil
}

func (s *PostgresStore) AllocateCopy(ctx context.Context, copyID, userID int64, issuedOn, dueOn time.Time) (*Borrow, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin allocation: %w", err)
	}
	defer tx.Rollback()

	var bookID int64
	var status CopyStatus
	err = tx.QueryRowContext(ctx, `
		SELECT book_id, status
		FROM book_copies
		WHERE copy_id = $1
		FOR UPDATE
	`, copyID).Scan(&bookID, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCopyNotFound
		}
		return nil, fmt.Errorf("lock copy %d: %w", copyID, err)
	}
	if status != CopyAvailable {
		return nil, domain.ErrCopyNotAvailable
	}

	borrow, err := issueCopyTx(ctx, tx, copyID, bookID, userID, issuedOn, dueOn)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit allocation: %w", err)
	}
	return borrow, nil
}

func issueCopyTx(ctx context.Context, tx *sqlx.Tx, copyID, bookID, userID int64, issuedOn, dueOn time.Time) (*Borrow, error) {
	if _, err := tx.ExecContext(ctx, `UPDATE book_copies SET status = 'ISSUED' WHERE copy_id = $1`, copyID); err != nil {
		return nil, fmt.Errorf("issue copy %d: %w", copyID, err)
	}

	borrow := &Borrow{
		BookCopyID: copyID,
		BookID:     bookID,
		UserID:     userID,
		IssuedOn:   issuedOn,
		DueOn:      dueOn,
		Status:     BorrowActive,
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO borrows (book_copy_id, book_id, user_id, issued_on, due_on, status)
		VALUES ($1, $2, $3, $4, $5, 'ACTIVE')
		RETURNING borrow_id
	`, copyID, bookID, userID, issuedOn, dueOn).Scan(&borrow.ID)
	if err != nil {
		return nil, fmt.Errorf("insert borrow: %w", err)
	}
	return borrow, nil
}

func (s *PostgresStore) ReleaseCopy(ctx context.Context, copyID, borrowID int64, returnedOn time.Time) (*Borrow, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin release: %w", err)
	}
	defer tx.Rollback()

	var status CopyStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM book_copies WHERE copy_id = $1 FOR UPDATE`, copyID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCopyNotFound
		}
		return nil, fmt.Errorf("lock copy %d: %w", copyID, err)
	}

	var borrow *Borrow
	row := tx.QueryRowxContext(ctx, `
		SELECT borrow_id, book_copy_id, book_id, user_id, issued_on, due_on, returned_on, status
		FROM borrows
		WHERE ($1 > 0 AND borrow_id = $1)
		   OR ($1 <= 0 AND book_copy_id = $2 AND status = 'ACTIVE')
		ORDER BY borrow_id DESC
		LIMIT 1
	`, borrowID, copyID)

	var found Borrow
	if err := row.StructScan(&found); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find borrow: %w", err)
		}
	} else if found.Status == BorrowActive {
		_, err = tx.ExecContext(ctx, `
			UPDATE borrows SET status = 'RETURNED', returned_on = $1 WHERE borrow_id = $2
		`, returnedOn, found.ID)
		if err != nil {
			return nil, fmt.Errorf("close borrow %d: %w", found.ID, err)
		}
		found.Status = BorrowReturned
		found.ReturnedOn = &returnedOn
		borrow = &found
	}

	// The copy is freed even when no borrow record matched; the inventory
	// must not stay stuck on a missing record.
	if _, err := tx.ExecContext(ctx, `UPDATE book_copies SET status = 'AVAILABLE' WHERE copy_id = $1`, copyID); err != nil {
		return nil, fmt.Errorf("free copy %d: %w", copyID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit release: %w", err)
	}
	return borrow, nil
}

func (s *PostgresStore) ActiveBorrowsByUser(ctx context.Context, userID int64) ([]Borrow, error) {
	var borrows []Borrow
	query := `
		SELECT borrow_id, book_copy_id, book_id, user_id, issued_on, due_on, returned_on, status
		FROM borrows
		WHERE user_id = $1 AND status = 'ACTIVE'
		ORDER BY borrow_id
	`
	if err := s.db.SelectContext(ctx, &borrows, query, userID); err != nil {
		return nil, fmt.Errorf("active borrows of user %d: %w", userID, err)
	}
	return borrows, nil
}

func (s *PostgresStore) BorrowsByUser(ctx context.Context, userID int64) ([]Borrow, error) {
	var borrows []Borrow
	query := `
		SELECT borrow_id, book_copy_id, book_id, user_id, issued_on, due_on, returned_on, status
		FROM borrows
		WHERE user_id = $1
		ORDER BY issued_on DESC, borrow_id DESC
	`
	if err := s.db.SelectContext(ctx, &borrows, query, userID); err != nil {
		return nil, fmt.Errorf("borrows of user %d: %w", userID, err)
	}
	return borrows, nil
}
