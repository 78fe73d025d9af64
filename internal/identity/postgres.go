package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/madhur53/library-management-system/internal/domain"
)

// PostgresStore implements Store against the identity schema.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (full_name, username, password_hash, salt, email, phone, address, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING user_id
	`
	err := s.db.QueryRowContext(ctx, query,
		user.FullName, user.Username, user.PasswordHash, user.Salt,
		user.Email, user.Phone, user.Address, user.Status, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		// A concurrent registration can slip past the pre-check; the unique
		// index is the authority.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	query := `
		SELECT user_id, full_name, username, password_hash, salt, email, phone, address, status, created_at
		FROM users
		WHERE user_id = $1
	`
	if err := s.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	query := `
		SELECT user_id, full_name, username, password_hash, salt, email, phone, address, status, created_at
		FROM users
		WHERE username = $1
	`
	if err := s.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return &user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	query := `
		SELECT user_id, full_name, username, password_hash, salt, email, phone, address, status, created_at
		FROM users
		ORDER BY user_id
	`
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) SetUserStatus(ctx context.Context, userID int64, status UserStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET status = $1 WHERE user_id = $2`, status, userID)
	if err != nil {
		return fmt.Errorf("set user %d status: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) AdminByUsername(ctx context.Context, username string) (*Admin, error) {
	var admin Admin
	query := `
		SELECT admin_id, full_name, username, password_hash, salt, email, phone, status, created_at
		FROM admins
		WHERE username = $1
	`
	if err := s.db.GetContext(ctx, &admin, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin %q: %w", username, err)
	}
	return &admin, nil
}

func (s *PostgresStore) CreateMember(ctx context.Context, member *Member) error {
	query := `
		INSERT INTO members (user_id, membership_date)
		VALUES ($1, $2)
		RETURNING member_id
	`
	err := s.db.QueryRowContext(ctx, query, member.UserID, member.MembershipDate).Scan(&member.ID)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) MemberByID(ctx context.Context, id int64) (*Member, error) {
	var member Member
	query := `
		SELECT member_id, user_id, membership_date
		FROM members
		WHERE member_id = $1
	`
	if err := s.db.GetContext(ctx, &member, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member %d: %w", id, err)
	}
	return &member, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context) ([]MemberRecord, error) {
	var records []MemberRecord
	query := `
		SELECT m.member_id, m.user_id, m.membership_date, u.status
		FROM members m
		JOIN users u ON u.user_id = m.user_id
		ORDER BY m.member_id
	`
	if err := s.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return records, nil
}
