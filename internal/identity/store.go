package identity

import (
	"context"

	"github.com/madhur53/library-management-system/pkg/eventstore"
)

// Store is the membership read model. The postgres implementation lives in
// postgres.go; tests substitute an in-memory fake.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	UserByID(ctx context.Context, id int64) (*User, error)
	UserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetUserStatus(ctx context.Context, userID int64, status UserStatus) error

	AdminByUsername(ctx context.Context, username string) (*Admin, error)

	CreateMember(ctx context.Context, member *Member) error
	MemberByID(ctx context.Context, id int64) (*Member, error)
	// ListMembers joins members with their user's current status at read
	// time. The status is never denormalized onto the member row.
	ListMembers(ctx context.Context) ([]MemberRecord, error)
}

// Journal is the slice of the event store the membership service uses.
type Journal interface {
	Append(ctx context.Context, streamType string, streamID int64, expectedVersion int, events []eventstore.Event) error
	Load(ctx context.Context, streamType string, streamID int64, fromVersion, toVersion int) ([]eventstore.Event, error)
	CurrentVersion(ctx context.Context, streamType string, streamID int64) (int, error)
}

// ActiveLoanChecker asks the catalog service whether a member's user holds
// active borrows. An error means "unknown", which deactivation treats as
// "no active loans" (fail-open).
type ActiveLoanChecker interface {
	HasActiveLoans(ctx context.Context, userID int64) (bool, error)
}
