package identity

import (
	"context"

	"github.com/madhur53/library-management-system/pkg/eventstore"
)

// RegisterUserInput is the payload for user registration.
type RegisterUserInput struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// LoginResult pairs the authenticated principal with its session token.
type LoginResult struct {
	User  *User  `json:"user,omitempty"`
	Admin *Admin `json:"admin,omitempty"`
	Token string `json:"token"`
}

// Service defines the identity/membership service.
type Service interface {
	RegisterUser(ctx context.Context, input RegisterUserInput) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	LoginUser(ctx context.Context, username, password string) (*LoginResult, error)
	LoginAdmin(ctx context.Context, username, password string) (*LoginResult, error)

	CreateMember(ctx context.Context, userID int64) (*Member, error)
	ListMembers(ctx context.Context) ([]MemberRecord, error)

	// Deactivate soft-deletes a member: the linked user's status flips to
	// INACTIVE after the active-loan precondition passes (or degrades).
	Deactivate(ctx context.Context, memberID int64) error
	// Restore flips the linked user back to ACTIVE. No precondition check.
	Restore(ctx context.Context, memberID int64) error

	MemberHistory(ctx context.Context, memberID int64) ([]eventstore.Event, error)
}
