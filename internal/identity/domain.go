package identity

import "time"

// UserStatus is the source of truth for whether a person may act in the
// system. Member activity is derived from it, never stored on the member.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusInactive UserStatus = "INACTIVE"
)

// User is an account in the identity service.
type User struct {
	ID           int64      `json:"userId" db:"user_id"`
	FullName     string     `json:"fullName" db:"full_name"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Salt         string     `json:"-" db:"salt"`
	Email        string     `json:"email,omitempty" db:"email"`
	Phone        string     `json:"phone,omitempty" db:"phone"`
	Address      string     `json:"address,omitempty" db:"address"`
	Status       UserStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
}

// Member links 1:1 to a User. Member rows are never deleted; deactivation is
// a status flip on the linked user.
type Member struct {
	ID             int64     `json:"memberId" db:"member_id"`
	UserID         int64     `json:"userId" db:"user_id"`
	MembershipDate time.Time `json:"membershipDate" db:"membership_date"`
}

// MemberRecord is the read-time join of a member with its user's status.
type MemberRecord struct {
	MemberID       int64      `json:"memberId" db:"member_id"`
	UserID         int64      `json:"userId" db:"user_id"`
	MembershipDate time.Time  `json:"membershipDate" db:"membership_date"`
	Status         UserStatus `json:"status" db:"status"`
}

// Admin is a staff account. Admins are not members and cannot borrow.
type Admin struct {
	ID           int64      `json:"adminId" db:"admin_id"`
	FullName     string     `json:"fullName" db:"full_name"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	Salt         string     `json:"-" db:"salt"`
	Email        string     `json:"email,omitempty" db:"email"`
	Phone        string     `json:"phone,omitempty" db:"phone"`
	Status       UserStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
}

// Journal stream types and event types for the membership lifecycle.
const (
	StreamUser   = "user"
	StreamMember = "member"
)

// UserRegisteredEvent is appended when a new user registers.
type UserRegisteredEvent struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// MemberCreatedEvent is appended when a user becomes a member.
type MemberCreatedEvent struct {
	MemberID       int64     `json:"member_id"`
	UserID         int64     `json:"user_id"`
	MembershipDate time.Time `json:"membership_date"`
}

// MemberDeactivatedEvent is appended on soft delete.
type MemberDeactivatedEvent struct {
	MemberID int64 `json:"member_id"`
	UserID   int64 `json:"user_id"`
	// LoanCheckDegraded records that the active-loan precondition was skipped
	// because the catalog service could not be reached.
	LoanCheckDegraded bool `json:"loan_check_degraded,omitempty"`
}

// MemberRestoredEvent is appended on reinstatement.
type MemberRestoredEvent struct {
	MemberID int64 `json:"member_id"`
	UserID   int64 `json:"user_id"`
}
