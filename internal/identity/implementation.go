package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/madhur53/library-management-system/internal/domain"
	"github.com/madhur53/library-management-system/pkg/eventstore"
)

// service implements the Service interface.
type service struct {
	store   Store
	journal Journal
	loans   ActiveLoanChecker
	tokens  *TokenIssuer
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewService creates the identity/membership service.
func NewService(store Store, journal Journal, loans ActiveLoanChecker, tokens *TokenIssuer, logger *slog.Logger) Service {
	return &service{
		store:   store,
		journal: journal,
		loans:   loans,
		tokens:  tokens,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Minute), 30),
	}
}

func (s *service) RegisterUser(ctx context.Context, input RegisterUserInput) (*User, error) {
	if !s.limiter.Allow() {
		return nil, domain.ErrRateLimited
	}
	if input.Username == "" || input.Password == "" {
		return nil, fmt.Errorf("username and password required")
	}

	if _, err := s.store.UserByUsername(ctx, input.Username); err == nil {
		return nil, domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	passwordHash, salt, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		FullName:     input.FullName,
		Username:     input.Username,
		PasswordHash: passwordHash,
		Salt:         salt,
		Email:        input.Email,
		Phone:        input.Phone,
		Address:      input.Address,
		Status:       StatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.appendEvent(ctx, StreamUser, user.ID, "UserRegistered", UserRegisteredEvent{
		UserID:   user.ID,
		Username: user.Username,
		FullName: user.FullName,
	}); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

func (s *service) LoginUser(ctx context.Context, username, password string) (*LoginResult, error) {
	if !s.limiter.Allow() {
		return nil, domain.ErrRateLimited
	}

	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Status != StatusActive {
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := verifyPassword(password, user.Salt, user.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     RoleUser,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Token: token}, nil
}

func (s *service) LoginAdmin(ctx context.Context, username, password string) (*LoginResult, error) {
	if !s.limiter.Allow() {
		return nil, domain.ErrRateLimited
	}

	admin, err := s.store.AdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAdminNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if admin.Status != StatusActive {
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := verifyPassword(password, admin.Salt, admin.PasswordHash)
	if err != nil || !ok {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(Claims{
		AdminID:  admin.ID,
		Username: admin.Username,
		Role:     RoleAdmin,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{Admin: admin, Token: token}, nil
}

func (s *service) CreateMember(ctx context.Context, userID int64) (*Member, error) {
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return nil, err
	}

	member := &Member{
		UserID:         userID,
		MembershipDate: time.Now().UTC(),
	}
	if err := s.store.CreateMember(ctx, member); err != nil {
		return nil, err
	}

	if err := s.appendEvent(ctx, StreamMember, member.ID, "MemberCreated", MemberCreatedEvent{
		MemberID:       member.ID,
		UserID:         member.UserID,
		MembershipDate: member.MembershipDate,
	}); err != nil {
		return nil, err
	}

	return member, nil
}

func (s *service) ListMembers(ctx context.Context) ([]MemberRecord, error) {
	return s.store.ListMembers(ctx)
}

// Deactivate soft-deletes a member. The active-loan precondition is checked
// against the catalog service; when that check cannot be completed the
// deactivation proceeds anyway. Losing the catalog service must not block
// administrative actions, at the cost of a small window where a member
// holding a loan can be deactivated.
func (s *service) Deactivate(ctx context.Context, memberID int64) error {
	member, err := s.store.MemberByID(ctx, memberID)
	if err != nil {
		return err
	}

	degraded := false
	hasLoans, err := s.loans.HasActiveLoans(ctx, member.UserID)
	switch {
	case err != nil:
		degraded = true
		s.logger.Warn("active-loan check failed, proceeding with deactivation",
			"member_id", memberID, "user_id", member.UserID, "error", err)
	case hasLoans:
		return domain.ErrActiveLoans
	}

	user, err := s.store.UserByID(ctx, member.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Orphaned member: nothing to flip, the original treats this as done.
			s.logger.Warn("deactivating member with missing user", "member_id", memberID, "user_id", member.UserID)
			return nil
		}
		return err
	}

	if user.Status == StatusInactive {
		// Idempotent: already deactivated, observably the same success.
		return nil
	}

	if err := s.appendEvent(ctx, StreamMember, memberID, "MemberDeactivated", MemberDeactivatedEvent{
		MemberID:          memberID,
		UserID:            member.UserID,
		LoanCheckDegraded: degraded,
	}); err != nil {
		return err
	}

	return s.store.SetUserStatus(ctx, member.UserID, StatusInactive)
}

// Restore reinstates a member unconditionally; there is no loan-state
// precondition on the way back in.
func (s *service) Restore(ctx context.Context, memberID int64) error {
	member, err := s.store.MemberByID(ctx, memberID)
	if err != nil {
		return err
	}

	user, err := s.store.UserByID(ctx, member.UserID)
	if err != nil {
		return err
	}

	if user.Status != StatusActive {
		if err := s.appendEvent(ctx, StreamMember, memberID, "MemberRestored", MemberRestoredEvent{
			MemberID: memberID,
			UserID:   member.UserID,
		}); err != nil {
			return err
		}
	}

	return s.store.SetUserStatus(ctx, member.UserID, StatusActive)
}

func (s *service) MemberHistory(ctx context.Context, memberID int64) ([]eventstore.Event, error) {
	if _, err := s.store.MemberByID(ctx, memberID); err != nil {
		return nil, err
	}
	return s.journal.Load(ctx, StreamMember, memberID, 0, 0)
}

func (s *service) appendEvent(ctx context.Context, streamType string, streamID int64, eventType string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	version, err := s.journal.CurrentVersion(ctx, streamType, streamID)
	if err != nil {
		return fmt.Errorf("journal version: %w", err)
	}

	var metadata map[string]interface{}
	if actor, ok := ActorFromContext(ctx); ok {
		metadata = map[string]interface{}{"actor": actor.Username, "role": actor.Role}
	}

	err = s.journal.Append(ctx, streamType, streamID, version, []eventstore.Event{{
		EventType: eventType,
		EventData: jsonData,
		Metadata:  metadata,
	}})
	if err != nil {
		return fmt.Errorf("append %s: %w", eventType, err)
	}
	return nil
}
