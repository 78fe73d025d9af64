package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/madhur53/library-management-system/internal/domain"
)

// LoanChecker answers the one question membership deactivation needs to ask
// the catalog: does this user still hold active borrows? The catalog is a
// separate failure domain, so every answer it cannot give becomes
// domain.ErrLoanStatusUnknown and the caller decides what to do with the
// uncertainty.
type LoanChecker struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewLoanChecker(baseURL string, client *http.Client, logger *slog.Logger) *LoanChecker {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "catalog-loan-check",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("loan check breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &LoanChecker{
		baseURL: baseURL,
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// HasActiveLoans reports whether the user currently holds any active borrows.
// A definite "none" from the catalog comes back as a 404 and counts as a
// successful call; only transport failures and server errors trip the breaker.
func (c *LoanChecker) HasActiveLoans(ctx context.Context, userID int64) (bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.check(ctx, userID)
	})
	if err != nil {
		c.logger.Warn("loan status check failed",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return false, fmt.Errorf("%w: %v", domain.ErrLoanStatusUnknown, err)
	}
	return result.(bool), nil
}

func (c *LoanChecker) check(ctx context.Context, userID int64) (bool, error) {
	url := fmt.Sprintf("%s/api/catalog/borrows/active/member/%d", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return true, nil
	default:
		return false, fmt.Errorf("catalog: status %d", resp.StatusCode)
	}
}
