package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"newsharvest/pkg/news"
)

// DefaultAuthRetryDelay is how long to wait before the single retry.
const DefaultAuthRetryDelay = 60 * time.Second

var ErrAuthentication = errors.New("harvest: could not authenticate with the news provider")

// Authenticate tries auth once, waits delay, and tries once more. The wait
// is cut short if ctx is cancelled.
func Authenticate(ctx context.Context, auth news.Authenticator, delay time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	err := auth.Authenticate(ctx)
	if err == nil {
		return nil
	}

	logger.Info("Connecting to the news provider failed, trying again",
		zap.Duration("delay", delay),
		zap.Error(err),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if err := auth.Authenticate(ctx); err != nil {
		logger.Error("Could not connect to the news provider. Probably logged out.", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	return nil
}
