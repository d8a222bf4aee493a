package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
)

const (
	refreshWindow           = 30 * time.Minute
	refreshConcurrencyLimit = 10
)

// TokenRefreshJob refreshes credentials ahead of expiry so publishes rarely
// have to refresh inline.
type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	ts service.TokenService
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, ts service.TokenService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		ts: ts,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	accounts, err := c.sr.ListExpiring(ctx, time.Now().Add(refreshWindow))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, refreshConcurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if _, err := c.ts.RefreshAccount(ctx, *acc); err != nil {
				slog.Info("unable to refresh token", "platform", acc.Platform.String(), "account_id", acc.ID, "error", err.Error())
			}
		}(acc)
	}
	wg.Wait()
}
