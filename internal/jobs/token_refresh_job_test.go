package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

type stubAccounts struct {
	repository.SocialAccountRepository
	expiring []*models.SocialAccount
	before   time.Time
}

func (s *stubAccounts) ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	s.before = before
	return s.expiring, nil
}

type stubTokens struct {
	mu        sync.Mutex
	refreshed []int64
}

func (s *stubTokens) ValidAccount(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error) {
	return acc, nil
}

func (s *stubTokens) RefreshAccount(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshed = append(s.refreshed, acc.ID)
	if acc.ID == 2 {
		return acc, errors.New("refresh refused")
	}
	return acc, nil
}

func TestRefreshTokensVisitsEveryExpiringAccount(t *testing.T) {
	accounts := &stubAccounts{expiring: []*models.SocialAccount{
		{ID: 1, Platform: models.PlatformSnapchat},
		{ID: 2, Platform: models.PlatformInstagram},
		{ID: 3, Platform: models.PlatformYoutube},
	}}
	tokens := &stubTokens{}

	start := time.Now()
	NewTokenRefreshJob(accounts, tokens).RefreshTokens()

	if len(tokens.refreshed) != 3 {
		t.Fatalf("expected 3 refreshes, got %v", tokens.refreshed)
	}
	if accounts.before.Before(start.Add(refreshWindow)) {
		t.Fatalf("expiry cutoff %v is inside the refresh window", accounts.before)
	}
}
