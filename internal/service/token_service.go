package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var errNoRefreshToken = errors.New("no refresh token stored")

// TokenRefresher exchanges the stored grant of one platform for a new
// token set. It never touches persistence.
type TokenRefresher interface {
	Refresh(ctx context.Context, acc models.SocialAccount) (models.TokenSet, error)
}

// TokenManager decides whether a credential is usable and refreshes it when
// it is not. It returns the new credential; the caller persists it.
type TokenManager interface {
	EnsureValidToken(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, bool, error)
	Refresh(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error)
}

type tokenManager struct {
	refreshers map[models.Platform]TokenRefresher
	lookahead  map[models.Platform]time.Duration
	now        Clock
}

func NewTokenManager(cfg *config.Config, client *http.Client) TokenManager {
	return &tokenManager{
		refreshers: map[models.Platform]TokenRefresher{
			models.PlatformSnapchat:  &snapchatRefresher{cfg: cfg.Snapchat, client: client},
			models.PlatformInstagram: &instagramRefresher{cfg: cfg.Instagram, client: client},
			models.PlatformYoutube:   &youtubeRefresher{cfg: cfg.Youtube, client: client},
		},
		lookahead: map[models.Platform]time.Duration{
			models.PlatformSnapchat:  cfg.Snapchat.Lookahead,
			models.PlatformInstagram: cfg.Instagram.Lookahead,
			models.PlatformYoutube:   cfg.Youtube.Lookahead,
		},
		now: time.Now,
	}
}

// EnsureValidToken returns acc unchanged while its token is outside the
// platform's lookahead window. Otherwise it refreshes and reports true. A
// zero expiry counts as expired.
func (m *tokenManager) EnsureValidToken(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, bool, error) {
	if !acc.Connected() {
		return acc, false, rejectFor(acc.Platform, ErrNotConnected)
	}

	now := m.now()
	if !acc.TokenExpiresAt.IsZero() && acc.TokenExpiresAt.After(now.Add(m.lookahead[acc.Platform])) {
		return acc, false, nil
	}

	refreshed, err := m.Refresh(ctx, acc)
	if err != nil {
		return acc, false, err
	}
	return refreshed, true, nil
}

func (m *tokenManager) Refresh(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error) {
	refresher, ok := m.refreshers[acc.Platform]
	if !ok {
		return acc, &TokenRefreshError{Platform: acc.Platform, Err: fmt.Errorf("unsupported platform %s", acc.Platform)}
	}

	tokens, err := refresher.Refresh(ctx, acc)
	if err != nil {
		var tre *TokenRefreshError
		if errors.As(err, &tre) {
			return acc, err
		}
		return acc, &TokenRefreshError{Platform: acc.Platform, Err: err}
	}

	if tokens.AccessToken == "" {
		return acc, &TokenRefreshError{Platform: acc.Platform, Err: errors.New("empty access token in refresh response")}
	}
	if !tokens.ExpiresAt.After(m.now()) {
		return acc, &TokenRefreshError{Platform: acc.Platform, Err: errors.New("refreshed token is already expired")}
	}
	return acc.WithTokens(tokens), nil
}

// TokenService wraps a TokenManager with persistence: every refreshed
// credential is written back as a full tuple before it is used.
type TokenService interface {
	ValidAccount(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error)
	RefreshAccount(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error)
}

type tokenService struct {
	tm TokenManager
	sa repository.SocialAccountRepository
}

func NewTokenService(tm TokenManager, sa repository.SocialAccountRepository) TokenService {
	return &tokenService{tm: tm, sa: sa}
}

func (s *tokenService) ValidAccount(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error) {
	next, refreshed, err := s.tm.EnsureValidToken(ctx, acc)
	if err != nil {
		s.handleRefreshError(ctx, acc, err)
		return acc, err
	}
	if refreshed {
		if err := s.sa.SetToken(ctx, next.ID, next.Tokens()); err != nil {
			return acc, fmt.Errorf("persist refreshed %s token: %w", acc.Platform, err)
		}
		slog.Info("token refreshed", "platform", acc.Platform.String(), "account_id", acc.ID, "expires_at", next.TokenExpiresAt)
	}
	return next, nil
}

func (s *tokenService) RefreshAccount(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error) {
	next, err := s.tm.Refresh(ctx, acc)
	if err != nil {
		s.handleRefreshError(ctx, acc, err)
		return acc, err
	}
	if err := s.sa.SetToken(ctx, next.ID, next.Tokens()); err != nil {
		return acc, fmt.Errorf("persist refreshed %s token: %w", acc.Platform, err)
	}
	return next, nil
}

// handleRefreshError disconnects the account only when the platform has
// revoked the grant.
func (s *tokenService) handleRefreshError(ctx context.Context, acc models.SocialAccount, err error) {
	var tre *TokenRefreshError
	if !errors.As(err, &tre) {
		return
	}
	slog.Info(err.Error(), "platform", acc.Platform.String(), "account_id", acc.ID, "revoked", tre.Revoked)
	if !tre.Revoked {
		return
	}
	if err := s.sa.SetStatus(ctx, acc.ID, models.AccountStatusDisconnected); err != nil {
		slog.Info(err.Error())
	}
}

type snapchatRefresher struct {
	cfg    config.Snapchat
	client *http.Client
	now    Clock
}

func (r *snapchatRefresher) Refresh(ctx context.Context, acc models.SocialAccount) (models.TokenSet, error) {
	if acc.RefreshToken == "" {
		return models.TokenSet{}, &TokenRefreshError{Platform: models.PlatformSnapchat, Err: errNoRefreshToken}
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", r.cfg.ClientID)
	data.Set("client_secret", r.cfg.ClientSecret)
	data.Set("refresh_token", acc.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return models.TokenSet{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token transfer.SnapchatTokenResponse
	status, body, err := doJSON(r.client, req, &token)
	if err != nil {
		return models.TokenSet{}, err
	}
	if status != http.StatusOK {
		var oauthErr transfer.SnapchatOAuthError
		_ = decodeError(body, &oauthErr)
		return models.TokenSet{}, &TokenRefreshError{
			Platform: models.PlatformSnapchat,
			Revoked:  oauthErr.Error == "invalid_grant",
			Err:      fmt.Errorf("status %d: %s %s", status, oauthErr.Error, firstNonEmpty(oauthErr.ErrorDescription, truncateBody(body))),
		}
	}

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return models.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    GetExpiresAt(now(), token.ExpiresIn),
	}, nil
}

// instagramRefresher extends a long-lived token. The token refreshes itself,
// so the access token doubles as the grant.
type instagramRefresher struct {
	cfg    config.Instagram
	client *http.Client
	now    Clock
}

func (r *instagramRefresher) Refresh(ctx context.Context, acc models.SocialAccount) (models.TokenSet, error) {
	grant := firstNonEmpty(acc.RefreshToken, acc.AccessToken)
	if grant == "" {
		return models.TokenSet{}, &TokenRefreshError{Platform: models.PlatformInstagram, Err: errNoRefreshToken}
	}

	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", grant)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.RefreshURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.TokenSet{}, err
	}

	var token transfer.InstagramTokenResponse
	status, body, err := doJSON(r.client, req, &token)
	if err != nil {
		return models.TokenSet{}, err
	}
	if status != http.StatusOK {
		var igErr transfer.InstagramErrorResponse
		_ = decodeError(body, &igErr)
		// 190 is an invalidated or expired OAuth token.
		return models.TokenSet{}, &TokenRefreshError{
			Platform: models.PlatformInstagram,
			Revoked:  igErr.Error.Code == 190,
			Err:      fmt.Errorf("status %d: %s", status, firstNonEmpty(igErr.Error.Message, truncateBody(body))),
		}
	}

	now := time.Now
	if r.now != nil {
		now = r.now
	}
	return models.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.AccessToken,
		ExpiresAt:    GetExpiresAt(now(), token.ExpiresIn),
	}, nil
}

type youtubeRefresher struct {
	cfg    config.Youtube
	client *http.Client
}

func (r *youtubeRefresher) oauthConfig() *oauth2.Config {
	endpoint := google.Endpoint
	if r.cfg.TokenURL != "" {
		endpoint.TokenURL = r.cfg.TokenURL
	}
	return &oauth2.Config{
		ClientID:     r.cfg.ClientID,
		ClientSecret: r.cfg.ClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     endpoint,
	}
}

func (r *youtubeRefresher) Refresh(ctx context.Context, acc models.SocialAccount) (models.TokenSet, error) {
	if acc.RefreshToken == "" {
		return models.TokenSet{}, &TokenRefreshError{Platform: models.PlatformYoutube, Err: errNoRefreshToken}
	}

	if r.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	}

	// An expired seed token forces the source to hit the token endpoint.
	seed := &oauth2.Token{RefreshToken: acc.RefreshToken, Expiry: time.Unix(1, 0)}
	token, err := r.oauthConfig().TokenSource(ctx, seed).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		revoked := errors.As(err, &re) && re.ErrorCode == "invalid_grant"
		return models.TokenSet{}, &TokenRefreshError{Platform: models.PlatformYoutube, Revoked: revoked, Err: err}
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}
	return models.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
