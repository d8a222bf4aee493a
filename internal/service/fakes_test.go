package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

type fakePostRepo struct {
	mu               sync.Mutex
	posts            map[string]*models.Post
	finalizeCalls    int
	usageIncrements  int
	usageAt          time.Time
	conflict         bool
	analyticsUpdates int
	dueLimits        []int
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[string]*models.Post)}
	for _, p := range posts {
		cp := *p
		r.posts[p.ID] = &cp
	}
	return r
}

func (r *fakePostRepo) get(id string) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *fakePostRepo) Create(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[post.ID]; ok {
		return repository.ErrDuplicateKey
	}
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return r.get(id), nil
}

func (r *fakePostRepo) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time, after repository.DueCursor, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dueLimits = append(r.dueLimits, limit)

	var due []*models.Post
	for _, p := range r.posts {
		if p.Status != models.PostStatusScheduled || p.ScheduledFor == nil || p.ScheduledFor.After(now) {
			continue
		}
		if !after.Before(*p.ScheduledFor, p.ID) {
			continue
		}
		cp := *p
		due = append(due, &cp)
	}
	sort.Slice(due, func(i, j int) bool {
		return repository.DueCursorOf(due[i]).Before(*due[j].ScheduledFor, due[j].ID)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakePostRepo) ListWithPlatformPost(ctx context.Context, platform models.Platform, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		if p.Status == models.PostStatusPublished && p.PlatformPostID(platform) != "" {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) Update(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.posts[post.ID]
	if !ok || stored.Status == models.PostStatusPublished {
		return repository.ErrNoRowsUpdated
	}
	cp := *post
	r.posts[post.ID] = &cp
	return nil
}

func (r *fakePostRepo) FinalizePublish(ctx context.Context, post *models.Post, fromStatus string, countUsage bool, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeCalls++
	if r.conflict {
		return false, nil
	}
	if stored, ok := r.posts[post.ID]; ok && stored.Status != fromStatus {
		return false, nil
	}
	cp := *post
	r.posts[post.ID] = &cp
	if countUsage {
		r.usageIncrements++
		r.usageAt = now
	}
	return true, nil
}

func (r *fakePostRepo) UpdateAnalytics(ctx context.Context, postID string, analytics models.Analytics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analyticsUpdates++
	if p, ok := r.posts[postID]; ok {
		p.Analytics = analytics
	}
	return nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts []*models.SocialAccount
	tokens   map[int64]models.TokenSet
	statuses map[int64]string
}

func newFakeAccountRepo(accounts ...models.SocialAccount) *fakeAccountRepo {
	r := &fakeAccountRepo{tokens: make(map[int64]models.TokenSet), statuses: make(map[int64]string)}
	for i := range accounts {
		acc := accounts[i]
		r.accounts = append(r.accounts, &acc)
	}
	return r
}

func (r *fakeAccountRepo) GetByUserAndPlatform(ctx context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.UserID == userID && a.Platform == platform {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.accounts {
		if a.AccountStatus == models.AccountStatusActive && a.TokenExpiresAt.Before(before) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) SetToken(ctx context.Context, accountID int64, tokens models.TokenSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[accountID] = tokens
	for _, a := range r.accounts {
		if a.ID == accountID {
			*a = a.WithTokens(tokens)
			a.AccountStatus = models.AccountStatusActive
		}
	}
	return nil
}

func (r *fakeAccountRepo) SetStatus(ctx context.Context, accountID int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[accountID] = status
	for _, a := range r.accounts {
		if a.ID == accountID {
			a.AccountStatus = status
		}
	}
	return nil
}

type fakeSubRepo struct {
	sub *models.Subscription
}

func (r *fakeSubRepo) GetByUserID(ctx context.Context, userID int64) (*models.Subscription, bool, error) {
	if r.sub == nil {
		return nil, false, nil
	}
	cp := *r.sub
	return &cp, true, nil
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []*models.PublishAttempt
}

func (r *fakeAttemptRepo) Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return int64(len(r.attempts)), nil
}

func (r *fakeAttemptRepo) ListByPostID(ctx context.Context, postID string) ([]*models.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.PostID == postID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeLockRepo struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{held: make(map[string]bool)}
}

func (r *fakeLockRepo) Acquire(ctx context.Context, postID string, ttl time.Duration) (func(), bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.held[postID] {
		return nil, false, nil
	}
	r.held[postID] = true
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.held, postID)
		r.released++
	}, true, nil
}

type fakeUserRepo struct {
	users map[int64]bool
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, bool, error) {
	if !r.users[id] {
		return nil, false, nil
	}
	return &models.User{ID: id}, true, nil
}

// fakeTokenService passes accounts through, or fails for listed platforms.
type fakeTokenService struct {
	calls   atomic.Int32
	failFor map[models.Platform]error
}

func (s *fakeTokenService) ValidAccount(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error) {
	s.calls.Add(1)
	if err := s.failFor[acc.Platform]; err != nil {
		return acc, err
	}
	return acc, nil
}

func (s *fakeTokenService) RefreshAccount(ctx context.Context, acc models.SocialAccount) (models.SocialAccount, error) {
	return s.ValidAccount(ctx, acc)
}

type fakePublisher struct {
	platform models.Platform
	id       string
	err      error
	calls    atomic.Int32
	deleted  chan string
}

func (p *fakePublisher) Platform() models.Platform { return p.platform }

func (p *fakePublisher) Publish(ctx context.Context, acc models.SocialAccount, post *models.Post) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return p.id, nil
}

func (p *fakePublisher) Delete(ctx context.Context, acc models.SocialAccount, platformPostID string) error {
	if p.deleted != nil {
		p.deleted <- platformPostID
	}
	return nil
}

// fakeMetricsPublisher also reports metrics through fetch.
type fakeMetricsPublisher struct {
	fakePublisher
	fetches atomic.Int32
	fetch   func(into *models.Analytics) error
}

func (p *fakeMetricsPublisher) FetchMetrics(ctx context.Context, acc models.SocialAccount, platformPostID string, into *models.Analytics) error {
	p.fetches.Add(1)
	if p.fetch == nil {
		return errors.New("metrics unavailable")
	}
	return p.fetch(into)
}

type fakeMediaService struct {
	kind        models.MediaType
	contentType string
	body        string
	err         error
	opens       atomic.Int32
}

func (m *fakeMediaService) Open(ctx context.Context, mediaURL string) (*MediaStream, error) {
	m.opens.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &MediaStream{
		Body:        io.NopCloser(strings.NewReader(m.body)),
		ContentType: m.contentType,
		Kind:        m.kind,
		Size:        int64(len(m.body)),
	}, nil
}

func activeAccount(id, userID int64, platform models.Platform) models.SocialAccount {
	return models.SocialAccount{
		ID:             id,
		UserID:         userID,
		Platform:       platform,
		AccountID:      platform.String() + "-acct",
		AccessToken:    "token-" + platform.String(),
		RefreshToken:   "refresh-" + platform.String(),
		TokenExpiresAt: testNow.Add(24 * time.Hour),
		AccountStatus:  models.AccountStatusActive,
	}
}
