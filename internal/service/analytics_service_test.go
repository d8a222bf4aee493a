package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
)

type analyticsFixture struct {
	svc   *analyticsService
	posts *fakePostRepo
	now   time.Time
}

func newAnalyticsFixture(posts []*models.Post, publishers ...PlatformPublisher) *analyticsFixture {
	f := &analyticsFixture{
		posts: newFakePostRepo(posts...),
		now:   testNow,
	}
	accounts := newFakeAccountRepo(
		activeAccount(2, 7, models.PlatformInstagram),
		activeAccount(3, 7, models.PlatformYoutube),
	)
	f.svc = NewAnalyticsService(f.posts, accounts, &fakeTokenService{}, 30*time.Minute, time.Hour, publishers...).(*analyticsService)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func publishedPost(id string, platforms models.PlatformSet) *models.Post {
	post := newPost(platforms, models.MediaTypeVideo)
	post.ID = id
	post.Status = models.PostStatusPublished
	for _, p := range platforms.Platforms() {
		post.SetPlatformPostID(p, p.String()+"-"+id)
	}
	return post
}

func likesFetcher(platform models.Platform, likes int64) *fakeMetricsPublisher {
	return &fakeMetricsPublisher{
		fakePublisher: fakePublisher{platform: platform},
		fetch: func(into *models.Analytics) error {
			switch platform {
			case models.PlatformInstagram:
				into.Instagram.Likes = likes
			case models.PlatformYoutube:
				into.Youtube.Likes = likes
			}
			return nil
		},
	}
}

func TestGetPostAnalyticsFreshness(t *testing.T) {
	ig := likesFetcher(models.PlatformInstagram, 10)
	f := newAnalyticsFixture([]*models.Post{publishedPost("p1", models.NewPlatformSet(models.PlatformInstagram))}, ig)
	ctx := context.Background()

	got, err := f.svc.GetPostAnalytics(ctx, 7, "p1", false)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if got.Instagram.Likes != 10 || got.LastSynced == nil || !got.LastSynced.Equal(testNow) {
		t.Fatalf("unexpected analytics %+v", got)
	}

	f.now = testNow.Add(10 * time.Minute)
	got, err = f.svc.GetPostAnalytics(ctx, 7, "p1", false)
	if err != nil {
		t.Fatalf("fresh read: %v", err)
	}
	if ig.fetches.Load() != 1 || !got.LastSynced.Equal(testNow) {
		t.Fatalf("fresh metrics must be served from storage, fetches=%d last=%v", ig.fetches.Load(), got.LastSynced)
	}

	got, err = f.svc.GetPostAnalytics(ctx, 7, "p1", true)
	if err != nil {
		t.Fatalf("forced read: %v", err)
	}
	if ig.fetches.Load() != 2 || !got.LastSynced.Equal(f.now) {
		t.Fatalf("forced read must sync, fetches=%d last=%v", ig.fetches.Load(), got.LastSynced)
	}

	f.now = f.now.Add(31 * time.Minute)
	if _, err := f.svc.GetPostAnalytics(ctx, 7, "p1", false); err != nil {
		t.Fatalf("stale read: %v", err)
	}
	if ig.fetches.Load() != 3 {
		t.Fatalf("stale metrics must sync, fetches=%d", ig.fetches.Load())
	}
}

func TestGetPostAnalyticsUnpublished(t *testing.T) {
	ig := likesFetcher(models.PlatformInstagram, 10)
	draft := newPost(models.NewPlatformSet(models.PlatformInstagram), models.MediaTypeVideo)
	f := newAnalyticsFixture([]*models.Post{draft}, ig)

	got, err := f.svc.GetPostAnalytics(context.Background(), 7, draft.ID, true)
	if err != nil {
		t.Fatalf("GetPostAnalytics: %v", err)
	}
	if got.LastSynced != nil || ig.fetches.Load() != 0 {
		t.Fatal("unpublished posts must not be synced")
	}

	if _, err := f.svc.GetPostAnalytics(context.Background(), 8, draft.ID, false); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestSyncWithoutPlatformPostID(t *testing.T) {
	ig := likesFetcher(models.PlatformInstagram, 10)
	post := publishedPost("p1", models.NewPlatformSet(models.PlatformInstagram))
	post.InstagramPostID = ""
	f := newAnalyticsFixture([]*models.Post{post}, ig)

	if _, err := f.svc.Sync(context.Background(), post); !errors.Is(err, ErrNotPublished) {
		t.Fatalf("expected ErrNotPublished, got %v", err)
	}
	if f.posts.analyticsUpdates != 0 {
		t.Fatal("nothing synced, nothing written")
	}
}

func TestSyncKeepsMetricsOfFailedPlatform(t *testing.T) {
	ig := likesFetcher(models.PlatformInstagram, 25)
	yt := &fakeMetricsPublisher{fakePublisher: fakePublisher{platform: models.PlatformYoutube}}
	post := publishedPost("p1", models.NewPlatformSet(models.PlatformInstagram, models.PlatformYoutube))
	post.Analytics.Youtube.Views = 300
	f := newAnalyticsFixture([]*models.Post{post}, ig, yt)

	got, err := f.svc.Sync(context.Background(), post)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got.Instagram.Likes != 25 || got.Youtube.Views != 300 {
		t.Fatalf("unexpected analytics %+v", got)
	}
	if stored := f.posts.get("p1"); stored.Analytics.Instagram.Likes != 25 || stored.Analytics.LastSynced == nil {
		t.Fatalf("merged analytics not persisted: %+v", stored.Analytics)
	}
}

func TestSyncAll(t *testing.T) {
	recent := testNow.Add(-10 * time.Minute)
	fresh := publishedPost("fresh", models.NewPlatformSet(models.PlatformInstagram))
	fresh.Analytics.LastSynced = &recent
	stale := publishedPost("stale", models.NewPlatformSet(models.PlatformInstagram, models.PlatformYoutube))
	broken := publishedPost("broken", models.NewPlatformSet(models.PlatformYoutube))

	ig := likesFetcher(models.PlatformInstagram, 5)
	yt := &fakeMetricsPublisher{fakePublisher: fakePublisher{platform: models.PlatformYoutube}}
	f := newAnalyticsFixture([]*models.Post{fresh, stale, broken}, ig, yt)

	summary, err := f.svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if summary.Total != 3 || summary.Skipped != 1 || summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].PostID != "broken" {
		t.Fatalf("unexpected errors %+v", summary.Errors)
	}
}
