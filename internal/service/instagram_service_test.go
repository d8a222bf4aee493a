package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// graphStub fakes the Graph API endpoints used by a publish. statuses is
// replayed for successive container polls; the last entry repeats.
type graphStub struct {
	statuses      []string
	containerID   string
	mediaID       string
	polls         atomic.Int32
	publishes     atomic.Int32
	mu            sync.Mutex
	lastContainer transfer.InstagramContainerRequest
}

func (g *graphStub) container() transfer.InstagramContainerRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastContainer
}

func (g *graphStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ig-acct/media", func(w http.ResponseWriter, r *http.Request) {
		var req transfer.InstagramContainerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode container: %v", err)
		}
		g.mu.Lock()
		g.lastContainer = req
		g.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"id": g.containerID})
	})
	mux.HandleFunc("/c-1", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fields") != "status_code,status" {
			t.Errorf("unexpected status query %s", r.URL.RawQuery)
		}
		i := int(g.polls.Add(1)) - 1
		if i >= len(g.statuses) {
			i = len(g.statuses) - 1
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": "c-1", "status_code": g.statuses[i], "status": "Error: media could not be processed"})
	})
	mux.HandleFunc("/ig-acct/media_publish", func(w http.ResponseWriter, r *http.Request) {
		g.publishes.Add(1)
		var req transfer.InstagramPublishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CreationID != "c-1" {
			t.Errorf("unexpected publish request %+v (%v)", req, err)
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": g.mediaID})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestInstagramService(baseURL string, client *http.Client, attempts int) *instagramService {
	return &instagramService{
		cfg:    config.Instagram{GraphBaseURL: baseURL},
		client: client,
		poll:   PollPolicy{Interval: time.Millisecond, MaxAttempts: attempts},
	}
}

func instagramAccount() models.SocialAccount {
	acc := activeAccount(2, 7, models.PlatformInstagram)
	acc.AccountID = "ig-acct"
	return acc
}

func TestInstagramPublishVideoWaitsForContainer(t *testing.T) {
	stub := &graphStub{
		statuses:    []string{"IN_PROGRESS", "IN_PROGRESS", "FINISHED"},
		containerID: "c-1",
		mediaID:     "17900000000000001",
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	svc := newTestInstagramService(srv.URL, srv.Client(), 5)
	post := newPost(models.NewPlatformSet(models.PlatformInstagram), models.MediaTypeVideo)

	id, err := svc.Publish(context.Background(), instagramAccount(), post)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id != "17900000000000001" {
		t.Fatalf("unexpected media id %q", id)
	}
	if got := stub.polls.Load(); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}
	container := stub.container()
	if container.MediaType != "REELS" || container.VideoURL != post.MediaURL {
		t.Fatalf("unexpected container request %+v", container)
	}
	if container.Caption != "Launch day\n\nWe shipped it #launch" {
		t.Fatalf("unexpected caption %q", container.Caption)
	}
}

func TestInstagramPublishImageSkipsPolling(t *testing.T) {
	stub := &graphStub{statuses: []string{"IN_PROGRESS"}, containerID: "c-1", mediaID: "17900000000000002"}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	svc := newTestInstagramService(srv.URL, srv.Client(), 5)
	post := newPost(models.NewPlatformSet(models.PlatformInstagram), models.MediaTypeImage)
	post.MediaURL = "https://cdn.example.com/photo.jpg"

	if _, err := svc.Publish(context.Background(), instagramAccount(), post); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if stub.polls.Load() != 0 {
		t.Fatal("image containers must not be polled")
	}
	if container := stub.container(); container.ImageURL != post.MediaURL || container.MediaType != "" {
		t.Fatalf("unexpected container request %+v", container)
	}
}

func TestInstagramPublishContainerError(t *testing.T) {
	stub := &graphStub{statuses: []string{"IN_PROGRESS", "ERROR"}, containerID: "c-1", mediaID: "x"}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	svc := newTestInstagramService(srv.URL, srv.Client(), 5)
	_, err := svc.Publish(context.Background(), instagramAccount(), newPost(models.NewPlatformSet(models.PlatformInstagram), models.MediaTypeVideo))

	var pe *PlatformError
	if !errors.As(err, &pe) || pe.Code != "ERROR" {
		t.Fatalf("expected ERROR platform error, got %v", err)
	}
	if errors.Is(err, ErrProcessingTimeout) {
		t.Fatal("container error is not a timeout")
	}
	if stub.publishes.Load() != 0 {
		t.Fatal("failed container must not be published")
	}
}

func TestInstagramPublishProcessingTimeout(t *testing.T) {
	stub := &graphStub{statuses: []string{"IN_PROGRESS"}, containerID: "c-1", mediaID: "x"}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	svc := newTestInstagramService(srv.URL, srv.Client(), 3)
	_, err := svc.Publish(context.Background(), instagramAccount(), newPost(models.NewPlatformSet(models.PlatformInstagram), models.MediaTypeVideo))

	if !errors.Is(err, ErrProcessingTimeout) {
		t.Fatalf("expected processing timeout, got %v", err)
	}
	if errorCode(err) != "PROCESSING_TIMEOUT" {
		t.Fatalf("unexpected code %q", errorCode(err))
	}
	if got := stub.polls.Load(); got != 3 {
		t.Fatalf("expected exactly 3 polls, got %d", got)
	}
}

func TestInstagramPublishMissingContainerID(t *testing.T) {
	stub := &graphStub{statuses: []string{"FINISHED"}, containerID: "", mediaID: "x"}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	svc := newTestInstagramService(srv.URL, srv.Client(), 3)
	_, err := svc.Publish(context.Background(), instagramAccount(), newPost(models.NewPlatformSet(models.PlatformInstagram), models.MediaTypeVideo))
	if !errors.Is(err, ErrPlatformPublishFailed) {
		t.Fatalf("expected publish failure, got %v", err)
	}
	if stub.publishes.Load() != 0 {
		t.Fatal("publish must not run without a container")
	}
}

func TestInstagramErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid parameter","type":"OAuthException","code":100,"error_user_msg":"The aspect ratio is not supported."}}`))
	}))
	defer srv.Close()

	svc := newTestInstagramService(srv.URL, srv.Client(), 3)
	_, err := svc.Publish(context.Background(), instagramAccount(), newPost(models.NewPlatformSet(models.PlatformInstagram), models.MediaTypeImage))

	var pe *PlatformError
	if !errors.As(err, &pe) {
		t.Fatalf("expected platform error, got %v", err)
	}
	if pe.Message != "The aspect ratio is not supported." || pe.Code != "100" || pe.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected platform error %+v", pe)
	}
}

func TestInstagramFetchMetrics(t *testing.T) {
	cases := []struct {
		name     string
		insights bool
		want     models.InstagramMetrics
	}{
		{"with insights", true, models.InstagramMetrics{Likes: 42, Comments: 5, Impressions: 900, Reach: 610, Saves: 12, Engagement: 59}},
		{"insights unavailable", false, models.InstagramMetrics{Likes: 42, Comments: 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/media-1", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"id": "media-1", "like_count": 42, "comments_count": 5})
			})
			mux.HandleFunc("/media-1/insights", func(w http.ResponseWriter, r *http.Request) {
				if !tc.insights {
					writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": "insights not available", "code": 10}})
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"data":[
					{"name":"impressions","values":[{"value":900}]},
					{"name":"reach","values":[{"value":610}]},
					{"name":"saved","values":[{"value":12}]},
					{"name":"total_interactions","total_value":{"value":59}}
				]}`))
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			svc := newTestInstagramService(srv.URL, srv.Client(), 3)
			var analytics models.Analytics
			if err := svc.FetchMetrics(context.Background(), instagramAccount(), "media-1", &analytics); err != nil {
				t.Fatalf("FetchMetrics: %v", err)
			}
			if analytics.Instagram != tc.want {
				t.Fatalf("got %+v, want %+v", analytics.Instagram, tc.want)
			}
		})
	}
}

// Orchestrator plus the real Instagram client against a stubbed Graph API.
func TestPublishInstagramVideoEndToEnd(t *testing.T) {
	stub := &graphStub{
		statuses:    []string{"IN_PROGRESS", "IN_PROGRESS", "FINISHED"},
		containerID: "c-1",
		mediaID:     "17900000000000001",
	}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	ig := newTestInstagramService(srv.URL, srv.Client(), 5)
	post := newPost(models.NewPlatformSet(models.PlatformInstagram), models.MediaTypeVideo)
	f := newPublishFixture(post, ig)
	f.accounts.accounts[1].AccountID = "ig-acct"

	resp, err := f.svc.Publish(context.Background(), 7, post.ID)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if resp.Status != models.PostStatusPublished {
		t.Fatalf("unexpected response %+v", resp)
	}
	stored := f.posts.get(post.ID)
	if stored.InstagramPostID != "17900000000000001" || stored.Status != models.PostStatusPublished {
		t.Fatalf("unexpected stored post %+v", stored)
	}
}
