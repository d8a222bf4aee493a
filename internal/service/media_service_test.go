package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestMediaServiceOpenHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/photo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(pngHeader)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, err := NewMediaService(context.Background(), &config.Config{}, srv.Client())
	if err != nil {
		t.Fatalf("NewMediaService: %v", err)
	}

	stream, err := svc.Open(context.Background(), srv.URL+"/photo")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Body.Close()

	if stream.Kind != models.MediaTypeImage || stream.ContentType != "image/png" {
		t.Fatalf("unexpected stream kind %s type %s", stream.Kind, stream.ContentType)
	}
	body, err := io.ReadAll(stream.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(body) != len(pngHeader) {
		t.Fatalf("sniffing consumed bytes: got %d, want %d", len(body), len(pngHeader))
	}

	if _, err := svc.Open(context.Background(), srv.URL+"/gone"); err == nil {
		t.Fatal("expected error for missing media")
	}
}

func TestMediaServiceR2KeyWithoutBucket(t *testing.T) {
	s := &mediaService{cfg: config.R2{PublicURL: "https://media.example.com"}}
	if _, ok := s.r2Key("r2://uploads/clip.mp4"); ok {
		t.Fatal("r2 keys need a configured client")
	}
}
