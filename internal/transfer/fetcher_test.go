package transfer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="S2A_scene.zip"`)
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	dir := t.TempDir()
	fetcher := NewHTTPFetcher(0)

	staged, err := fetcher.Fetch(context.Background(), server.URL+"/download/123", dir)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if filepath.Base(staged) != "S2A_scene.zip" {
		t.Errorf("staged name = %q, want S2A_scene.zip", filepath.Base(staged))
	}
	content, err := os.ReadFile(staged)
	if err != nil {
		t.Fatalf("read staged: %v", err)
	}
	if string(content) != "payload" {
		t.Errorf("staged content = %q", content)
	}
}

func TestHTTPFetcher_NameFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	dir := t.TempDir()
	fetcher := NewHTTPFetcher(0)

	staged, err := fetcher.Fetch(context.Background(), server.URL+"/files/B02.jp2", dir)
	if err != nil {
		t.Fatalf("Fetch() failed: %v", err)
	}
	if filepath.Base(staged) != "B02.jp2" {
		t.Errorf("staged name = %q, want B02.jp2", filepath.Base(staged))
	}
}

func TestHTTPFetcher_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	dir := t.TempDir()
	fetcher := NewHTTPFetcher(0)

	_, err := fetcher.Fetch(context.Background(), server.URL+"/files/B02.jp2", dir)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.Status != http.StatusGone {
		t.Errorf("Status = %d, want %d", fetchErr.Status, http.StatusGone)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("staging not empty after failed fetch: %v", entries)
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		url         string
		expected    string
	}{
		{
			name:        "disposition wins",
			disposition: `attachment; filename="scene.zip"`,
			url:         "https://dds.example.com/download/123",
			expected:    "scene.zip",
		},
		{
			name:     "url path fallback",
			url:      "https://dds.example.com/files/B02.jp2?token=abc",
			expected: "B02.jp2",
		},
		{
			name:        "malformed disposition falls back",
			disposition: "not a header",
			url:         "https://dds.example.com/files/B02.jp2",
			expected:    "B02.jp2",
		},
		{
			name:     "bare host gets placeholder",
			url:      "https://dds.example.com/",
			expected: "download",
		},
		{
			name:        "disposition path is stripped",
			disposition: `attachment; filename="/etc/passwd"`,
			url:         "https://dds.example.com/",
			expected:    "passwd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := artifactName(tt.disposition, tt.url); got != tt.expected {
				t.Errorf("artifactName() = %q, want %q", got, tt.expected)
			}
		})
	}
}
