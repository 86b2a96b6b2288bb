package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestClient() *Client {
	return NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), "owlplug-test/1.0")
}

// TestNewClient creates client with logger
func TestNewClient(t *testing.T) {
	client := NewClient(nil, "")

	if client.httpClient == nil {
		t.Fatal("expected httpClient to be initialized")
	}
	if client.userAgent != "owlplug/1.0" {
		t.Errorf("expected default userAgent 'owlplug/1.0', got %s", client.userAgent)
	}
	if client.logger == nil {
		t.Fatal("expected logger to be set")
	}
}

// TestDownloadFile sets up httptest server serving a file, downloads it, verifies content
func TestDownloadFile(t *testing.T) {
	testContent := []byte("PK\x03\x04 plugin archive bytes")

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(testContent)
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "010124120000000.owlpack")

	result, err := newTestClient().Download(context.Background(), Options{
		URL:      server.URL + "/dexed.zip",
		DestPath: destPath,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	content, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("failed to read downloaded file: %v", err)
	}
	if string(content) != string(testContent) {
		t.Errorf("content mismatch: expected %q, got %q", testContent, content)
	}
	if result.Size != int64(len(testContent)) {
		t.Errorf("expected size %d, got %d", len(testContent), result.Size)
	}
	if result.Path != destPath {
		t.Errorf("expected path %s, got %s", destPath, result.Path)
	}
	if gotUA != "owlplug-test/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

// TestDownloadFileExists verifies an existing destination is never overwritten
func TestDownloadFileExists(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte("new"))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "taken.owlpack")
	if err := os.WriteFile(destPath, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := newTestClient().Download(context.Background(), Options{URL: server.URL, DestPath: destPath})
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("expected fs.ErrExist, got %v", err)
	}
	if requests != 0 {
		t.Errorf("expected no request, got %d", requests)
	}
	content, _ := os.ReadFile(destPath)
	if string(content) != "old" {
		t.Errorf("existing file was modified: %q", content)
	}
}

func TestDownloadInvalidURL(t *testing.T) {
	tests := []string{"", "ftp://example.com/a.zip", "not a url", "http://user:pw@example.com/a.zip"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			destPath := filepath.Join(t.TempDir(), "a.owlpack")
			if _, err := newTestClient().Download(context.Background(), Options{URL: raw, DestPath: destPath}); err == nil {
				t.Fatal("expected error")
			}
			if _, err := os.Stat(destPath); !os.IsNotExist(err) {
				t.Error("destination created for an invalid URL")
			}
		})
	}
}

// TestDownloadFileHTTPError verifies non-2xx responses surface as *HTTPError without retry
func TestDownloadFileHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"not found", http.StatusNotFound},
		{"forbidden", http.StatusForbidden},
		{"server error", http.StatusInternalServerError},
		{"unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requests := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests++
				http.Error(w, "nope", tt.statusCode)
			}))
			defer server.Close()

			_, err := newTestClient().Download(context.Background(), Options{
				URL:      server.URL,
				DestPath: filepath.Join(t.TempDir(), "a.owlpack"),
			})

			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected *HTTPError, got %T: %v", err, err)
			}
			if httpErr.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", httpErr.StatusCode, tt.statusCode)
			}
			if requests != 1 {
				t.Errorf("expected exactly 1 request, got %d", requests)
			}
		})
	}
}

// TestDownloadFileContextCancellation verifies that context cancellation stops the download
func TestDownloadFileContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Send chunks slowly; stop when the request context is cancelled
		// so server.Close() returns promptly.
		for i := 0; i < 50; i++ {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
				_, _ = w.Write([]byte("chunk"))
				w.(http.Flusher).Flush()
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result, err := newTestClient().Download(ctx, Options{
		URL:      server.URL,
		DestPath: filepath.Join(t.TempDir(), "cancel.owlpack"),
	})
	if err == nil {
		t.Fatal("expected error due to context cancellation")
	}
	if result != nil {
		t.Fatal("expected result to be nil on cancellation")
	}
}

// TestDownloadFileProgress verifies the progress callback reaches the full size
func TestDownloadFileProgress(t *testing.T) {
	testContent := make([]byte, 64*1024)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(testContent)))
		_, _ = w.Write(testContent)
	}))
	defer server.Close()

	var lastDone, lastTotal int64
	calls := 0
	_, err := newTestClient().Download(context.Background(), Options{
		URL:      server.URL,
		DestPath: filepath.Join(t.TempDir(), "progress.owlpack"),
		OnProgress: func(done, total int64) {
			calls++
			lastDone, lastTotal = done, total
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls == 0 {
		t.Fatal("expected progress callback to be called at least once")
	}
	if lastDone != int64(len(testContent)) || lastTotal != int64(len(testContent)) {
		t.Errorf("final progress = %d/%d, want %d/%d", lastDone, lastTotal, len(testContent), len(testContent))
	}
}
