// Package download streams a single HTTP(S) GET response to a local file.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/owlplug/owlplug-engine/internal/metrics"
	"github.com/owlplug/owlplug-engine/internal/safety"
)

// ProgressFunc is called as the body is written to disk.
// bytesDownloaded is the number of bytes downloaded so far,
// totalBytes is the total size of the download (or 0 if unknown).
type ProgressFunc func(bytesDownloaded, totalBytes int64)

// Options contains configuration for a single download.
type Options struct {
	URL string
	// DestPath must not exist yet; it is created exclusively.
	DestPath   string
	OnProgress ProgressFunc
}

// Result contains the result of a successful download.
type Result struct {
	Path     string        // Path to the downloaded file
	Size     int64         // Final file size in bytes
	Duration time.Duration // Total download duration
}

// Client performs single-attempt streamed HTTP downloads.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// NewClient creates a new download client with the given logger.
func NewClient(logger *slog.Logger, userAgent string) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if userAgent == "" {
		userAgent = "owlplug/1.0"
	}
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
				TLSHandshakeTimeout: 15 * time.Second,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConns:        10,
			},
			// No overall Timeout: a stalled host stalls the download until
			// the context is cancelled.
		},
		logger:    logger,
		userAgent: userAgent,
	}
}

// Download fetches opts.URL into opts.DestPath. The destination is created
// before any network I/O; an existing file yields an error wrapping
// fs.ErrExist. A partially written file is left in place on failure.
func (c *Client) Download(ctx context.Context, opts Options) (*Result, error) {
	u, err := safety.ValidateDownloadURL(opts.URL)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(opts.DestPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.DestPath, err)
	}
	defer file.Close()

	startTime := time.Now()
	c.logger.Debug("downloading", "url", u.Redacted(), "dest", opts.DestPath)

	size, err := c.fetch(ctx, u.String(), file, opts.OnProgress)
	if err != nil {
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", opts.DestPath, err)
	}

	result := &Result{
		Path:     opts.DestPath,
		Size:     size,
		Duration: time.Since(startTime),
	}
	c.logger.Debug("download complete", "dest", opts.DestPath, "size", size, "duration", result.Duration)
	return result, nil
}

// fetch performs the GET and streams the body to w.
func (c *Client) fetch(ctx context.Context, rawURL string, w io.Writer, onProgress ProgressFunc) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	totalSize := resp.ContentLength
	if totalSize < 0 {
		totalSize = 0
	}

	var reader io.Reader = resp.Body
	if onProgress != nil {
		reader = &progressReader{
			reader:   resp.Body,
			callback: onProgress,
			total:    totalSize,
		}
	}

	n, err := io.Copy(w, reader)
	metrics.AddDownloadBytes(n)
	if err != nil {
		return n, fmt.Errorf("failed to write download: %w", err)
	}
	return n, nil
}

// HTTPError represents an HTTP error response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.StatusCode, e.Status)
}

// progressReader wraps a reader and calls a progress callback as data is read.
type progressReader struct {
	reader   io.Reader
	callback ProgressFunc
	current  int64
	total    int64
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		pr.callback(pr.current, pr.total)
	}
	return n, err
}
