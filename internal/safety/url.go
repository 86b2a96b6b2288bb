package safety

import (
	"fmt"
	"net/url"
)

// ValidateDownloadURL ensures raw parses as an absolute HTTP(S) URL with a host
// and no embedded credentials.
func ValidateDownloadURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("download URL is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL host is required")
	}
	if u.User != nil {
		return nil, fmt.Errorf("URL userinfo is not allowed")
	}
	return u, nil
}
