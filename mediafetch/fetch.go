// Package mediafetch downloads images for vendors that accept only inline base64 data
// (Anthropic for non-https sources, Ollama) and decodes data URLs.
package mediafetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultMaxBodySize is the default limit for media download (10 MiB).
	DefaultMaxBodySize = 10 << 20
)

var (
	// ErrUnsafeScheme is returned when the URL scheme is not https.
	ErrUnsafeScheme = errors.New("mediafetch: only https scheme is allowed")
	// ErrBodyTooLarge is returned when the response exceeds the size limit.
	ErrBodyTooLarge = errors.New("mediafetch: response body exceeds size limit")
	// ErrUnsupportedType is returned when Content-Type is not allowed (e.g. not image/*).
	ErrUnsupportedType = errors.New("mediafetch: unsupported content type")
	// ErrInvalidDataURL is returned for a data URL that is not base64 encoded or is malformed.
	ErrInvalidDataURL = errors.New("mediafetch: invalid data URL")
)

// AllowedImagePrefixes are Content-Type prefixes accepted for image media (e.g. "image/png"). Do not modify.
var AllowedImagePrefixes = []string{"image/"}

// DefaultClient is the HTTP client used when a Fetcher has none.
var DefaultClient = http.DefaultClient

// Fetcher downloads images over https.
type Fetcher struct {
	// Client defaults to DefaultClient.
	Client *http.Client
	// MaxBytes defaults to DefaultMaxBodySize.
	MaxBytes int64
}

// FetchImage downloads rawURL with the default fetcher and the given size limit.
func FetchImage(ctx context.Context, rawURL string, maxBytes int64) (data []byte, contentType string, err error) {
	return Fetcher{MaxBytes: maxBytes}.Image(ctx, rawURL)
}

// FetchBase64 returns the MIME type and base64 payload of rawURL. Data URLs are decoded in place;
// other URLs are downloaded with FetchImage.
func FetchBase64(ctx context.Context, rawURL string, maxBytes int64) (mimeType, data string, err error) {
	return Fetcher{MaxBytes: maxBytes}.Base64(ctx, rawURL)
}

// Image downloads rawURL with ctx, size limit, and optional MIME check. Only https is allowed.
func (f Fetcher) Image(ctx context.Context, rawURL string) (data []byte, contentType string, err error) {
	maxBytes := f.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	client := f.Client
	if client == nil {
		client = DefaultClient
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("mediafetch: parse URL: %w", err)
	}
	if u.Scheme != "https" {
		return nil, "", ErrUnsafeScheme
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("mediafetch: new request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("mediafetch: do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("mediafetch: status %s", resp.Status)
	}
	contentType = resp.Header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	if contentType != "" && !isAllowedImage(contentType) {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	data, err = io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("mediafetch: read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", ErrBodyTooLarge
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
		if !isAllowedImage(contentType) {
			return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
		}
	}
	return data, contentType, nil
}

// Base64 is FetchBase64 bound to f.
func (f Fetcher) Base64(ctx context.Context, rawURL string) (mimeType, data string, err error) {
	if strings.HasPrefix(rawURL, "data:") {
		return ParseDataURL(rawURL)
	}
	raw, mimeType, err := f.Image(ctx, rawURL)
	if err != nil {
		return "", "", err
	}
	return mimeType, base64.StdEncoding.EncodeToString(raw), nil
}

// ParseDataURL splits a base64 data URL ("data:image/png;base64,....") into MIME type and payload.
func ParseDataURL(s string) (mimeType, data string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", "", ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", ErrInvalidDataURL
	}
	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", fmt.Errorf("%w: payload is not base64", ErrInvalidDataURL)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if !isAllowedImage(mimeType) {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	return mimeType, payload, nil
}

// DataURL builds a base64 data URL. An empty mimeType defaults to image/png.
func DataURL(mimeType, data string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + data
}

func isAllowedImage(contentType string) bool {
	for _, prefix := range AllowedImagePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}
