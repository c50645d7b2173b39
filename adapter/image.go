package adapter

import (
	"context"
	"net/http"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/mediafetch"
)

// ImageResolver turns an image URL into inline data for vendors that accept only base64 images.
type ImageResolver interface {
	Resolve(ctx context.Context, url string) (aibridge.ImageDataBlock, error)
}

// ImageResolverFunc adapts a function to ImageResolver.
type ImageResolverFunc func(ctx context.Context, url string) (aibridge.ImageDataBlock, error)

// Resolve implements ImageResolver.
func (f ImageResolverFunc) Resolve(ctx context.Context, url string) (aibridge.ImageDataBlock, error) {
	return f(ctx, url)
}

// MediaFetchResolver resolves data URLs in place and downloads https URLs with mediafetch.
type MediaFetchResolver struct {
	// Client defaults to mediafetch.DefaultClient.
	Client *http.Client
	// MaxBytes limits the download size; zero uses mediafetch.DefaultMaxBodySize.
	MaxBytes int64
}

// Resolve implements ImageResolver.
func (r MediaFetchResolver) Resolve(ctx context.Context, url string) (aibridge.ImageDataBlock, error) {
	mimeType, data, err := mediafetch.Fetcher{Client: r.Client, MaxBytes: r.MaxBytes}.Base64(ctx, url)
	if err != nil {
		return aibridge.ImageDataBlock{}, err
	}
	return aibridge.ImageDataBlock{MIMEType: mimeType, Base64Data: data}, nil
}

// DefaultImageResolver is used by vendor adapters built without an explicit resolver.
var DefaultImageResolver ImageResolver = MediaFetchResolver{}
