package supabase

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

const storageService = "supabase/storage"

// Bucket uploads objects into one Supabase Storage bucket.
type Bucket struct {
	client *Client
	name   string
}

func (c *Client) Bucket(name string) *Bucket {
	return &Bucket{client: c, name: name}
}

// Put uploads body under key and returns the public object URL.
func (b *Bucket) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", b.name), attribute.String("key", key), attribute.Int64("size", size))

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	path := "/storage/v1/object/" + b.name + "/" + escapeKey(key)
	err := b.client.call(ctx, storageService, false, func() error {
		return b.client.do(ctx, http.MethodPost, path, contentType, body, nil)
	})
	if err != nil {
		return "", err
	}
	return b.PublicURL(key), nil
}

func (b *Bucket) PublicURL(key string) string {
	return b.client.baseURL + "/storage/v1/object/public/" + b.name + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
