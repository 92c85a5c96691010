package embed

import (
	"context"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderHTTP   = "http"
	ProviderStatic = "static"
)

// New builds an Embedder for the named provider, wrapped in a query cache
// unless cacheSize is negative. An empty provider defaults to "http".
func New(ctx context.Context, provider string, httpCfg HTTPConfig, cacheSize int) (Embedder, error) {
	var inner Embedder
	var err error

	switch strings.ToLower(provider) {
	case "", ProviderHTTP:
		inner, err = NewHTTPEmbedder(ctx, httpCfg)
	case ProviderStatic:
		inner = NewStaticEmbedder(httpCfg.Dimensions)
	default:
		inner, err = NewHTTPEmbedder(ctx, httpCfg)
	}
	if err != nil {
		return nil, err
	}

	if cacheSize < 0 {
		return inner, nil
	}
	return NewCachedEmbedder(inner, cacheSize), nil
}
