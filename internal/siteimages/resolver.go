package siteimages

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Result is what a single-image lookup hands to rendering code. Err is set when
// the latest fetch failed; Image may still hold a stale cached copy in that case.
type Result struct {
	Key     string
	Image   *Image
	Loading bool
	Stale   bool
	Err     error
}

// Resolver serves section-keyed images from the shared Cache, falling back to
// the Backend on a miss. Read methods never return errors; failures land in
// Result.Err / Family.Err.
type Resolver struct {
	backend Backend
	cache   *Cache
	logger  *zap.Logger
	group   singleflight.Group
}

// Option customises a Resolver or Collection.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewResolver wires a resolver to backend and cache. A nil cache gets a private default one.
func NewResolver(backend Backend, cache *Cache, opts ...Option) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	o := applyOptions(opts)
	return &Resolver{
		backend: backend,
		cache:   cache,
		logger:  o.logger,
	}
}

// Cache exposes the shared cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve returns the image for key, hitting the network only when the cache has
// no valid entry. Concurrent calls for the same key share one request, which
// is not cancelled when the caller that started it goes away.
func (r *Resolver) Resolve(ctx context.Context, key string) Result {
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{Err: ErrEmptyKey}
	}
	ctx, span := startSpan(ctx, "siteimages.Resolve", attribute.String("section_key", key))
	defer span.End()

	if img, ok := r.cache.Fresh(key); ok {
		recordLookup(ctx, true)
		r.logger.Debug("site image cache hit", zap.String("section_key", key))
		return Result{Key: key, Image: &img}
	}
	recordLookup(ctx, false)

	// The shared fetch outlives any single caller: one caller going away must
	// not fail the others waiting on the same key. Each caller still stops
	// waiting when its own ctx is done.
	fetchCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		img, err := r.backend.Get(fetchCtx, key)
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, img, r.cache.Now())
		return img, nil
	})
	var (
		v      any
		err    error
		shared bool
	)
	select {
	case res := <-ch:
		v, err, shared = res.Val, res.Err, res.Shared
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		recordFailure(ctx, span, "get", err)
		r.logger.Warn("site image fetch failed",
			zap.String("section_key", key),
			zap.String("kind", Kind(err).String()),
			zap.Error(err),
		)
		res := Result{Key: key, Err: err}
		if entry, ok := r.cache.Get(key); ok {
			res.Image = &entry.Image
			res.Stale = true
		}
		return res
	}
	img := cloneImage(v.(Image))
	r.logger.Debug("site image fetched", zap.String("section_key", key), zap.Bool("shared", shared))
	return Result{Key: key, Image: &img}
}

// Family is the result of a prefix lookup.
type Family struct {
	Prefix   string
	Images   []Image
	Loading  bool
	Fallback bool
	Err      error
}

// Hero returns the first image whose key ends in "_hero", else the first image.
func (f Family) Hero() *Image {
	if img := f.withSuffix("_hero"); img != nil {
		return img
	}
	return f.at(0)
}

// Showcase returns the first image whose key ends in "_showcase", else the
// second image, else the first.
func (f Family) Showcase() *Image {
	if img := f.withSuffix("_showcase"); img != nil {
		return img
	}
	if img := f.at(1); img != nil {
		return img
	}
	return f.at(0)
}

func (f Family) withSuffix(suffix string) *Image {
	for i := range f.Images {
		if strings.HasSuffix(f.Images[i].SectionKey, suffix) {
			img := cloneImage(f.Images[i])
			return &img
		}
	}
	return nil
}

func (f Family) at(i int) *Image {
	if i < 0 || i >= len(f.Images) {
		return nil
	}
	img := cloneImage(f.Images[i])
	return &img
}

// ResolveFamily fetches every image under prefix. When that yields nothing and
// fallbackKey is set, exactly one single-key fetch is made and its image becomes
// a one-element family. Family results bypass the single-key cache.
func (r *Resolver) ResolveFamily(ctx context.Context, prefix, fallbackKey string) Family {
	prefix = strings.TrimSpace(prefix)
	fallbackKey = strings.TrimSpace(fallbackKey)
	fam := Family{Prefix: prefix}
	if prefix == "" && fallbackKey == "" {
		fam.Err = ErrEmptyKey
		return fam
	}

	ctx, span := startSpan(ctx, "siteimages.ResolveFamily",
		attribute.String("prefix", prefix),
		attribute.String("fallback", fallbackKey),
	)
	defer span.End()

	var lastErr error
	if prefix != "" {
		images, err := r.backend.ListPrefix(ctx, prefix)
		if err != nil {
			lastErr = err
			recordFailure(ctx, span, "list_prefix", err)
			r.logger.Warn("site image family fetch failed", zap.String("prefix", prefix), zap.Error(err))
		} else if len(images) > 0 {
			fam.Images = images
			return fam
		}
	}

	if fallbackKey != "" {
		img, err := r.backend.Get(ctx, fallbackKey)
		if err != nil {
			lastErr = err
			recordFailure(ctx, span, "get", err)
			r.logger.Warn("site image family fallback failed",
				zap.String("prefix", prefix),
				zap.String("fallback", fallbackKey),
				zap.Error(err),
			)
		} else {
			fam.Images = []Image{img}
			fam.Fallback = true
			return fam
		}
	}

	fam.Err = lastErr
	return fam
}
