package tsl

import (
	"context"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jellydator/ttlcache/v3"

	"sdjwt/pkg/helpers"
	"sdjwt/pkg/logger"
	"sdjwt/pkg/model"
)

// Result classifies a status lookup.
type Result int

const (
	// ResultValid means the credential is live
	ResultValid Result = iota

	// ResultInvalid means the credential is revoked
	ResultInvalid

	// ResultSuspended means the credential is temporarily withdrawn
	ResultSuspended

	// ResultApplicationSpecific covers values above the registered range
	ResultApplicationSpecific

	// ResultUnknown means no status could be determined
	ResultUnknown
)

// Outcome is a resolved status entry: the classification plus the raw
// value for application-specific handling.
type Outcome struct {
	Result Result
	Raw    uint8
}

// Fetcher retrieves a status list token. Implementations do the HTTPS
// fetch and content negotiation; cancellation propagates through ctx.
type Fetcher func(ctx context.Context, uri string) (token string, fetchedAt time.Time, err error)

// ReaderConfig configures a status list Reader.
type ReaderConfig struct {
	// Fetcher retrieves status list tokens (REQUIRED)
	Fetcher Fetcher `validate:"required"`

	// Keyfunc validates the status list token signature; nil skips
	// signature validation
	Keyfunc jwt.Keyfunc

	// CacheTTL bounds cache entries when the token carries no ttl claim
	CacheTTL time.Duration `default:"5m"`

	// DisableCache forces a fetch per lookup
	DisableCache bool

	// Log is optional; lookups trace at debug level only
	Log *logger.Log
}

// Reader resolves status references against fetched status list tokens.
// The cache is transparent: a fresh fetch is always correct behavior.
type Reader struct {
	cfg   ReaderConfig
	cache *ttlcache.Cache[string, *cachedList]
}

type cachedList struct {
	bits   int
	packed []byte
}

// NewReader creates a Reader.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, err
	}
	if err := helpers.Check(&cfg); err != nil {
		return nil, err
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewSimple("tsl")
	}

	r := &Reader{cfg: cfg}

	if !cfg.DisableCache {
		r.cache = ttlcache.New(
			ttlcache.WithTTL[string, *cachedList](cfg.CacheTTL),
		)
		go r.cache.Start()
	}

	return r, nil
}

// Close stops the cache janitor.
func (r *Reader) Close() {
	if r.cache != nil {
		r.cache.Stop()
	}
}

// Lookup resolves a status reference to an Outcome. Fetch failures,
// cancellation, malformed tokens and out-of-range indices all surface as
// StatusUnavailable; the caller decides fail-open versus fail-closed.
func (r *Reader) Lookup(ctx context.Context, ref model.StatusReference) (*Outcome, error) {
	list, err := r.list(ctx, ref.URI)
	if err != nil {
		return nil, err
	}

	value, err := GetStatus(list.packed, list.bits, ref.Index)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrStatusUnavailable.Title, fmt.Sprintf("index %d: %v", ref.Index, err))
	}

	switch value {
	case StatusValid:
		return &Outcome{Result: ResultValid, Raw: value}, nil
	case StatusInvalid:
		return &Outcome{Result: ResultInvalid, Raw: value}, nil
	case StatusSuspended:
		return &Outcome{Result: ResultSuspended, Raw: value}, nil
	default:
		return &Outcome{Result: ResultApplicationSpecific, Raw: value}, nil
	}
}

func (r *Reader) list(ctx context.Context, uri string) (*cachedList, error) {
	if r.cache != nil {
		if item := r.cache.Get(uri); item != nil {
			r.cfg.Log.Debug("status list cache hit", "uri", uri)
			return item.Value(), nil
		}
	}

	token, _, err := r.cfg.Fetcher(ctx, uri)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrStatusUnavailable.Title, fmt.Sprintf("fetch %s: %v", uri, err))
	}

	claims, err := ParseJWT(token, r.cfg.Keyfunc)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrStatusUnavailable.Title, fmt.Sprintf("parse %s: %v", uri, err))
	}

	if err := helpers.Check(&claims.StatusList); err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrStatusUnavailable.Title, fmt.Sprintf("status_list claim: %v", err))
	}

	packed, err := DecodeAndDecompress(claims.StatusList.Lst)
	if err != nil {
		return nil, helpers.NewErrorDetails(helpers.ErrStatusUnavailable.Title, fmt.Sprintf("decode %s: %v", uri, err))
	}

	list := &cachedList{bits: claims.StatusList.Bits, packed: packed}

	if r.cache != nil {
		ttl := r.cfg.CacheTTL
		if claims.TTL > 0 {
			ttl = time.Duration(claims.TTL) * time.Second
		}
		r.cache.Set(uri, list, ttl)
		r.cfg.Log.Debug("status list cached", "uri", uri, "ttl", ttl.String())
	}

	return list, nil
}
