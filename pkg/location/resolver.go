package location

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"chessroam/internal/storage"
)

// Typed geolocation failure reasons. Every failure is non-fatal; the
// resolver degrades to "no location" rather than blocking callers.
var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
	ErrTimeout          = errors.New("location request timed out")
)

// Provider abstracts the platform geolocation capability: a one-shot
// position fix. Implementations should return the typed errors above where
// they can distinguish the cause.
type Provider interface {
	Current(ctx context.Context) (Coordinate, error)
}

// PermissionProber is optionally implemented by a Provider on platforms that
// expose a permissions-query capability. Absence is not an error.
type PermissionProber interface {
	PermissionState(ctx context.Context) string // "granted", "denied", "prompt"
}

// IPLocation is the best-effort result of an IP-based lookup.
type IPLocation struct {
	City      string  `json:"city"`
	Country   string  `json:"country_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type cachedCoordinate struct {
	Coordinate
	CachedAt time.Time `json:"cachedAt"`
}

const (
	// DefaultCacheMaxAge is how long a cached coordinate stays usable.
	DefaultCacheMaxAge = 5 * time.Minute
	// DefaultIPLookupURL is the public IP-geolocation endpoint.
	DefaultIPLookupURL = "https://ipapi.co/json/"
)

// Options tunes a Resolver. Zero values select the defaults.
type Options struct {
	CacheMaxAge time.Duration
	IPLookupURL string
	HTTPClient  *http.Client
}

// Resolver obtains and caches device coordinates and computes nearest
// supported cities. It is not safe for concurrent use; the consuming page
// owns one instance.
type Resolver struct {
	provider Provider
	cities   []SupportedCity
	store    *storage.Store
	opts     Options

	known      *Coordinate
	lastReason error
}

// NewResolver builds a resolver over the given provider and city table.
// A cached coordinate within the max-age window is loaded eagerly so a
// fresh instance can answer without prompting again.
func NewResolver(p Provider, cities []SupportedCity, store *storage.Store, opts Options) *Resolver {
	if opts.CacheMaxAge == 0 {
		opts.CacheMaxAge = DefaultCacheMaxAge
	}
	if opts.IPLookupURL == "" {
		opts.IPLookupURL = DefaultIPLookupURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	r := &Resolver{provider: p, cities: cities, store: store, opts: opts}
	var cached cachedCoordinate
	if store != nil && store.Get(storage.KeyCachedCoordinate, &cached) {
		if time.Since(cached.CachedAt) < opts.CacheMaxAge {
			c := cached.Coordinate
			r.known = &c
		}
	}
	return r
}

// RequestPermission prompts for location access via the provider. On
// success the coordinate is cached to durable storage and true is returned.
// On failure the typed reason is recorded and false is returned.
func (r *Resolver) RequestPermission(ctx context.Context) bool {
	coord, err := r.provider.Current(ctx)
	if err != nil {
		r.lastReason = classify(err)
		return false
	}
	r.known = &coord
	r.lastReason = nil
	if r.store != nil {
		_ = r.store.Put(storage.KeyCachedCoordinate, cachedCoordinate{Coordinate: coord, CachedAt: time.Now()})
	}
	return true
}

// CurrentPosition is a one-shot fetch that does not touch cached state.
// Returns nil on any failure.
func (r *Resolver) CurrentPosition(ctx context.Context) *Coordinate {
	coord, err := r.provider.Current(ctx)
	if err != nil {
		return nil
	}
	return &coord
}

// Known returns the currently known coordinate, or nil.
func (r *Resolver) Known() *Coordinate {
	return r.known
}

// LastFailure returns the typed reason for the most recent permission
// failure, or nil.
func (r *Resolver) LastFailure() error {
	return r.lastReason
}

// PermissionState reports the platform permission state when the provider
// exposes one, "unknown" otherwise.
func (r *Resolver) PermissionState(ctx context.Context) string {
	if p, ok := r.provider.(PermissionProber); ok {
		return p.PermissionState(ctx)
	}
	return "unknown"
}

// NearestCity returns the supported city closest to the known coordinate and
// records it as the detected city. ok is false when no coordinate is known.
func (r *Resolver) NearestCity() (string, bool) {
	if r.known == nil {
		return "", false
	}
	id, ok := FindNearestSupportedCity(r.known.Latitude, r.known.Longitude, r.cities)
	if ok && r.store != nil {
		_ = r.store.Put(storage.KeyDetectedCity, id)
	}
	return id, ok
}

// DistanceToCity returns the distance in km from the known coordinate to the
// named city. ok is false when no coordinate is known or the city id is not
// in the table.
func (r *Resolver) DistanceToCity(cityID string) (float64, bool) {
	if r.known == nil {
		return 0, false
	}
	for _, c := range r.cities {
		if c.ID == cityID {
			return HaversineKm(r.known.Latitude, r.known.Longitude, c.Latitude, c.Longitude), true
		}
	}
	return 0, false
}

// LocationFromIP performs a best-effort IP-geolocation lookup. It never
// returns an error: any network or parse failure yields nil.
func (r *Resolver) LocationFromIP(ctx context.Context) *IPLocation {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.opts.IPLookupURL, nil)
	if err != nil {
		return nil
	}
	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var out IPLocation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil
	}
	return &out
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrUnavailable), errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}
