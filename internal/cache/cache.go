// Package cache is the shared byte cache behind sessions, AJAX responses
// and chat modes. Keys are login-scoped so several congregations can share
// one backend.
package cache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Craeckie/church-bot/internal/domain"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque byte values with an optional TTL. A zero TTL means
// the value does not expire.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Lister is the optional enumeration side of a backend, used to walk all
// stored logins.
type Lister interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Opts scope a key beyond its name parts.
type Opts struct {
	// UsePerson includes the person id, for values tied to one user rather
	// than one instance.
	UsePerson bool

	// Daily includes today's date and a "temporary" prefix, so the value
	// rolls over at midnight regardless of TTL.
	Daily bool

	// Now overrides the clock for Daily keys. Zero means time.Now.
	Now time.Time

	// Params are request parameters that distinguish otherwise identical
	// endpoints. Keys are sorted before joining.
	Params map[string]string
}

// Key builds the canonical cache key: the name parts, the instance URL,
// then the optional person, date and parameter segments, joined by colons.
func Key(login domain.LoginData, opts Opts, parts ...string) string {
	segments := append([]string{}, parts...)
	segments = append(segments, login.URL)
	if opts.UsePerson {
		segments = append(segments, login.PersonID)
	}
	if opts.Daily {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		segments = append(segments, now.Format("2006-01-02"))
		segments = append([]string{"temporary"}, segments...)
	}
	if len(opts.Params) > 0 {
		keys := make([]string, 0, len(opts.Params))
		for k := range opts.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+":"+opts.Params[k])
		}
		segments = append(segments, strings.Join(pairs, ","))
	}
	return strings.Join(segments, ":")
}
