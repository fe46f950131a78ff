package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Default result cache sizing. The TTL only needs to absorb duplicate
// near-simultaneous calls, e.g. UI re-renders and polling.
const (
	DefaultCacheSize = 64
	DefaultCacheTTL  = 5 * time.Second
)

// Cache memoizes query results keyed by the compiled-query signature.
// The engine treats it as best-effort: errors from either method are
// logged and the query executes directly. Cached results are shared and
// must be treated as immutable by callers.
type Cache interface {
	Get(key string) (*Result, bool, error)
	Set(key string, res *Result) error
}

// lruCache is the default Cache: a TTL-bounded LRU. It never errors.
type lruCache struct {
	lru *expirable.LRU[string, *Result]
}

// NewLRUCache creates the default result cache. Entries expire after
// ttl; size bounds how many distinct filter signatures are retained.
func NewLRUCache(size int, ttl time.Duration) Cache {
	return &lruCache{lru: expirable.NewLRU[string, *Result](size, nil, ttl)}
}

func (c *lruCache) Get(key string) (*Result, bool, error) {
	res, ok := c.lru.Get(key)
	return res, ok, nil
}

func (c *lruCache) Set(key string, res *Result) error {
	c.lru.Add(key, res)
	return nil
}

// NopCache disables caching; every query executes directly.
type NopCache struct{}

func (NopCache) Get(string) (*Result, bool, error) { return nil, false, nil }
func (NopCache) Set(string, *Result) error         { return nil }

// signature computes a deterministic cache key from the compiled
// predicates, their arguments, and everything else that shapes the
// result. Any change to a single clause yields a different key; there
// is no approximate matching.
func signature(preds []Predicate, f Filter) string {
	var b strings.Builder
	for _, p := range preds {
		b.WriteString(p.SQL)
		b.WriteByte('\x1f')
		for _, a := range p.Args {
			fmt.Fprintf(&b, "%v\x1f", a)
		}
		b.WriteByte('\x1e')
	}
	fmt.Fprintf(&b, "per=%d|page=%d", f.PerPage, f.Page)
	if o := f.Occasions; o != nil {
		fmt.Fprintf(&b, "|occ=%d:%s:%d", o.LogRowID, o.OccasionsID, o.Count)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
