// Package keypool holds the rotating set of provider API keys.
//
// The pool is the only owner of the key list and the rotation cursor. All access goes
// through its methods, which serialize on a mutex so concurrent fetches and health checks
// see a consistent cursor.
package keypool

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/Alias1177/marketfeed/internal/settings"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

// DefaultSettingsName is the settings document the pool is persisted in.
const DefaultSettingsName = "marketData"

// apiKeysField is the document field holding the ordered key list.
const apiKeysField = "apiKeys"

// Pool is an ordered set of API keys with a rotation cursor.
type Pool struct {
	mu           sync.Mutex
	keys         []string
	cursor       int
	loaded       bool
	defaultKey   string
	store        settings.Store
	settingsName string
	logger       zerolog.Logger
}

// Option customizes a Pool.
type Option func(*Pool)

// WithSettingsName overrides the settings document name.
func WithSettingsName(name string) Option {
	return func(p *Pool) {
		if name != "" {
			p.settingsName = name
		}
	}
}

// New creates an unloaded pool backed by store. defaultKey is the built-in credential
// used when nothing is persisted; it may be empty.
func New(store settings.Store, defaultKey string, opts ...Option) *Pool {
	p := &Pool{
		defaultKey:   strings.TrimSpace(defaultKey),
		store:        store,
		settingsName: DefaultSettingsName,
		logger:       log.With().Str("component", "key_pool").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load replaces the pool contents with the persisted key list. It never fails:
// read errors fall back to a pool holding only the default key.
func (p *Pool) Load(ctx context.Context) {
	keys, err := p.readKeys(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to load API keys, using default key")
		p.keys = p.defaultOnly()
	} else {
		p.keys = p.withDefault(keys)
	}
	p.cursor = 0
	p.loaded = true

	p.logger.Info().Int("keys", len(p.keys)).Msg("Key pool loaded")
}

// EnsureLoaded loads the pool on first use.
func (p *Pool) EnsureLoaded(ctx context.Context) {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if !loaded {
		p.Load(ctx)
	}
}

func (p *Pool) readKeys(ctx context.Context) ([]string, error) {
	if p.store == nil {
		return nil, nil
	}
	doc, err := p.store.Read(ctx, p.settingsName)
	if err != nil || doc == nil {
		return nil, err
	}
	return doc.Strings(apiKeysField)
}

func (p *Pool) defaultOnly() []string {
	if p.defaultKey == "" {
		return nil
	}
	return []string{p.defaultKey}
}

// withDefault dedupes stored keys and prepends the default key when it is missing.
func (p *Pool) withDefault(stored []string) []string {
	keys := make([]string, 0, len(stored)+1)
	seen := make(map[string]bool, len(stored)+1)
	if p.defaultKey != "" && !contains(stored, p.defaultKey) {
		keys = append(keys, p.defaultKey)
		seen[p.defaultKey] = true
	}
	for _, k := range stored {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		keys = append(keys, k)
		seen[k] = true
	}
	return keys
}

// Current returns the key at the cursor, or the default key when the pool is empty.
func (p *Pool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

func (p *Pool) currentLocked() string {
	if len(p.keys) == 0 {
		return p.defaultKey
	}
	return p.keys[p.cursor]
}

// Rotate advances the cursor and returns the new current key.
// Pools of one key or fewer are left unchanged.
func (p *Pool) Rotate() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) > 1 {
		p.cursor = (p.cursor + 1) % len(p.keys)
	}
	return p.currentLocked()
}

// Add appends key and persists the pool. Blank and duplicate keys are rejected with false.
func (p *Pool) Add(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, nil
	}
	p.EnsureLoaded(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if contains(p.keys, key) {
		return false, nil
	}

	prev := p.keys
	p.keys = append(append(make([]string, 0, len(prev)+1), prev...), key)
	if err := p.persistLocked(ctx); err != nil {
		p.keys = prev
		return false, err
	}

	p.logger.Info().Str("key_id", Fingerprint(key)).Int("keys", len(p.keys)).Msg("API key added")
	return true, nil
}

// Remove deletes key and persists the pool. The last remaining key is never removed.
func (p *Pool) Remove(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	p.EnsureLoaded(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) <= 1 {
		return false, nil
	}
	idx := indexOf(p.keys, key)
	if idx < 0 {
		return false, nil
	}

	prev, prevCursor := p.keys, p.cursor
	next := make([]string, 0, len(prev)-1)
	next = append(next, prev[:idx]...)
	next = append(next, prev[idx+1:]...)
	p.keys = next
	if p.cursor >= len(p.keys) {
		p.cursor = 0
	}

	if err := p.persistLocked(ctx); err != nil {
		p.keys, p.cursor = prev, prevCursor
		return false, err
	}

	p.logger.Info().Str("key_id", Fingerprint(key)).Int("keys", len(p.keys)).Msg("API key removed")
	return true, nil
}

func (p *Pool) persistLocked(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	return p.store.Write(ctx, p.settingsName, settings.Document{
		apiKeysField: append([]string(nil), p.keys...),
	})
}

// Keys returns a copy of the key list in insertion order.
func (p *Pool) Keys() []string {
	keys, _ := p.Snapshot()
	return keys
}

// Snapshot returns a copy of the key list together with the cursor position.
func (p *Pool) Snapshot() ([]string, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...), p.cursor
}

// Len returns the number of keys in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Mask renders a key for display as first4...last4.
func Mask(key string) string {
	if len(key) < 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// Fingerprint returns a short stable identifier for key, safe to log.
func Fingerprint(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}

func contains(keys []string, key string) bool {
	return indexOf(keys, key) >= 0
}

func indexOf(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
