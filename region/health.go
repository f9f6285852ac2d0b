package region

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Health table defaults.
const (
	DefaultFrozenDuration  = 10 * time.Minute
	DefaultPersistInterval = 30 * time.Minute
)

// HealthTableConfig controls a HealthTable.
type HealthTableConfig struct {
	// FrozenDuration is how long a failed endpoint stays out of rotation.
	FrozenDuration time.Duration

	// PersistPath, when set, is the file the freeze table is saved to and
	// loaded from.
	PersistPath string

	// PersistInterval bounds how often the table is written back
	// opportunistically. Ignored without a PersistPath.
	PersistInterval time.Duration

	// DisableAutoPersist turns off opportunistic writes; the table is then
	// only saved through explicit Persist calls.
	DisableAutoPersist bool
}

// HealthTable tracks endpoints that recently failed. Frozen endpoints are
// keyed by host and port so both schemes of the same host freeze together.
// Entries expire lazily. The table is safe for concurrent use.
type HealthTable struct {
	mu          sync.Mutex
	frozen      map[string]time.Time
	cfg         HealthTableConfig
	lastPersist time.Time
}

// NewHealthTable creates a HealthTable, loading previously persisted state
// when the configured file exists.
func NewHealthTable(cfg HealthTableConfig) *HealthTable {
	if cfg.FrozenDuration == 0 {
		cfg.FrozenDuration = DefaultFrozenDuration
	}
	if cfg.PersistInterval == 0 {
		cfg.PersistInterval = DefaultPersistInterval
	}

	t := &HealthTable{
		frozen:      make(map[string]time.Time),
		cfg:         cfg,
		lastPersist: time.Now(),
	}
	if cfg.PersistPath != "" {
		t.load()
	}
	return t
}

// Freeze takes the endpoint serving rawURL out of rotation for the frozen
// duration.
func (t *HealthTable) Freeze(rawURL string) error {
	key, err := hostKey(rawURL)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.frozen[key] = time.Now().Add(t.cfg.FrozenDuration)
	t.mu.Unlock()

	t.persistIfDue()
	return nil
}

// IsFrozen reports whether the endpoint serving rawURL is currently out of
// rotation.
func (t *HealthTable) IsFrozen(rawURL string) (bool, error) {
	key, err := hostKey(rawURL)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frozenLocked(key), nil
}

// UnfreezeAll clears every freeze record.
func (t *HealthTable) UnfreezeAll() {
	t.mu.Lock()
	t.frozen = make(map[string]time.Time)
	t.mu.Unlock()
}

// Choose filters urls down to endpoints currently in rotation, preserving
// order. When every candidate is frozen it returns the single endpoint whose
// freeze expires first, so callers always have somewhere to send a request.
// URLs that cannot be parsed are skipped.
func (t *HealthTable) Choose(urls []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	usable := make([]string, 0, len(urls))
	var (
		earliest      string
		earliestUntil time.Time
	)
	for _, u := range urls {
		key, err := hostKey(u)
		if err != nil {
			continue
		}
		if !t.frozenLocked(key) {
			usable = append(usable, u)
			continue
		}
		until := t.frozen[key]
		if earliest == "" || until.Before(earliestUntil) {
			earliest = u
			earliestUntil = until
		}
	}
	if len(usable) == 0 && earliest != "" {
		usable = append(usable, earliest)
	}
	return usable
}

// Persist writes the freeze table to the configured file.
func (t *HealthTable) Persist() error {
	if t.cfg.PersistPath == "" {
		return nil
	}

	t.mu.Lock()
	t.pruneLocked()
	snapshot := make(map[string]time.Time, len(t.frozen))
	for k, v := range t.frozen {
		snapshot[k] = v
	}
	t.lastPersist = time.Now()
	t.mu.Unlock()

	raw, err := json.Marshal(persistedTable{FrozenUntil: snapshot})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(t.cfg.PersistPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(t.cfg.PersistPath, raw, 0o644)
}

type persistedTable struct {
	FrozenUntil map[string]time.Time `json:"frozen_until"`
}

func (t *HealthTable) load() {
	raw, err := os.ReadFile(t.cfg.PersistPath)
	if err != nil {
		return
	}
	var persisted persistedTable
	if json.Unmarshal(raw, &persisted) != nil {
		return
	}

	now := time.Now()
	t.mu.Lock()
	for key, until := range persisted.FrozenUntil {
		if until.After(now) {
			t.frozen[key] = until
		}
	}
	t.mu.Unlock()
}

// persistIfDue opportunistically saves the table when the persist interval
// has elapsed. There is no background goroutine; persistence piggybacks on
// table mutations.
func (t *HealthTable) persistIfDue() {
	if t.cfg.PersistPath == "" || t.cfg.DisableAutoPersist {
		return
	}

	t.mu.Lock()
	due := time.Since(t.lastPersist) >= t.cfg.PersistInterval
	t.mu.Unlock()

	if due {
		_ = t.Persist()
	}
}

func (t *HealthTable) frozenLocked(key string) bool {
	until, ok := t.frozen[key]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(t.frozen, key)
		return false
	}
	return true
}

func (t *HealthTable) pruneLocked() {
	now := time.Now()
	for key, until := range t.frozen {
		if now.After(until) {
			delete(t.frozen, key)
		}
	}
}

// hostKey normalizes a URL to the host:port freeze key. The port defaults
// from the scheme so "http://h" and "http://h:80" share a key.
func hostKey(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return host + ":" + port, nil
}
