package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Snapshot is an immutable view of the runtime configuration. Components hold
// a *Store and take a fresh Snapshot per operation, so credential updates
// apply without a restart and no component mutates shared state.
type Snapshot struct {
	Port string

	GreenhouseAPIKey string
	GreenhouseUserID string // Harvest On-Behalf-Of user
	GreenhouseBase   string

	AnthropicAPIKey string
	AnthropicModel  string

	EmbedEndpoint string
	EmbedAPIKey   string
	EmbedModel    string

	DataDir string

	RedisAddr string // host:port or redis:// URL; empty runs without Redis

	ATSPageDelay time.Duration // inter-page delay for full-collection fetches
}

type Store struct {
	mu   sync.RWMutex
	v    *viper.Viper
	snap Snapshot
	path string
}

// Load reads .env (if present), then the JSON settings file, then environment
// overrides. The settings file wins over env so keys saved from the UI stick.
func Load(path string) (*Store, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("port", envOr("PORT", "8080"))
	v.SetDefault("greenhouse.api_key", os.Getenv("GREENHOUSE_API_KEY"))
	v.SetDefault("greenhouse.user_id", os.Getenv("GREENHOUSE_USER_ID"))
	v.SetDefault("greenhouse.base_url", envOr("GREENHOUSE_BASE_URL", "https://harvest.greenhouse.io/v1"))
	v.SetDefault("anthropic.api_key", os.Getenv("ANTHROPIC_API_KEY"))
	v.SetDefault("anthropic.model", envOr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"))
	v.SetDefault("embeddings.endpoint", envOr("EMBED_ENDPOINT", "https://api.openai.com/v1/embeddings"))
	v.SetDefault("embeddings.api_key", os.Getenv("OPENAI_API_KEY"))
	v.SetDefault("embeddings.model", envOr("EMBED_MODEL", "text-embedding-3-small"))
	v.SetDefault("data_dir", envOr("DATA_DIR", "data"))
	v.SetDefault("redis.addr", os.Getenv("REDIS_ADDR"))
	v.SetDefault("ats_page_delay_ms", 500)

	if err := v.ReadInConfig(); err != nil {
		// A missing settings file is fine; keys can be supplied later at runtime.
		if _, ok := err.(*os.PathError); !ok {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, err
			}
		}
	}

	s := &Store{v: v, path: path}
	s.snap = s.buildSnapshot()
	return s, nil
}

func (s *Store) buildSnapshot() Snapshot {
	return Snapshot{
		Port:             s.v.GetString("port"),
		GreenhouseAPIKey: s.v.GetString("greenhouse.api_key"),
		GreenhouseUserID: s.v.GetString("greenhouse.user_id"),
		GreenhouseBase:   s.v.GetString("greenhouse.base_url"),
		AnthropicAPIKey:  s.v.GetString("anthropic.api_key"),
		AnthropicModel:   s.v.GetString("anthropic.model"),
		EmbedEndpoint:    s.v.GetString("embeddings.endpoint"),
		EmbedAPIKey:      s.v.GetString("embeddings.api_key"),
		EmbedModel:       s.v.GetString("embeddings.model"),
		DataDir:          s.v.GetString("data_dir"),
		RedisAddr:        s.v.GetString("redis.addr"),
		ATSPageDelay:     time.Duration(s.v.GetInt("ats_page_delay_ms")) * time.Millisecond,
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Update sets the given keys, persists the settings file, and swaps in a new
// snapshot. Returns the snapshot now in effect.
func (s *Store) Update(kv map[string]string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, val := range kv {
		s.v.Set(k, val)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return s.snap, err
		}
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return s.snap, err
	}
	s.snap = s.buildSnapshot()
	return s.snap, nil
}

// Redacted returns the settings safe to show in the UI: secret values are
// replaced by a set/unset marker.
func (s *Store) Redacted() map[string]any {
	snap := s.Snapshot()
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "(set)"
	}
	return map[string]any{
		"greenhouse.api_key":  mask(snap.GreenhouseAPIKey),
		"greenhouse.user_id":  snap.GreenhouseUserID,
		"greenhouse.base_url": snap.GreenhouseBase,
		"anthropic.api_key":   mask(snap.AnthropicAPIKey),
		"anthropic.model":     snap.AnthropicModel,
		"embeddings.endpoint": snap.EmbedEndpoint,
		"embeddings.api_key":  mask(snap.EmbedAPIKey),
		"embeddings.model":    snap.EmbedModel,
		"data_dir":            snap.DataDir,
		"redis.addr":          snap.RedisAddr,
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
