// Package config loads settings for the ranking binaries from flags with
// environment fallbacks.
package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Client configures the ranking CLI.
type Client struct {
	APIURL           string
	Namespace        string
	SessionNamespace string
	Privileged       bool
	StoreBackend     string
	StateFile        string
	RedisURL         string
	RedisPrefix      string
	EventsChannel    string
	Locale           string
	HTTPTimeout      time.Duration
	Debug            bool
}

// ParseClient parses the global CLI flags and returns the remaining
// arguments (the subcommand and its flags).
func ParseClient(args []string) (Client, []string, error) {
	cfg := Client{
		APIURL:           getenv("API_URL", "http://localhost:3333"),
		Namespace:        getenv("RANKING_NAMESPACE", "musicas"),
		SessionNamespace: getenv("SESSION_NAMESPACE", "rankings"),
		Privileged:       getenvBool("RANKING_PRIVILEGED", true),
		StoreBackend:     getenv("STORE_BACKEND", BackendFile),
		StateFile:        getenv("STATE_FILE", defaultStateFile()),
		RedisURL:         getenv("REDIS_URL", ""),
		RedisPrefix:      getenv("REDIS_PREFIX", "ranking:"),
		EventsChannel:    getenv("EVENTS_CHANNEL", ""),
		Locale:           getenv("RANKING_LOCALE", "pt-BR"),
		HTTPTimeout:      time.Duration(getenvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		Debug:            strings.EqualFold(getenv("LOG_LEVEL", ""), "debug"),
	}

	fs := flag.NewFlagSet("ranking", flag.ContinueOnError)
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "Ranking API base URL")
	fs.StringVar(&cfg.Namespace, "n", cfg.Namespace, "Ranking namespace, e.g. musicas or louvores")
	fs.StringVar(&cfg.SessionNamespace, "session-ns", cfg.SessionNamespace, "Prefix of the stored session key")
	fs.BoolVar(&cfg.Privileged, "privileged", cfg.Privileged, "Allow edit and delete on this ranking")
	fs.StringVar(&cfg.StoreBackend, "store", cfg.StoreBackend, "Client state backend: memory, file or redis")
	fs.StringVar(&cfg.StateFile, "state", cfg.StateFile, "State file for the file backend")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL for the redis backend and event publishing")
	fs.StringVar(&cfg.EventsChannel, "events", cfg.EventsChannel, "Redis channel to publish ranking events on (empty disables)")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Collation locale for tie-breaks")
	fs.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout, 0 for none")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return Client{}, nil, err
	}
	if err := cfg.validate(); err != nil {
		return Client{}, nil, err
	}
	return cfg, fs.Args(), nil
}

func (c Client) validate() error {
	if c.APIURL == "" {
		return errors.New("API URL required (use -api or API_URL env)")
	}
	if c.Namespace == "" {
		return errors.New("ranking namespace required (use -n or RANKING_NAMESPACE env)")
	}
	if strings.Contains(c.Namespace, "/") {
		return errors.New("ranking namespace must not contain '/'")
	}
	switch c.StoreBackend {
	case BackendMemory:
	case BackendFile:
		if c.StateFile == "" {
			return errors.New("state file required for the file backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL required for the redis backend")
		}
	default:
		return errors.New("invalid store backend " + strconv.Quote(c.StoreBackend))
	}
	if c.EventsChannel != "" && c.RedisURL == "" {
		return errors.New("REDIS_URL required to publish events")
	}
	if c.HTTPTimeout < 0 {
		return errors.New("timeout must not be negative")
	}
	return nil
}

// MockAPI configures the mock ranking API server.
type MockAPI struct {
	Port           string
	JWTSecret      []byte
	AccessTTL      time.Duration
	Namespaces     []string
	EditorEmail    string
	EditorPassword string
	ViewerEmail    string
	ViewerPassword string
	RedisURL       string
	Seed           bool
	Debug          bool
}

func LoadMockAPI() (MockAPI, error) {
	cfg := MockAPI{
		Port:           getenv("PORT", "3333"),
		JWTSecret:      []byte(getenv("JWT_SECRET", "")),
		AccessTTL:      time.Duration(getenvInt("ACCESS_TTL_SECONDS", 3600)) * time.Second,
		Namespaces:     splitList(getenv("RANKING_NAMESPACES", "musicas,louvores")),
		EditorEmail:    getenv("EDITOR_EMAIL", "editor@example.com"),
		EditorPassword: getenv("EDITOR_PASSWORD", ""),
		ViewerEmail:    getenv("VIEWER_EMAIL", "viewer@example.com"),
		ViewerPassword: getenv("VIEWER_PASSWORD", ""),
		RedisURL:       getenv("REDIS_URL", ""),
		Seed:           getenvBool("SEED", true),
		Debug:          strings.EqualFold(getenv("LOG_LEVEL", ""), "debug"),
	}
	if len(cfg.JWTSecret) == 0 {
		return MockAPI{}, errors.New("mock-api: JWT_SECRET is empty, cannot sign access tokens")
	}
	if len(cfg.Namespaces) == 0 {
		return MockAPI{}, errors.New("mock-api: RANKING_NAMESPACES is empty")
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return MockAPI{}, errors.New("mock-api: invalid PORT " + strconv.Quote(cfg.Port))
	}
	return cfg, nil
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ranking-state.json"
	}
	return filepath.Join(dir, "ranking", "state.json")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
