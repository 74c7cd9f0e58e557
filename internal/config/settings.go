// Package config loads listsorter settings from the environment.
//
// A .env file in the working directory is read first; variables already set
// in the environment win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/GenericOctopus/ListSorter/internal/logging"
	"github.com/GenericOctopus/ListSorter/pkg/lists"
	"github.com/GenericOctopus/ListSorter/pkg/tiers"
)

type Settings struct {
	Store lists.StoreConfig
	Owner string
	Log   logging.Config
	LLM   LLMConfig
	Tiers tiers.Scheme

	// ScreenLog receives log output while the full-screen view owns the
	// terminal.
	ScreenLog string
}

type LLMConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Encoding    string
	TokenLimit  int
	MaxAttempts int
}

// Load reads the .env files (default ".env"), then the environment.
func Load(envFiles ...string) (Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	tokenLimit, err := getEnvInt("LLM_TOKEN_LIMIT", 128000)
	if err != nil {
		return Settings{}, err
	}
	maxAttempts, err := getEnvInt("LLM_MAX_ATTEMPTS", 3)
	if err != nil {
		return Settings{}, err
	}

	scheme := tiers.DefaultScheme()
	if path := os.Getenv("LISTSORTER_TIERS_FILE"); path != "" {
		if scheme, err = tiers.LoadScheme(path); err != nil {
			return Settings{}, err
		}
	}

	s := Settings{
		Store: lists.StoreConfig{
			Backend: strings.ToLower(getEnvDefault("LISTSORTER_STORE", "sqlite")),
			DBPath:  getEnvDefault("LISTSORTER_DB", defaultDBPath()),
			BlobURL: os.Getenv("LISTSORTER_BLOB_URL"),
			Prefix:  os.Getenv("LISTSORTER_BLOB_PREFIX"),
		},
		Owner: getEnvDefault("LISTSORTER_OWNER", defaultOwner()),
		Log: logging.Config{
			Level:  getEnvDefault("LOG_LEVEL", "info"),
			Format: getEnvDefault("LOG_FORMAT", "text"),
		},
		LLM: LLMConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:     os.Getenv("OPENAI_BASE_URL"),
			Encoding:    getEnvDefault("TIKTOKEN_ENCODING", "o200k_base"),
			TokenLimit:  tokenLimit,
			MaxAttempts: maxAttempts,
		},
		Tiers:     scheme,
		ScreenLog: getEnvDefault("LISTSORTER_SCREEN_LOG", "listsorter.log"),
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	switch s.Store.Backend {
	case "sqlite":
		if s.Store.DBPath == "" {
			return fmt.Errorf("LISTSORTER_DB cannot be empty")
		}
	case "blob":
		if s.Store.BlobURL == "" {
			return fmt.Errorf("LISTSORTER_BLOB_URL is required with the blob store")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want sqlite or blob)", s.Store.Backend)
	}
	if s.Owner == "" {
		return fmt.Errorf("LISTSORTER_OWNER cannot be empty")
	}
	switch strings.ToLower(s.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", s.Log.Format)
	}
	if s.LLM.TokenLimit <= 0 {
		return fmt.Errorf("LLM_TOKEN_LIMIT must be greater than 0")
	}
	if s.LLM.MaxAttempts <= 0 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be greater than 0")
	}
	return s.Tiers.Validate()
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "lists.db"
	}
	return filepath.Join(dir, "listsorter", "lists.db")
}

func defaultOwner() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}

func getEnvDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}
