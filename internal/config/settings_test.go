package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
)

var envKeys = []string{
	"LISTSORTER_STORE", "LISTSORTER_DB", "LISTSORTER_BLOB_URL", "LISTSORTER_BLOB_PREFIX",
	"LISTSORTER_OWNER", "LISTSORTER_TIERS_FILE", "LOG_LEVEL", "LOG_FORMAT",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "TIKTOKEN_ENCODING",
	"LLM_TOKEN_LIMIT", "LLM_MAX_ATTEMPTS", "LISTSORTER_SCREEN_LOG",
}

// clearEnv empties every variable Load reads; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Setenv("LISTSORTER_OWNER", "tester")
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), ".env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Store.Backend != "sqlite" || !strings.HasSuffix(s.Store.DBPath, "lists.db") {
		t.Errorf("store = %+v", s.Store)
	}
	if s.Owner != "tester" {
		t.Errorf("owner = %q", s.Owner)
	}
	if s.Log.Level != "info" || s.Log.Format != "text" {
		t.Errorf("log = %+v", s.Log)
	}
	if s.LLM.Model != "gpt-4o-mini" || s.LLM.Encoding != "o200k_base" || s.LLM.TokenLimit != 128000 || s.LLM.MaxAttempts != 3 {
		t.Errorf("llm = %+v", s.LLM)
	}
	if !slices.Equal(s.Tiers.Labels, []string{"S", "A", "B", "C", "D", "F"}) {
		t.Errorf("tiers = %+v", s.Tiers)
	}
	if s.ScreenLog != "listsorter.log" {
		t.Errorf("screen log = %q", s.ScreenLog)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("LISTSORTER_STORE", "BLOB")
	t.Setenv("LISTSORTER_BLOB_URL", "mem://")
	t.Setenv("LISTSORTER_BLOB_PREFIX", "team")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8000/v1")
	t.Setenv("LLM_TOKEN_LIMIT", "4096")
	t.Setenv("LISTSORTER_SCREEN_LOG", "/tmp/sorter-screen.log")

	s, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Store.Backend != "blob" || s.Store.BlobURL != "mem://" || s.Store.Prefix != "team" {
		t.Errorf("store = %+v", s.Store)
	}
	if s.Log.Format != "json" {
		t.Errorf("log = %+v", s.Log)
	}
	if s.LLM.BaseURL != "http://localhost:8000/v1" || s.LLM.TokenLimit != 4096 {
		t.Errorf("llm = %+v", s.LLM)
	}
	if s.ScreenLog != "/tmp/sorter-screen.log" {
		t.Errorf("screen log = %q", s.ScreenLog)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"bad int":          {"LLM_TOKEN_LIMIT": "lots"},
		"zero attempts":    {"LLM_MAX_ATTEMPTS": "0"},
		"unknown backend":  {"LISTSORTER_STORE": "postgres"},
		"blob without url": {"LISTSORTER_STORE": "blob"},
		"bad log format":   {"LOG_FORMAT": "xml"},
		"missing tiers":    {"LISTSORTER_TIERS_FILE": "/does/not/exist.yaml"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(noEnvFile(t)); err == nil {
				t.Error("expected an error")
			}
		})
	}

	clearEnv(t)
	t.Setenv("LLM_TOKEN_LIMIT", "lots")
	_, err := Load(noEnvFile(t))
	if !errors.Is(err, strconv.ErrSyntax) || !strings.Contains(err.Error(), "LLM_TOKEN_LIMIT") {
		t.Errorf("error = %v", err)
	}
}

func TestLoadTiersFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "tiers.yaml")
	if err := os.WriteFile(path, []byte("labels: [Keep, Maybe, Drop]\nweights: [30, 40, 30]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LISTSORTER_TIERS_FILE", path)

	s, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !slices.Equal(s.Tiers.Labels, []string{"Keep", "Maybe", "Drop"}) {
		t.Errorf("labels = %v", s.Tiers.Labels)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("LISTSORTER_OWNER")
	os.Unsetenv("LISTSORTER_STORE")
	t.Setenv("OPENAI_MODEL", "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	content := "LISTSORTER_OWNER=from-dotenv\nLISTSORTER_STORE=sqlite\nOPENAI_MODEL=from-dotenv\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Owner != "from-dotenv" {
		t.Errorf("owner = %q", s.Owner)
	}
	if s.LLM.Model != "from-env" {
		t.Errorf("environment should win over .env, model = %q", s.LLM.Model)
	}
}
