package config

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// KnownKeys defines environment variable keys that labmatch recognizes.
var KnownKeys = []string{
	"LABMATCH_SERVER_URL",
	"LABMATCH_SQLITE_PATH",
	"LABMATCH_PG_DSN",
	"LABMATCH_OPENAI_BASE_URL",
	"LABMATCH_OPENAI_API_KEY",
	"LABMATCH_CHAT_MODEL",
	"LABMATCH_EMBEDDING_MODEL",
	"LABMATCH_EMBEDDING_DIM",
	"LABMATCH_LLM_MIN_INTERVAL_MS",
	"LABMATCH_JWT_SECRET",
	"LABMATCH_UPLOAD_DIR",
	"LABMATCH_SCRAPE_START_URL",
	"LABMATCH_RATE_LIMIT_RPS",
	"LABMATCH_RATE_LIMIT_GLOBAL_RPS",
	"LABMATCH_RATE_LIMIT_PATH_RPS",
	"LABMATCH_RATE_LIMIT_IP_RPS",
	"LABMATCH_METRICS_SAMPLE_RATE",
	"LABMATCH_LOG_LEVEL",
}

// Config is the explicit, immutable configuration value handed to components
// at construction time. Values come from the environment after LoadAndApply.
type Config struct {
	SQLitePath     string
	PostgresDSN    string
	OpenAIBaseURL  string
	OpenAIAPIKey   string
	ChatModel      string
	EmbeddingModel string
	EmbeddingDim   int
	JWTSecret      string
	UploadDir      string
	ScrapeStartURL string
}

// FromEnv snapshots the known keys into a Config with defaults applied.
func FromEnv() Config {
	dim := 3072
	if v := os.Getenv("LABMATCH_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			dim = n
		}
	}
	cfg := Config{
		SQLitePath:     os.Getenv("LABMATCH_SQLITE_PATH"),
		PostgresDSN:    os.Getenv("LABMATCH_PG_DSN"),
		OpenAIBaseURL:  os.Getenv("LABMATCH_OPENAI_BASE_URL"),
		OpenAIAPIKey:   os.Getenv("LABMATCH_OPENAI_API_KEY"),
		ChatModel:      os.Getenv("LABMATCH_CHAT_MODEL"),
		EmbeddingModel: os.Getenv("LABMATCH_EMBEDDING_MODEL"),
		EmbeddingDim:   dim,
		JWTSecret:      os.Getenv("LABMATCH_JWT_SECRET"),
		UploadDir:      os.Getenv("LABMATCH_UPLOAD_DIR"),
		ScrapeStartURL: os.Getenv("LABMATCH_SCRAPE_START_URL"),
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-large"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads/resumes"
	}
	return cfg
}

// LoadAndApply loads configuration from ~/.labmatch/config.yaml (or
// .yml/.json) and applies values into the process environment for known keys
// if they are not already set. Environment variables take precedence over
// file values.
func LoadAndApply() error {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil // non-fatal
	}
	base := filepath.Join(home, ".labmatch")
	paths := []string{
		filepath.Join(base, "config.yaml"),
		filepath.Join(base, "config.yml"),
		filepath.Join(base, "config.json"),
	}
	var data map[string]any
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if strings.HasSuffix(p, ".json") {
			if m, err := parseJSON(b); err == nil {
				data = m
				break
			}
		} else {
			if m, err := parseYAMLShallow(string(b)); err == nil {
				data = m
				break
			}
		}
	}
	if len(data) == 0 {
		return nil
	}
	for _, key := range KnownKeys {
		if os.Getenv(key) != "" {
			continue
		}
		if v, ok := lookupInsensitive(data, key); ok {
			os.Setenv(key, toString(v))
		}
	}
	return nil
}

func parseJSON(b []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// parseYAMLShallow parses very shallow YAML with top-level key: value pairs.
// It ignores nested objects/arrays and comments. Values can be quoted
// strings, booleans, or numbers; everything else is treated as string.
func parseYAMLShallow(s string) (map[string]any, error) {
	m := make(map[string]any)
	rd := bufio.NewScanner(strings.NewReader(s))
	for rd.Scan() {
		line := strings.TrimSpace(rd.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// skip indented (nested) lines
		if strings.HasPrefix(rd.Text(), " ") || strings.HasPrefix(rd.Text(), "\t") {
			continue
		}
		i := strings.IndexRune(line, ':')
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		if j := strings.Index(val, " #"); j >= 0 {
			val = strings.TrimSpace(val[:j])
		}
		if (strings.HasPrefix(val, "\"") && strings.HasSuffix(val, "\"")) ||
			(strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'")) {
			val = strings.TrimSuffix(strings.TrimPrefix(val, string(val[0])), string(val[len(val)-1]))
		}
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			m[key] = b
			continue
		}
		if n, err := strconv.ParseFloat(val, 64); err == nil {
			m[key] = n
			continue
		}
		m[key] = val
	}
	if err := rd.Err(); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, errors.New("empty or unsupported YAML")
	}
	return m, nil
}

func lookupInsensitive(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// avoid trailing .0 for integer-like values
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
