// Package config loads jchat configuration from an optional YAML file and
// environment variables, environment winning.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider selects the generation backend.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// Store backend: file (default), memory, surreal
	StoreBackend string
	DataDir      string

	// SurrealDB connection (store backend "surreal")
	SurrealURL       string
	SurrealNamespace string
	SurrealDatabase  string
	SurrealUser      string
	SurrealPass      string

	// Relay server
	ServerURL  string // client side
	ServerPort string // server side

	// LLM
	LLMProvider     Provider
	LLMModel        string
	GoogleAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	OllamaHost      string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig is the YAML shape of ~/.config/jchat/config.yaml. Every field
// is optional; env vars override whatever the file sets.
type fileConfig struct {
	Store     string `yaml:"store"`
	DataDir   string `yaml:"data_dir"`
	ServerURL string `yaml:"server_url"`
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
}

// Load reads configuration from the config file and environment variables.
func Load() Config {
	fc := loadFile()

	home, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(home, ".local", "share", "jchat")

	return Config{
		StoreBackend: getEnv("JCHAT_STORE", orDefault(fc.Store, "file")),
		DataDir:      getEnv("JCHAT_DATA_DIR", orDefault(fc.DataDir, defaultDataDir)),

		SurrealURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealNamespace: getEnv("SURREALDB_NAMESPACE", "jchat"),
		SurrealDatabase:  getEnv("SURREALDB_DATABASE", "chat"),
		SurrealUser:      getEnv("SURREALDB_USER", "root"),
		SurrealPass:      getEnv("SURREALDB_PASS", "root"),

		ServerURL:  getEnv("JCHAT_SERVER_URL", orDefault(fc.ServerURL, "http://localhost:8377")),
		ServerPort: getEnv("JCHAT_SERVER_PORT", "8377"),

		LLMProvider:     Provider(getEnv("JCHAT_LLM_PROVIDER", orDefault(fc.Provider, string(ProviderGoogle)))),
		LLMModel:        getEnv("JCHAT_LLM_MODEL", orDefault(fc.Model, "gemini-pro")),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),

		LogFile:  getEnv("JCHAT_LOG_FILE", orDefault(fc.LogFile, "/tmp/jchat.log")),
		LogLevel: parseLogLevel(getEnv("JCHAT_LOG_LEVEL", orDefault(fc.LogLevel, "INFO"))),
	}
}

// loadFile parses the optional config file; a missing or unreadable file
// yields the zero value.
func loadFile() fileConfig {
	var fc fileConfig

	path := os.Getenv("JCHAT_CONFIG")
	if path == "" {
		confDir, err := os.UserConfigDir()
		if err != nil {
			return fc
		}
		path = filepath.Join(confDir, "jchat", "config.yaml")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fc
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		slog.Warn("config file unparsable, ignoring", "path", path, "error", err)
		return fileConfig{}
	}
	return fc
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func orDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
