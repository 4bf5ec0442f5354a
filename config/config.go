package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultPort           = "8080"
	defaultMaxBodyBytes   = 512 << 20
	defaultStorePath      = "./.corescout/corescout.db"
	defaultKVDBPath       = "./.corescout/runs.db"
	defaultStagingPath    = "./.corescout/staging"
	defaultSnippetContext = 60
	defaultHighlightPre   = "<mark>"
	defaultHighlightPost  = "</mark>"
	defaultSearchLimit    = 50
	defaultMaxSearchLimit = 10000
	defaultMaxExportLimit = 50000
	defaultLogLevel       = "info"
)

var defaultFileTypes = []string{"pdf", "txt", "kml", "kmz", "doc", "docx", "xlsx", "xls", "pptx", "ppt"}

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	setDefaults(viperConfig)
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.max_body_bytes", defaultMaxBodyBytes)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("database.store_path", defaultStorePath)
	v.SetDefault("database.kvdb_path", defaultKVDBPath)
	v.SetDefault("storage.staging_path", defaultStagingPath)
	v.SetDefault("ingest.workers", 0)
	v.SetDefault("ingest.default_file_types", defaultFileTypes)
	v.SetDefault("search.snippet_context", defaultSnippetContext)
	v.SetDefault("search.highlight_pre", defaultHighlightPre)
	v.SetDefault("search.highlight_post", defaultHighlightPost)
	v.SetDefault("search.default_limit", defaultSearchLimit)
	v.SetDefault("search.max_limit", defaultMaxSearchLimit)
	v.SetDefault("export.max_limit", defaultMaxExportLimit)
	v.SetDefault("log.level", defaultLogLevel)
}

func (c *Config) validate() error {
	if c.GetSnippetContext() <= 0 {
		return fmt.Errorf("search.snippet_context must be positive, got %d", c.GetSnippetContext())
	}
	if c.GetDefaultSearchLimit() <= 0 || c.GetMaxSearchLimit() < c.GetDefaultSearchLimit() {
		return fmt.Errorf("search limits are inconsistent: default %d, max %d", c.GetDefaultSearchLimit(), c.GetMaxSearchLimit())
	}
	if c.GetMaxExportLimit() <= 0 {
		return fmt.Errorf("export.max_limit must be positive, got %d", c.GetMaxExportLimit())
	}
	return nil
}

// Set overrides a single key. Used by tests and CLI flags.
func (c *Config) Set(key string, value any) {
	c.config.Set(key, value)
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}

	return port
}

// GetMaxBodyBytes bounds request bodies; uploads carry whole files.
func (c *Config) GetMaxBodyBytes() int64 {
	return c.config.GetInt64("server.max_body_bytes")
}

func (c *Config) GetAllowedOrigins() []string {
	return c.config.GetStringSlice("server.allowed_origins")
}

func (c *Config) GetStorePath() string {
	storePath := c.config.GetString("STORE_PATH")
	if len(storePath) == 0 {
		storePath = c.config.GetString("database.store_path")
	}

	return storePath
}

func (c *Config) GetKVDBPath() string {
	kvdbPath := c.config.GetString("KVDB_PATH")
	if len(kvdbPath) == 0 {
		kvdbPath = c.config.GetString("database.kvdb_path")
	}

	return kvdbPath
}

func (c *Config) GetStagingPath() string {
	stagingPath := c.config.GetString("STAGING_PATH")
	if len(stagingPath) == 0 {
		stagingPath = c.config.GetString("storage.staging_path")
	}

	return stagingPath
}

// GetIngestWorkers returns the number of parallel extraction workers; 0 means
// one per CPU.
func (c *Config) GetIngestWorkers() int {
	return c.config.GetInt("ingest.workers")
}

func (c *Config) GetDefaultFileTypes() []string {
	fileTypes := c.config.GetStringSlice("ingest.default_file_types")
	normalized := make([]string, 0, len(fileTypes))
	for _, fileType := range fileTypes {
		fileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))
		if fileType != "" {
			normalized = append(normalized, fileType)
		}
	}
	return normalized
}

func (c *Config) GetSnippetContext() int {
	return c.config.GetInt("search.snippet_context")
}

func (c *Config) GetHighlightMarkers() (string, string) {
	return c.config.GetString("search.highlight_pre"), c.config.GetString("search.highlight_post")
}

func (c *Config) GetDefaultSearchLimit() int {
	return c.config.GetInt("search.default_limit")
}

func (c *Config) GetMaxSearchLimit() int {
	return c.config.GetInt("search.max_limit")
}

func (c *Config) GetMaxExportLimit() int {
	return c.config.GetInt("export.max_limit")
}

func (c *Config) GetLogLevel() string {
	level := c.config.GetString("LOG_LEVEL")
	if len(level) == 0 {
		level = c.config.GetString("log.level")
	}

	return level
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
