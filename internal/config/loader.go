package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the default configuration file name.
	DefaultConfigFile = ".socialmark"

	// DefaultEnvFile is the dotenv file read from the current directory.
	DefaultEnvFile = ".env"

	// EnvPrefix prefixes every environment variable socialmark reads.
	EnvPrefix = "SOCIALMARK_"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .socialmark in the current directory
// 3. Look for .socialmark in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// LoadEnv returns the SOCIALMARK_* variables from the dotenv file at path
// overlaid with the process environment. Process variables win, matching
// godotenv.Load which never overrides a variable that is already set.
// A missing dotenv file is not an error.
func LoadEnv(path string) (map[string]string, error) {
	env := make(map[string]string)

	if path != "" {
		fileEnv, err := godotenv.Read(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range fileEnv {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	return env, nil
}

// ApplyEnv copies SOCIALMARK_* values onto the configuration.
// Unknown variables are ignored; malformed numbers and booleans return
// ErrInvalidEnvValue naming the variable.
func (c *Config) ApplyEnv(env map[string]string) error {
	strs := map[string]*string{
		"LISTEN_ADDR":     &c.ListenAddr,
		"PROXY_ADDR":      &c.ProxyAddr,
		"UPSTREAM_SOCKS5": &c.UpstreamSOCKS5,
		"DB_DIR":          &c.DBDir,
		"RECORD_FILE":     &c.RecordFile,
		"LOG_FORMAT":      &c.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := env[EnvPrefix+name]; ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"SERIALIZE_WRITES": &c.SerializeWrites,
		"DUMP_REQUESTS":    &c.DumpRequests,
		"VERBOSE":          &c.Verbose,
	}
	for name, dst := range bools {
		v, ok := env[EnvPrefix+name]
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrInvalidEnvValue, EnvPrefix, name, v)
		}
		*dst = b
	}

	if v, ok := env[EnvPrefix+"CONCURRENCY"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sCONCURRENCY=%q", ErrInvalidEnvValue, EnvPrefix, v)
		}
		c.Concurrency = n
	}

	if v, ok := env[EnvPrefix+"MAX_BODY_SIZE"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %sMAX_BODY_SIZE=%q", ErrInvalidEnvValue, EnvPrefix, v)
		}
		c.MaxBodySize = n
	}

	return nil
}

// Load builds the configuration from defaults, the config file and the
// environment. CLI flags are applied afterwards by the caller.
// An explicitly given config path that does not exist is an error; a
// missing default config file is not.
func Load(configPath, envPath string) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFilePath = configPath
	if envPath != "" {
		cfg.EnvFilePath = envPath
	}

	path := FindConfigFile(configPath)
	if path == "" && configPath != "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		file, err := LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.Apply(cfg)
		cfg.ConfigFilePath = path
	}

	env, err := LoadEnv(cfg.EnvFilePath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}

	return cfg, nil
}
