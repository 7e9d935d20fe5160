package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "socialmark"

	// DefaultListenAddr is where the capture server accepts events.
	// Loopback only: captured traffic includes browsing history.
	DefaultListenAddr = "127.0.0.1:8375"

	// DefaultConcurrency is the number of share invocations processed at once.
	DefaultConcurrency = 10

	// DefaultMaxBodySize bounds a single request body accepted by the
	// capture server or buffered by the proxy.
	DefaultMaxBodySize = 4 * 1024 * 1024 // 4MB

	// LogFormatText selects the human-readable slog text handler.
	LogFormatText = "text"

	// LogFormatJSON selects the slog JSON handler.
	LogFormatJSON = "json"
)

// Config holds all configuration options for socialmark.
// This struct is populated from the config file, the environment and CLI
// flags, and passed through the application rather than kept as global state.
//
// Design decision: We use a single flat struct instead of nested structs.
// The number of options is small and every field maps one-to-one onto a
// YAML key, an environment variable and a flag.
type Config struct {
	// ListenAddr is the capture server address in "host:port" format.
	// Empty disables the capture server.
	ListenAddr string

	// ProxyAddr is the forward proxy address in "host:port" format.
	// Empty disables the proxy.
	ProxyAddr string

	// UpstreamSOCKS5 routes proxied requests through a SOCKS5 server.
	// Empty means direct connections.
	UpstreamSOCKS5 string

	// DBDir is the directory holding places.db.
	// Defaults to the XDG data directory (~/.local/share/socialmark on Linux).
	DBDir string

	// Concurrency is the maximum number of share invocations in flight.
	Concurrency int

	// SerializeWrites serializes read-modify-write cycles per URL so that
	// concurrent shares of the same page are never lost.
	SerializeWrites bool

	// MaxBodySize is the maximum request body size in bytes.
	// Set to 0 to use the default (4MB).
	MaxBodySize int64

	// DumpRequests logs request-phase events with their decoded bodies at
	// debug level.
	DumpRequests bool

	// RecordFile, when set, appends every observed event to this JSON lines
	// file (gzip compressed when the name ends in .gz) for later replay.
	RecordFile string

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// LogFormat is "text" (default) or "json".
	LogFormat string

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of human-readable format.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for reports.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .socialmark in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// EnvFilePath is the dotenv file read before environment variables.
	// Defaults to ".env"; a missing file is not an error.
	EnvFilePath string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., concurrency,
// serialized writes). This also serves as documentation of what the
// defaults are.
func NewConfig() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		DBDir:           XDGDataDir(),
		Concurrency:     DefaultConcurrency,
		SerializeWrites: true,
		MaxBodySize:     DefaultMaxBodySize,
		LogFormat:       LogFormatText,
		EnvFilePath:     DefaultEnvFile,
	}
}

// XDGDataDir returns the XDG data directory for socialmark.
// On Linux: ~/.local/share/socialmark
// On macOS: ~/Library/Application Support/socialmark
// On Windows: %LOCALAPPDATA%\socialmark
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for socialmark.
// On Linux: ~/.config/socialmark
// On macOS: ~/Library/Application Support/socialmark
// On Windows: %APPDATA%\socialmark
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid for the watch command.
// It returns a specific error describing what is invalid.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if c.ListenAddr == "" && c.ProxyAddr == "" {
		return ErrNoEventSource
	}

	if err := c.ValidateStorage(); err != nil {
		return err
	}

	// Concurrency must be positive; zero would mean no invocation ever runs
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return c.ValidateOutput()
}

// ValidateStorage checks the options needed to open the database.
func (c *Config) ValidateStorage() error {
	if c.DBDir == "" {
		return ErrNoDBDir
	}
	return nil
}

// ValidateOutput checks the logging and report options shared by every command.
func (c *Config) ValidateOutput() error {
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	switch c.LogFormat {
	case "", LogFormatText, LogFormatJSON:
	default:
		return ErrInvalidLogFormat
	}

	return nil
}
