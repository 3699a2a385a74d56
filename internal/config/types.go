package config

// ServerConfig contains DNS server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`            // Listen address for UDP and TCP
	Port           int    `yaml:"port"`            // One port serves both transports
	EnableTCP      bool   `yaml:"enable_tcp"`      // Serve DNS over TCP as well
	MaxConcurrency int    `yaml:"max_concurrency"` // Concurrent handler cap, 0 = server default
	QueryTimeout   string `yaml:"query_timeout"`   // Per-query budget (e.g. "2s")
}

// ScenariosConfig selects which fixture is served and where fixtures come from.
type ScenariosConfig struct {
	// Dir overrides the embedded catalog with fixture files on disk.
	Dir string `yaml:"dir"`
	// Initial is the scenario activated at startup.
	Initial string `yaml:"initial"`
}

// HarnessConfig contains management API settings.
//
// Note: APIKey is intentionally treated as a secret and should not be
// returned by API endpoints.
type HarnessConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	APIKey  string `yaml:"api_key"`
}

// ResultsConfig controls where runs and verdicts are persisted.
type ResultsConfig struct {
	Path string `yaml:"path"` // SQLite database file
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `yaml:"level"`
	Structured       bool              `yaml:"structured"`
	StructuredFormat string            `yaml:"structured_format"`
	IncludePID       bool              `yaml:"include_pid"`
	ExtraFields      map[string]string `yaml:"extra_fields"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scenarios ScenariosConfig `yaml:"scenarios"`
	Harness   HarnessConfig   `yaml:"harness"`
	Results   ResultsConfig   `yaml:"results"`
	Logging   LoggingConfig   `yaml:"logging"`
}
