package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/language"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Table  TableConfig       `yaml:"table"`
	Seed   SeedConfig        `yaml:"seed"`
	Upload UploadConfig      `yaml:"upload"`
	Events EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Table.Validate(); err != nil {
		return err
	}
	if err := c.Upload.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// TableConfig controls the knowledge base table.
type TableConfig struct {
	PageSize int    `yaml:"page_size"`
	Locale   string `yaml:"locale"`
}

// Validate validates the table configuration.
func (c *TableConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.Locale, validation.Required, validation.By(func(any) error {
			_, err := language.Parse(c.Locale)
			return err
		})),
	)
}

// Tag returns the parsed collation locale.
func (c *TableConfig) Tag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// SeedConfig points at an optional seed file. Empty uses the built-in records.
type SeedConfig struct {
	Path string `yaml:"path"`
}

// UploadConfig controls the simulated upload speed and size cap.
type UploadConfig struct {
	Tick     time.Duration `yaml:"tick"`
	Step     int           `yaml:"step"`
	MaxBytes int64         `yaml:"max_bytes"`
}

// Validate validates the upload configuration.
func (c *UploadConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Tick, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Step, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1))),
	)
}

// EventsConfig controls the SSE stream.
type EventsConfig struct {
	ProgressThrottle time.Duration `yaml:"progress_throttle"`
	KeepAlive        time.Duration `yaml:"keep_alive"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ProgressThrottle, validation.Min(time.Duration(0))),
		validation.Field(&c.KeepAlive, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Table: TableConfig{
			PageSize: 3,
			Locale:   "en",
		},
		Upload: UploadConfig{
			Tick:     300 * time.Millisecond,
			Step:     10,
			MaxBytes: 50 << 20,
		},
		Events: EventsConfig{
			ProgressThrottle: 250 * time.Millisecond,
			KeepAlive:        15 * time.Second,
		},
	}
}
