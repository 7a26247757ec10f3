// Package config resolves loopdj settings from defaults, an optional YAML
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/satindergrewal/loopdj/internal/playback"
)

// Output modes.
const (
	OutputSpeaker = "speaker"
	OutputStream  = "stream"
)

var (
	// ErrInvalidMaxRepeats is returned when max-repeats is not an integer
	// greater than playback.MinRepeats.
	ErrInvalidMaxRepeats = errors.New("invalid value for max-repeats, must be a whole number greater than 5")

	// ErrInvalidOutput is returned for output modes other than speaker and stream.
	ErrInvalidOutput = errors.New("invalid output, must be speaker or stream")

	// ErrInvalidFadeSeconds is returned when the fade-out tail is not positive.
	// Endless songs always fade out.
	ErrInvalidFadeSeconds = errors.New("fade seconds must be greater than 0")
)

// MQTT configures the now-playing publisher.
type MQTT struct {
	URL      string `yaml:"url"`
	Prefix   string `yaml:"prefix"`
	ClientID string `yaml:"client_id"`
}

// Postgres configures the playback history store. Connection parameters not
// in DSN come from the standard PG* environment variables.
type Postgres struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// Config holds all runtime configuration.
type Config struct {
	Version int `yaml:"version"`

	SongsDir   string `yaml:"songs_dir"`
	Override   string `yaml:"override"`
	MaxRepeats int    `yaml:"max_repeats"`
	DebugWait  bool   `yaml:"debug_wait_each_segment"`
	Watch      bool   `yaml:"watch"`

	Output      string   `yaml:"output"`
	Port        int      `yaml:"port"`
	ICEServers  []string `yaml:"ice_servers"`
	FadeSeconds int      `yaml:"fade_seconds"`

	LogLevel string `yaml:"log_level"`

	MQTT     MQTT     `yaml:"mqtt"`
	Postgres Postgres `yaml:"postgres"`
}

// FadeDuration returns the fade-out tail length for endless songs.
func (c Config) FadeDuration() time.Duration {
	return time.Duration(c.FadeSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Version:     1,
		SongsDir:    "./songs",
		MaxRepeats:  13,
		Output:      OutputSpeaker,
		Port:        8080,
		FadeSeconds: 8,
		LogLevel:    "info",
		MQTT:        MQTT{Prefix: "loopdj", ClientID: "loopdj"},
	}
}

// LoadFile overlays the YAML file at path onto cfg.
func LoadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg.Version = 0
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version: %d", cfg.Version)
	}
	return nil
}

// FlagSet declares the command-line surface. Values land in the returned flags.
func FlagSet() (*pflag.FlagSet, *Flags) {
	fs := pflag.NewFlagSet("loopdj", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Plays music loops for random durations in random order.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: loopdj [flags] [OVERRIDE]\n\n")
		fmt.Fprintf(os.Stderr, "OVERRIDE overrides song selection with this song.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	d := Default()
	f := &Flags{}
	fs.StringVarP(&f.SongsDir, "songs-dir", "s", d.SongsDir, "directory containing song segments and zips")
	fs.StringVar(&f.MaxRepeats, "max-repeats", strconv.Itoa(d.MaxRepeats), "sets the max number of loop repeats")
	fs.BoolVar(&f.DebugWait, "debug-wait-each-segment", false, "wait for each segment to finish before queueing the next and print segment names; causes small pauses")
	fs.StringVar(&f.Output, "output", d.Output, "audio output: speaker or stream")
	fs.IntVar(&f.Port, "port", d.Port, "HTTP port in stream mode")
	fs.BoolVar(&f.Watch, "watch", false, "rescan the songs directory when it changes")
	fs.StringVar(&f.ConfigFile, "config", "", "optional YAML config file")
	fs.StringVar(&f.LogLevel, "log-level", d.LogLevel, "log level: debug, info, warn, error")
	return fs, f
}

// Flags holds raw flag values before they are merged.
type Flags struct {
	SongsDir   string
	MaxRepeats string
	DebugWait  bool
	Output     string
	Port       int
	Watch      bool
	ConfigFile string
	LogLevel   string
}

// Load parses args (without the program name) and resolves the configuration.
// It returns pflag.ErrHelp when help was requested.
func Load(args []string) (Config, error) {
	fs, f := FlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 1 {
		return Config{}, fmt.Errorf("expected at most one song override, got %d", fs.NArg())
	}

	cfg := Default()
	if f.ConfigFile != "" {
		if err := LoadFile(f.ConfigFile, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if fs.Changed("songs-dir") {
		cfg.SongsDir = f.SongsDir
	}
	if fs.Changed("max-repeats") {
		n, err := parseMaxRepeats(f.MaxRepeats)
		if err != nil {
			return Config{}, err
		}
		cfg.MaxRepeats = n
	}
	if fs.Changed("debug-wait-each-segment") {
		cfg.DebugWait = f.DebugWait
	}
	if fs.Changed("output") {
		cfg.Output = f.Output
	}
	if fs.Changed("port") {
		cfg.Port = f.Port
	}
	if fs.Changed("watch") {
		cfg.Watch = f.Watch
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if fs.NArg() == 1 {
		cfg.Override = fs.Arg(0)
	}

	return cfg, cfg.Validate()
}

// Validate checks values that cannot be fixed up with a default.
func (c Config) Validate() error {
	if c.MaxRepeats <= playback.MinRepeats {
		return ErrInvalidMaxRepeats
	}
	switch c.Output {
	case OutputSpeaker, OutputStream:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOutput, c.Output)
	}
	if c.FadeSeconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidFadeSeconds, c.FadeSeconds)
	}
	return nil
}

func parseMaxRepeats(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= playback.MinRepeats {
		return 0, ErrInvalidMaxRepeats
	}
	return n, nil
}

func applyEnv(cfg *Config) error {
	cfg.SongsDir = envStr("LOOPDJ_SONGS_DIR", cfg.SongsDir)
	if v := os.Getenv("LOOPDJ_MAX_REPEATS"); v != "" {
		n, err := parseMaxRepeats(v)
		if err != nil {
			return err
		}
		cfg.MaxRepeats = n
	}
	cfg.Output = envStr("LOOPDJ_OUTPUT", cfg.Output)
	cfg.Port = envInt("LOOPDJ_PORT", cfg.Port)
	cfg.Watch = envBool("LOOPDJ_WATCH", cfg.Watch)
	cfg.LogLevel = envStr("LOOPDJ_LOG_LEVEL", cfg.LogLevel)
	cfg.FadeSeconds = envInt("LOOPDJ_FADE_SECONDS", cfg.FadeSeconds)
	cfg.MQTT.URL = envStr("MQTT_URL", cfg.MQTT.URL)
	if os.Getenv("PGHOST") != "" {
		cfg.Postgres.Enabled = true
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
