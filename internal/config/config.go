// Package config loads handrelay settings. Values are layered: built-in defaults, then
// an optional TOML file, then HANDRELAY_* environment variables, then command-line
// flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/handrelay/internal/capture"
	"github.com/ayusman/handrelay/internal/detector"
	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/relay"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "HANDRELAY_"

// Config holds all settings.
type Config struct {
	DataDir   string          `toml:"data_dir"`
	Camera    CameraConfig    `toml:"camera"`
	Detector  DetectorConfig  `toml:"detector"`
	Serial    SerialConfig    `toml:"serial"`
	Recording RecordingConfig `toml:"recording"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
}

// CameraConfig selects the capture device and its frame size and rate.
type CameraConfig struct {
	Device int  `toml:"device"`
	FPS    int  `toml:"fps"`
	Width  int  `toml:"width"`
	Height int  `toml:"height"`
	Mirror bool `toml:"mirror"`
}

// DetectorConfig holds the MediaPipe hand tracking thresholds.
type DetectorConfig struct {
	MaxHands              int     `toml:"max_hands"`
	MinConfidence         float64 `toml:"min_confidence"`
	MinTrackingConfidence float64 `toml:"min_tracking_confidence"`
}

// SerialConfig configures the relay. An empty Port disables it.
type SerialConfig struct {
	Port     string   `toml:"port"`
	Baud     int      `toml:"baud"`
	Interval Duration `toml:"interval"`
	Landmark int      `toml:"landmark"`
	Width    int      `toml:"width"`
	Height   int      `toml:"height"`
}

// RecordingConfig controls where recordings are written and how they are tagged.
type RecordingConfig struct {
	// Dir defaults to <data_dir>/recordings.
	Dir        string `toml:"dir"`
	DefaultFPS int    `toml:"default_fps"`
	ActionName string `toml:"action_name"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a Go duration string ("50ms") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings.
func Default() *Config {
	cam := capture.DefaultConfig()
	det := detector.DefaultConfig()
	enc := relay.DefaultEncoder()

	return &Config{
		DataDir: defaultDataDir(),
		Camera: CameraConfig{
			Device: cam.DeviceID,
			FPS:    cam.FPS,
			Width:  cam.Width,
			Height: cam.Height,
			Mirror: cam.Mirror,
		},
		Detector: DetectorConfig{
			MaxHands:              det.MaxHands,
			MinConfidence:         det.MinConfidence,
			MinTrackingConfidence: det.MinTrackingConf,
		},
		Serial: SerialConfig{
			Baud:     relay.DefaultBaud,
			Interval: Duration{relay.DefaultInterval},
			Landmark: enc.Index,
			Width:    enc.Width,
			Height:   enc.Height,
		},
		Recording: RecordingConfig{
			DefaultFPS: capture.DefaultFPS,
			ActionName: "action",
		},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handrelay"
	}
	return filepath.Join(home, ".handrelay")
}

// DefaultPath is where Parse looks for a config file when -config is not given.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

// LoadFile merges the TOML file at path into c. Keys absent from the file keep their
// current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides c with the HANDRELAY_* variables found through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		*dst = getEnvOrDefault(getenv, key, *dst)
	}
	num := func(key string, dst *int) {
		v, err := getEnvAsIntOrDefault(getenv, key, *dst)
		errs = append(errs, err)
		*dst = v
	}

	str("DATA_DIR", &c.DataDir)
	num("CAMERA_DEVICE", &c.Camera.Device)
	num("CAMERA_FPS", &c.Camera.FPS)
	str("SERIAL_PORT", &c.Serial.Port)
	num("SERIAL_BAUD", &c.Serial.Baud)
	num("SERIAL_LANDMARK", &c.Serial.Landmark)
	str("RECORDINGS_DIR", &c.Recording.Dir)
	str("SERVER_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)

	if v := getenv(EnvPrefix + "SERIAL_INTERVAL"); v != "" {
		if err := c.Serial.Interval.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("%sSERIAL_INTERVAL: %w", EnvPrefix, err))
		}
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(getenv func(string) string, key string, defaultValue int) (int, error) {
	value := getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	return n, nil
}

// RegisterFlags binds the command-line flags to c.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory holding the catalog and recordings")
	fs.IntVar(&c.Camera.Device, "camera", c.Camera.Device, "camera device index")
	fs.IntVar(&c.Camera.FPS, "fps", c.Camera.FPS, "capture frames per second")
	fs.BoolVar(&c.Camera.Mirror, "mirror", c.Camera.Mirror, "mirror camera frames horizontally")
	fs.StringVar(&c.Serial.Port, "port", c.Serial.Port, "serial port for the relay (empty disables it)")
	fs.IntVar(&c.Serial.Baud, "baud", c.Serial.Baud, "serial baud rate")
	fs.DurationVar(&c.Serial.Interval.Duration, "interval", c.Serial.Interval.Duration, "minimum time between relayed poses")
	fs.IntVar(&c.Serial.Landmark, "landmark", c.Serial.Landmark, "landmark index relayed over serial")
	fs.StringVar(&c.Recording.Dir, "recordings", c.Recording.Dir, "recordings directory")
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "HTTP listen address")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level (debug, info, warn, error)")
}

// Parse builds the configuration for one command. The -config flag names the TOML
// file; without it the default path is used if present. Flags are parsed twice so that
// explicit flags win over the file and the environment.
func Parse(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	c := Default()
	path := fs.String("config", DefaultPath(), "TOML config file")
	c.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	if err := c.LoadFile(*path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := c.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Camera.FPS <= 0 {
		errs = append(errs, fmt.Errorf("camera fps must be positive, got %d", c.Camera.FPS))
	}
	if c.Recording.DefaultFPS <= 0 {
		errs = append(errs, fmt.Errorf("recording default_fps must be positive, got %d", c.Recording.DefaultFPS))
	}
	if c.Detector.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("detector max_hands must be at least 1, got %d", c.Detector.MaxHands))
	}
	for name, v := range map[string]float64{
		"min_confidence":          c.Detector.MinConfidence,
		"min_tracking_confidence": c.Detector.MinTrackingConfidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("detector %s must be within [0, 1], got %g", name, v))
		}
	}
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial baud must be positive, got %d", c.Serial.Baud))
	}
	if c.Serial.Interval.Duration < 0 {
		errs = append(errs, fmt.Errorf("serial interval must not be negative, got %s", c.Serial.Interval))
	}
	if c.Serial.Landmark < 0 || c.Serial.Landmark >= pose.NumLandmarks {
		errs = append(errs, fmt.Errorf("serial landmark must be within 0-%d, got %d", pose.NumLandmarks-1, c.Serial.Landmark))
	}
	if c.Serial.Width <= 0 || c.Serial.Height <= 0 {
		errs = append(errs, fmt.Errorf("serial frame size must be positive, got %dx%d", c.Serial.Width, c.Serial.Height))
	}
	if err := validateAddr(c.Server.Addr); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid server addr %q: %w", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid server port %q", port)
	}
	return nil
}

// LogLevel parses the configured level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return l, nil
}

// RecordingsDir returns where sessions are saved.
func (c *Config) RecordingsDir() string {
	if c.Recording.Dir != "" {
		return c.Recording.Dir
	}
	return filepath.Join(c.DataDir, "recordings")
}

// DBPath returns the catalog database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "handrelay.db")
}

// CaptureConfig converts the camera section.
func (c *Config) CaptureConfig() capture.Config {
	return capture.Config{
		DeviceID: c.Camera.Device,
		FPS:      c.Camera.FPS,
		Width:    c.Camera.Width,
		Height:   c.Camera.Height,
		Mirror:   c.Camera.Mirror,
	}
}

// DetectorSettings converts the detector section.
func (c *Config) DetectorSettings() detector.Config {
	return detector.Config{
		MaxHands:        c.Detector.MaxHands,
		MinConfidence:   c.Detector.MinConfidence,
		MinTrackingConf: c.Detector.MinTrackingConfidence,
	}
}

// Encoder converts the serial section into the wire encoder.
func (c *Config) Encoder() relay.Encoder {
	return relay.Encoder{
		Index:  c.Serial.Landmark,
		Width:  c.Serial.Width,
		Height: c.Serial.Height,
	}
}

// SerialPort converts the serial section into the port settings.
func (c *Config) SerialPort() relay.SerialConfig {
	return relay.SerialConfig{
		Port:   c.Serial.Port,
		Baud:   c.Serial.Baud,
		Settle: relay.DefaultSettle,
	}
}
