package config

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/relay"
)

func noEnv(string) string { return "" }

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()

	if err := c.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if c.Serial.Baud != 9600 {
		t.Errorf("baud = %d, want 9600", c.Serial.Baud)
	}
	if c.Serial.Interval.Duration != relay.DefaultInterval {
		t.Errorf("interval = %s, want %s", c.Serial.Interval, relay.DefaultInterval)
	}
	if c.Serial.Landmark != pose.Wrist || c.Serial.Width != 640 || c.Serial.Height != 480 {
		t.Errorf("encoder defaults = %+v", c.Serial)
	}
	if c.Serial.Port != "" {
		t.Errorf("relay should be disabled by default, port = %q", c.Serial.Port)
	}
	if !c.Camera.Mirror || c.Camera.FPS != 30 {
		t.Errorf("camera defaults = %+v", c.Camera)
	}
	if c.RecordingsDir() != filepath.Join(c.DataDir, "recordings") {
		t.Errorf("RecordingsDir() = %s", c.RecordingsDir())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/srv/handrelay"

[camera]
fps = 15
mirror = false

[serial]
port = "/dev/ttyACM0"
interval = "100ms"
landmark = 8

[recording]
dir = "/srv/recordings"
`)

	c := Default()
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if c.DataDir != "/srv/handrelay" || c.Camera.FPS != 15 || c.Camera.Mirror {
		t.Errorf("top-level/camera = %q %+v", c.DataDir, c.Camera)
	}
	if c.Serial.Port != "/dev/ttyACM0" || c.Serial.Interval.Duration != 100*time.Millisecond || c.Serial.Landmark != 8 {
		t.Errorf("serial = %+v", c.Serial)
	}
	// Keys missing from the file keep their defaults.
	if c.Serial.Baud != 9600 || c.Server.Addr != ":8080" {
		t.Errorf("defaults lost: baud %d addr %q", c.Serial.Baud, c.Server.Addr)
	}
	if c.RecordingsDir() != "/srv/recordings" {
		t.Errorf("RecordingsDir() = %s", c.RecordingsDir())
	}
	if c.DBPath() != "/srv/handrelay/handrelay.db" {
		t.Errorf("DBPath() = %s", c.DBPath())
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", "[camera\nfps = 1"},
		{"bad duration", "[serial]\ninterval = \"soon\""},
		{"wrong type", "[camera]\nfps = \"fast\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Default().LoadFile(writeConfig(t, tt.content)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(envMap(map[string]string{
		"HANDRELAY_SERIAL_PORT":     "COM3",
		"HANDRELAY_SERIAL_BAUD":     "115200",
		"HANDRELAY_SERIAL_INTERVAL": "20ms",
		"HANDRELAY_LOG_LEVEL":       "debug",
		"HANDRELAY_CAMERA_FPS":      "60",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if c.Serial.Port != "COM3" || c.Serial.Baud != 115200 || c.Serial.Interval.Duration != 20*time.Millisecond {
		t.Errorf("serial = %+v", c.Serial)
	}
	if c.Camera.FPS != 60 {
		t.Errorf("fps = %d", c.Camera.FPS)
	}
	if l, _ := c.LogLevel(); l != slog.LevelDebug {
		t.Errorf("level = %v", l)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(envMap(map[string]string{
		"HANDRELAY_SERIAL_BAUD":     "fast",
		"HANDRELAY_SERIAL_INTERVAL": "soon",
	}))
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"HANDRELAY_SERIAL_BAUD", "HANDRELAY_SERIAL_INTERVAL"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
	if c.Serial.Baud != 9600 {
		t.Errorf("invalid value applied: baud = %d", c.Serial.Baud)
	}
}

func TestParse_Precedence(t *testing.T) {
	path := writeConfig(t, "[serial]\nport = \"/dev/file\"\nbaud = 19200\nlandmark = 4\n")
	env := envMap(map[string]string{
		"HANDRELAY_SERIAL_PORT": "/dev/env",
		"HANDRELAY_SERIAL_BAUD": "38400",
	})

	fs := newFlagSet()
	c, err := Parse(fs, []string{"-config", path, "-port", "/dev/flag", "extra"}, env)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if c.Serial.Port != "/dev/flag" {
		t.Errorf("port = %q, flag should win", c.Serial.Port)
	}
	if c.Serial.Baud != 38400 {
		t.Errorf("baud = %d, env should beat the file", c.Serial.Baud)
	}
	if c.Serial.Landmark != 4 {
		t.Errorf("landmark = %d, file should beat the default", c.Serial.Landmark)
	}
	if args := fs.Args(); len(args) != 1 || args[0] != "extra" {
		t.Errorf("Args() = %v", args)
	}
}

func TestParse_ConfigFile(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.toml")
		if _, err := Parse(newFlagSet(), []string{"-config", missing}, noEnv); err == nil {
			t.Error("an explicit missing config file should fail")
		}
	})

	t.Run("invalid result", func(t *testing.T) {
		empty := writeConfig(t, "")
		if _, err := Parse(newFlagSet(), []string{"-config", empty, "-landmark", "21"}, noEnv); err == nil {
			t.Error("landmark 21 should fail validation")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }},
		{"zero default fps", func(c *Config) { c.Recording.DefaultFPS = 0 }},
		{"zero baud", func(c *Config) { c.Serial.Baud = 0 }},
		{"negative interval", func(c *Config) { c.Serial.Interval.Duration = -time.Millisecond }},
		{"landmark low", func(c *Config) { c.Serial.Landmark = -1 }},
		{"landmark high", func(c *Config) { c.Serial.Landmark = pose.NumLandmarks }},
		{"frame size", func(c *Config) { c.Serial.Width = 0 }},
		{"no hands", func(c *Config) { c.Detector.MaxHands = 0 }},
		{"confidence", func(c *Config) { c.Detector.MinConfidence = 1.5 }},
		{"port range", func(c *Config) { c.Server.Addr = ":70000" }},
		{"addr", func(c *Config) { c.Server.Addr = "localhost" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			if err := c.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestConversions(t *testing.T) {
	c := Default()
	c.Serial.Landmark = pose.IndexTip
	c.Camera.Device = 2

	if enc := c.Encoder(); enc.Index != pose.IndexTip || enc.Width != 640 {
		t.Errorf("Encoder() = %+v", enc)
	}
	if cc := c.CaptureConfig(); cc.DeviceID != 2 || !cc.Mirror {
		t.Errorf("CaptureConfig() = %+v", cc)
	}
	if dc := c.DetectorSettings(); dc.MaxHands != 1 || dc.MinConfidence != 0.7 {
		t.Errorf("DetectorSettings() = %+v", dc)
	}
	if sp := c.SerialPort(); sp.Baud != 9600 || sp.Settle != relay.DefaultSettle {
		t.Errorf("SerialPort() = %+v", sp)
	}
}
