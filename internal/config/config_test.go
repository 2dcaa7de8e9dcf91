package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Gesture.Sequences = []string{"TLTRBLBR"}
	return cfg
}

func TestDefaultConfigNeedsSequences(t *testing.T) {
	// There is no safe default knock: defaults alone must not validate.
	err := DefaultConfig().Validate()
	if err == nil {
		t.Fatal("defaults with no sequences should fail validation")
	}
	if !strings.Contains(err.Error(), "gesture.sequences") {
		t.Errorf("error should name gesture.sequences: %v", err)
	}
}

func TestValidConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidationCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Gesture.CornerSize = 5
	cfg.Gesture.ResetTimeoutMs = 100
	cfg.Display.Width = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{
		"gesture.corner_size",
		"gesture.reset_timeout_ms",
		"display.width",
		"logging.level",
	} {
		if !fields[want] {
			t.Errorf("missing validation error for %s (got %v)", want, errs)
		}
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cornerknock.toml")
	content := `
version = 1

[gesture]
sequences = ["TLTRTLTR", "BLBRBLBR"]
corner_size = 48
reset_timeout_ms = 1500

[display]
width = 1280
height = 800

[metrics]
enabled = true
listen_addr = "127.0.0.1:9321"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(path)
	defer loader.Close()
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Gesture.Sequences) != 2 {
		t.Errorf("sequences = %v, want 2 entries", cfg.Gesture.Sequences)
	}
	if cfg.Gesture.CornerSize != 48 {
		t.Errorf("corner_size = %d, want 48", cfg.Gesture.CornerSize)
	}
	if cfg.Gesture.ResetTimeout() != 1500*time.Millisecond {
		t.Errorf("reset timeout = %s, want 1.5s", cfg.Gesture.ResetTimeout())
	}
	if cfg.Display.Width != 1280 || cfg.Display.Height != 800 {
		t.Errorf("display = %dx%d, want 1280x800", cfg.Display.Width, cfg.Display.Height)
	}
	// Unset sections keep defaults.
	if cfg.IPC.SocketPath == "" {
		t.Error("ipc.socket_path default missing")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cornerknock.yaml")
	content := `
version: 1
gesture:
  sequences: ["TLTRBLBR"]
  corner_size: 32
  reset_timeout_ms: 1000
display:
  width: 1024
  height: 768
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Gesture.CornerSize != 32 {
		t.Errorf("corner_size = %d, want 32", cfg.Gesture.CornerSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cornerknock.toml")
	content := `
version = 1

[gesture]
sequences = ["TLTLTLTL", "TLTLTLTLTR"]
corner_size = 48
reset_timeout_ms = 1500
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewLoader(path).Load()
	if err == nil {
		t.Fatal("prefix-colliding sequences should fail to load")
	}
	if !strings.Contains(err.Error(), "distinguished") {
		t.Errorf("error should mention distinguishability: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CORNERKNOCK_SEQUENCES", "TLTRBLBR, BRBLBRBL")
	t.Setenv("CORNERKNOCK_CORNER_SIZE", "96")
	t.Setenv("CORNERKNOCK_DISPLAY_WIDTH", "3840")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if len(cfg.Gesture.Sequences) != 2 || cfg.Gesture.Sequences[0] != "TLTRBLBR" {
		t.Errorf("sequences = %v, want [TLTRBLBR BRBLBRBL]", cfg.Gesture.Sequences)
	}
	if cfg.Gesture.CornerSize != 96 {
		t.Errorf("corner_size = %d, want 96", cfg.Gesture.CornerSize)
	}
	if cfg.Display.Width != 3840 {
		t.Errorf("display.width = %d, want 3840", cfg.Display.Width)
	}
}

func TestHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cornerknock.toml")
	write := func(timeout int) {
		t.Helper()
		content := `
version = 1

[gesture]
sequences = ["TLTRBLBR"]
corner_size = 48
reset_timeout_ms = ` + strconv.Itoa(timeout) + `
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	write(1500)

	loader := NewLoader(path)
	defer loader.Close()
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan *Config, 1)
	loader.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	write(2500)

	select {
	case cfg := <-changed:
		if cfg.Gesture.ResetTimeoutMs != 2500 {
			t.Errorf("reloaded reset_timeout_ms = %d, want 2500", cfg.Gesture.ResetTimeoutMs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestHotReloadKeepsOldConfigOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cornerknock.toml")
	good := `
version = 1

[gesture]
sequences = ["TLTRBLBR"]
corner_size = 48
reset_timeout_ms = 1500
`
	if err := os.WriteFile(path, []byte(good), 0600); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(path)
	defer loader.Close()
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := loader.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("version = ???"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-loader.Errors():
		if err == nil {
			t.Fatal("expected a reload error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
	if got := loader.Config().Gesture.ResetTimeoutMs; got != 1500 {
		t.Errorf("config after failed reload = %d, want previous 1500", got)
	}
}
