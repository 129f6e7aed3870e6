package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lumix-ai/hopfield/internal/core"
	"github.com/lumix-ai/hopfield/internal/memory"
	"github.com/lumix-ai/hopfield/internal/patterns"
)

const testConfig = `
network:
  size: 8
  grid_width: 4
noise:
  level: 0.25
  seed: 3
api:
  session_ttl: 5m
logging:
  level: error
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if config.Network.Size != 64 || config.Network.GridWidth != 8 {
		t.Errorf("network = %+v", config.Network)
	}
	if config.Network.MaxIterations != core.DefaultMaxIterations {
		t.Errorf("max_iterations = %d", config.Network.MaxIterations)
	}
	if config.Evaluation.MaxIterations != config.Network.MaxIterations {
		t.Errorf("evaluation inherits %d", config.Evaluation.MaxIterations)
	}
	if config.Noise.Level != patterns.DefaultNoiseLevel {
		t.Errorf("noise level = %v", config.Noise.Level)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	config, err := loadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if config.Network.Size != 8 || config.Network.GridWidth != 4 {
		t.Errorf("network = %+v", config.Network)
	}
	if config.API.SessionTTL != 5*time.Minute {
		t.Errorf("session_ttl = %v", config.API.SessionTTL)
	}
	// untouched keys keep their defaults
	if !config.Learning.AutoRetrain || config.API.Addr != ":8080" {
		t.Errorf("defaults lost: %+v %+v", config.Learning, config.API)
	}
}

func TestLoadConfigRejectsGarbage(t *testing.T) {
	if _, err := loadConfig(writeConfig(t, "network: [1, 2")); err == nil {
		t.Error("malformed yaml accepted")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero size", func(c *Config) { c.Network.Size = 0 }},
		{"ragged grid", func(c *Config) { c.Network.GridWidth = 7 }},
		{"zero grid width", func(c *Config) { c.Network.GridWidth = 0 }},
		{"negative iterations", func(c *Config) { c.Network.MaxIterations = -1 }},
		{"noise above one", func(c *Config) { c.Noise.Level = 1.5 }},
		{"negative evaluation noise", func(c *Config) { c.Evaluation.NoiseLevel = -0.1 }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	if err := validateConfig(defaultConfig()); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaultConfig()
			tt.mutate(c)
			if err := validateConfig(c); err == nil {
				t.Error("accepted invalid config")
			}
		})
	}
}

type cli struct {
	t      *testing.T
	config string
	db     string
}

func (c cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	full := append([]string{"-config", c.config, "-db", c.db}, args...)
	err := run(context.Background(), full, &out)
	return out.String(), err
}

func (c cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	c := cli{t: t, config: writeConfig(t, testConfig), db: filepath.Join(dir, "data", "patterns.db")}

	if out := c.mustRun("add", "stripes", "1111 0000"); !strings.Contains(out, `Stored "stripes"`) {
		t.Errorf("add output: %q", out)
	}
	if out := c.mustRun("add", "", "11000011"); !strings.Contains(out, `"Pattern 2"`) {
		t.Errorf("auto-named add output: %q", out)
	}
	if out := c.mustRun("list"); !strings.Contains(out, "stripes") || !strings.Contains(out, "Pattern 2") {
		t.Errorf("list output: %q", out)
	}

	out := c.mustRun("recall", "01110000")
	if !strings.Contains(out, "11110000") || !strings.Contains(out, "Converged in") {
		t.Errorf("recall output: %q", out)
	}
	if !strings.HasPrefix(out, "####\n....\n") {
		t.Errorf("recall grid: %q", out)
	}

	if out := c.mustRun("energy", "11110000"); !strings.HasPrefix(out, "Energy: ") {
		t.Errorf("energy output: %q", out)
	}

	bundle := filepath.Join(dir, "patterns.hopf")
	if out := c.mustRun("export", bundle); !strings.Contains(out, "Exported 2 patterns") {
		t.Errorf("export output: %q", out)
	}
	other := cli{t: t, config: c.config, db: filepath.Join(dir, "other.db")}
	if out := other.mustRun("import", bundle); !strings.Contains(out, "Imported 2 patterns") {
		t.Errorf("import output: %q", out)
	}

	if out := c.mustRun("delete", "stripes"); !strings.Contains(out, "Deleted") {
		t.Errorf("delete output: %q", out)
	}
	if _, err := c.run("delete", "stripes"); err == nil {
		t.Error("second delete succeeded")
	}
}

func TestNoiseCommand(t *testing.T) {
	c := cli{t: t, config: writeConfig(t, testConfig), db: ":memory:"}
	out := c.mustRun("noise", "11110000")
	noisy, err := patterns.Parse(out)
	if err != nil {
		t.Fatal(err)
	}
	if d := noisy.Hamming(core.Pattern{1, 1, 1, 1, 0, 0, 0, 0}); d != 2 {
		t.Errorf("noise flipped %d cells, want 2", d)
	}
}

func TestCommandErrors(t *testing.T) {
	c := cli{t: t, config: writeConfig(t, testConfig), db: ":memory:"}

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no command", nil, errUsage},
		{"unknown command", []string{"paint"}, errUsage},
		{"missing argument", []string{"add", "only-name"}, errUsage},
		{"wrong size", []string{"recall", "101"}, core.ErrDimensionMismatch},
		{"bad bits", []string{"energy", "10x01100"}, patterns.ErrParse},
		{"unknown remote command", []string{"remote", "paint"}, errUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.run(tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestImportDamagedBundle(t *testing.T) {
	dir := t.TempDir()
	c := cli{t: t, config: writeConfig(t, testConfig), db: filepath.Join(dir, "src.db")}
	c.mustRun("add", "stripes", "11110000")
	c.mustRun("add", "ends", "11000011")

	bundle := filepath.Join(dir, "patterns.hopf")
	c.mustRun("export", bundle)
	data, err := os.ReadFile(bundle)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(data[12:16], 3)
	if err := os.WriteFile(bundle, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dst := cli{t: t, config: c.config, db: filepath.Join(dir, "dst.db")}
	out, err := dst.run("import", bundle)
	if !errors.Is(err, memory.ErrBadBundle) {
		t.Fatalf("import error = %v, want ErrBadBundle", err)
	}
	if !strings.Contains(out, "Imported 2 patterns") {
		t.Errorf("import output: %q", out)
	}
	if out := dst.mustRun("list"); !strings.Contains(out, "stripes") || !strings.Contains(out, "ends") {
		t.Errorf("list after partial import: %q", out)
	}
}

func TestExitCode(t *testing.T) {
	c := cli{t: t, config: writeConfig(t, testConfig), db: ":memory:"}
	_, argErr := c.run("add", "only-name")
	_, levelErr := c.run("noise", "11110000", "abc")

	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStderr string
	}{
		{"argument count", argErr, 2, "expected 2..2 arguments, got 1"},
		{"noise level", levelErr, 2, `bad noise level "abc"`},
		{"usage already printed", errUsage, 2, ""},
		{"command failure", errors.New("disk full"), 1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			if code := exitCode(tt.err, &stderr); code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if tt.wantStderr == "" {
				if stderr.Len() != 0 {
					t.Errorf("unexpected stderr %q", stderr.String())
				}
				return
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr = %q, want it to mention %q", stderr.String(), tt.wantStderr)
			}
		})
	}
}
