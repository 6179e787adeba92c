package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"TX3_MCP_TEST_PORT" envDefault:"3000"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("TX3_MCP_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDotEnvMissingFileIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.env")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("expected missing dotenv to be ignored, got %v", err)
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "TX3_MCP_TEST_DOTENV_NEW=from-file\nTX3_MCP_TEST_DOTENV_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	t.Setenv("TX3_MCP_TEST_DOTENV_SET", "from-env")
	// Register cleanup for the variable the file introduces.
	t.Setenv("TX3_MCP_TEST_DOTENV_NEW", "")
	os.Unsetenv("TX3_MCP_TEST_DOTENV_NEW")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("TX3_MCP_TEST_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("TX3_MCP_TEST_DOTENV_SET"); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}
}

func TestLoadDotEnvMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.env")
	if err := os.WriteFile(path, []byte("TX3_MCP_TEST_BAD='unterminated\n"), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	err := LoadDotEnv(path)
	if err == nil {
		t.Fatal("expected malformed dotenv error")
	}
	if !strings.Contains(err.Error(), "load dotenv") {
		t.Fatalf("expected load dotenv prefix, got %v", err)
	}
}

// Exitf calls os.Exit, so it is exercised in a subprocess.
func TestExitfExitsWithCode1(t *testing.T) {
	if os.Getenv("TX3_MCP_TEST_EXITF") == "1" {
		Exitf("fatal: %s", "something broke")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfExitsWithCode1$")
	cmd.Env = append(os.Environ(), "TX3_MCP_TEST_EXITF=1")

	out, err := cmd.CombinedOutput()
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "fatal: something broke") {
		t.Fatalf("expected stderr to contain message, got %q", string(out))
	}
}
