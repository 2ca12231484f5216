package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testDefaultYAML = `
settlement:
  gateways:
    - "http://localhost:8545"
  contract_address: "0x0000000000000000000000000000000000000001"
  chain_id: 1337
state_keeper:
  max_chunks: 680
  max_gas: 15000000
logging:
  level: "debug"
`

const testStagingYAML = `
logging:
  level: "warn"
`

func chdirToFixture(t *testing.T, files map[string]string) {
	t.Helper()
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	for name, contents := range files {
		if err := os.WriteFile(filepath.Join(configDir, name), []byte(contents), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadReadsDefaultConfig(t *testing.T) {
	chdirToFixture(t, map[string]string{"default.yaml": testDefaultYAML})

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Settlement.Gateways) != 1 || cfg.Settlement.Gateways[0] != "http://localhost:8545" {
		t.Fatalf("gateways = %v", cfg.Settlement.Gateways)
	}
	if cfg.Settlement.ChainID != 1337 {
		t.Fatalf("chain id = %d, want 1337", cfg.Settlement.ChainID)
	}
	if cfg.StateKeeper.MaxChunks != 680 {
		t.Fatalf("max chunks = %d, want 680", cfg.StateKeeper.MaxChunks)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMergesEnvOverlay(t *testing.T) {
	chdirToFixture(t, map[string]string{
		"default.yaml": testDefaultYAML,
		"staging.yaml": testStagingYAML,
	})

	cfg, err := Load("staging")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("logging level = %q, want warn (overlay should win)", cfg.Logging.Level)
	}
	// Fields the overlay doesn't touch must still come from the default file.
	if cfg.Settlement.ChainID != 1337 {
		t.Fatalf("chain id = %d, want 1337 from default", cfg.Settlement.ChainID)
	}
}
