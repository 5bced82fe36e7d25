package ledger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledgers.yaml")
	content := `ledgers:
  sepolia:
    type: evm
    chain_id: 11155111
    rpc_url: https://rpc.sepolia.org
    ws_url: wss://rpc.sepolia.org/ws
    description: remote observation ledger
  local:
    rpc_url: http://127.0.0.1:8545
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	defs, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs.Ledgers) != 2 {
		t.Fatalf("ledgers %d, want 2", len(defs.Ledgers))
	}
	sepolia := defs.Ledgers["sepolia"]
	if sepolia.ChainID != 11155111 || sepolia.WSURL == "" {
		t.Fatalf("unexpected definition: %+v", sepolia)
	}
	// Type defaults are resolved by the provider, not the loader.
	if defs.Ledgers["local"].Type != "" {
		t.Fatalf("loader must not fill type: %+v", defs.Ledgers["local"])
	}
}

func TestLoadDefinitionsEmptyPath(t *testing.T) {
	defs, err := LoadDefinitions("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs.Ledgers) != 0 {
		t.Fatalf("expected empty set, got %d", len(defs.Ledgers))
	}
}

func TestLoadDefinitionsBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("ledgers: ["), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadDefinitions(path); err == nil {
		t.Fatal("broken yaml must fail")
	}
	if _, err := LoadDefinitions(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing file must fail")
	}
}
