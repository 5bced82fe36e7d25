package ledger

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definitions models the structure of configs/ledgers.yaml.
type Definitions struct {
	Ledgers map[string]Definition `yaml:"ledgers"`
}

// Definition describes a single ledger endpoint definition.
type Definition struct {
	Type        string `yaml:"type"`
	ChainID     uint64 `yaml:"chain_id"`
	RPCURL      string `yaml:"rpc_url"`
	WSURL       string `yaml:"ws_url"`
	Description string `yaml:"description"`
}

// LoadDefinitions parses the YAML file containing ledger metadata. An empty
// path yields an empty definition set, which keeps the daemon usable with
// purely in-process pools.
func LoadDefinitions(path string) (Definitions, error) {
	if strings.TrimSpace(path) == "" {
		return Definitions{Ledgers: map[string]Definition{}}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("read ledger config: %w", err)
	}

	var defs Definitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Definitions{}, fmt.Errorf("parse ledger config: %w", err)
	}
	if defs.Ledgers == nil {
		defs.Ledgers = map[string]Definition{}
	}
	return defs, nil
}
