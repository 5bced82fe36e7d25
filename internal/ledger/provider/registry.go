package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Jaden-Nix/gravity-nexus/internal/ledger"
	"github.com/Jaden-Nix/gravity-nexus/internal/ledger/evm"
)

// Registry manages the bounded set of ledger clients keyed by human readable
// names: the home ledger plus any remotes the automation observes.
type Registry struct {
	defaultLedger string
	clients       map[string]ledger.Client
}

// Config selects the ledger definition file and the default ledger name.
type Config struct {
	LedgerConfig  string
	DefaultLedger string
}

// NewRegistry loads ledger definitions and instantiates concrete clients.
func NewRegistry(ctx context.Context, cfg Config) (*Registry, error) {
	defs, err := ledger.LoadDefinitions(cfg.LedgerConfig)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]ledger.Client)
	for name, def := range defs.Ledgers {
		ledgerType := strings.ToLower(strings.TrimSpace(def.Type))
		if ledgerType == "" {
			ledgerType = "evm"
		}
		switch ledgerType {
		case "evm":
			client, err := evm.NewClient(ctx, evm.Config{
				Name:    name,
				ChainID: def.ChainID,
				RPCURL:  def.RPCURL,
				WSURL:   def.WSURL,
				Notes:   def.Description,
			})
			if err != nil {
				return nil, fmt.Errorf("initialize ledger %s: %w", name, err)
			}
			clients[name] = client
		default:
			return nil, fmt.Errorf("ledger %s has unsupported type %s", name, def.Type)
		}
	}

	if len(clients) == 0 {
		return &Registry{clients: clients}, nil
	}

	defaultLedger := cfg.DefaultLedger
	if defaultLedger == "" {
		names := make([]string, 0, len(clients))
		for name := range clients {
			names = append(names, name)
		}
		sort.Strings(names)
		defaultLedger = names[0]
	}
	if _, ok := clients[defaultLedger]; !ok {
		return nil, fmt.Errorf("default ledger %s not found in configuration", defaultLedger)
	}

	return &Registry{defaultLedger: defaultLedger, clients: clients}, nil
}

// DefaultClient returns the client configured as the default ledger.
func (r *Registry) DefaultClient() (ledger.Client, error) {
	if r == nil || len(r.clients) == 0 {
		return nil, errors.New("no ledgers configured")
	}
	client, ok := r.clients[r.defaultLedger]
	if !ok {
		return nil, fmt.Errorf("default ledger %s not registered", r.defaultLedger)
	}
	return client, nil
}

// Client returns the ledger client identified by name.
func (r *Registry) Client(name string) (ledger.Client, bool) {
	if r == nil {
		return nil, false
	}
	client, ok := r.clients[name]
	return client, ok
}

// Ledgers returns the sorted list of registered ledger names.
func (r *Registry) Ledgers() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}
