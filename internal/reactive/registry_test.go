package reactive

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	sourceA    = common.HexToAddress("0x11")
	sourceB    = common.HexToAddress("0x22")
	selectorA  = common.HexToHash("0xaaaa")
	selectorB  = common.HexToHash("0xbbbb")
	subscriber = common.HexToAddress("0x99")
)

func TestSubscribeIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	first := registry.Subscribe("sepolia", sourceA, selectorA, subscriber)
	second := registry.Subscribe("sepolia", sourceA, selectorA, common.HexToAddress("0x77"))

	if first.ID != second.ID {
		t.Fatalf("duplicate subscribe created a new record: %s vs %s", first.ID, second.ID)
	}
	if second.Subscriber != subscriber {
		t.Fatalf("subscriber overwritten: %s", second.Subscriber.Hex())
	}
	if len(registry.List()) != 1 {
		t.Fatalf("registry holds %d subscriptions, want 1", len(registry.List()))
	}
}

func TestMatchRequiresFullTriple(t *testing.T) {
	registry := NewRegistry()
	registry.Subscribe("sepolia", sourceA, selectorA, subscriber)

	event := NewEvent("sepolia", types.Log{Address: sourceA, Topics: []common.Hash{selectorA}})
	if _, ok := registry.Match(event); !ok {
		t.Fatal("expected match")
	}

	cases := map[string]*Event{
		"wrong ledger":   NewEvent("mainnet", types.Log{Address: sourceA, Topics: []common.Hash{selectorA}}),
		"wrong source":   NewEvent("sepolia", types.Log{Address: sourceB, Topics: []common.Hash{selectorA}}),
		"wrong selector": NewEvent("sepolia", types.Log{Address: sourceA, Topics: []common.Hash{selectorB}}),
		"no topics":      NewEvent("sepolia", types.Log{Address: sourceA}),
	}
	for name, event := range cases {
		if _, ok := registry.Match(event); ok {
			t.Fatalf("%s matched unexpectedly", name)
		}
	}
	if _, ok := registry.Match(nil); ok {
		t.Fatal("nil event matched")
	}
}

func TestSourcesGroupsByLedger(t *testing.T) {
	registry := NewRegistry()
	registry.Subscribe("sepolia", sourceA, selectorA, subscriber)
	registry.Subscribe("sepolia", sourceA, selectorB, subscriber)
	registry.Subscribe("sepolia", sourceB, selectorA, subscriber)
	registry.Subscribe("mainnet", sourceB, selectorA, subscriber)

	sources := registry.Sources("sepolia")
	if len(sources) != 2 {
		t.Fatalf("sources %d, want 2 (deduplicated)", len(sources))
	}
	if len(registry.Sources("unknown")) != 0 {
		t.Fatal("unknown ledger should have no sources")
	}
}

func TestEventCodecRoundTrip(t *testing.T) {
	event := NewEvent("sepolia", types.Log{
		Address:     sourceA,
		Topics:      []common.Hash{selectorA, selectorB},
		Data:        []byte{0x01, 0x02},
		BlockNumber: 42,
	})

	payload, err := event.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != event.ID || decoded.Ledger != event.Ledger || decoded.Source != event.Source {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if decoded.Selector() != selectorA {
		t.Fatalf("selector %s, want %s", decoded.Selector(), selectorA)
	}

	if _, err := DecodeEvent([]byte("not json")); err == nil {
		t.Fatal("garbage payload must fail to decode")
	}
	if _, err := DecodeEvent([]byte("{}")); err == nil {
		t.Fatal("payload without id must fail to decode")
	}
}
