package nexus

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTriggerRebalanceSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/actions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Fatalf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("unexpected body: %v", err)
		}
		if payload["action_type"] != "REBALANCE" {
			t.Fatalf("unexpected action type: %q", payload["action_type"])
		}
		_ = json.NewEncoder(w).Encode(ActionRecord{
			ID:      "act-1",
			OK:      true,
			Outcome: "Rebalance Success",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetToken("token-1")

	record, err := client.TriggerRebalance(context.Background())
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if record.ID != "act-1" || !record.OK {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestListActionsPassesLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/actions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "5" {
			t.Fatalf("unexpected limit: %q", r.URL.Query().Get("limit"))
		}
		_ = json.NewEncoder(w).Encode([]ActionRecord{{ID: "act-1"}, {ID: "act-2"}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	records, err := client.ListActions(context.Background(), 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].ID != "act-1" {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestVaultAndSubscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/vault":
			_ = json.NewEncoder(w).Encode(VaultView{
				Asset: "USDC",
				Pools: []PoolView{{Index: 0, Rate: 500, Balance: "1000"}},
				Total: "1000",
			})
		case "/api/v1/subscriptions":
			var sub Subscription
			if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
				t.Fatalf("decode subscription: %v", err)
			}
			sub.ID = "sub-1"
			_ = json.NewEncoder(w).Encode(sub)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	view, err := client.Vault(context.Background())
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	if view.Asset != "USDC" || view.Total != "1000" {
		t.Fatalf("unexpected view: %+v", view)
	}

	sub, err := client.Subscribe(context.Background(), Subscription{
		Ledger:   "sepolia",
		Source:   "0x1111111111111111111111111111111111111111",
		Selector: "0xabcdef",
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if sub.ID != "sub-1" || sub.Ledger != "sepolia" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("unsupported action type"))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.TriggerRebalance(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "unsupported action type" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}
