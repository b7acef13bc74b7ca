package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/cita-toolkit/citactl/internal/errors"
	"github.com/cita-toolkit/citactl/internal/parse"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func newServer(t *testing.T, handler func(rpcRequest) any) (*httptest.Server, *[]rpcRequest) {
	t.Helper()
	requests := &[]rpcRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		*requests = append(*requests, req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handler(req),
		})
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func TestCallSuccess(t *testing.T) {
	srv, _ := newServer(t, func(rpcRequest) any { return "0x2a" })
	c := New(time.Second, 0)
	c.SetURL(srv.URL)

	resp, err := c.Call(context.Background(), "blockNumber")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if string(resp.Result) != `"0x2a"` {
		t.Fatalf("unexpected result: %s", resp.Result)
	}
}

func TestCallRemoteErrorSurfacedVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32600,"message":"InvalidTransaction"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(time.Second, 0)
	c.SetURL(srv.URL)
	_, err := c.Call(context.Background(), "sendRawTransaction", "0x00")
	if err == nil {
		t.Fatal("expected remote error")
	}
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeRemote {
		t.Fatalf("expected CodeRemote, got %v", err)
	}
	if cErr.Message != "InvalidTransaction" {
		t.Fatalf("node error not surfaced verbatim: %q", cErr.Message)
	}
}

func TestCallRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	c := New(time.Second, 2)
	c.SetURL(srv.URL)
	resp, err := c.Call(context.Background(), "peerCount")
	if err != nil {
		t.Fatalf("Call should succeed after retry: %v", err)
	}
	if string(resp.Result) != `"ok"` || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("unexpected retry behavior: calls=%d result=%s", calls, resp.Result)
	}
}

func TestAmendGetH256KVParams(t *testing.T) {
	srv, requests := newServer(t, func(rpcRequest) any { return "0x0" })
	c := New(time.Second, 0)
	c.SetURL(srv.URL)

	addr, _ := parse.ParseAddress("0x" + strings.Repeat("ab", 20))
	key, _ := parse.ParseH256("0x" + strings.Repeat("01", 32))
	if _, err := c.AmendGetH256KV(context.Background(), addr, key, "latest"); err != nil {
		t.Fatalf("AmendGetH256KV failed: %v", err)
	}

	req := (*requests)[0]
	if req.Method != "getStorageAt" {
		t.Fatalf("unexpected method: %s", req.Method)
	}
	if len(req.Params) != 3 || string(req.Params[2]) != `"latest"` {
		t.Fatalf("unexpected params: %v", req.Params)
	}
}

func TestAmendBalanceSendsSignedTransaction(t *testing.T) {
	srv, requests := newServer(t, func(rpcRequest) any { return map[string]string{"hash": "0x1", "status": "OK"} })
	c := New(time.Second, 0)
	c.SetURL(srv.URL)
	c.SetChainID(1)

	key, err := parse.ParsePrivateKey("0x"+strings.Repeat("11", 32), parse.SchemeSecp256k1)
	if err != nil {
		t.Fatal(err)
	}
	c.SetPrivateKey(key)

	addr, _ := parse.ParseAddress("0x" + strings.Repeat("ab", 20))
	balance, _ := parse.ParseU256("100")
	if _, err := c.AmendBalance(context.Background(), addr, balance, 0); err != nil {
		t.Fatalf("AmendBalance failed: %v", err)
	}

	req := (*requests)[0]
	if req.Method != "sendRawTransaction" {
		t.Fatalf("unexpected method: %s", req.Method)
	}
	var raw string
	if err := json.Unmarshal(req.Params[0], &raw); err != nil {
		t.Fatalf("param not a string: %v", err)
	}
	if !strings.HasPrefix(raw, "0x") || len(raw) < 100 {
		t.Fatalf("raw transaction looks wrong: %q", raw)
	}
}

func TestAmendRequiresSigningKey(t *testing.T) {
	c := New(time.Second, 0)
	addr, _ := parse.ParseAddress("0x" + strings.Repeat("ab", 20))
	_, err := c.AmendCode(context.Background(), addr, "0xdead", 0)
	if err == nil {
		t.Fatal("expected missing key error")
	}
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeResolve {
		t.Fatalf("expected CodeResolve, got %v", err)
	}
}

func TestAmendCodeRejectsBadHexBeforeSending(t *testing.T) {
	key, _ := parse.ParsePrivateKey("0x"+strings.Repeat("11", 32), parse.SchemeSecp256k1)
	c := New(time.Second, 0)
	c.SetPrivateKey(key)
	addr, _ := parse.ParseAddress("0x" + strings.Repeat("ab", 20))
	_, err := c.AmendCode(context.Background(), addr, "0xzz", 0)
	if err == nil {
		t.Fatal("malformed code hex must fail at the decoder")
	}
	cErr, ok := clierr.As(err)
	if !ok || cErr.Code != clierr.CodeUsage {
		t.Fatalf("expected CodeUsage, got %v", err)
	}
}
