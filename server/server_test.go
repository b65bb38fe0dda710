package server

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quartzui/remoteops/pkg/bytecode"
	"github.com/quartzui/remoteops/pkg/channel"
	"github.com/quartzui/remoteops/pkg/remoteops"
)

type fakeElement struct {
	props map[int32]bytecode.Value
	child *fakeElement
}

func (e *fakeElement) Kind() string { return "element" }

func (e *fakeElement) GetProperty(property int32) (bytecode.Value, error) {
	v, ok := e.props[property]
	if !ok {
		return bytecode.Value{}, fmt.Errorf("no property %d", property)
	}
	return v, nil
}

func (e *fakeElement) Navigate(direction int32) (Object, error) {
	if direction == 1 && e.child != nil {
		return e.child, nil
	}
	return nil, fmt.Errorf("nothing in direction %d", direction)
}

func (e *fakeElement) InvokePattern(pattern, method int32, args []bytecode.Value) (bytecode.Value, error) {
	if pattern == 10000 && method == 0 {
		return bytecode.BoolValue(true), nil
	}
	return bytecode.Value{}, fmt.Errorf("no pattern %d", pattern)
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":7317" {
		t.Errorf("listen = %q, want default :7317", cfg.Listen)
	}
}

func TestLoadConfigParsesFile(t *testing.T) {
	dir := t.TempDir()
	contents := `
listen = "127.0.0.1:9000"
max-instructions = 5000
denied-capabilities = ["cache-request"]
`
	if err := os.WriteFile(filepath.Join(dir, "remoteopsd.toml"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.MaxInstructions != 5000 {
		t.Errorf("max-instructions = %d", cfg.MaxInstructions)
	}
	if len(cfg.DeniedCapabilities) != 1 || cfg.DeniedCapabilities[0] != "cache-request" {
		t.Errorf("denied-capabilities = %v", cfg.DeniedCapabilities)
	}
}

func TestObjectStore(t *testing.T) {
	store := NewObjectStore()
	ref := store.Register(&fakeElement{})
	if _, ok := store.Lookup(ref); !ok {
		t.Fatalf("registered object %q not found", ref)
	}
	ref2 := store.Register(&fakeElement{})
	if ref == ref2 {
		t.Error("references not unique")
	}

	store.Release(ref)
	if _, ok := store.Lookup(ref); ok {
		t.Error("released object still present")
	}
}

func TestObjectStoreSweep(t *testing.T) {
	store := NewObjectStore()
	store.Register(&fakeElement{})
	time.Sleep(10 * time.Millisecond)

	if removed := store.Sweep(time.Millisecond); removed != 1 {
		t.Errorf("swept %d objects, want 1", removed)
	}
	if store.Len() != 0 {
		t.Errorf("%d objects remain after sweep", store.Len())
	}
}

func TestObjectStoreNavigateRegistersResult(t *testing.T) {
	store := NewObjectStore()
	child := &fakeElement{props: map[int32]bytecode.Value{1: bytecode.StringValue("child")}}
	ref := store.Register(&fakeElement{child: child})

	v, err := store.Navigate(ref, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != bytecode.KindObjectRef {
		t.Fatalf("navigate returned %s, want objectref", v.Kind)
	}
	if _, ok := store.Lookup(v.Ref); !ok {
		t.Errorf("navigated object %q not registered", v.Ref)
	}
}

// newTestServer registers one root element and serves the executor over
// httptest; it returns a connection plus the root's reference.
func newTestServer(t *testing.T, cfg *Config) (*channel.Conn, string) {
	t.Helper()
	store := NewObjectStore()
	ref := store.Register(&fakeElement{
		props: map[int32]bytecode.Value{30005: bytecode.StringValue("OK Button")},
	})

	srv := httptest.NewServer(New(cfg, store).Handler())
	t.Cleanup(srv.Close)

	conn, err := channel.Open(context.Background(), channel.NewHTTPClient(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	return conn, ref
}

func TestEndToEndPropertyRead(t *testing.T) {
	conn, ref := newTestServer(t, DefaultConfig())

	op := remoteops.New(nil)
	element, err := op.ImportElement(conn, ref)
	if err != nil {
		t.Fatal(err)
	}
	property, _ := op.NewInt(30005)
	name, err := element.GetProperty(property)
	if err != nil {
		t.Fatal(err)
	}
	tok, _ := op.RequestResponse(name)

	rs, err := op.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := rs.Err(); err != nil {
		t.Fatal(err)
	}
	v, err := rs.Value(tok)
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := v.AsString(); got != "OK Button" {
		t.Errorf("property = %q, want %q", got, "OK Button")
	}
}

func TestDeniedCapabilityNotAdvertised(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeniedCapabilities = []string{bytecode.CapabilityCacheRequest}
	conn, _ := newTestServer(t, cfg)

	if conn.SupportsCapability(bytecode.CapabilityCacheRequest) {
		t.Error("denied capability advertised")
	}
	if !conn.SupportsCapability(bytecode.CapabilityGuid) {
		t.Error("allowed capability missing")
	}
}

func TestInstructionBudgetEnforced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxInstructions = 50
	conn, _ := newTestServer(t, cfg)

	op := remoteops.New(conn)
	cond, _ := op.NewBool(true)
	if err := op.WhileBlock(cond, func() error {
		// Condition never changes: the budget is the only way out.
		_, err := cond.Not()
		return err
	}, nil); err != nil {
		t.Fatal(err)
	}

	rs, err := op.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rs.Status() != bytecode.StatusInstructionLimitExceeded {
		t.Errorf("status = %s, want instruction-limit-exceeded", rs.Status())
	}
}
