package channel

import (
	"context"
	"testing"

	"github.com/quartzui/remoteops/pkg/bytecode"
	"github.com/quartzui/remoteops/pkg/interp"
)

func TestDefaultManifest(t *testing.T) {
	m := DefaultManifest()
	if m.Version != bytecode.ProgramVersion {
		t.Errorf("version = %d, want %d", m.Version, bytecode.ProgramVersion)
	}
	if !m.SupportsCapability(bytecode.CapabilityGuid) {
		t.Error("default manifest should support guid")
	}
	if !m.SupportsOpcode(bytecode.OpNewCacheRequest) {
		t.Error("default manifest should support NEW_CACHE_REQUEST")
	}
	if m.SupportsOpcode(bytecode.Opcode(0xFFFF)) {
		t.Error("undefined opcode reported as supported")
	}
}

func TestPolicyCheck(t *testing.T) {
	m := DefaultManifest()

	if err := NewPermissivePolicy().Check(m); err != nil {
		t.Errorf("permissive policy rejected default manifest: %v", err)
	}

	restricted := NewRestrictedPolicy([]string{bytecode.CapabilityGuid})
	if err := restricted.Check(m); err == nil {
		t.Error("restricted policy accepted manifest with extra capabilities")
	}

	denying := NewPermissivePolicy()
	denying.Deny(bytecode.CapabilityCacheRequest)
	if err := denying.Check(m); err == nil {
		t.Error("deny list not enforced")
	}
}

func TestPolicyFilter(t *testing.T) {
	p := NewPermissivePolicy()
	p.Deny(bytecode.CapabilityCacheRequest)

	m := p.Filter(DefaultManifest())
	if m.SupportsCapability(bytecode.CapabilityCacheRequest) {
		t.Error("denied capability survived filtering")
	}
	if !m.SupportsCapability(bytecode.CapabilityGuid) {
		t.Error("allowed capability lost in filtering")
	}
}

func TestConnIDsAreUnique(t *testing.T) {
	local := NewLocal(nil, interp.Options{}, nil)

	a, err := Open(context.Background(), local)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Open(context.Background(), local)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID() == b.ID() {
		t.Errorf("two connections share ID %d", a.ID())
	}
	if b.ID() <= a.ID() {
		t.Errorf("connection IDs not increasing: %d then %d", a.ID(), b.ID())
	}
}

func TestLocalExecute(t *testing.T) {
	local := NewLocal(nil, interp.Options{}, nil)
	conn, err := Open(context.Background(), local)
	if err != nil {
		t.Fatal(err)
	}

	req := &bytecode.Request{
		Version: bytecode.ProgramVersion,
		Instructions: []bytecode.Instruction{
			bytecode.NewInstruction(bytecode.OpNewInt, 1),
			bytecode.NewInstruction(bytecode.OpAdd, 2, 1, 1),
		},
		Operands: map[bytecode.OperandId]bytecode.Value{
			1: bytecode.IntValue(21),
		},
		Responses: []bytecode.OperandId{2},
	}

	resp, err := conn.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != bytecode.StatusSuccess {
		t.Fatalf("status = %s (%s)", resp.Status, resp.Error)
	}
	if got, _ := resp.Values[2].AsInt(); got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
}

func TestClosedConnRejectsExecute(t *testing.T) {
	local := NewLocal(nil, interp.Options{}, nil)
	conn, err := Open(context.Background(), local)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	_, err = conn.Execute(context.Background(), &bytecode.Request{Version: bytecode.ProgramVersion})
	if err != ErrClosed {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestLocalManifestHonorsPolicy(t *testing.T) {
	policy := NewPermissivePolicy()
	policy.Deny(bytecode.CapabilityByteArray)

	local := NewLocal(nil, interp.Options{}, policy)
	conn, err := Open(context.Background(), local)
	if err != nil {
		t.Fatal(err)
	}
	if conn.SupportsCapability(bytecode.CapabilityByteArray) {
		t.Error("denied capability advertised by local channel")
	}
	if !conn.SupportsCapability(bytecode.CapabilityGuid) {
		t.Error("allowed capability missing from local channel")
	}
}
