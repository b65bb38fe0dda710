package remoteops

import (
	"context"
	"errors"
	"testing"

	"github.com/quartzui/remoteops/pkg/bytecode"
	"github.com/quartzui/remoteops/pkg/channel"
	"github.com/quartzui/remoteops/pkg/interp"
)

func newTestConn(t *testing.T, policy *channel.Policy) *channel.Conn {
	t.Helper()
	conn, err := channel.Open(context.Background(), channel.NewLocal(nil, interp.Options{}, policy))
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestOperandIdsStrictlyIncreasing(t *testing.T) {
	op := New(nil)

	a, err := op.NewInt(1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := op.NewString("x")
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Add(a)
	if err != nil {
		t.Fatal(err)
	}

	ids := []bytecode.OperandId{a.ID(), b.ID(), c.ID()}
	if ids[0] != 1 {
		t.Errorf("first id = %s, want $1", ids[0])
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids not strictly increasing: %v", ids)
		}
	}
}

func TestFailedCallDoesNotReuseIds(t *testing.T) {
	op := New(nil)
	a, _ := op.NewInt(1)

	// A stand-in from another operation is rejected; the allocator keeps
	// moving strictly forward regardless.
	other := New(nil)
	foreign, _ := other.NewInt(2)
	if _, err := a.Add(foreign); !errors.Is(err, ErrDanglingOperand) {
		t.Fatalf("err = %v, want ErrDanglingOperand", err)
	}

	b, _ := op.NewInt(3)
	if b.ID() <= a.ID() {
		t.Errorf("id %s not past %s after failed call", b.ID(), a.ID())
	}
}

func TestCrossConnectionImportBothOrders(t *testing.T) {
	connA := newTestConn(t, nil)
	connB := newTestConn(t, nil)

	tests := []struct {
		name          string
		first, second *channel.Conn
	}{
		{"a-then-b", connA, connB},
		{"b-then-a", connB, connA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := New(nil)
			if _, err := op.ImportElement(tt.first, "root"); err != nil {
				t.Fatalf("first import: %v", err)
			}
			if _, err := op.ImportElement(tt.second, "root"); !errors.Is(err, ErrCrossConnectionImport) {
				t.Errorf("second import err = %v, want ErrCrossConnectionImport", err)
			}
		})
	}
}

func TestImportPinsConfiguredConnection(t *testing.T) {
	connA := newTestConn(t, nil)
	connB := newTestConn(t, nil)

	op := New(connA)
	if _, err := op.ImportElement(connB, "root"); !errors.Is(err, ErrCrossConnectionImport) {
		t.Errorf("err = %v, want ErrCrossConnectionImport", err)
	}
	if _, err := op.ImportElement(connA, "root"); err != nil {
		t.Errorf("same-connection import failed: %v", err)
	}
}

func TestScopeRestoredAfterHandlerError(t *testing.T) {
	op := New(nil)
	cond, _ := op.NewBool(true)

	boom := errors.New("boom")
	err := op.IfBlock(cond, func() error { return boom }, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("handler error not propagated: %v", err)
	}

	// Back at root: loop control must be rejected, and new operands must
	// land in the root scope (visible to a root-level instruction).
	if err := op.BreakLoop(); !errors.Is(err, ErrInvalidControlFlow) {
		t.Errorf("BreakLoop after failed IfBlock: err = %v, want ErrInvalidControlFlow", err)
	}
	a, _ := op.NewInt(1)
	if _, err := a.Add(a); err != nil {
		t.Errorf("root-scope insertion after failed handler: %v", err)
	}
}

func TestScopeRestoredAfterHandlerPanic(t *testing.T) {
	op := New(nil)
	cond, _ := op.NewBool(true)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		op.WhileBlock(cond, func() error { panic("boom") }, nil)
	}()

	// If the body scope leaked, BreakLoop would succeed here.
	if err := op.BreakLoop(); !errors.Is(err, ErrInvalidControlFlow) {
		t.Errorf("BreakLoop after panicked handler: err = %v, want ErrInvalidControlFlow", err)
	}
}

func TestBreakLoopPlacement(t *testing.T) {
	op := New(nil)

	if err := op.BreakLoop(); !errors.Is(err, ErrInvalidControlFlow) {
		t.Errorf("BreakLoop at root: err = %v, want ErrInvalidControlFlow", err)
	}

	cond, _ := op.NewBool(true)
	err := op.WhileBlock(cond, func() error {
		// Break from an if block nested in the loop body is legal.
		return op.IfBlock(cond, func() error {
			return op.BreakLoop()
		}, nil)
	}, nil)
	if err != nil {
		t.Errorf("BreakLoop inside nested IfBlock: %v", err)
	}
}

func TestContinueLoopPlacement(t *testing.T) {
	op := New(nil)
	if err := op.ContinueLoop(); !errors.Is(err, ErrInvalidControlFlow) {
		t.Errorf("ContinueLoop at root: err = %v, want ErrInvalidControlFlow", err)
	}

	cond, _ := op.NewBool(true)
	if err := op.WhileBlock(cond, func() error { return op.ContinueLoop() }, nil); err != nil {
		t.Errorf("ContinueLoop inside loop body: %v", err)
	}
}

func TestGetCurrentFailureCodePlacement(t *testing.T) {
	op := New(nil)
	if _, err := op.GetCurrentFailureCode(); !errors.Is(err, ErrInvalidControlFlow) {
		t.Errorf("at root: err = %v, want ErrInvalidControlFlow", err)
	}

	err := op.TryBlock(func() error {
		_, err := op.GetCurrentFailureCode()
		if !errors.Is(err, ErrInvalidControlFlow) {
			t.Errorf("in try body: err = %v, want ErrInvalidControlFlow", err)
		}
		return nil
	}, func() error {
		_, err := op.GetCurrentFailureCode()
		return err
	})
	if err != nil {
		t.Errorf("in except body: %v", err)
	}
}

func TestScopedOperandNotVisibleOutside(t *testing.T) {
	op := New(nil)
	cond, _ := op.NewBool(true)

	var inner Int
	err := op.IfBlock(cond, func() error {
		var err error
		inner, err = op.NewInt(7)
		return err
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := inner.Add(inner); !errors.Is(err, ErrDanglingOperand) {
		t.Errorf("scoped operand used at root: err = %v, want ErrDanglingOperand", err)
	}
}

func TestRootOperandVisibleInsideBlocks(t *testing.T) {
	op := New(nil)
	cond, _ := op.NewBool(true)
	x, _ := op.NewInt(1)

	err := op.IfBlock(cond, func() error {
		_, err := x.Add(x)
		return err
	}, func() error {
		_, err := x.Subtract(x)
		return err
	})
	if err != nil {
		t.Errorf("root operand inside branches: %v", err)
	}
}

func TestCapabilityGating(t *testing.T) {
	policy := channel.NewPermissivePolicy()
	policy.Deny(bytecode.CapabilityGuid)
	conn := newTestConn(t, policy)

	op := New(conn)
	if _, err := op.NewGuid([16]byte{1}); !errors.Is(err, ErrUnsupportedCapability) {
		t.Errorf("NewGuid on guid-less connection: err = %v, want ErrUnsupportedCapability", err)
	}
	ok, err := op.IsGuidSupported()
	if err != nil || ok {
		t.Errorf("IsGuidSupported = (%v, %v), want (false, nil)", ok, err)
	}
	ok, err = op.IsCacheRequestSupported()
	if err != nil || !ok {
		t.Errorf("IsCacheRequestSupported = (%v, %v), want (true, nil)", ok, err)
	}

	// Without any connection the query itself has nothing to ask.
	unpinned := New(nil)
	if _, err := unpinned.IsGuidSupported(); !errors.Is(err, ErrNoActiveConnection) {
		t.Errorf("IsGuidSupported without connection: err = %v, want ErrNoActiveConnection", err)
	}
	// But the constructor is fine; support is checked at Execute by the
	// endpoint itself.
	if _, err := unpinned.NewGuid([16]byte{1}); err != nil {
		t.Errorf("NewGuid without connection: %v", err)
	}
}

func TestRequestResponseChecksVisibility(t *testing.T) {
	op := New(nil)
	x, _ := op.NewInt(1)
	if _, err := op.RequestResponse(x.Object); err != nil {
		t.Errorf("RequestResponse on root operand: %v", err)
	}

	other := New(nil)
	y, _ := other.NewInt(2)
	if _, err := op.RequestResponse(y.Object); !errors.Is(err, ErrDanglingOperand) {
		t.Errorf("foreign stand-in: err = %v, want ErrDanglingOperand", err)
	}
}
