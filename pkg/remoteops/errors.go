package remoteops

import "errors"

// Construction-time errors. Each one fails the single builder call that
// raised it; the instruction graph built so far is left intact.
var (
	// ErrUnsupportedOpcode is returned when the pinned connection's endpoint
	// does not implement the opcode an operation would insert.
	ErrUnsupportedOpcode = errors.New("remoteops: opcode not supported by connection")

	// ErrUnsupportedCapability is returned when a literal constructor needs
	// a named capability the pinned connection's endpoint lacks.
	ErrUnsupportedCapability = errors.New("remoteops: capability not supported by connection")

	// ErrCrossConnectionImport is returned when an import would mix objects
	// from two different connections into one operation.
	ErrCrossConnectionImport = errors.New("remoteops: import from a different connection")

	// ErrDanglingOperand is returned when an instruction references an
	// operand that is not visible in the current scope, or that belongs to
	// another operation.
	ErrDanglingOperand = errors.New("remoteops: operand not visible in current scope")

	// ErrInvalidControlFlow is returned by BreakLoop/ContinueLoop outside a
	// loop body and by GetCurrentFailureCode outside an except scope.
	ErrInvalidControlFlow = errors.New("remoteops: invalid control flow")

	// ErrNoActiveConnection is returned by connection-dependent queries and
	// by Execute when no connection is configured or pinned.
	ErrNoActiveConnection = errors.New("remoteops: no active connection")
)
