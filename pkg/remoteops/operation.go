// Package remoteops builds remote operation programs. An Operation is an
// instruction graph under construction: literal constructors and stand-in
// methods append instructions to the current scope, control-flow blocks
// open nested scopes, and Execute linearizes the graph into a bytecode
// request and runs it over an execution channel.
//
// Construction-time failures (unsupported opcode, dangling operand, invalid
// control flow) fail the single call that raised them and leave the graph
// intact. Runtime failures come back in the ResultSet.
package remoteops

import (
	"fmt"

	"github.com/quartzui/remoteops/pkg/bytecode"
	"github.com/quartzui/remoteops/pkg/channel"
)

// Operation is an instruction graph under construction. Not safe for
// concurrent use; build a program from one goroutine.
type Operation struct {
	conn    *channel.Conn
	nextID  bytecode.OperandId
	root    *scope
	current *scope

	// operands holds literal payloads and imported object references,
	// keyed by the destination operand they initialize.
	operands map[bytecode.OperandId]bytecode.Value

	responses []ResponseToken
	nextToken uint64
}

// New creates an empty operation. conn may be nil; it is then pinned by the
// first import, and Execute requires one to be present.
func New(conn *channel.Conn) *Operation {
	root := newScope(ScopeRoot, nil)
	return &Operation{
		conn:     conn,
		root:     root,
		current:  root,
		operands: make(map[bytecode.OperandId]bytecode.Value),
	}
}

// Connection returns the connection the operation is pinned to, or nil.
func (op *Operation) Connection() *channel.Conn { return op.conn }

// allocate hands out operand identities. They start at 1, grow strictly,
// and are never reused, even when the call that allocated one fails.
func (op *Operation) allocate() bytecode.OperandId {
	op.nextID++
	return op.nextID
}

// checkOperand verifies a stand-in belongs to this operation and is visible
// from the current scope.
func (op *Operation) checkOperand(o Object) error {
	if o.op != op {
		return fmt.Errorf("%w: %s belongs to another operation", ErrDanglingOperand, o.id)
	}
	if !op.current.sees(o.id) {
		return fmt.Errorf("%w: %s", ErrDanglingOperand, o.id)
	}
	return nil
}

// checkOpcode enforces endpoint support when a connection is pinned. With
// no connection the check is deferred to the endpoint at Execute time.
func (op *Operation) checkOpcode(code bytecode.Opcode) error {
	if op.conn != nil && !op.conn.SupportsOpcode(code) {
		return fmt.Errorf("%w: %s", ErrUnsupportedOpcode, code)
	}
	return nil
}

// insert appends an instruction to the current scope. freshDst marks
// Operands[0] as newly allocated by the caller: it is defined here rather
// than checked for visibility.
func (op *Operation) insert(ins bytecode.Instruction, freshDst bool) error {
	if err := op.checkOpcode(ins.Op); err != nil {
		return err
	}
	start := 0
	if freshDst {
		start = 1
	}
	for _, id := range ins.Operands[start:] {
		if !op.current.sees(id) {
			return fmt.Errorf("%w: %s", ErrDanglingOperand, id)
		}
	}
	if freshDst {
		op.current.define(ins.Operands[0])
	}
	op.current.items = append(op.current.items, instructionItem{ins})
	return nil
}

// newLiteral allocates an operand, stashes its initial value in the operand
// table, and inserts the materializing instruction.
func (op *Operation) newLiteral(code bytecode.Opcode, v bytecode.Value) (Object, error) {
	if err := op.checkOpcode(code); err != nil {
		return Object{}, err
	}
	id := op.allocate()
	op.operands[id] = v
	op.current.define(id)
	op.current.items = append(op.current.items, instructionItem{
		ins: bytecode.NewInstruction(code, id),
	})
	return Object{op: op, id: id}, nil
}

// newCapabilityLiteral is newLiteral gated on a named capability.
func (op *Operation) newCapabilityLiteral(code bytecode.Opcode, capability string, v bytecode.Value) (Object, error) {
	if op.conn != nil && !op.conn.SupportsCapability(capability) {
		return Object{}, fmt.Errorf("%w: %s", ErrUnsupportedCapability, capability)
	}
	return op.newLiteral(code, v)
}

// NewBool creates a boolean operand initialized to v.
func (op *Operation) NewBool(v bool) (Bool, error) {
	o, err := op.newLiteral(bytecode.OpNewBool, bytecode.BoolValue(v))
	return Bool{o}, err
}

// NewInt creates a signed integer operand initialized to v.
func (op *Operation) NewInt(v int64) (Int, error) {
	o, err := op.newLiteral(bytecode.OpNewInt, bytecode.IntValue(v))
	return Int{o}, err
}

// NewUint creates an unsigned integer operand initialized to v.
func (op *Operation) NewUint(v uint64) (Uint, error) {
	o, err := op.newLiteral(bytecode.OpNewUint, bytecode.UintValue(v))
	return Uint{o}, err
}

// NewDouble creates a floating-point operand initialized to v.
func (op *Operation) NewDouble(v float64) (Double, error) {
	o, err := op.newLiteral(bytecode.OpNewDouble, bytecode.DoubleValue(v))
	return Double{o}, err
}

// NewChar creates a character operand initialized to r.
func (op *Operation) NewChar(r rune) (Char, error) {
	o, err := op.newLiteral(bytecode.OpNewChar, bytecode.CharValue(r))
	return Char{o}, err
}

// NewString creates a string operand initialized to s.
func (op *Operation) NewString(s string) (String, error) {
	o, err := op.newLiteral(bytecode.OpNewString, bytecode.StringValue(s))
	return String{o}, err
}

// NewPoint creates a point operand initialized to p.
func (op *Operation) NewPoint(p bytecode.Point) (Object, error) {
	return op.newLiteral(bytecode.OpNewPoint, bytecode.PointValue(p))
}

// NewRect creates a rectangle operand initialized to r.
func (op *Operation) NewRect(r bytecode.Rect) (Object, error) {
	return op.newLiteral(bytecode.OpNewRect, bytecode.RectValue(r))
}

// NewGuid creates a GUID operand. Requires the guid capability when a
// connection is pinned.
func (op *Operation) NewGuid(g [16]byte) (Object, error) {
	return op.newCapabilityLiteral(bytecode.OpNewGuid, bytecode.CapabilityGuid, bytecode.GuidValue(g))
}

// NewArray creates an empty array operand.
func (op *Operation) NewArray() (Array, error) {
	o, err := op.newLiteral(bytecode.OpNewArray, bytecode.ArrayValue(nil))
	return Array{o}, err
}

// NewStringMap creates an empty string-keyed map operand.
func (op *Operation) NewStringMap() (StringMap, error) {
	o, err := op.newLiteral(bytecode.OpNewStringMap, bytecode.StringMapValue(nil))
	return StringMap{o}, err
}

// NewByteArray creates a byte-array operand. Requires the byte-array
// capability when a connection is pinned.
func (op *Operation) NewByteArray(b []byte) (Object, error) {
	return op.newCapabilityLiteral(bytecode.OpNewByteArray, bytecode.CapabilityByteArray, bytecode.ByteArrayValue(b))
}

// NewNull creates a null operand.
func (op *Operation) NewNull() (Object, error) {
	return op.newLiteral(bytecode.OpNewNull, bytecode.NullValue())
}

// NewEmpty creates an empty (uninitialized) operand.
func (op *Operation) NewEmpty() (Object, error) {
	return op.newLiteral(bytecode.OpNewEmpty, bytecode.EmptyValue())
}

// NewCacheRequest creates a cache-request operand. Requires the
// cache-request capability when a connection is pinned.
func (op *Operation) NewCacheRequest() (Object, error) {
	return op.newCapabilityLiteral(bytecode.OpNewCacheRequest, bytecode.CapabilityCacheRequest,
		bytecode.CacheRequestValue())
}

// Object reference kinds used by the imports below.
const (
	refKindElement   = "element"
	refKindTextRange = "text-range"
)

// importObject pins the connection on first use and registers the imported
// reference in the root scope, so it is visible everywhere in the graph.
func (op *Operation) importObject(conn *channel.Conn, kind, ref string) (Object, error) {
	if conn == nil {
		return Object{}, fmt.Errorf("%w: import needs a connection", ErrNoActiveConnection)
	}
	if op.conn == nil {
		op.conn = conn
	} else if op.conn.ID() != conn.ID() {
		return Object{}, fmt.Errorf("%w: operation is bound to connection %d, import came from %d",
			ErrCrossConnectionImport, op.conn.ID(), conn.ID())
	}
	id := op.allocate()
	op.operands[id] = bytecode.ObjectRefValue(kind, ref)
	op.root.define(id)
	return Object{op: op, id: id}, nil
}

// ImportElement imports a UI element living on the given connection. The
// first import pins the operation to that connection; later imports must
// come from the same one.
func (op *Operation) ImportElement(conn *channel.Conn, ref string) (Element, error) {
	o, err := op.importObject(conn, refKindElement, ref)
	return Element{o}, err
}

// ImportTextRange imports a text range living on the given connection.
func (op *Operation) ImportTextRange(conn *channel.Conn, ref string) (TextRange, error) {
	o, err := op.importObject(conn, refKindTextRange, ref)
	return TextRange{o}, err
}

// ImportObject imports an arbitrary connection-bound object with a caller
// supplied kind tag.
func (op *Operation) ImportObject(conn *channel.Conn, kind, ref string) (Object, error) {
	return op.importObject(conn, kind, ref)
}

// IsOpcodeSupported reports whether the pinned connection's endpoint can
// execute the opcode. Fails with ErrNoActiveConnection when no connection
// is configured or pinned yet.
func (op *Operation) IsOpcodeSupported(code bytecode.Opcode) (bool, error) {
	if op.conn == nil {
		return false, ErrNoActiveConnection
	}
	return op.conn.SupportsOpcode(code), nil
}

// IsCapabilitySupported reports whether the pinned connection's endpoint
// declared the named capability.
func (op *Operation) IsCapabilitySupported(name string) (bool, error) {
	if op.conn == nil {
		return false, ErrNoActiveConnection
	}
	return op.conn.SupportsCapability(name), nil
}

// IsGuidSupported reports whether GUID operands can be used here.
func (op *Operation) IsGuidSupported() (bool, error) {
	return op.IsCapabilitySupported(bytecode.CapabilityGuid)
}

// IsCacheRequestSupported reports whether cache-request operands can be
// used here.
func (op *Operation) IsCacheRequestSupported() (bool, error) {
	return op.IsCapabilitySupported(bytecode.CapabilityCacheRequest)
}
