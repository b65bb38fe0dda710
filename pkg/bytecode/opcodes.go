package bytecode

import "fmt"

// Opcode identifies one remote operation instruction.
// Opcodes are organized into ranges by category for easy identification.
// The set is fixed and versioned: availability of an opcode on a given
// connection is queried through the channel's capability manifest, never
// negotiated.
type Opcode uint32

const (
	// ========================================================================
	// Miscellaneous (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation
	OpSet Opcode = 0x01 // Copy a value: Set <dst> <src>

	// ========================================================================
	// Literal construction (0x10-0x2F)
	// The destination operand's initial value travels in the operand table;
	// executing the instruction (re)materializes it into the register.
	// ========================================================================

	OpNewBool         Opcode = 0x10
	OpNewInt          Opcode = 0x11
	OpNewUint         Opcode = 0x12
	OpNewDouble       Opcode = 0x13
	OpNewChar         Opcode = 0x14
	OpNewString       Opcode = 0x15
	OpNewPoint        Opcode = 0x16
	OpNewRect         Opcode = 0x17
	OpNewGuid         Opcode = 0x18
	OpNewArray        Opcode = 0x19
	OpNewStringMap    Opcode = 0x1A
	OpNewByteArray    Opcode = 0x1B
	OpNewNull         Opcode = 0x1C
	OpNewEmpty        Opcode = 0x1D
	OpNewCacheRequest Opcode = 0x1E

	// ========================================================================
	// Arithmetic (0x30-0x3F): <dst> <lhs> <rhs>
	// ========================================================================

	OpAdd      Opcode = 0x30
	OpSubtract Opcode = 0x31
	OpMultiply Opcode = 0x32
	OpDivide   Opcode = 0x33

	// ========================================================================
	// Comparison (0x40-0x47): <dst:bool> <lhs> <rhs>
	// ========================================================================

	OpIsEqual              Opcode = 0x40
	OpIsNotEqual           Opcode = 0x41
	OpIsLessThan           Opcode = 0x42
	OpIsLessThanOrEqual    Opcode = 0x43
	OpIsGreaterThan        Opcode = 0x44
	OpIsGreaterThanOrEqual Opcode = 0x45

	// ========================================================================
	// Boolean (0x48-0x4F)
	// ========================================================================

	OpBoolNot Opcode = 0x48 // <dst> <a>
	OpBoolAnd Opcode = 0x49 // <dst> <a> <b>
	OpBoolOr  Opcode = 0x4A // <dst> <a> <b>

	// ========================================================================
	// String (0x50-0x57)
	// ========================================================================

	OpStringConcat Opcode = 0x50 // <dst> <a> <b>
	OpStringLength Opcode = 0x51 // <dst:int> <s>

	// ========================================================================
	// Array (0x58-0x5F)
	// ========================================================================

	OpArrayAppend   Opcode = 0x58 // <arr> <value>
	OpArraySize     Opcode = 0x59 // <dst:int> <arr>
	OpArrayGetAt    Opcode = 0x5A // <dst> <arr> <index>
	OpArraySetAt    Opcode = 0x5B // <arr> <index> <value>
	OpArrayRemoveAt Opcode = 0x5C // <arr> <index>

	// ========================================================================
	// String map (0x60-0x6F)
	// ========================================================================

	OpStringMapInsert Opcode = 0x60 // <map> <key> <value>
	OpStringMapLookup Opcode = 0x61 // <dst> <map> <key>
	OpStringMapHasKey Opcode = 0x62 // <dst:bool> <map> <key>
	OpStringMapRemove Opcode = 0x63 // <map> <key>
	OpStringMapSize   Opcode = 0x64 // <dst:int> <map>

	// ========================================================================
	// Element & pattern (0x70-0x7F)
	// ========================================================================

	OpGetPropertyValue Opcode = 0x70 // <dst> <element> <propertyId>
	OpNavigate         Opcode = 0x71 // <dst> <element> <direction>
	OpInvokePattern    Opcode = 0x72 // <dst> <element> <patternId> <methodId> [args...]

	// ========================================================================
	// Control transfer (0x80-0x8F) — emitted only by the linearizer.
	// Targets are absolute instruction indexes carried in Instruction.Target.
	// ========================================================================

	OpJump        Opcode = 0x80 // unconditional
	OpJumpIfFalse Opcode = 0x81 // <cond:bool>
	OpJumpIfTrue  Opcode = 0x82 // <cond:bool>

	// ========================================================================
	// Loop control (0x90-0x9F) — graph form only; the linearizer lowers
	// these to jumps targeting the enclosing loop's exit or update point.
	// ========================================================================

	OpBreakLoop    Opcode = 0x90
	OpContinueLoop Opcode = 0x91

	// ========================================================================
	// Exceptions & termination (0xA0-0xAF)
	// ========================================================================

	OpTryBegin              Opcode = 0xA0 // Target = handler index, -1 if none
	OpTryEnd                Opcode = 0xA1
	OpGetCurrentFailureCode Opcode = 0xA2 // <dst:int>
	OpReturnStatus          Opcode = 0xA3 // <status:int> — aborts the program
)

// OpcodeInfo provides metadata about each opcode for validation, the
// linearizer, and disassembly.
type OpcodeInfo struct {
	Name       string // Human-readable name
	Arity      int    // Number of operand slots (-1 = variable, minimum 4)
	HasResult  bool   // Operands[0] is a destination written by the instruction
	HasTarget  bool   // Instruction carries a jump/handler target
	MinVersion uint32 // First program version the opcode appears in
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop: {"NOP", 0, false, false, 1},
	OpSet: {"SET", 2, true, false, 1},

	OpNewBool:         {"NEW_BOOL", 1, true, false, 1},
	OpNewInt:          {"NEW_INT", 1, true, false, 1},
	OpNewUint:         {"NEW_UINT", 1, true, false, 1},
	OpNewDouble:       {"NEW_DOUBLE", 1, true, false, 1},
	OpNewChar:         {"NEW_CHAR", 1, true, false, 1},
	OpNewString:       {"NEW_STRING", 1, true, false, 1},
	OpNewPoint:        {"NEW_POINT", 1, true, false, 1},
	OpNewRect:         {"NEW_RECT", 1, true, false, 1},
	OpNewGuid:         {"NEW_GUID", 1, true, false, 2},
	OpNewArray:        {"NEW_ARRAY", 1, true, false, 1},
	OpNewStringMap:    {"NEW_STRING_MAP", 1, true, false, 1},
	OpNewByteArray:    {"NEW_BYTE_ARRAY", 1, true, false, 2},
	OpNewNull:         {"NEW_NULL", 1, true, false, 1},
	OpNewEmpty:        {"NEW_EMPTY", 1, true, false, 1},
	OpNewCacheRequest: {"NEW_CACHE_REQUEST", 1, true, false, 3},

	OpAdd:      {"ADD", 3, true, false, 1},
	OpSubtract: {"SUB", 3, true, false, 1},
	OpMultiply: {"MUL", 3, true, false, 1},
	OpDivide:   {"DIV", 3, true, false, 1},

	OpIsEqual:              {"IS_EQ", 3, true, false, 1},
	OpIsNotEqual:           {"IS_NE", 3, true, false, 1},
	OpIsLessThan:           {"IS_LT", 3, true, false, 1},
	OpIsLessThanOrEqual:    {"IS_LE", 3, true, false, 1},
	OpIsGreaterThan:        {"IS_GT", 3, true, false, 1},
	OpIsGreaterThanOrEqual: {"IS_GE", 3, true, false, 1},

	OpBoolNot: {"BOOL_NOT", 2, true, false, 1},
	OpBoolAnd: {"BOOL_AND", 3, true, false, 1},
	OpBoolOr:  {"BOOL_OR", 3, true, false, 1},

	OpStringConcat: {"STR_CONCAT", 3, true, false, 1},
	OpStringLength: {"STR_LEN", 2, true, false, 1},

	OpArrayAppend:   {"ARRAY_APPEND", 2, false, false, 1},
	OpArraySize:     {"ARRAY_SIZE", 2, true, false, 1},
	OpArrayGetAt:    {"ARRAY_GET_AT", 3, true, false, 1},
	OpArraySetAt:    {"ARRAY_SET_AT", 3, false, false, 1},
	OpArrayRemoveAt: {"ARRAY_REMOVE_AT", 2, false, false, 1},

	OpStringMapInsert: {"MAP_INSERT", 3, false, false, 1},
	OpStringMapLookup: {"MAP_LOOKUP", 3, true, false, 1},
	OpStringMapHasKey: {"MAP_HAS_KEY", 3, true, false, 1},
	OpStringMapRemove: {"MAP_REMOVE", 2, false, false, 1},
	OpStringMapSize:   {"MAP_SIZE", 2, true, false, 1},

	OpGetPropertyValue: {"GET_PROPERTY", 3, true, false, 1},
	OpNavigate:         {"NAVIGATE", 3, true, false, 2},
	OpInvokePattern:    {"INVOKE_PATTERN", -1, true, false, 3},

	OpJump:        {"JUMP", 0, false, true, 1},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 1, false, true, 1},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 1, false, true, 1},

	OpBreakLoop:    {"BREAK_LOOP", 0, false, false, 1},
	OpContinueLoop: {"CONTINUE_LOOP", 0, false, false, 1},

	OpTryBegin:              {"TRY_BEGIN", 0, false, true, 1},
	OpTryEnd:                {"TRY_END", 0, false, false, 1},
	OpGetCurrentFailureCode: {"GET_FAILURE_CODE", 1, true, false, 1},
	OpReturnStatus:          {"RETURN_STATUS", 1, false, false, 1},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not defined.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", uint32(op))}
}

// IsDefined reports whether the opcode belongs to the fixed opcode set.
func (op Opcode) IsDefined() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// HasResult reports whether Operands[0] is a destination.
func (op Opcode) HasResult() bool {
	return GetOpcodeInfo(op).HasResult
}

// IsJump reports whether this opcode transfers control in the linear form.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpJumpIfTrue
}

// IsLoopControl reports whether this opcode is a break/continue marker that
// only ever appears in the graph form of a program.
func (op Opcode) IsLoopControl() bool {
	return op == OpBreakLoop || op == OpContinueLoop
}

// SupportedIn reports whether the opcode exists in the given program version.
func (op Opcode) SupportedIn(version uint32) bool {
	info, ok := opcodeInfoTable[op]
	return ok && version >= info.MinVersion
}

// AllOpcodes returns all defined opcodes. Useful for building capability
// manifests and for testing that every opcode has metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// Named capabilities beyond the opcode table. Support for a capability is a
// property of the connection, queried the same way opcode support is.
const (
	CapabilityGuid         = "guid"
	CapabilityByteArray    = "byte-array"
	CapabilityCacheRequest = "cache-request"
)

// capabilityMinVersion maps named capabilities to the first program version
// that carries them.
var capabilityMinVersion = map[string]uint32{
	CapabilityGuid:         2,
	CapabilityByteArray:    2,
	CapabilityCacheRequest: 3,
}

// CapabilitySupportedIn reports whether a named capability exists in the
// given program version. Unknown capability names are never supported.
func CapabilitySupportedIn(capability string, version uint32) bool {
	min, ok := capabilityMinVersion[capability]
	return ok && version >= min
}

// AllCapabilities returns the named capabilities of the current version.
func AllCapabilities() []string {
	caps := make([]string, 0, len(capabilityMinVersion))
	for c := range capabilityMinVersion {
		caps = append(caps, c)
	}
	return caps
}
