package bytecode

import "fmt"

// ProgramVersion is the current program format version. Increment when the
// opcode set or wire structures change incompatibly.
const ProgramVersion uint32 = 3

// Status is the overall outcome of one remote execution.
type Status int32

const (
	StatusSuccess                  Status = 0
	StatusMalformedProgram         Status = 1
	StatusInstructionLimitExceeded Status = 2
	StatusUnhandledException       Status = 3
	StatusExecutionFailure         Status = 4
)

// String returns a human-readable name for a Status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusMalformedProgram:
		return "malformed-program"
	case StatusInstructionLimitExceeded:
		return "instruction-limit-exceeded"
	case StatusUnhandledException:
		return "unhandled-exception"
	case StatusExecutionFailure:
		return "execution-failure"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Failure codes delivered to except-scope handlers via GET_FAILURE_CODE.
// These are int32 values so a program can compare them like any other int.
const (
	FailureNone            int32 = 0x00
	FailureDivideByZero    int32 = 0x10
	FailureTypeMismatch    int32 = 0x11
	FailureUnboundOperand  int32 = 0x12
	FailureIndexOutOfRange int32 = 0x13
	FailureKeyNotFound     int32 = 0x14
	FailureNoSuchProperty  int32 = 0x15
	FailurePatternCall     int32 = 0x16
	FailureNoSuchObject    int32 = 0x17
)

// Request is the serialized form handed to an execution channel: the linear
// instruction stream, the operand table (literal payloads and imported
// object references keyed by destination OperandId), and the list of
// operands whose final values should be marshaled back. It is a transient
// in-memory artifact of one Execute call; nothing here is persisted.
type Request struct {
	Version      uint32              `cbor:"v"`
	Instructions []Instruction       `cbor:"p"`
	Operands     map[OperandId]Value `cbor:"o,omitempty"`
	Responses    []OperandId         `cbor:"r,omitempty"`
}

// Validate performs the structural checks an executor runs before
// interpreting a request: version compatibility, defined opcodes, operand
// arity, and jump targets inside the instruction stream.
func (r *Request) Validate() error {
	if r.Version == 0 || r.Version > ProgramVersion {
		return fmt.Errorf("bytecode: program version %d not supported (max %d)",
			r.Version, ProgramVersion)
	}
	n := int32(len(r.Instructions))
	for i, ins := range r.Instructions {
		if err := ins.Validate(); err != nil {
			return fmt.Errorf("bytecode: instruction %d: %w", i, err)
		}
		if !ins.Op.SupportedIn(r.Version) {
			return fmt.Errorf("bytecode: instruction %d: opcode %s requires version %d",
				i, ins.Op, GetOpcodeInfo(ins.Op).MinVersion)
		}
		if ins.Op.IsLoopControl() {
			return fmt.Errorf("bytecode: instruction %d: %s is not valid in linear form", i, ins.Op)
		}
		if GetOpcodeInfo(ins.Op).HasTarget {
			// TRY_BEGIN may carry NoTarget (handler-less frame); jumps
			// must land in range. Targets may point one past the end
			// (fall off = halt).
			if ins.Target == NoTarget {
				if ins.Op != OpTryBegin {
					return fmt.Errorf("bytecode: instruction %d: %s requires a target",
						i, ins.Op)
				}
			} else if ins.Target < 0 || ins.Target > n {
				return fmt.Errorf("bytecode: instruction %d: target %d out of range [0,%d]",
					i, ins.Target, n)
			}
		}
	}
	return nil
}

// Trace carries execution counters back to the client. Counts has one entry
// per instruction index and records how many times each instruction ran.
type Trace struct {
	Executed uint64   `cbor:"n"`
	Counts   []uint64 `cbor:"c,omitempty"`
}

// Response is what an execution channel returns: the overall status, the
// failure code of the aborting instruction when the program ended on an
// unhandled failure, and the value table for the requested operands.
type Response struct {
	Status      Status              `cbor:"s"`
	FailureCode int32               `cbor:"f,omitempty"`
	Error       string              `cbor:"e,omitempty"`
	Values      map[OperandId]Value `cbor:"o,omitempty"`
	Trace       *Trace              `cbor:"t,omitempty"`
}
