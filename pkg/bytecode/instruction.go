package bytecode

import (
	"fmt"
	"strings"
)

// NoTarget marks a control instruction whose target is absent (for example a
// TRY_BEGIN without a handler).
const NoTarget int32 = -1

// Instruction is the atomic unit of a remote operation program: an opcode
// plus ordered operand references. For opcodes with a result, Operands[0] is
// the destination. Instructions are immutable once appended to a scope.
//
// Target is meaningful only for control-transfer and try instructions in the
// linear form, where it holds an absolute instruction index.
type Instruction struct {
	Op       Opcode      `cbor:"op"`
	Operands []OperandId `cbor:"in,omitempty"`
	Target   int32       `cbor:"t,omitempty"`
}

// NewInstruction builds an instruction over the given operand slots.
func NewInstruction(op Opcode, operands ...OperandId) Instruction {
	return Instruction{Op: op, Operands: operands, Target: NoTarget}
}

// Result returns the destination operand, if the opcode produces one.
func (ins Instruction) Result() (OperandId, bool) {
	if !ins.Op.HasResult() || len(ins.Operands) == 0 {
		return NoOperand, false
	}
	return ins.Operands[0], true
}

// Inputs returns the operand slots the instruction reads.
func (ins Instruction) Inputs() []OperandId {
	if ins.Op.HasResult() && len(ins.Operands) > 0 {
		return ins.Operands[1:]
	}
	return ins.Operands
}

// Validate checks the instruction against the opcode metadata table.
func (ins Instruction) Validate() error {
	info, ok := opcodeInfoTable[ins.Op]
	if !ok {
		return fmt.Errorf("bytecode: undefined opcode 0x%02X", uint32(ins.Op))
	}
	if info.Arity >= 0 && len(ins.Operands) != info.Arity {
		return fmt.Errorf("bytecode: %s expects %d operands, got %d",
			info.Name, info.Arity, len(ins.Operands))
	}
	if info.Arity < 0 && len(ins.Operands) < 4 {
		return fmt.Errorf("bytecode: %s expects at least 4 operands, got %d",
			info.Name, len(ins.Operands))
	}
	return nil
}

// String renders the instruction in disassembly form.
func (ins Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(ins.Op.String())
	for _, id := range ins.Operands {
		sb.WriteByte(' ')
		sb.WriteString(id.String())
	}
	if GetOpcodeInfo(ins.Op).HasTarget {
		if ins.Target == NoTarget {
			sb.WriteString(" -> (none)")
		} else {
			fmt.Fprintf(&sb, " -> @%d", ins.Target)
		}
	}
	return sb.String()
}
