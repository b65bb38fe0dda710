// Package bytecode defines the remote operation program model: operand
// identities, the versioned opcode set, instructions, literal values, and
// the request/response wire structures exchanged with an executor.
package bytecode

import "fmt"

// OperandId identifies one operand of a program. Identities are allocated
// by the client builder starting at 1, strictly increasing, and never
// reused within one operation.
type OperandId int32

// NoOperand is the zero identity; no allocated operand ever carries it.
const NoOperand OperandId = 0

// String renders the identity in disassembly form.
func (id OperandId) String() string {
	return fmt.Sprintf("$%d", int32(id))
}
