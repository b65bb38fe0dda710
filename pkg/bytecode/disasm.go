package bytecode

import (
	"fmt"
	"sort"
	"strings"
)

// Disassemble returns a human-readable listing of a request: header,
// operand table, response requests, and the linear instruction stream with
// absolute indexes so jump targets can be followed by eye.
func Disassemble(r *Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "; Remote Operation Program v%d\n", r.Version)
	fmt.Fprintf(&sb, "; Instructions: %d\n", len(r.Instructions))

	if len(r.Operands) > 0 {
		sb.WriteString("\n; Operand table:\n")
		ids := make([]OperandId, 0, len(r.Operands))
		for id := range r.Operands {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			fmt.Fprintf(&sb, ";   %-6s %s\n", id, r.Operands[id])
		}
	}

	if len(r.Responses) > 0 {
		sb.WriteString("\n; Responses: ")
		for i, id := range r.Responses {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(id.String())
		}
		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
	for i, ins := range r.Instructions {
		fmt.Fprintf(&sb, "%04d  %s\n", i, ins)
	}

	return sb.String()
}
