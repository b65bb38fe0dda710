package remoteops

import (
	"context"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// Execute linearizes the graph, ships it over the pinned connection, and
// wraps the reply in a ResultSet. A transport failure comes back as a Go
// error; program-level failures are in the ResultSet. The graph is left
// intact and can be executed again.
func (op *Operation) Execute(ctx context.Context) (*ResultSet, error) {
	instructions := op.linearize()

	if op.conn == nil {
		if len(instructions) == 0 {
			// Nothing to run and nowhere to run it: an empty program
			// trivially succeeds with an empty value mapping.
			return newResultSet(&bytecode.Response{Status: bytecode.StatusSuccess}, op.responses), nil
		}
		return nil, ErrNoActiveConnection
	}

	req := &bytecode.Request{
		Version:      requiredVersion(instructions),
		Instructions: instructions,
		Responses:    op.responseIDs(),
	}
	if len(op.operands) > 0 {
		req.Operands = make(map[bytecode.OperandId]bytecode.Value, len(op.operands))
		for id, v := range op.operands {
			req.Operands[id] = v
		}
	}

	resp, err := op.conn.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return newResultSet(resp, op.responses), nil
}

// responseIDs returns the requested operand identities in first-request
// order, deduplicated.
func (op *Operation) responseIDs() []bytecode.OperandId {
	if len(op.responses) == 0 {
		return nil
	}
	seen := make(map[bytecode.OperandId]bool, len(op.responses))
	ids := make([]bytecode.OperandId, 0, len(op.responses))
	for _, tok := range op.responses {
		if !seen[tok.id] {
			seen[tok.id] = true
			ids = append(ids, tok.id)
		}
	}
	return ids
}

// requiredVersion is the lowest program version that carries every opcode
// in the stream, so older endpoints keep accepting programs that never use
// the newer instructions.
func requiredVersion(instructions []bytecode.Instruction) uint32 {
	version := uint32(1)
	for _, ins := range instructions {
		if min := bytecode.GetOpcodeInfo(ins.Op).MinVersion; min > version {
			version = min
		}
	}
	return version
}
