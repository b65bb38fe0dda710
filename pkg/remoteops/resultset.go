package remoteops

import (
	"fmt"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// ResponseToken is an opaque receipt for one RequestResponse call. Two
// requests for the same stand-in yield distinct tokens that resolve to the
// same value.
type ResponseToken struct {
	seq uint64
	id  bytecode.OperandId
}

// RequestResponse asks for the stand-in's final value to be marshaled back
// after execution. Only requested operands travel back.
func (op *Operation) RequestResponse(o Object) (ResponseToken, error) {
	if err := op.checkOperand(o); err != nil {
		return ResponseToken{}, err
	}
	op.nextToken++
	tok := ResponseToken{seq: op.nextToken, id: o.id}
	op.responses = append(op.responses, tok)
	return tok, nil
}

// ResultSet is the outcome of one Execute call.
type ResultSet struct {
	status      bytecode.Status
	failureCode int32
	errMsg      string
	values      map[bytecode.OperandId]bytecode.Value
	byToken     map[uint64]bytecode.OperandId
	trace       *bytecode.Trace
}

func newResultSet(resp *bytecode.Response, tokens []ResponseToken) *ResultSet {
	rs := &ResultSet{
		status:      resp.Status,
		failureCode: resp.FailureCode,
		errMsg:      resp.Error,
		values:      resp.Values,
		byToken:     make(map[uint64]bytecode.OperandId, len(tokens)),
		trace:       resp.Trace,
	}
	for _, tok := range tokens {
		rs.byToken[tok.seq] = tok.id
	}
	return rs
}

// Status returns the overall execution status.
func (rs *ResultSet) Status() bytecode.Status { return rs.status }

// FailureCode returns the failure code of the instruction that ended the
// program, when the status carries one.
func (rs *ResultSet) FailureCode() int32 { return rs.failureCode }

// Succeeded reports whether the program ran to completion.
func (rs *ResultSet) Succeeded() bool { return rs.status == bytecode.StatusSuccess }

// Err returns nil on success, otherwise an error describing the outcome.
func (rs *ResultSet) Err() error {
	if rs.Succeeded() {
		return nil
	}
	if rs.errMsg != "" {
		return fmt.Errorf("remoteops: execution ended with %s: %s", rs.status, rs.errMsg)
	}
	return fmt.Errorf("remoteops: execution ended with %s (failure code %#x)", rs.status, rs.failureCode)
}

// Trace returns execution counters when the endpoint supplied them.
func (rs *ResultSet) Trace() *bytecode.Trace { return rs.trace }

// Value resolves a response token to its marshaled value. Failures resolve
// per token; a bad token does not taint the rest of the set.
func (rs *ResultSet) Value(tok ResponseToken) (bytecode.Value, error) {
	id, ok := rs.byToken[tok.seq]
	if !ok {
		return bytecode.Value{}, fmt.Errorf("remoteops: unknown response token %d", tok.seq)
	}
	if !rs.Succeeded() {
		return bytecode.Value{}, fmt.Errorf("remoteops: no values, execution ended with %s", rs.status)
	}
	v, ok := rs.values[id]
	if !ok {
		return bytecode.Value{}, fmt.Errorf("remoteops: no value marshaled for %s", id)
	}
	return v, nil
}
