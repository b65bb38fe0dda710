// Package interp executes linearized remote operation programs. It is the
// provider-side half of the execution channel: the client builds and
// serializes a program, the interpreter runs it against a Provider and
// returns the requested operand values.
package interp

import (
	"fmt"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// DefaultMaxInstructions bounds runaway loops when no explicit limit is set.
const DefaultMaxInstructions uint64 = 1_000_000

// Options configures an Interpreter.
type Options struct {
	// MaxInstructions is the execution budget. 0 means DefaultMaxInstructions.
	MaxInstructions uint64
}

// Interpreter runs programs. It is stateless between Run calls and safe to
// share across goroutines as long as the Provider is.
type Interpreter struct {
	provider Provider
	maxIns   uint64
}

// New creates an interpreter over the given provider. A nil provider is
// allowed; programs that touch imported objects then fail at runtime with
// FailureNoSuchObject.
func New(provider Provider, opts Options) *Interpreter {
	maxIns := opts.MaxInstructions
	if maxIns == 0 {
		maxIns = DefaultMaxInstructions
	}
	return &Interpreter{provider: provider, maxIns: maxIns}
}

// execFailure is a recoverable runtime failure: dispatched to the innermost
// try handler if one is active, otherwise it aborts the program.
type execFailure struct {
	code int32
	msg  string
}

func (f *execFailure) Error() string { return f.msg }

func failf(code int32, format string, args ...any) *execFailure {
	return &execFailure{code: code, msg: fmt.Sprintf(format, args...)}
}

type tryFrame struct {
	handler int32 // NoTarget when the try block has no except scope
}

// Run executes a request to completion and returns the response. Errors are
// never returned as Go errors; every outcome is expressed in the response
// status so the channel can forward it verbatim.
func (in *Interpreter) Run(req *bytecode.Request) *bytecode.Response {
	if err := req.Validate(); err != nil {
		return &bytecode.Response{
			Status: bytecode.StatusMalformedProgram,
			Error:  err.Error(),
		}
	}

	st := &state{
		req:       req,
		registers: make(map[bytecode.OperandId]bytecode.Value, len(req.Operands)),
		trace: &bytecode.Trace{
			Counts: make([]uint64, len(req.Instructions)),
		},
		provider: in.provider,
	}

	// Imported objects are live from the start; literals materialize when
	// their NEW_* instruction executes.
	for id, v := range req.Operands {
		if v.Kind == bytecode.KindObjectRef {
			st.registers[id] = v
		}
	}

	status, code, errMsg := st.run(in.maxIns)

	resp := &bytecode.Response{
		Status:      status,
		FailureCode: code,
		Error:       errMsg,
		Trace:       st.trace,
	}
	if status == bytecode.StatusSuccess && len(req.Responses) > 0 {
		resp.Values = make(map[bytecode.OperandId]bytecode.Value, len(req.Responses))
		for _, id := range req.Responses {
			if v, ok := st.registers[id]; ok {
				resp.Values[id] = v
			}
		}
	}
	return resp
}

type state struct {
	req       *bytecode.Request
	registers map[bytecode.OperandId]bytecode.Value
	tryStack  []tryFrame
	failure   int32 // last dispatched failure code, read by GET_FAILURE_CODE
	trace     *bytecode.Trace
	provider  Provider
}

func (st *state) run(budget uint64) (bytecode.Status, int32, string) {
	ip := int32(0)
	n := int32(len(st.req.Instructions))

	for ip >= 0 && ip < n {
		if st.trace.Executed >= budget {
			return bytecode.StatusInstructionLimitExceeded, bytecode.FailureNone,
				fmt.Sprintf("interp: exceeded budget of %d instructions", budget)
		}
		st.trace.Executed++
		st.trace.Counts[ip]++

		ins := st.req.Instructions[ip]
		next := ip + 1

		switch ins.Op {
		case bytecode.OpReturnStatus:
			code, fail := st.intOperand(ins.Operands[0])
			if fail != nil {
				if target, ok := st.dispatch(fail); ok {
					next = target
					break
				}
				return bytecode.StatusUnhandledException, fail.code, fail.msg
			}
			if code == 0 {
				return bytecode.StatusSuccess, 0, ""
			}
			return bytecode.StatusExecutionFailure, int32(code), ""

		case bytecode.OpJump:
			next = ins.Target

		case bytecode.OpJumpIfFalse, bytecode.OpJumpIfTrue:
			cond, ok := st.registers[ins.Operands[0]]
			if !ok {
				if target, ok := st.dispatch(failf(bytecode.FailureUnboundOperand,
					"interp: operand %s unbound at @%d", ins.Operands[0], ip)); ok {
					next = target
					break
				}
				return bytecode.StatusUnhandledException, bytecode.FailureUnboundOperand,
					fmt.Sprintf("interp: operand %s unbound at @%d", ins.Operands[0], ip)
			}
			b, isBool := cond.AsBool()
			if !isBool {
				fail := failf(bytecode.FailureTypeMismatch,
					"interp: %s condition is %s, want bool", ins.Op, cond.Kind)
				if target, ok := st.dispatch(fail); ok {
					next = target
					break
				}
				return bytecode.StatusUnhandledException, fail.code, fail.msg
			}
			if (ins.Op == bytecode.OpJumpIfFalse && !b) || (ins.Op == bytecode.OpJumpIfTrue && b) {
				next = ins.Target
			}

		case bytecode.OpTryBegin:
			st.tryStack = append(st.tryStack, tryFrame{handler: ins.Target})

		case bytecode.OpTryEnd:
			if len(st.tryStack) == 0 {
				return bytecode.StatusMalformedProgram, bytecode.FailureNone,
					fmt.Sprintf("interp: TRY_END without TRY_BEGIN at @%d", ip)
			}
			st.tryStack = st.tryStack[:len(st.tryStack)-1]

		default:
			if fail := st.exec(ins); fail != nil {
				if target, ok := st.dispatch(fail); ok {
					next = target
					break
				}
				return bytecode.StatusUnhandledException, fail.code, fail.msg
			}
		}

		ip = next
	}

	return bytecode.StatusSuccess, 0, ""
}

// dispatch routes a runtime failure to the innermost active try handler.
// The frame is consumed; a handler-less frame aborts the program.
func (st *state) dispatch(fail *execFailure) (int32, bool) {
	for len(st.tryStack) > 0 {
		frame := st.tryStack[len(st.tryStack)-1]
		st.tryStack = st.tryStack[:len(st.tryStack)-1]
		if frame.handler != bytecode.NoTarget {
			st.failure = fail.code
			return frame.handler, true
		}
	}
	return 0, false
}

// exec runs one non-control instruction. It returns nil on success.
func (st *state) exec(ins bytecode.Instruction) *execFailure {
	switch ins.Op {
	case bytecode.OpNop:
		return nil

	case bytecode.OpSet:
		src, fail := st.load(ins.Operands[1])
		if fail != nil {
			return fail
		}
		// SET is a value copy. Arrays and maps need a fresh backing
		// store so later mutation of either operand leaves the other alone.
		st.registers[ins.Operands[0]] = copyValue(src)
		return nil

	case bytecode.OpNewBool, bytecode.OpNewInt, bytecode.OpNewUint,
		bytecode.OpNewDouble, bytecode.OpNewChar, bytecode.OpNewString,
		bytecode.OpNewPoint, bytecode.OpNewRect, bytecode.OpNewGuid,
		bytecode.OpNewArray, bytecode.OpNewStringMap, bytecode.OpNewByteArray,
		bytecode.OpNewNull, bytecode.OpNewEmpty, bytecode.OpNewCacheRequest:
		return st.materialize(ins.Operands[0])

	case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide:
		return st.arith(ins)

	case bytecode.OpIsEqual, bytecode.OpIsNotEqual:
		a, fail := st.load(ins.Operands[1])
		if fail != nil {
			return fail
		}
		b, fail := st.load(ins.Operands[2])
		if fail != nil {
			return fail
		}
		eq := a.Equal(b)
		if ins.Op == bytecode.OpIsNotEqual {
			eq = !eq
		}
		st.registers[ins.Operands[0]] = bytecode.BoolValue(eq)
		return nil

	case bytecode.OpIsLessThan, bytecode.OpIsLessThanOrEqual,
		bytecode.OpIsGreaterThan, bytecode.OpIsGreaterThanOrEqual:
		return st.compare(ins)

	case bytecode.OpBoolNot:
		a, fail := st.boolOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		st.registers[ins.Operands[0]] = bytecode.BoolValue(!a)
		return nil

	case bytecode.OpBoolAnd, bytecode.OpBoolOr:
		a, fail := st.boolOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		b, fail := st.boolOperand(ins.Operands[2])
		if fail != nil {
			return fail
		}
		var r bool
		if ins.Op == bytecode.OpBoolAnd {
			r = a && b
		} else {
			r = a || b
		}
		st.registers[ins.Operands[0]] = bytecode.BoolValue(r)
		return nil

	case bytecode.OpStringConcat:
		a, fail := st.stringOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		b, fail := st.stringOperand(ins.Operands[2])
		if fail != nil {
			return fail
		}
		st.registers[ins.Operands[0]] = bytecode.StringValue(a + b)
		return nil

	case bytecode.OpStringLength:
		s, fail := st.stringOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		st.registers[ins.Operands[0]] = bytecode.IntValue(int64(len([]rune(s))))
		return nil

	case bytecode.OpArrayAppend:
		arr, fail := st.arrayOperand(ins.Operands[0])
		if fail != nil {
			return fail
		}
		v, fail := st.load(ins.Operands[1])
		if fail != nil {
			return fail
		}
		arr.Array = append(arr.Array, v)
		st.registers[ins.Operands[0]] = arr
		return nil

	case bytecode.OpArraySize:
		arr, fail := st.arrayOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		st.registers[ins.Operands[0]] = bytecode.IntValue(int64(len(arr.Array)))
		return nil

	case bytecode.OpArrayGetAt:
		arr, fail := st.arrayOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		idx, fail := st.indexOperand(ins.Operands[2], len(arr.Array))
		if fail != nil {
			return fail
		}
		st.registers[ins.Operands[0]] = arr.Array[idx]
		return nil

	case bytecode.OpArraySetAt:
		arr, fail := st.arrayOperand(ins.Operands[0])
		if fail != nil {
			return fail
		}
		idx, fail := st.indexOperand(ins.Operands[1], len(arr.Array))
		if fail != nil {
			return fail
		}
		v, fail := st.load(ins.Operands[2])
		if fail != nil {
			return fail
		}
		arr.Array[idx] = v
		st.registers[ins.Operands[0]] = arr
		return nil

	case bytecode.OpArrayRemoveAt:
		arr, fail := st.arrayOperand(ins.Operands[0])
		if fail != nil {
			return fail
		}
		idx, fail := st.indexOperand(ins.Operands[1], len(arr.Array))
		if fail != nil {
			return fail
		}
		arr.Array = append(arr.Array[:idx], arr.Array[idx+1:]...)
		st.registers[ins.Operands[0]] = arr
		return nil

	case bytecode.OpStringMapInsert:
		m, fail := st.mapOperand(ins.Operands[0])
		if fail != nil {
			return fail
		}
		k, fail := st.stringOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		v, fail := st.load(ins.Operands[2])
		if fail != nil {
			return fail
		}
		if m.Map == nil {
			m.Map = make(map[string]bytecode.Value)
		}
		m.Map[k] = v
		st.registers[ins.Operands[0]] = m
		return nil

	case bytecode.OpStringMapLookup:
		m, fail := st.mapOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		k, fail := st.stringOperand(ins.Operands[2])
		if fail != nil {
			return fail
		}
		v, ok := m.Map[k]
		if !ok {
			return failf(bytecode.FailureKeyNotFound, "interp: key %q not found", k)
		}
		st.registers[ins.Operands[0]] = v
		return nil

	case bytecode.OpStringMapHasKey:
		m, fail := st.mapOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		k, fail := st.stringOperand(ins.Operands[2])
		if fail != nil {
			return fail
		}
		_, ok := m.Map[k]
		st.registers[ins.Operands[0]] = bytecode.BoolValue(ok)
		return nil

	case bytecode.OpStringMapRemove:
		m, fail := st.mapOperand(ins.Operands[0])
		if fail != nil {
			return fail
		}
		k, fail := st.stringOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		if _, ok := m.Map[k]; !ok {
			return failf(bytecode.FailureKeyNotFound, "interp: key %q not found", k)
		}
		delete(m.Map, k)
		st.registers[ins.Operands[0]] = m
		return nil

	case bytecode.OpStringMapSize:
		m, fail := st.mapOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		st.registers[ins.Operands[0]] = bytecode.IntValue(int64(len(m.Map)))
		return nil

	case bytecode.OpGetPropertyValue:
		ref, fail := st.refOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		prop, fail := st.intOperand(ins.Operands[2])
		if fail != nil {
			return fail
		}
		if st.provider == nil {
			return failf(bytecode.FailureNoSuchObject, "interp: no provider for object %q", ref)
		}
		v, err := st.provider.GetProperty(ref, int32(prop))
		if err != nil {
			return failf(bytecode.FailureNoSuchProperty,
				"interp: property %d on %q: %v", prop, ref, err)
		}
		st.registers[ins.Operands[0]] = v
		return nil

	case bytecode.OpNavigate:
		ref, fail := st.refOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		dir, fail := st.intOperand(ins.Operands[2])
		if fail != nil {
			return fail
		}
		if st.provider == nil {
			return failf(bytecode.FailureNoSuchObject, "interp: no provider for object %q", ref)
		}
		v, err := st.provider.Navigate(ref, int32(dir))
		if err != nil {
			return failf(bytecode.FailureNoSuchObject,
				"interp: navigate %d from %q: %v", dir, ref, err)
		}
		st.registers[ins.Operands[0]] = v
		return nil

	case bytecode.OpInvokePattern:
		ref, fail := st.refOperand(ins.Operands[1])
		if fail != nil {
			return fail
		}
		pattern, fail := st.intOperand(ins.Operands[2])
		if fail != nil {
			return fail
		}
		method, fail := st.intOperand(ins.Operands[3])
		if fail != nil {
			return fail
		}
		args := make([]bytecode.Value, 0, len(ins.Operands)-4)
		for _, id := range ins.Operands[4:] {
			v, fail := st.load(id)
			if fail != nil {
				return fail
			}
			args = append(args, v)
		}
		if st.provider == nil {
			return failf(bytecode.FailureNoSuchObject, "interp: no provider for object %q", ref)
		}
		v, err := st.provider.InvokePattern(ref, int32(pattern), int32(method), args)
		if err != nil {
			return failf(bytecode.FailurePatternCall,
				"interp: pattern %d method %d on %q: %v", pattern, method, ref, err)
		}
		st.registers[ins.Operands[0]] = v
		return nil

	case bytecode.OpGetCurrentFailureCode:
		st.registers[ins.Operands[0]] = bytecode.IntValue(int64(st.failure))
		return nil

	default:
		return failf(bytecode.FailureTypeMismatch, "interp: unexpected opcode %s", ins.Op)
	}
}

// materialize copies a literal from the operand table into its register.
// Re-executing a NEW_* instruction (e.g. inside a loop) resets the operand
// to its declared initial value.
func (st *state) materialize(id bytecode.OperandId) *execFailure {
	v, ok := st.req.Operands[id]
	if !ok {
		return failf(bytecode.FailureUnboundOperand,
			"interp: no literal payload for %s", id)
	}
	// Arrays and maps get a fresh copy so loop re-initialization starts clean.
	st.registers[id] = copyValue(v)
	return nil
}

// copyValue returns v with arrays and string maps rebuilt on fresh backing
// storage. Scalar kinds pass through unchanged.
func copyValue(v bytecode.Value) bytecode.Value {
	switch v.Kind {
	case bytecode.KindArray:
		a := make([]bytecode.Value, len(v.Array))
		for i, e := range v.Array {
			a[i] = copyValue(e)
		}
		v.Array = a
	case bytecode.KindStringMap:
		m := make(map[string]bytecode.Value, len(v.Map))
		for k, e := range v.Map {
			m[k] = copyValue(e)
		}
		v.Map = m
	}
	return v
}

func (st *state) load(id bytecode.OperandId) (bytecode.Value, *execFailure) {
	v, ok := st.registers[id]
	if !ok {
		return bytecode.Value{}, failf(bytecode.FailureUnboundOperand,
			"interp: operand %s unbound", id)
	}
	return v, nil
}

func (st *state) boolOperand(id bytecode.OperandId) (bool, *execFailure) {
	v, fail := st.load(id)
	if fail != nil {
		return false, fail
	}
	b, ok := v.AsBool()
	if !ok {
		return false, failf(bytecode.FailureTypeMismatch,
			"interp: operand %s is %s, want bool", id, v.Kind)
	}
	return b, nil
}

func (st *state) intOperand(id bytecode.OperandId) (int64, *execFailure) {
	v, fail := st.load(id)
	if fail != nil {
		return 0, fail
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, failf(bytecode.FailureTypeMismatch,
			"interp: operand %s is %s, want int", id, v.Kind)
	}
	return i, nil
}

func (st *state) stringOperand(id bytecode.OperandId) (string, *execFailure) {
	v, fail := st.load(id)
	if fail != nil {
		return "", fail
	}
	s, ok := v.AsString()
	if !ok {
		return "", failf(bytecode.FailureTypeMismatch,
			"interp: operand %s is %s, want string", id, v.Kind)
	}
	return s, nil
}

func (st *state) arrayOperand(id bytecode.OperandId) (bytecode.Value, *execFailure) {
	v, fail := st.load(id)
	if fail != nil {
		return bytecode.Value{}, fail
	}
	if v.Kind != bytecode.KindArray {
		return bytecode.Value{}, failf(bytecode.FailureTypeMismatch,
			"interp: operand %s is %s, want array", id, v.Kind)
	}
	return v, nil
}

func (st *state) mapOperand(id bytecode.OperandId) (bytecode.Value, *execFailure) {
	v, fail := st.load(id)
	if fail != nil {
		return bytecode.Value{}, fail
	}
	if v.Kind != bytecode.KindStringMap {
		return bytecode.Value{}, failf(bytecode.FailureTypeMismatch,
			"interp: operand %s is %s, want stringmap", id, v.Kind)
	}
	return v, nil
}

func (st *state) refOperand(id bytecode.OperandId) (string, *execFailure) {
	v, fail := st.load(id)
	if fail != nil {
		return "", fail
	}
	if v.Kind != bytecode.KindObjectRef {
		return "", failf(bytecode.FailureTypeMismatch,
			"interp: operand %s is %s, want objectref", id, v.Kind)
	}
	return v.Ref, nil
}

func (st *state) indexOperand(id bytecode.OperandId, size int) (int, *execFailure) {
	i, fail := st.intOperand(id)
	if fail != nil {
		return 0, fail
	}
	if i < 0 || i >= int64(size) {
		return 0, failf(bytecode.FailureIndexOutOfRange,
			"interp: index %d out of range [0,%d)", i, size)
	}
	return int(i), nil
}

func (st *state) arith(ins bytecode.Instruction) *execFailure {
	a, fail := st.load(ins.Operands[1])
	if fail != nil {
		return fail
	}
	b, fail := st.load(ins.Operands[2])
	if fail != nil {
		return fail
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return failf(bytecode.FailureTypeMismatch,
			"interp: %s needs numeric operands, got %s and %s", ins.Op, a.Kind, b.Kind)
	}

	// Same-kind arithmetic stays in kind; mixed kinds widen to double.
	if a.Kind == bytecode.KindInt && b.Kind == bytecode.KindInt {
		r, fail := intArith(ins.Op, a.Int, b.Int)
		if fail != nil {
			return fail
		}
		st.registers[ins.Operands[0]] = bytecode.IntValue(r)
		return nil
	}
	if a.Kind == bytecode.KindUint && b.Kind == bytecode.KindUint {
		r, fail := uintArith(ins.Op, a.Uint, b.Uint)
		if fail != nil {
			return fail
		}
		st.registers[ins.Operands[0]] = bytecode.UintValue(r)
		return nil
	}

	fa, _ := a.AsDouble()
	fb, _ := b.AsDouble()
	var r float64
	switch ins.Op {
	case bytecode.OpAdd:
		r = fa + fb
	case bytecode.OpSubtract:
		r = fa - fb
	case bytecode.OpMultiply:
		r = fa * fb
	case bytecode.OpDivide:
		if fb == 0 {
			return failf(bytecode.FailureDivideByZero, "interp: division by zero")
		}
		r = fa / fb
	}
	st.registers[ins.Operands[0]] = bytecode.DoubleValue(r)
	return nil
}

func intArith(op bytecode.Opcode, a, b int64) (int64, *execFailure) {
	switch op {
	case bytecode.OpAdd:
		return a + b, nil
	case bytecode.OpSubtract:
		return a - b, nil
	case bytecode.OpMultiply:
		return a * b, nil
	case bytecode.OpDivide:
		if b == 0 {
			return 0, failf(bytecode.FailureDivideByZero, "interp: division by zero")
		}
		return a / b, nil
	}
	return 0, failf(bytecode.FailureTypeMismatch, "interp: bad arithmetic opcode %s", op)
}

func uintArith(op bytecode.Opcode, a, b uint64) (uint64, *execFailure) {
	switch op {
	case bytecode.OpAdd:
		return a + b, nil
	case bytecode.OpSubtract:
		return a - b, nil
	case bytecode.OpMultiply:
		return a * b, nil
	case bytecode.OpDivide:
		if b == 0 {
			return 0, failf(bytecode.FailureDivideByZero, "interp: division by zero")
		}
		return a / b, nil
	}
	return 0, failf(bytecode.FailureTypeMismatch, "interp: bad arithmetic opcode %s", op)
}

func (st *state) compare(ins bytecode.Instruction) *execFailure {
	a, fail := st.load(ins.Operands[1])
	if fail != nil {
		return fail
	}
	b, fail := st.load(ins.Operands[2])
	if fail != nil {
		return fail
	}

	var less, eq bool
	switch {
	case a.IsNumeric() && b.IsNumeric():
		fa, _ := a.AsDouble()
		fb, _ := b.AsDouble()
		less, eq = fa < fb, fa == fb
	case a.Kind == bytecode.KindString && b.Kind == bytecode.KindString:
		less, eq = a.Str < b.Str, a.Str == b.Str
	case a.Kind == bytecode.KindChar && b.Kind == bytecode.KindChar:
		less, eq = a.Int < b.Int, a.Int == b.Int
	default:
		return failf(bytecode.FailureTypeMismatch,
			"interp: cannot order %s and %s", a.Kind, b.Kind)
	}

	var r bool
	switch ins.Op {
	case bytecode.OpIsLessThan:
		r = less
	case bytecode.OpIsLessThanOrEqual:
		r = less || eq
	case bytecode.OpIsGreaterThan:
		r = !less && !eq
	case bytecode.OpIsGreaterThanOrEqual:
		r = !less
	}
	st.registers[ins.Operands[0]] = bytecode.BoolValue(r)
	return nil
}
