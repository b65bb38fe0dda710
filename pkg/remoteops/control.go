package remoteops

import (
	"fmt"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// inScope runs fn with s as the current scope. The previous scope is
// restored on the way out even when fn returns an error or panics.
func (op *Operation) inScope(s *scope, fn func() error) error {
	prev := op.current
	op.current = s
	defer func() { op.current = prev }()
	return fn()
}

// IfBlock inserts a conditional branch at the current position. trueFn
// builds the if-true scope; falseFn, when non-nil, builds the if-false
// scope. Handlers run synchronously, so stand-ins they create are scoped
// to their block.
func (op *Operation) IfBlock(cond Bool, trueFn, falseFn func() error) error {
	if err := op.checkOperand(cond.Object); err != nil {
		return err
	}
	if trueFn == nil {
		return fmt.Errorf("%w: IfBlock needs a true-branch handler", ErrInvalidControlFlow)
	}
	parent := op.current
	blk := &blockItem{kind: blockIf, cond: cond.id}
	blk.scopes[0] = newScope(ScopeIfTrue, parent)
	parent.items = append(parent.items, blk)

	if err := op.inScope(blk.scopes[0], trueFn); err != nil {
		return err
	}
	if falseFn != nil {
		blk.scopes[1] = newScope(ScopeIfFalse, parent)
		return op.inScope(blk.scopes[1], falseFn)
	}
	return nil
}

// WhileBlock inserts a loop at the current position. The condition operand
// is retested before every iteration; bodyFn builds the loop body and
// updateFn, when non-nil, a trailing update scope that runs at the end of
// each iteration and is the target of ContinueLoop.
func (op *Operation) WhileBlock(cond Bool, bodyFn, updateFn func() error) error {
	if err := op.checkOperand(cond.Object); err != nil {
		return err
	}
	if bodyFn == nil {
		return fmt.Errorf("%w: WhileBlock needs a body handler", ErrInvalidControlFlow)
	}
	parent := op.current
	blk := &blockItem{kind: blockWhile, cond: cond.id}
	blk.scopes[0] = newScope(ScopeWhileBody, parent)
	parent.items = append(parent.items, blk)

	if err := op.inScope(blk.scopes[0], bodyFn); err != nil {
		return err
	}
	if updateFn != nil {
		blk.scopes[1] = newScope(ScopeWhileUpdate, parent)
		return op.inScope(blk.scopes[1], updateFn)
	}
	return nil
}

// TryBlock inserts a guarded region at the current position. A runtime
// failure inside tryFn's scope transfers control to exceptFn's scope when
// one exists; without one the failure aborts the program.
func (op *Operation) TryBlock(tryFn, exceptFn func() error) error {
	if tryFn == nil {
		return fmt.Errorf("%w: TryBlock needs a try handler", ErrInvalidControlFlow)
	}
	parent := op.current
	blk := &blockItem{kind: blockTry, cond: bytecode.NoOperand}
	blk.scopes[0] = newScope(ScopeTryBody, parent)
	parent.items = append(parent.items, blk)

	if err := op.inScope(blk.scopes[0], tryFn); err != nil {
		return err
	}
	if exceptFn != nil {
		blk.scopes[1] = newScope(ScopeExceptBody, parent)
		return op.inScope(blk.scopes[1], exceptFn)
	}
	return nil
}

// BreakLoop exits the innermost enclosing loop. Legal only inside a loop
// body or update scope.
func (op *Operation) BreakLoop() error {
	if !op.current.inLoop() {
		return fmt.Errorf("%w: BreakLoop outside a loop", ErrInvalidControlFlow)
	}
	op.current.items = append(op.current.items, instructionItem{
		ins: bytecode.NewInstruction(bytecode.OpBreakLoop),
	})
	return nil
}

// ContinueLoop jumps to the innermost enclosing loop's update scope when it
// has one, otherwise to its condition retest. Legal only inside a loop body.
func (op *Operation) ContinueLoop() error {
	if !op.current.inLoop() {
		return fmt.Errorf("%w: ContinueLoop outside a loop", ErrInvalidControlFlow)
	}
	op.current.items = append(op.current.items, instructionItem{
		ins: bytecode.NewInstruction(bytecode.OpContinueLoop),
	})
	return nil
}

// ReturnStatus ends the program with a literal status code when execution
// reaches this instruction. Zero means success; anything else surfaces as
// an execution failure carrying the code.
func (op *Operation) ReturnStatus(code int32) error {
	status, err := op.NewInt(int64(code))
	if err != nil {
		return err
	}
	return op.ReturnStatusOperand(status)
}

// ReturnStatusOperand is ReturnStatus with a computed status operand.
func (op *Operation) ReturnStatusOperand(status Int) error {
	if err := op.checkOperand(status.Object); err != nil {
		return err
	}
	return op.insert(bytecode.NewInstruction(bytecode.OpReturnStatus, status.id), false)
}

// GetCurrentFailureCode reads the failure code that routed control to the
// enclosing except scope. Legal only inside one.
func (op *Operation) GetCurrentFailureCode() (Int, error) {
	if !op.current.inExcept() {
		return Int{}, fmt.Errorf("%w: GetCurrentFailureCode outside an except scope", ErrInvalidControlFlow)
	}
	dst := op.allocate()
	if err := op.insert(bytecode.NewInstruction(bytecode.OpGetCurrentFailureCode, dst), true); err != nil {
		return Int{}, err
	}
	return Int{Object{op: op, id: dst}}, nil
}
