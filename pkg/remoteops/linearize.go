package remoteops

import "github.com/quartzui/remoteops/pkg/bytecode"

// The linearizer flattens the scope tree into a linear instruction stream:
// control blocks become conditional jumps with patched targets, loops get
// back-edges, and the graph-only break/continue markers are lowered to
// jumps that first unwind any try frames entered since the loop began.
// Straight-line instruction order survives untouched.

type loopCtx struct {
	entryTryDepth int
	breakPatches  []int
	contPatches   []int
}

type linearizer struct {
	out      []bytecode.Instruction
	loops    []*loopCtx
	tryDepth int
}

func (op *Operation) linearize() []bytecode.Instruction {
	l := &linearizer{}
	l.scope(op.root)
	return l.out
}

func (l *linearizer) emit(ins bytecode.Instruction) int {
	l.out = append(l.out, ins)
	return len(l.out) - 1
}

func (l *linearizer) patch(idx int, target int32) {
	l.out[idx].Target = target
}

// here is the index the next emitted instruction will get.
func (l *linearizer) here() int32 {
	return int32(len(l.out))
}

func (l *linearizer) scope(s *scope) {
	if s == nil {
		return
	}
	for _, it := range s.items {
		switch v := it.(type) {
		case instructionItem:
			switch v.ins.Op {
			case bytecode.OpBreakLoop:
				loop := l.loops[len(l.loops)-1]
				l.unwindTries(loop.entryTryDepth)
				loop.breakPatches = append(loop.breakPatches,
					l.emit(bytecode.NewInstruction(bytecode.OpJump)))
			case bytecode.OpContinueLoop:
				loop := l.loops[len(l.loops)-1]
				l.unwindTries(loop.entryTryDepth)
				loop.contPatches = append(loop.contPatches,
					l.emit(bytecode.NewInstruction(bytecode.OpJump)))
			default:
				l.emit(v.ins)
			}
		case *blockItem:
			switch v.kind {
			case blockIf:
				l.ifBlock(v)
			case blockWhile:
				l.whileBlock(v)
			case blockTry:
				l.tryBlock(v)
			}
		}
	}
}

// unwindTries closes the try frames a lowered break/continue jumps out of.
func (l *linearizer) unwindTries(toDepth int) {
	for d := l.tryDepth; d > toDepth; d-- {
		l.emit(bytecode.NewInstruction(bytecode.OpTryEnd))
	}
}

func (l *linearizer) ifBlock(b *blockItem) {
	branch := l.emit(bytecode.NewInstruction(bytecode.OpJumpIfFalse, b.cond))
	l.scope(b.scopes[0])
	if b.scopes[1] != nil {
		skip := l.emit(bytecode.NewInstruction(bytecode.OpJump))
		l.patch(branch, l.here())
		l.scope(b.scopes[1])
		l.patch(skip, l.here())
		return
	}
	l.patch(branch, l.here())
}

func (l *linearizer) whileBlock(b *blockItem) {
	cond := l.here()
	exit := l.emit(bytecode.NewInstruction(bytecode.OpJumpIfFalse, b.cond))

	loop := &loopCtx{entryTryDepth: l.tryDepth}
	l.loops = append(l.loops, loop)
	l.scope(b.scopes[0])

	contTarget := cond
	if b.scopes[1] != nil {
		contTarget = l.here()
		l.scope(b.scopes[1])
	}
	back := l.emit(bytecode.NewInstruction(bytecode.OpJump))
	l.patch(back, cond)

	end := l.here()
	l.patch(exit, end)
	for _, idx := range loop.breakPatches {
		l.patch(idx, end)
	}
	for _, idx := range loop.contPatches {
		l.patch(idx, contTarget)
	}
	l.loops = l.loops[:len(l.loops)-1]
}

func (l *linearizer) tryBlock(b *blockItem) {
	// TRY_BEGIN's target is the handler; it stays NoTarget when the block
	// has no except scope, which makes the frame abort on failure.
	begin := l.emit(bytecode.NewInstruction(bytecode.OpTryBegin))
	l.tryDepth++
	l.scope(b.scopes[0])
	l.tryDepth--
	l.emit(bytecode.NewInstruction(bytecode.OpTryEnd))

	if b.scopes[1] != nil {
		skip := l.emit(bytecode.NewInstruction(bytecode.OpJump))
		l.patch(begin, l.here())
		l.scope(b.scopes[1])
		l.patch(skip, l.here())
	}
}
