package remoteops

import (
	"fmt"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// ScopeKind identifies a scope's role in the instruction graph.
type ScopeKind int

const (
	ScopeRoot ScopeKind = iota
	ScopeIfTrue
	ScopeIfFalse
	ScopeWhileBody
	ScopeWhileUpdate
	ScopeTryBody
	ScopeExceptBody
)

// String returns a human-readable name for a ScopeKind.
func (k ScopeKind) String() string {
	switch k {
	case ScopeRoot:
		return "root"
	case ScopeIfTrue:
		return "if-true"
	case ScopeIfFalse:
		return "if-false"
	case ScopeWhileBody:
		return "while-body"
	case ScopeWhileUpdate:
		return "while-update"
	case ScopeTryBody:
		return "try-body"
	case ScopeExceptBody:
		return "except-body"
	default:
		return fmt.Sprintf("ScopeKind(%d)", int(k))
	}
}

// item is one entry in a scope: either a plain instruction or a nested
// control block anchored at that position.
type item interface {
	isItem()
}

type instructionItem struct {
	ins bytecode.Instruction
}

func (instructionItem) isItem() {}

type blockKind int

const (
	blockIf blockKind = iota
	blockWhile
	blockTry
)

// blockItem anchors a control block at its position in the parent scope.
// For blockIf, scopes[0] is the if-true scope and scopes[1] the optional
// if-false scope. For blockWhile, scopes[0] is the body and scopes[1] the
// optional update scope. For blockTry, scopes[0] is the try body and
// scopes[1] the optional except body.
type blockItem struct {
	kind   blockKind
	cond   bytecode.OperandId // if/while condition; NoOperand for try
	scopes [2]*scope
}

func (*blockItem) isItem() {}

// scope is one node of the instruction graph's scope tree.
type scope struct {
	kind    ScopeKind
	parent  *scope
	items   []item
	defined map[bytecode.OperandId]struct{}
}

func newScope(kind ScopeKind, parent *scope) *scope {
	return &scope{
		kind:    kind,
		parent:  parent,
		defined: make(map[bytecode.OperandId]struct{}),
	}
}

// define records an operand as created in this scope.
func (s *scope) define(id bytecode.OperandId) {
	s.defined[id] = struct{}{}
}

// sees reports whether an operand is visible here: defined in this scope
// or any ancestor.
func (s *scope) sees(id bytecode.OperandId) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.defined[id]; ok {
			return true
		}
	}
	return false
}

// inLoop reports whether this scope sits inside a while body or update
// scope, which is what makes break/continue legal.
func (s *scope) inLoop() bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.kind == ScopeWhileBody || cur.kind == ScopeWhileUpdate {
			return true
		}
	}
	return false
}

// inExcept reports whether this scope sits inside an except body.
func (s *scope) inExcept() bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.kind == ScopeExceptBody {
			return true
		}
	}
	return false
}
