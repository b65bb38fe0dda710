package interp

import "github.com/quartzui/remoteops/pkg/bytecode"

// Provider resolves operations on imported objects. The interpreter calls
// into it whenever a program touches an object reference operand; everything
// else executes without leaving the interpreter.
type Provider interface {
	// GetProperty reads a property of the object behind ref.
	GetProperty(ref string, property int32) (bytecode.Value, error)

	// Navigate walks the object tree from ref in the given direction and
	// returns the object reference reached.
	Navigate(ref string, direction int32) (bytecode.Value, error)

	// InvokePattern calls a pattern method on the object behind ref.
	InvokePattern(ref string, pattern, method int32, args []bytecode.Value) (bytecode.Value, error)
}
