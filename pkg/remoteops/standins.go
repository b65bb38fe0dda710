package remoteops

import (
	"fmt"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// Object is a stand-in for one operand of the program under construction.
// Methods on it (and on the typed wrappers below) describe computations
// that run remotely at Execute time; nothing happens locally.
type Object struct {
	op *Operation
	id bytecode.OperandId
}

// ID returns the operand identity behind the stand-in.
func (o Object) ID() bytecode.OperandId { return o.id }

func (o Object) operation() (*Operation, error) {
	if o.op == nil {
		return nil, fmt.Errorf("%w: uninitialized stand-in", ErrDanglingOperand)
	}
	return o.op, nil
}

// produce inserts an instruction computing a fresh operand from inputs.
func (op *Operation) produce(code bytecode.Opcode, inputs ...bytecode.OperandId) (Object, error) {
	dst := op.allocate()
	operands := append([]bytecode.OperandId{dst}, inputs...)
	if err := op.insert(bytecode.NewInstruction(code, operands...), true); err != nil {
		return Object{}, err
	}
	return Object{op: op, id: dst}, nil
}

// binary inserts a two-input producing instruction after validating both
// stand-ins against the receiver's operation.
func (o Object) binary(code bytecode.Opcode, other Object) (Object, error) {
	op, err := o.operation()
	if err != nil {
		return Object{}, err
	}
	if err := op.checkOperand(o); err != nil {
		return Object{}, err
	}
	if err := op.checkOperand(other); err != nil {
		return Object{}, err
	}
	return op.produce(code, o.id, other.id)
}

// unary inserts a one-input producing instruction.
func (o Object) unary(code bytecode.Opcode) (Object, error) {
	op, err := o.operation()
	if err != nil {
		return Object{}, err
	}
	if err := op.checkOperand(o); err != nil {
		return Object{}, err
	}
	return op.produce(code, o.id)
}

// mutate inserts an instruction that writes through existing operands.
func (o Object) mutate(code bytecode.Opcode, operands ...Object) error {
	op, err := o.operation()
	if err != nil {
		return err
	}
	ids := make([]bytecode.OperandId, 0, len(operands)+1)
	ids = append(ids, o.id)
	if err := op.checkOperand(o); err != nil {
		return err
	}
	for _, other := range operands {
		if err := op.checkOperand(other); err != nil {
			return err
		}
		ids = append(ids, other.id)
	}
	return op.insert(bytecode.NewInstruction(code, ids...), false)
}

// Set copies another operand's value into this one at runtime.
func (o Object) Set(v Object) error {
	return o.mutate(bytecode.OpSet, v)
}

// IsEqual compares two operands for equality at runtime.
func (o Object) IsEqual(other Object) (Bool, error) {
	r, err := o.binary(bytecode.OpIsEqual, other)
	return Bool{r}, err
}

// IsNotEqual compares two operands for inequality at runtime.
func (o Object) IsNotEqual(other Object) (Bool, error) {
	r, err := o.binary(bytecode.OpIsNotEqual, other)
	return Bool{r}, err
}

// Bool is a stand-in for a boolean operand.
type Bool struct{ Object }

func (b Bool) Not() (Bool, error) {
	r, err := b.unary(bytecode.OpBoolNot)
	return Bool{r}, err
}

func (b Bool) And(other Bool) (Bool, error) {
	r, err := b.binary(bytecode.OpBoolAnd, other.Object)
	return Bool{r}, err
}

func (b Bool) Or(other Bool) (Bool, error) {
	r, err := b.binary(bytecode.OpBoolOr, other.Object)
	return Bool{r}, err
}

// Int is a stand-in for a signed integer operand.
type Int struct{ Object }

func (i Int) Add(other Int) (Int, error) {
	r, err := i.binary(bytecode.OpAdd, other.Object)
	return Int{r}, err
}

func (i Int) Subtract(other Int) (Int, error) {
	r, err := i.binary(bytecode.OpSubtract, other.Object)
	return Int{r}, err
}

func (i Int) Multiply(other Int) (Int, error) {
	r, err := i.binary(bytecode.OpMultiply, other.Object)
	return Int{r}, err
}

func (i Int) Divide(other Int) (Int, error) {
	r, err := i.binary(bytecode.OpDivide, other.Object)
	return Int{r}, err
}

func (i Int) IsLessThan(other Int) (Bool, error) {
	r, err := i.binary(bytecode.OpIsLessThan, other.Object)
	return Bool{r}, err
}

func (i Int) IsLessThanOrEqual(other Int) (Bool, error) {
	r, err := i.binary(bytecode.OpIsLessThanOrEqual, other.Object)
	return Bool{r}, err
}

func (i Int) IsGreaterThan(other Int) (Bool, error) {
	r, err := i.binary(bytecode.OpIsGreaterThan, other.Object)
	return Bool{r}, err
}

func (i Int) IsGreaterThanOrEqual(other Int) (Bool, error) {
	r, err := i.binary(bytecode.OpIsGreaterThanOrEqual, other.Object)
	return Bool{r}, err
}

// Uint is a stand-in for an unsigned integer operand.
type Uint struct{ Object }

func (u Uint) Add(other Uint) (Uint, error) {
	r, err := u.binary(bytecode.OpAdd, other.Object)
	return Uint{r}, err
}

func (u Uint) Subtract(other Uint) (Uint, error) {
	r, err := u.binary(bytecode.OpSubtract, other.Object)
	return Uint{r}, err
}

func (u Uint) Multiply(other Uint) (Uint, error) {
	r, err := u.binary(bytecode.OpMultiply, other.Object)
	return Uint{r}, err
}

func (u Uint) Divide(other Uint) (Uint, error) {
	r, err := u.binary(bytecode.OpDivide, other.Object)
	return Uint{r}, err
}

func (u Uint) IsLessThan(other Uint) (Bool, error) {
	r, err := u.binary(bytecode.OpIsLessThan, other.Object)
	return Bool{r}, err
}

func (u Uint) IsGreaterThan(other Uint) (Bool, error) {
	r, err := u.binary(bytecode.OpIsGreaterThan, other.Object)
	return Bool{r}, err
}

// Double is a stand-in for a floating-point operand.
type Double struct{ Object }

func (d Double) Add(other Double) (Double, error) {
	r, err := d.binary(bytecode.OpAdd, other.Object)
	return Double{r}, err
}

func (d Double) Subtract(other Double) (Double, error) {
	r, err := d.binary(bytecode.OpSubtract, other.Object)
	return Double{r}, err
}

func (d Double) Multiply(other Double) (Double, error) {
	r, err := d.binary(bytecode.OpMultiply, other.Object)
	return Double{r}, err
}

func (d Double) Divide(other Double) (Double, error) {
	r, err := d.binary(bytecode.OpDivide, other.Object)
	return Double{r}, err
}

func (d Double) IsLessThan(other Double) (Bool, error) {
	r, err := d.binary(bytecode.OpIsLessThan, other.Object)
	return Bool{r}, err
}

func (d Double) IsGreaterThan(other Double) (Bool, error) {
	r, err := d.binary(bytecode.OpIsGreaterThan, other.Object)
	return Bool{r}, err
}

// Char is a stand-in for a character operand.
type Char struct{ Object }

func (c Char) IsLessThan(other Char) (Bool, error) {
	r, err := c.binary(bytecode.OpIsLessThan, other.Object)
	return Bool{r}, err
}

func (c Char) IsGreaterThan(other Char) (Bool, error) {
	r, err := c.binary(bytecode.OpIsGreaterThan, other.Object)
	return Bool{r}, err
}

// String is a stand-in for a string operand.
type String struct{ Object }

func (s String) Concat(other String) (String, error) {
	r, err := s.binary(bytecode.OpStringConcat, other.Object)
	return String{r}, err
}

func (s String) Length() (Int, error) {
	r, err := s.unary(bytecode.OpStringLength)
	return Int{r}, err
}

// Array is a stand-in for an array operand.
type Array struct{ Object }

func (a Array) Append(v Object) error {
	return a.mutate(bytecode.OpArrayAppend, v)
}

func (a Array) Size() (Int, error) {
	r, err := a.unary(bytecode.OpArraySize)
	return Int{r}, err
}

func (a Array) GetAt(index Int) (Object, error) {
	return a.binary(bytecode.OpArrayGetAt, index.Object)
}

func (a Array) SetAt(index Int, v Object) error {
	return a.mutate(bytecode.OpArraySetAt, index.Object, v)
}

func (a Array) RemoveAt(index Int) error {
	return a.mutate(bytecode.OpArrayRemoveAt, index.Object)
}

// StringMap is a stand-in for a string-keyed map operand.
type StringMap struct{ Object }

func (m StringMap) Insert(key String, v Object) error {
	return m.mutate(bytecode.OpStringMapInsert, key.Object, v)
}

func (m StringMap) Lookup(key String) (Object, error) {
	return m.binary(bytecode.OpStringMapLookup, key.Object)
}

func (m StringMap) HasKey(key String) (Bool, error) {
	r, err := m.binary(bytecode.OpStringMapHasKey, key.Object)
	return Bool{r}, err
}

func (m StringMap) Remove(key String) error {
	return m.mutate(bytecode.OpStringMapRemove, key.Object)
}

func (m StringMap) Size() (Int, error) {
	r, err := m.unary(bytecode.OpStringMapSize)
	return Int{r}, err
}

// Element is a stand-in for an imported UI element.
type Element struct{ Object }

// GetProperty reads a property from the element at runtime.
func (e Element) GetProperty(property Int) (Object, error) {
	return e.binary(bytecode.OpGetPropertyValue, property.Object)
}

// Navigate walks the element tree in the given direction.
func (e Element) Navigate(direction Int) (Element, error) {
	r, err := e.binary(bytecode.OpNavigate, direction.Object)
	return Element{r}, err
}

// InvokePattern calls a control-pattern method on the element.
func (e Element) InvokePattern(pattern, method Int, args ...Object) (Object, error) {
	op, err := e.operation()
	if err != nil {
		return Object{}, err
	}
	if err := op.checkOperand(e.Object); err != nil {
		return Object{}, err
	}
	inputs := make([]bytecode.OperandId, 0, len(args)+3)
	inputs = append(inputs, e.id)
	for _, o := range []Object{pattern.Object, method.Object} {
		if err := op.checkOperand(o); err != nil {
			return Object{}, err
		}
		inputs = append(inputs, o.id)
	}
	for _, a := range args {
		if err := op.checkOperand(a); err != nil {
			return Object{}, err
		}
		inputs = append(inputs, a.id)
	}
	return op.produce(bytecode.OpInvokePattern, inputs...)
}

// TextRange is a stand-in for an imported text range.
type TextRange struct{ Object }

// GetProperty reads an attribute from the text range at runtime.
func (t TextRange) GetProperty(property Int) (Object, error) {
	return t.binary(bytecode.OpGetPropertyValue, property.Object)
}
