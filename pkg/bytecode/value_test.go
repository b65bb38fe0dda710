package bytecode

import "testing"

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"ints equal", IntValue(5), IntValue(5), true},
		{"ints unequal", IntValue(5), IntValue(6), false},
		{"int vs double never coerces", IntValue(5), DoubleValue(5), false},
		{"strings", StringValue("a"), StringValue("a"), true},
		{"nulls", NullValue(), NullValue(), true},
		{"null vs empty", NullValue(), EmptyValue(), false},
		{"points", PointValue(Point{1, 2}), PointValue(Point{1, 2}), true},
		{"rects unequal", RectValue(Rect{0, 0, 1, 1}), RectValue(Rect{0, 0, 2, 1}), false},
		{
			"arrays deep",
			ArrayValue([]Value{IntValue(1), StringValue("x")}),
			ArrayValue([]Value{IntValue(1), StringValue("x")}),
			true,
		},
		{
			"arrays length mismatch",
			ArrayValue([]Value{IntValue(1)}),
			ArrayValue([]Value{IntValue(1), IntValue(2)}),
			false,
		},
		{
			"string maps deep",
			StringMapValue(map[string]Value{"k": BoolValue(true)}),
			StringMapValue(map[string]Value{"k": BoolValue(true)}),
			true,
		},
		{
			"object refs",
			ObjectRefValue("element", "obj-1"),
			ObjectRefValue("element", "obj-1"),
			true,
		},
		{
			"object refs different connection handles",
			ObjectRefValue("element", "obj-1"),
			ObjectRefValue("element", "obj-2"),
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %t, want %t", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("Equal is not symmetric for %s, %s", tt.a, tt.b)
			}
		})
	}
}

func TestValueAccessors(t *testing.T) {
	if v, ok := IntValue(7).AsInt(); !ok || v != 7 {
		t.Errorf("AsInt() = %d, %t", v, ok)
	}
	if _, ok := StringValue("x").AsInt(); ok {
		t.Error("AsInt on a string must fail")
	}
	if v, ok := CharValue('q').AsInt(); !ok || v != int64('q') {
		t.Errorf("AsInt on char = %d, %t", v, ok)
	}
	if f, ok := IntValue(2).AsDouble(); !ok || f != 2.0 {
		t.Errorf("AsDouble widening = %g, %t", f, ok)
	}
	if !UintValue(1).IsNumeric() || StringValue("1").IsNumeric() {
		t.Error("IsNumeric misclassifies")
	}
}
