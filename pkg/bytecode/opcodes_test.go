package bytecode

import "testing"

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || info.Name[0] == 'U' && !op.IsDefined() {
			t.Errorf("opcode 0x%02X has no metadata", uint32(op))
		}
		if info.MinVersion == 0 {
			t.Errorf("opcode %s has MinVersion 0", op)
		}
		if info.MinVersion > ProgramVersion {
			t.Errorf("opcode %s requires version %d beyond current %d",
				op, info.MinVersion, ProgramVersion)
		}
	}
}

func TestOpcodeVersionGating(t *testing.T) {
	tests := []struct {
		op      Opcode
		version uint32
		want    bool
	}{
		{OpNewInt, 1, true},
		{OpNewGuid, 1, false},
		{OpNewGuid, 2, true},
		{OpNewCacheRequest, 2, false},
		{OpNewCacheRequest, 3, true},
		{OpInvokePattern, 2, false},
		{OpInvokePattern, 3, true},
		{Opcode(0xFFFF), 3, false},
	}

	for _, tt := range tests {
		if got := tt.op.SupportedIn(tt.version); got != tt.want {
			t.Errorf("%s.SupportedIn(%d) = %t, want %t", tt.op, tt.version, got, tt.want)
		}
	}
}

func TestCapabilityVersionGating(t *testing.T) {
	if !CapabilitySupportedIn(CapabilityGuid, 2) {
		t.Error("guid should be supported at version 2")
	}
	if CapabilitySupportedIn(CapabilityCacheRequest, 2) {
		t.Error("cache-request should not be supported at version 2")
	}
	if CapabilitySupportedIn("no-such-capability", 99) {
		t.Error("unknown capabilities must never be supported")
	}
}

func TestResultConvention(t *testing.T) {
	ins := NewInstruction(OpAdd, 3, 1, 2)
	dst, ok := ins.Result()
	if !ok || dst != 3 {
		t.Fatalf("Result() = %v, %t; want $3, true", dst, ok)
	}
	inputs := ins.Inputs()
	if len(inputs) != 2 || inputs[0] != 1 || inputs[1] != 2 {
		t.Fatalf("Inputs() = %v, want [$1 $2]", inputs)
	}

	jmp := NewInstruction(OpJump)
	if _, ok := jmp.Result(); ok {
		t.Error("JUMP must not report a result")
	}
}

func TestInstructionValidate(t *testing.T) {
	tests := []struct {
		name    string
		ins     Instruction
		wantErr bool
	}{
		{"add ok", NewInstruction(OpAdd, 3, 1, 2), false},
		{"add short", NewInstruction(OpAdd, 3, 1), true},
		{"undefined opcode", NewInstruction(Opcode(0xBEEF)), true},
		{"invoke pattern variable ok", NewInstruction(OpInvokePattern, 9, 1, 2, 3, 4, 5), false},
		{"invoke pattern too short", NewInstruction(OpInvokePattern, 9, 1), true},
		{"nop", NewInstruction(OpNop), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ins.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}
