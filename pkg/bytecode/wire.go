package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR encoding uses canonical mode for deterministic output.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalRequest serializes a Request to CBOR bytes.
func MarshalRequest(r *Request) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRequest deserializes a Request from CBOR bytes and checks that
// its version is one this build can interpret.
func UnmarshalRequest(data []byte) (*Request, error) {
	var r Request
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal request: %w", err)
	}
	if r.Version == 0 || r.Version > ProgramVersion {
		return nil, fmt.Errorf("bytecode: request version %d is newer than supported version %d",
			r.Version, ProgramVersion)
	}
	return &r, nil
}

// MarshalResponse serializes a Response to CBOR bytes.
func MarshalResponse(r *Response) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalResponse deserializes a Response from CBOR bytes.
func UnmarshalResponse(data []byte) (*Response, error) {
	var r Response
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal response: %w", err)
	}
	return &r, nil
}
