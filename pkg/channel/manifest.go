package channel

import (
	"fmt"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

// Manifest describes what an execution endpoint can run: the highest
// program version it accepts and the named capabilities it implements.
// Clients consult it before inserting version-gated instructions.
type Manifest struct {
	Version      uint32   `cbor:"v" json:"version"`
	Capabilities []string `cbor:"c,omitempty" json:"capabilities,omitempty"`
}

// DefaultManifest returns the manifest of an endpoint built from this
// module: the current program version with every capability it implies.
func DefaultManifest() *Manifest {
	m := &Manifest{Version: bytecode.ProgramVersion}
	for _, c := range bytecode.AllCapabilities() {
		if bytecode.CapabilitySupportedIn(c, m.Version) {
			m.Capabilities = append(m.Capabilities, c)
		}
	}
	return m
}

// SupportsCapability reports whether the endpoint declared the capability.
func (m *Manifest) SupportsCapability(name string) bool {
	for _, c := range m.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// SupportsOpcode reports whether the endpoint can execute the opcode,
// judged by the version it advertised.
func (m *Manifest) SupportsOpcode(op bytecode.Opcode) bool {
	return op.IsDefined() && op.SupportedIn(m.Version)
}

// Policy controls which capabilities an endpoint advertises or accepts.
// A nil Allowed map means "allow all".
type Policy struct {
	Allowed map[string]bool // nil = allow all
	Denied  map[string]bool
}

// NewPermissivePolicy creates a policy that allows all capabilities.
func NewPermissivePolicy() *Policy {
	return &Policy{}
}

// NewRestrictedPolicy creates a policy that only allows the specified
// capabilities.
func NewRestrictedPolicy(allowed []string) *Policy {
	m := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		m[c] = true
	}
	return &Policy{Allowed: m}
}

// Deny adds a capability to the deny list.
func (p *Policy) Deny(name string) {
	if p.Denied == nil {
		p.Denied = make(map[string]bool)
	}
	p.Denied[name] = true
}

// Check verifies that every capability in the manifest passes the policy.
// Returns an error naming the first capability that does not.
func (p *Policy) Check(m *Manifest) error {
	if m == nil {
		return nil
	}
	for _, c := range m.Capabilities {
		if p.Denied != nil && p.Denied[c] {
			return fmt.Errorf("channel: capability %q is explicitly denied", c)
		}
		if p.Allowed != nil && !p.Allowed[c] {
			return fmt.Errorf("channel: capability %q is not allowed", c)
		}
	}
	return nil
}

// Filter returns a copy of the manifest with denied and disallowed
// capabilities removed. Used by endpoints to narrow what they advertise.
func (p *Policy) Filter(m *Manifest) *Manifest {
	out := &Manifest{Version: m.Version}
	for _, c := range m.Capabilities {
		if p.Denied != nil && p.Denied[c] {
			continue
		}
		if p.Allowed != nil && !p.Allowed[c] {
			continue
		}
		out.Capabilities = append(out.Capabilities, c)
	}
	return out
}
