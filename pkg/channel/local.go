package channel

import (
	"context"

	"github.com/quartzui/remoteops/pkg/bytecode"
	"github.com/quartzui/remoteops/pkg/interp"
)

// Local is an in-process execution channel: requests run directly on an
// interpreter without serialization. Useful for tests and for providers
// that host both halves in one process.
type Local struct {
	interp   *interp.Interpreter
	manifest *Manifest
}

// NewLocal creates a local channel over the given provider. A nil policy
// advertises the full default manifest.
func NewLocal(provider interp.Provider, opts interp.Options, policy *Policy) *Local {
	m := DefaultManifest()
	if policy != nil {
		m = policy.Filter(m)
	}
	return &Local{
		interp:   interp.New(provider, opts),
		manifest: m,
	}
}

// Execute runs the request on the embedded interpreter.
func (l *Local) Execute(ctx context.Context, req *bytecode.Request) (*bytecode.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.interp.Run(req), nil
}

// Manifest reports what the embedded interpreter supports.
func (l *Local) Manifest(ctx context.Context) (*Manifest, error) {
	return l.manifest, nil
}
