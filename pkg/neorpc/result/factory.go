package result

import (
	"github.com/nspcc-dev/pesto-go/pkg/smartcontract/manifest"
)

// Factory describes a contract factory known to the node: its name and the
// manifest of contracts deployed from it. Constructor parameters are listed
// in the manifest as the "constructor" method.
type Factory struct {
	Name     string            `json:"name"`
	Manifest manifest.Manifest `json:"manifest"`
}

// Constructor returns the constructor descriptor of the factory, nil if
// it's missing.
func (f *Factory) Constructor() *manifest.Method {
	return f.Manifest.ABI.GetMethod(manifest.MethodConstructor, -1)
}
