package emit

import (
	"encoding/json"

	"github.com/ZAPPYcore/DAISY/ir"
)

// Manifest is the per-module ABI record written next to the C output. Two
// modules compose only when their abi_major matches the compiler's.
type Manifest struct {
	ABIMajor        int               `json:"abi_major"`
	ExportedSymbols map[string]string `json:"exported_symbols"`
	SourceHash      string            `json:"source_hash"`
}

// BuildManifest collects the public surface of an IR module.
func BuildManifest(m *ir.Module, abiMajor int, sourceHash string) *Manifest {
	man := &Manifest{ABIMajor: abiMajor, ExportedSymbols: map[string]string{}, SourceHash: sourceHash}
	for _, f := range m.Funcs {
		if f.Public && f.Source != "main" {
			man.ExportedSymbols[f.Name] = Signature(f)
		}
	}
	return man
}

// JSON renders the manifest deterministically: fixed key order, and
// encoding/json already sorts map keys.
func (m *Manifest) JSON() ([]byte, error) {
	ordered := struct {
		ABIMajor        int               `json:"abi_major"`
		ExportedSymbols map[string]string `json:"exported_symbols"`
		SourceHash      string            `json:"source_hash"`
	}{m.ABIMajor, m.ExportedSymbols, m.SourceHash}
	return json.MarshalIndent(ordered, "", "  ")
}
