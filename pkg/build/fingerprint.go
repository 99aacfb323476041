package build

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/pyrite-lang/pyrite/pkg/symbols"
)

// ContentFingerprint hashes a module's raw source. Any byte change
// (comments and whitespace included) produces a new fingerprint; the
// interface digest below decides whether the change is visible to
// dependents.
func ContentFingerprint(src []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(src))
}

// InterfaceDigest hashes a module's exported interface: public names
// and their rendered types, in stable order. Private helpers and
// function bodies do not contribute, so edits to them stop invalidation
// from spreading past the module itself.
func InterfaceDigest(info *symbols.ModuleInfo) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(info.ExportedInterface()))
}
