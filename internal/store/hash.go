package store

import (
	"crypto/sha256"
	"fmt"
)

// ComputeSignatureHash computes a deterministic hash from an entity's
// semantic identity: name, kind, visibility, qualified name. Location
// changes (line/col) never affect the hash, so moving a symbol without
// changing its shape doesn't register as a "changed" symbol during
// blast-radius diffing.
func ComputeSignatureHash(name, kind, visibility, qualifiedName string) string {
	h := sha256.New()
	fmt.Fprintf(h, "name:%s\n", name)
	fmt.Fprintf(h, "kind:%s\n", kind)
	fmt.Fprintf(h, "visibility:%s\n", visibility)
	fmt.Fprintf(h, "qualified_name:%s\n", qualifiedName)
	return fmt.Sprintf("%x", h.Sum(nil))
}
