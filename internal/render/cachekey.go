package render

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"scadforge/internal/imports"
)

// CacheKey hashes everything that determines a part's mesh: every collected
// project file (the entry holds the part's own text), the external import
// paths and the scope strings (engine identity, VM layout). External file
// contents are not part of the key.
func CacheKey(set *imports.FileSet, scope ...string) string {
	h, _ := blake2b.New256(nil)
	write := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	for _, s := range scope {
		write(s)
	}
	for _, p := range set.Paths() {
		write(p)
		write(string(set.Files[p].Data))
	}
	for _, e := range set.ExternalPaths() {
		write(e)
	}
	return hex.EncodeToString(h.Sum(nil))
}
