// Package fingerprint computes per-modality content hashes and the
// composite identity hash. The composite is a pure function of the
// sub-hashes: no timestamp or nonce is ever mixed in, so identical raw
// inputs always reproduce the same hash and the backend can treat
// repeat submissions as revisits. A client under active noise injection
// produces an unstable composite session-to-session; that instability
// is evidence for the scorer, not something to smooth over.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// HashBytes is the content digest over one modality's raw buffer. It
// reflects the bytes, never the verdict.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Composite is the aggregate identity hash over all sub-fingerprints.
type Composite struct {
	Sub   map[string]string
	Main  string
	Taken time.Time
}

// Compose joins the sub-hashes in fixed lexical key order with a fixed
// separator and hashes the result.
func Compose(sub map[string]string) Composite {
	keys := make([]string, 0, len(sub))
	for k := range sub {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+sub[k])
	}
	return Composite{
		Sub:   sub,
		Main:  HashBytes([]byte(strings.Join(parts, "|"))),
		Taken: time.Now(),
	}
}

// HashFields is the backend fallback for submissions without a
// precomputed composite: sorted key:value join over the static fields.
func HashFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", k, fields[k]))
	}
	return HashBytes([]byte(strings.Join(parts, "|")))
}
