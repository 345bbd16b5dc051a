package roster

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Detection is the change detector's verdict for one observed artifact.
type Detection struct {
	Changed bool
	Hash    string
}

// DetectChange decides whether freshly observed content differs from the
// last stored version, identified by its content hash. It is pure: the
// caller owns all persistence, including writing the new hash and bumping
// updated_at when Changed is returned.
//
// An empty prevHash means the identity has never been seen, which always
// counts as a change. An identical hash means the caller must not touch
// the stored record at all; re-running discovery on every status check
// must not manufacture sync churn.
func DetectChange(prevHash string, content []byte) Detection {
	hash := ContentHash(content)
	if prevHash != "" && prevHash == hash {
		return Detection{Changed: false, Hash: hash}
	}
	return Detection{Changed: true, Hash: hash}
}

// ContentHash computes the SHA-256 digest of content in canonical form.
// JSON content is re-encoded with sorted object keys first, so two
// observations of the same structured data hash identically regardless
// of key order in the source file.
func ContentHash(content []byte) string {
	sum := sha256.Sum256(canonicalize(content))
	return hex.EncodeToString(sum[:])
}

// canonicalize returns a stable byte form of content. Non-JSON content
// is hashed as-is.
func canonicalize(content []byte) []byte {
	var v any
	if err := json.Unmarshal(content, &v); err != nil {
		return content
	}
	// encoding/json sorts map keys on marshal.
	out, err := json.Marshal(v)
	if err != nil {
		return content
	}
	return out
}
