package fingerprint

import (
	"crypto/md5"
	"hash"
)

// newMD5 is the default digest constructor, matching the reference
// implementation's choice of md5 for content fingerprints.
func newMD5() hash.Hash {
	return md5.New()
}
