package rot

import "crypto/sha256"

// ChainDigest computes the chained digest that entangles a RoT's serialized
// measurement log with a challenger's nonce and user data:
//
//	SHA-256(logBytes || nonce || userData)
//
// The order is fixed and is the central invariant of the whole protocol:
// the instance RoT computes this digest as the inner nonce it hands to the
// platform RoT, and the verifier recomputes it from its independently
// fetched copy of the instance measurement log. The two must agree byte for
// byte for any given (log, nonce, userData) triple.
func ChainDigest(logBytes []byte, nonce Nonce, userData []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write(logBytes)
	h.Write(nonce[:])
	h.Write(userData)

	var digest [sha256.Size]byte
	copy(digest[:], h.Sum(nil))
	return digest
}
