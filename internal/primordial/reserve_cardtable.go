//go:build cardtableverify

package primordial

// DefaultReferenceBufferSize holds the addresses of written reference fields
// so they can be checked against dirty cards. 1 GiB records 128 Mi 64-bit
// references.
const DefaultReferenceBufferSize uint64 = 1 << 30
