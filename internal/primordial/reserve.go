//go:build !cardtableverify

package primordial

// DefaultReferenceBufferSize is the extra auxiliary space reserved for
// recording reference writes. Card table verification builds reserve 1 GiB.
const DefaultReferenceBufferSize uint64 = 0
