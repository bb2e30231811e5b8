// Package jwt implements HS256 JWT signing and verification with no
// external dependencies. The algorithm is pinned: tokens declaring any
// other algorithm are rejected, and signature checks use constant-time
// comparison. Signing keys shorter than 32 bytes are refused at
// construction.
package jwt
