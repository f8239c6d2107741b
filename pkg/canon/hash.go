package canon

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
)

// SHA256 returns the 32-byte SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// SHA512 returns the 64-byte SHA-512 digest of data.
func SHA512(data []byte) [64]byte {
	return sha512.Sum512(data)
}

// SHA256Hex returns the lowercase hex encoding of SHA256(data).
func SHA256Hex(data []byte) string {
	sum := SHA256(data)
	return hex.EncodeToString(sum[:])
}

// SHA512Hex returns the lowercase hex encoding of SHA512(data).
func SHA512Hex(data []byte) string {
	sum := SHA512(data)
	return hex.EncodeToString(sum[:])
}
