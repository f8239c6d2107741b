package translog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cuemby/fleetguard/pkg/canon"
	"github.com/cuemby/fleetguard/pkg/types"
)

const (
	leafPrefix     byte = 0x00
	internalPrefix byte = 0x01
)

// leafHash is SHA256(0x00 || canonical(entry)), per RFC 6962 leaf domain
// separation.
func leafHash(entry types.LogEntry) ([]byte, error) {
	canonical, err := canon.Canonicalize(entry)
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(canonical)
	return h.Sum(nil), nil
}

// nodeHash is SHA256(0x01 || left || right).
func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{internalPrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// buildLevels constructs every level of the Merkle tree from leaf hashes,
// level 0 first. An odd-length level promotes its last element by
// pairing it with itself. Returns nil if leaves is empty.
func buildLevels(leaves [][]byte) [][][]byte {
	if len(leaves) == 0 {
		return nil
	}
	levels := [][][]byte{leaves}
	current := leaves
	for len(current) > 1 {
		next := make([][]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			next = append(next, nodeHash(left, right))
		}
		levels = append(levels, next)
		current = next
	}
	return levels
}

// root returns the top-level hash, or nil for an empty tree.
func root(levels [][][]byte) []byte {
	if len(levels) == 0 {
		return nil
	}
	top := levels[len(levels)-1]
	return top[0]
}

// ProofStep is one sibling hash encountered walking from a leaf to the
// root, with the side it occupies relative to the current hash.
type ProofStep struct {
	Hash    string `json:"hash"`
	IsRight bool   `json:"is_right"`
}

// prove builds the inclusion proof for leaf index i against the given
// tree levels (levels[0] is the leaf level).
func prove(levels [][][]byte, i int) ([]ProofStep, error) {
	if len(levels) == 0 || i < 0 || i >= len(levels[0]) {
		return nil, fmt.Errorf("index %d out of range", i)
	}

	var proof []ProofStep
	idx := i
	for level := 0; level < len(levels)-1; level++ {
		nodes := levels[level]
		isRight := idx%2 == 0
		siblingIdx := idx ^ 1
		sibling := nodes[idx]
		if siblingIdx < len(nodes) {
			sibling = nodes[siblingIdx]
		}
		proof = append(proof, ProofStep{Hash: hex.EncodeToString(sibling), IsRight: isRight})
		idx /= 2
	}
	return proof, nil
}

// VerifyInclusion recomputes the root from entry, its claimed index, and
// an inclusion proof, and compares it against rootHash (hex-encoded).
func VerifyInclusion(entry types.LogEntry, proof []ProofStep, rootHash string) (bool, error) {
	current, err := leafHash(entry)
	if err != nil {
		return false, err
	}

	for _, step := range proof {
		sibling, err := hex.DecodeString(step.Hash)
		if err != nil {
			return false, fmt.Errorf("decode proof sibling: %w", err)
		}
		if step.IsRight {
			current = nodeHash(current, sibling)
		} else {
			current = nodeHash(sibling, current)
		}
	}

	return hex.EncodeToString(current) == rootHash, nil
}
