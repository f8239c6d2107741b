package sig

// Algorithm identifies a supported signature algorithm. The string values
// match the wire names used in signed envelopes.
type Algorithm string

const (
	AlgorithmEd25519 Algorithm = "ed25519"
	// AlgorithmRSAPSSSHA256 is RSA-PSS with SHA-256 as both the digest and
	// MGF1 hash, and the maximum permissible salt length.
	AlgorithmRSAPSSSHA256 Algorithm = "rsa-pss-sha256-mgf1-sha256-saltmax"
)

// Key is one entry of a role's key table: a key_id together with the
// public key material and the algorithm that material is used with.
type Key struct {
	ID        string    `json:"key_id"`
	Algorithm Algorithm `json:"algorithm"`
	// Public is the raw public key encoding for the algorithm: 32 raw
	// bytes for ed25519, PEM-encoded SPKI for RSA-PSS.
	Public []byte `json:"public"`
}

// Signature is one detached signature attached to a signed envelope.
type Signature struct {
	KeyID     string    `json:"key_id"`
	Algorithm Algorithm `json:"algorithm"`
	Bytes     []byte    `json:"sig"`
}

// Envelope pairs an arbitrary signed record with the signatures claimed
// over its canonical encoding.
type Envelope struct {
	Signed     any         `json:"signed"`
	Signatures []Signature `json:"signatures"`
}

// RoleSpec names the key table, the subset of key IDs that belong to a
// role, and the signature threshold that role requires.
type RoleSpec struct {
	KeyTable  map[string]Key
	KeyIDs    map[string]bool
	Threshold int
}

// NewRoleSpec builds a RoleSpec from a key table and an ordered list of
// member key IDs.
func NewRoleSpec(keyTable map[string]Key, keyIDs []string, threshold int) RoleSpec {
	ids := make(map[string]bool, len(keyIDs))
	for _, id := range keyIDs {
		ids[id] = true
	}
	return RoleSpec{KeyTable: keyTable, KeyIDs: ids, Threshold: threshold}
}
