package sig

import (
	"fmt"

	"github.com/cuemby/fleetguard/pkg/canon"
	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/log"
)

// VerifyEnvelope checks envelope against spec: it canonicalizes
// envelope.Signed, attempts each signature whose key_id belongs to the
// role, counts distinct key IDs that produce a valid signature, and
// succeeds iff that count reaches spec.Threshold.
//
// Signatures referencing key IDs outside the role, or that fail to
// verify, do not abort the check — they simply don't count. An envelope
// with fewer signatures than the threshold is rejected without attempting
// any verification, since it cannot possibly satisfy the threshold.
func VerifyEnvelope(envelope Envelope, spec RoleSpec) error {
	const op = "sig.VerifyEnvelope"

	if len(envelope.Signatures) < spec.Threshold {
		return fleetguarderr.New(op, fleetguarderr.ThresholdNotMet,
			fmt.Errorf("envelope carries %d signatures, threshold requires %d", len(envelope.Signatures), spec.Threshold))
	}

	msg, err := canon.Canonicalize(envelope.Signed)
	if err != nil {
		return fleetguarderr.New(op, fleetguarderr.Malformed, err)
	}

	distinct := make(map[string]bool, len(envelope.Signatures))
	for _, s := range envelope.Signatures {
		if distinct[s.KeyID] {
			continue
		}
		if !spec.KeyIDs[s.KeyID] {
			continue // outside the role: ignored, not fatal
		}
		key, ok := spec.KeyTable[s.KeyID]
		if !ok {
			log.WithKeyID(s.KeyID).Warn().Msg("role member has no key table entry")
			continue
		}
		verifier, err := VerifierFor(key.Algorithm)
		if err != nil {
			log.WithKeyID(s.KeyID).Warn().Str("algorithm", string(key.Algorithm)).Msg("unsupported algorithm, signature ignored")
			continue
		}
		if err := verifier.Verify(key.Public, msg, s.Bytes); err != nil {
			log.WithKeyID(s.KeyID).Warn().Err(err).Msg("signature failed verification")
			continue
		}
		distinct[s.KeyID] = true
	}

	if len(distinct) < spec.Threshold {
		return fleetguarderr.New(op, fleetguarderr.ThresholdNotMet,
			fmt.Errorf("only %d of required %d valid signatures", len(distinct), spec.Threshold))
	}
	return nil
}
