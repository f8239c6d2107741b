package sig

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/cuemby/fleetguard/pkg/canon"
	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
)

type testRecord struct {
	Version int    `json:"version"`
	Expires string `json:"expires"`
}

func genEd25519(t *testing.T, keyID string) (Key, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey: %v", err)
	}
	return Key{ID: keyID, Algorithm: AlgorithmEd25519, Public: pub}, priv
}

func genRSAPSS(t *testing.T, keyID string) (Key, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	spki, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: spki})
	return Key{ID: keyID, Algorithm: AlgorithmRSAPSSSHA256, Public: pemBytes}, priv
}

func signEnvelope(t *testing.T, signed testRecord, sigs ...Signature) Envelope {
	t.Helper()
	return Envelope{Signed: signed, Signatures: sigs}
}

func edSign(t *testing.T, priv ed25519.PrivateKey, keyID string, signed testRecord) Signature {
	t.Helper()
	msg, err := canon.Canonicalize(signed)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	return Signature{KeyID: keyID, Algorithm: AlgorithmEd25519, Bytes: ed25519.Sign(priv, msg)}
}

func rsaSign(t *testing.T, priv *rsa.PrivateKey, keyID string, signed testRecord) Signature {
	t.Helper()
	msg, err := canon.Canonicalize(signed)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	b, err := SignRSAPSS(priv, msg)
	if err != nil {
		t.Fatalf("SignRSAPSS: %v", err)
	}
	return Signature{KeyID: keyID, Algorithm: AlgorithmRSAPSSSHA256, Bytes: b}
}

func TestVerifyEnvelopeEd25519RoundTrip(t *testing.T) {
	key, priv := genEd25519(t, "key-a")
	signed := testRecord{Version: 1, Expires: "2030-01-01T00:00:00Z"}
	sig := edSign(t, priv, "key-a", signed)
	envelope := signEnvelope(t, signed, sig)

	spec := NewRoleSpec(map[string]Key{"key-a": key}, []string{"key-a"}, 1)
	if err := VerifyEnvelope(envelope, spec); err != nil {
		t.Fatalf("VerifyEnvelope: %v", err)
	}
}

func TestVerifyEnvelopeRSAPSSRoundTrip(t *testing.T) {
	key, priv := genRSAPSS(t, "key-r")
	signed := testRecord{Version: 7, Expires: "2031-06-01T00:00:00Z"}
	sig := rsaSign(t, priv, "key-r", signed)
	envelope := signEnvelope(t, signed, sig)

	spec := NewRoleSpec(map[string]Key{"key-r": key}, []string{"key-r"}, 1)
	if err := VerifyEnvelope(envelope, spec); err != nil {
		t.Fatalf("VerifyEnvelope: %v", err)
	}
}

func TestVerifyEnvelopeBitFlipBreaksSignature(t *testing.T) {
	key, priv := genEd25519(t, "key-a")
	signed := testRecord{Version: 1, Expires: "2030-01-01T00:00:00Z"}
	sig := edSign(t, priv, "key-a", signed)
	sig.Bytes[0] ^= 0xff
	envelope := signEnvelope(t, signed, sig)

	spec := NewRoleSpec(map[string]Key{"key-a": key}, []string{"key-a"}, 1)
	err := VerifyEnvelope(envelope, spec)
	if !fleetguarderr.Is(err, fleetguarderr.ThresholdNotMet) {
		t.Fatalf("expected ThresholdNotMet for corrupted signature, got %v", err)
	}
}

func TestVerifyEnvelopeThresholdMet(t *testing.T) {
	keyA, privA := genEd25519(t, "key-a")
	keyB, privB := genEd25519(t, "key-b")
	keyC, _ := genEd25519(t, "key-c")
	signed := testRecord{Version: 2, Expires: "2030-01-01T00:00:00Z"}

	sigA := edSign(t, privA, "key-a", signed)
	sigB := edSign(t, privB, "key-b", signed)
	envelope := signEnvelope(t, signed, sigA, sigB)

	spec := NewRoleSpec(map[string]Key{"key-a": keyA, "key-b": keyB, "key-c": keyC}, []string{"key-a", "key-b", "key-c"}, 2)
	if err := VerifyEnvelope(envelope, spec); err != nil {
		t.Fatalf("VerifyEnvelope: %v", err)
	}
}

func TestVerifyEnvelopeThresholdNotMet(t *testing.T) {
	keyA, privA := genEd25519(t, "key-a")
	keyB, _ := genEd25519(t, "key-b")
	signed := testRecord{Version: 2, Expires: "2030-01-01T00:00:00Z"}

	sigA := edSign(t, privA, "key-a", signed)
	envelope := signEnvelope(t, signed, sigA)

	spec := NewRoleSpec(map[string]Key{"key-a": keyA, "key-b": keyB}, []string{"key-a", "key-b"}, 2)
	err := VerifyEnvelope(envelope, spec)
	if !fleetguarderr.Is(err, fleetguarderr.ThresholdNotMet) {
		t.Fatalf("expected ThresholdNotMet, got %v", err)
	}
}

func TestVerifyEnvelopeFewerThanThresholdShortCircuits(t *testing.T) {
	keyA, privA := genEd25519(t, "key-a")
	signed := testRecord{Version: 2, Expires: "2030-01-01T00:00:00Z"}
	sigA := edSign(t, privA, "key-a", signed)
	envelope := signEnvelope(t, signed, sigA)

	// Threshold of 3 with only one signature present: VerifyEnvelope must
	// reject before attempting any verification.
	spec := NewRoleSpec(map[string]Key{"key-a": keyA}, []string{"key-a"}, 3)
	err := VerifyEnvelope(envelope, spec)
	if !fleetguarderr.Is(err, fleetguarderr.ThresholdNotMet) {
		t.Fatalf("expected ThresholdNotMet, got %v", err)
	}
}

func TestVerifyEnvelopeDuplicateKeyIDCountsOnce(t *testing.T) {
	keyA, privA := genEd25519(t, "key-a")
	signed := testRecord{Version: 2, Expires: "2030-01-01T00:00:00Z"}
	sigA1 := edSign(t, privA, "key-a", signed)
	sigA2 := edSign(t, privA, "key-a", signed)
	envelope := signEnvelope(t, signed, sigA1, sigA2)

	spec := NewRoleSpec(map[string]Key{"key-a": keyA}, []string{"key-a"}, 2)
	err := VerifyEnvelope(envelope, spec)
	if !fleetguarderr.Is(err, fleetguarderr.ThresholdNotMet) {
		t.Fatalf("expected ThresholdNotMet (duplicate key_id must not satisfy threshold 2), got %v", err)
	}
}

func TestVerifyEnvelopeOutOfRoleSignatureIgnored(t *testing.T) {
	keyA, privA := genEd25519(t, "key-a")
	keyOutside, privOutside := genEd25519(t, "key-outside")
	signed := testRecord{Version: 2, Expires: "2030-01-01T00:00:00Z"}

	sigA := edSign(t, privA, "key-a", signed)
	sigOutside := edSign(t, privOutside, "key-outside", signed)
	envelope := signEnvelope(t, signed, sigA, sigOutside)

	// key-outside is not a member of the role, so its valid signature must
	// not count toward the threshold.
	spec := NewRoleSpec(map[string]Key{"key-a": keyA, "key-outside": keyOutside}, []string{"key-a"}, 2)
	err := VerifyEnvelope(envelope, spec)
	if !fleetguarderr.Is(err, fleetguarderr.ThresholdNotMet) {
		t.Fatalf("expected ThresholdNotMet, got %v", err)
	}
}

func TestVerifyEnvelopeUnknownAlgorithmIgnoredNotFatal(t *testing.T) {
	keyA, privA := genEd25519(t, "key-a")
	keyBroken := Key{ID: "key-broken", Algorithm: "rot13", Public: []byte("nope")}
	signed := testRecord{Version: 2, Expires: "2030-01-01T00:00:00Z"}

	sigA := edSign(t, privA, "key-a", signed)
	sigBroken := Signature{KeyID: "key-broken", Algorithm: "rot13", Bytes: []byte("garbage")}
	envelope := signEnvelope(t, signed, sigA, sigBroken)

	spec := NewRoleSpec(map[string]Key{"key-a": keyA, "key-broken": keyBroken}, []string{"key-a", "key-broken"}, 1)
	if err := VerifyEnvelope(envelope, spec); err != nil {
		t.Fatalf("VerifyEnvelope: %v", err)
	}
}
