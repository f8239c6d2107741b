package sig

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
)

// Verifier checks a detached signature against a public key and message.
// Registering a new Algorithm means implementing this interface and
// adding it to the registry map below — verification call sites never
// branch on algorithm names themselves.
type Verifier interface {
	Verify(pub []byte, msg, signature []byte) error
}

var registry = map[Algorithm]Verifier{
	AlgorithmEd25519:      ed25519Verifier{},
	AlgorithmRSAPSSSHA256: rsaPSSVerifier{},
}

// VerifierFor returns the registered Verifier for alg, or UnknownAlgorithm
// if none is registered.
func VerifierFor(alg Algorithm) (Verifier, error) {
	v, ok := registry[alg]
	if !ok {
		return nil, fleetguarderr.New("sig.VerifierFor", fleetguarderr.UnknownAlgorithm,
			fmt.Errorf("unsupported algorithm %q", alg))
	}
	return v, nil
}

type ed25519Verifier struct{}

func (ed25519Verifier) Verify(pub []byte, msg, signature []byte) error {
	const op = "sig.ed25519Verifier.Verify"
	if len(pub) != ed25519.PublicKeySize {
		return fleetguarderr.New(op, fleetguarderr.MalformedKey,
			fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub)))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, signature) {
		return fleetguarderr.New(op, fleetguarderr.InvalidSignature, fmt.Errorf("ed25519 signature verification failed"))
	}
	return nil
}

type rsaPSSVerifier struct{}

func (rsaPSSVerifier) Verify(pub []byte, msg, signature []byte) error {
	const op = "sig.rsaPSSVerifier.Verify"

	block, _ := pem.Decode(pub)
	if block == nil {
		return fleetguarderr.New(op, fleetguarderr.MalformedKey, fmt.Errorf("public key is not PEM encoded"))
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fleetguarderr.New(op, fleetguarderr.MalformedKey, fmt.Errorf("invalid SPKI public key: %w", err))
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return fleetguarderr.New(op, fleetguarderr.MalformedKey, fmt.Errorf("public key is not RSA"))
	}

	digest := sha256.Sum256(msg)
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}
	if err := rsa.VerifyPSS(rsaKey, crypto.SHA256, digest[:], signature, opts); err != nil {
		return fleetguarderr.New(op, fleetguarderr.InvalidSignature, fmt.Errorf("rsa-pss signature verification failed: %w", err))
	}
	return nil
}

// SignRSAPSS signs msg with priv using RSA-PSS-SHA256 with the maximum
// permissible salt length. It exists to support tests and CLI key
// provisioning; production verification never calls it.
func SignRSAPSS(priv *rsa.PrivateKey, msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthMax, Hash: crypto.SHA256}
	return rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], opts)
}
