package tufclient

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/cuemby/fleetguard/pkg/canon"
	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/sig"
	"github.com/cuemby/fleetguard/pkg/types"
)

// fakeSource serves canned metadata and target bytes from memory, so
// tests never touch the network.
type fakeSource struct {
	metadata map[string][]byte
	targets  map[string][]byte
}

func newFakeSource() *fakeSource {
	return &fakeSource{metadata: map[string][]byte{}, targets: map[string][]byte{}}
}

func (f *fakeSource) FetchMetadata(ctx context.Context, filename string) ([]byte, error) {
	data, ok := f.metadata[filename]
	if !ok {
		return nil, fleetguarderr.New("fakeSource.FetchMetadata", fleetguarderr.Network, errNotFound(filename))
	}
	return data, nil
}

func (f *fakeSource) FetchTarget(ctx context.Context, name string) (io.ReadCloser, error) {
	data, ok := f.targets[name]
	if !ok {
		return nil, fleetguarderr.New("fakeSource.FetchTarget", fleetguarderr.Network, errNotFound(name))
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

type notFoundErr string

func (e notFoundErr) Error() string { return "not found: " + string(e) }
func errNotFound(name string) error { return notFoundErr(name) }

const farFuture = "2099-01-01T00:00:00Z"

// testSigner bundles an ed25519 keypair with the sig.Key that names it.
type testSigner struct {
	keyID string
	priv  ed25519.PrivateKey
	key   sig.Key
}

func newTestSigner(t *testing.T, keyID string) testSigner {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return testSigner{
		keyID: keyID,
		priv:  priv,
		key:   sig.Key{ID: keyID, Algorithm: sig.AlgorithmEd25519, Public: pub},
	}
}

// signEnvelopeBytes marshals signed, signs its canonical form with every
// signer given, and returns the finished envelope bytes as they would
// appear on the wire.
func signEnvelopeBytes(t *testing.T, signed any, signers ...testSigner) []byte {
	t.Helper()
	rawSigned, err := json.Marshal(signed)
	if err != nil {
		t.Fatalf("marshal signed: %v", err)
	}

	msg, err := canon.Canonicalize(json.RawMessage(rawSigned))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}

	sigs := make([]sig.Signature, 0, len(signers))
	for _, s := range signers {
		sigs = append(sigs, sig.Signature{
			KeyID:     s.keyID,
			Algorithm: sig.AlgorithmEd25519,
			Bytes:     ed25519.Sign(s.priv, msg),
		})
	}

	out, err := json.Marshal(rawEnvelope{Signed: rawSigned, Signatures: sigs})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return out
}

func buildRoot(t *testing.T, version int, signer testSigner) types.RootMetadata {
	t.Helper()
	return types.RootMetadata{
		Type:    "root",
		Version: version,
		Expires: farFuture,
		Keys:    map[string]sig.Key{signer.keyID: signer.key},
		Roles: map[types.Role]types.RoleEntry{
			types.RoleRoot:      {KeyIDs: []string{signer.keyID}, Threshold: 1},
			types.RoleTimestamp: {KeyIDs: []string{signer.keyID}, Threshold: 1},
			types.RoleSnapshot:  {KeyIDs: []string{signer.keyID}, Threshold: 1},
			types.RoleTargets:   {KeyIDs: []string{signer.keyID}, Threshold: 1},
		},
	}
}

func newTempClient(t *testing.T, source MetadataSource) *Client {
	t.Helper()
	dir := t.TempDir()
	return NewClient(source, dir+"/cache", dir+"/targets")
}

func bootstrapHappyPathClient(t *testing.T) (*Client, *fakeSource, testSigner) {
	t.Helper()
	signer := newTestSigner(t, "key-1")
	root := buildRoot(t, 1, signer)
	rootBytes := signEnvelopeBytes(t, root, signer)

	source := newFakeSource()
	client := newTempClient(t, source)

	if err := client.InitializeRoot(context.Background(), rootBytes, ModeBootstrap); err != nil {
		t.Fatalf("InitializeRoot: %v", err)
	}

	targetName := "pkg-1.0.bin"
	targets := types.TargetsMetadata{
		Type:    "targets",
		Version: 1,
		Expires: farFuture,
		Targets: map[string]types.TargetFileInfo{
			targetName: {
				Length: 12,
				SHA256: "7509e5bda0c762d2bac7f90d758b5b2263fa01ccbc542ab5e3df163be08e6ca9",
				SHA512: "db9b1cd3262dee37756a09b9064973589847caa8e53d31a9d142ea2701b1b28abd97838bb9a27068ba305dc8d04a45a1fcf079de54d607666996b3cc54f6b67c",
			},
		},
	}
	targetsBytes := signEnvelopeBytes(t, targets, signer)

	snapshot := types.SnapshotMetadata{
		Type:    "snapshot",
		Version: 1,
		Expires: farFuture,
		Meta: map[string]types.FileReference{
			"targets.json": referenceFor(t, targetsBytes, 1),
		},
	}
	snapshotBytes := signEnvelopeBytes(t, snapshot, signer)

	timestamp := types.TimestampMetadata{
		Type:    "timestamp",
		Version: 1,
		Expires: farFuture,
		Meta: map[string]types.FileReference{
			"snapshot.json": referenceFor(t, snapshotBytes, 1),
		},
	}
	timestampBytes := signEnvelopeBytes(t, timestamp, signer)

	source.metadata["timestamp.json"] = timestampBytes
	source.metadata["snapshot.json"] = snapshotBytes
	source.metadata["targets.json"] = targetsBytes
	source.targets[targetName] = []byte("hello world!")

	return client, source, signer
}

func referenceFor(t *testing.T, data []byte, version int) types.FileReference {
	t.Helper()
	return types.FileReference{
		Version: version,
		Length:  len(data),
		SHA256:  canon.SHA256Hex(data),
	}
}

func TestHappyPathUpdate(t *testing.T) {
	client, _, _ := bootstrapHappyPathClient(t)

	if err := client.RefreshMetadata(context.Background()); err != nil {
		t.Fatalf("RefreshMetadata: %v", err)
	}

	path, err := client.FetchTarget(context.Background(), "pkg-1.0.bin")
	if err != nil {
		t.Fatalf("FetchTarget: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fetched target: %v", err)
	}
	if string(contents) != "hello world!" {
		t.Errorf("fetched target contents = %q, want %q", contents, "hello world!")
	}
}

func TestTamperedTargetFailsHashMismatch(t *testing.T) {
	client, source, _ := bootstrapHappyPathClient(t)
	source.targets["pkg-1.0.bin"] = []byte("hELLo world!")

	if err := client.RefreshMetadata(context.Background()); err != nil {
		t.Fatalf("RefreshMetadata: %v", err)
	}

	path, err := client.FetchTarget(context.Background(), "pkg-1.0.bin")
	if !fleetguarderr.Is(err, fleetguarderr.HashMismatch) {
		t.Fatalf("expected HashMismatch, got %v", err)
	}
	if path != "" {
		t.Errorf("expected no path on failure, got %q", path)
	}
	if _, err := os.Stat(client.targetsDir + "/pkg-1.0.bin"); err == nil {
		t.Errorf("target file must not exist at final path after tamper detection")
	}
}

func TestRefreshRejectsTimestampVersionRegression(t *testing.T) {
	client, source, signer := bootstrapHappyPathClient(t)
	if err := client.RefreshMetadata(context.Background()); err != nil {
		t.Fatalf("initial RefreshMetadata: %v", err)
	}

	// Re-serve a timestamp with a lower version than cached.
	oldTimestamp := types.TimestampMetadata{
		Type:    "timestamp",
		Version: 0,
		Expires: farFuture,
		Meta: map[string]types.FileReference{
			"snapshot.json": referenceFor(t, source.metadata["snapshot.json"], 1),
		},
	}
	source.metadata["timestamp.json"] = signEnvelopeBytes(t, oldTimestamp, signer)

	err := client.RefreshMetadata(context.Background())
	if !fleetguarderr.Is(err, fleetguarderr.VersionRegression) {
		t.Fatalf("expected VersionRegression, got %v", err)
	}
	// Cache must be untouched.
	if client.cachedTimestamp.Version != 1 {
		t.Errorf("cached timestamp version changed despite failed refresh: %d", client.cachedTimestamp.Version)
	}
}

func TestRefreshRejectsExpiredMetadata(t *testing.T) {
	client, source, signer := bootstrapHappyPathClient(t)

	expired := types.TimestampMetadata{
		Type:    "timestamp",
		Version: 2,
		Expires: "2000-01-01T00:00:00Z",
		Meta: map[string]types.FileReference{
			"snapshot.json": referenceFor(t, source.metadata["snapshot.json"], 1),
		},
	}
	source.metadata["timestamp.json"] = signEnvelopeBytes(t, expired, signer)

	err := client.RefreshMetadata(context.Background())
	if !fleetguarderr.Is(err, fleetguarderr.ExpiredMetadata) {
		t.Fatalf("expected ExpiredMetadata, got %v", err)
	}
}

func TestSelfUpgradeRequiresExactVersionIncrement(t *testing.T) {
	client, _, signer := bootstrapHappyPathClient(t)

	skippedRoot := buildRoot(t, 3, signer)
	skippedBytes := signEnvelopeBytes(t, skippedRoot, signer)

	err := client.InitializeRoot(context.Background(), skippedBytes, ModeSelfUpgrade)
	if !fleetguarderr.Is(err, fleetguarderr.VersionRegression) {
		t.Fatalf("expected VersionRegression for version skip, got %v", err)
	}

	nextRoot := buildRoot(t, 2, signer)
	nextBytes := signEnvelopeBytes(t, nextRoot, signer)
	if err := client.InitializeRoot(context.Background(), nextBytes, ModeSelfUpgrade); err != nil {
		t.Fatalf("InitializeRoot self-upgrade: %v", err)
	}
	if client.trustedRoot.Version != 2 {
		t.Errorf("trusted root version = %d, want 2", client.trustedRoot.Version)
	}
}

func TestFetchTargetUnknownName(t *testing.T) {
	client, _, _ := bootstrapHappyPathClient(t)
	if err := client.RefreshMetadata(context.Background()); err != nil {
		t.Fatalf("RefreshMetadata: %v", err)
	}
	_, err := client.FetchTarget(context.Background(), "does-not-exist.bin")
	if !fleetguarderr.Is(err, fleetguarderr.UnknownTarget) {
		t.Fatalf("expected UnknownTarget, got %v", err)
	}
}

func TestFetchTargetBeforeRefreshFailsNotInitialized(t *testing.T) {
	client, _, _ := bootstrapHappyPathClient(t)
	_, err := client.FetchTarget(context.Background(), "pkg-1.0.bin")
	if !fleetguarderr.Is(err, fleetguarderr.NotInitialized) {
		t.Fatalf("expected NotInitialized, got %v", err)
	}
}
