package receiver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
	"github.com/cuemby/fleetguard/pkg/log"
	"github.com/cuemby/fleetguard/pkg/metrics"
	"github.com/cuemby/fleetguard/pkg/sig"
	"github.com/cuemby/fleetguard/pkg/storage"
	"github.com/cuemby/fleetguard/pkg/types"
)

// Outcome names the observable result of a log upload, independent of
// the HTTP status code used to carry it.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeBadSignature    Outcome = "bad_signature"
	OutcomeTamperSuspected Outcome = "tamper_suspected"
	OutcomeMalformed       Outcome = "malformed"
	OutcomeServerError     Outcome = "server_error"
)

// maxBatchBytes bounds an individual upload; the original source has no
// explicit cap but the retention/config section names a max log size.
const maxBatchBytes = 100 * 1024 * 1024

// KeyStore resolves a client's RSA-PSS public key (PEM-encoded, SPKI) by
// client ID. Receiver never trusts a key it wasn't explicitly given.
type KeyStore interface {
	PublicKeyPEM(clientID string) ([]byte, bool)
}

// StaticKeyStore is a KeyStore backed by an in-memory map, populated once
// at startup from installed per-client public keys (the receiver's
// analogue of the original server's client-keys directory).
type StaticKeyStore map[string][]byte

func (s StaticKeyStore) PublicKeyPEM(clientID string) ([]byte, bool) {
	pem, ok := s[clientID]
	return pem, ok
}

// Server is the tamper-evident log receiver. It must be served behind a
// listener configured for mutual TLS; peerCommonName extracts
// identity from the verified peer certificate.
type Server struct {
	chains      storage.ChainStore
	keys        KeyStore
	storageDir  string
	retention   time.Duration
	now         func() time.Time
	clientLocks sync.Map // client_id -> *sync.Mutex
	logger      zerolog.Logger
}

// NewServer builds a receiver Server. storageDir holds received batch
// files under <storageDir>/<client_id>/<ts>.log. retention is stored on
// the Server but no code deletes batch files, so received batches stay
// on disk whatever its value.
func NewServer(chains storage.ChainStore, keys KeyStore, storageDir string, retention time.Duration) *Server {
	return &Server{
		chains:     chains,
		keys:       keys,
		storageDir: storageDir,
		retention:  retention,
		now:        time.Now,
		logger:     log.WithComponent("receiver"),
	}
}

func (s *Server) lockFor(clientID string) *sync.Mutex {
	v, _ := s.clientLocks.LoadOrStore(clientID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Handler returns the HTTP mux serving /upload, /integrity, and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/integrity", s.handleIntegrity)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// peerCommonName extracts the client identity from the verified mTLS
// peer certificate, never from request content.
func peerCommonName(r *http.Request) (string, bool) {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return "", false
	}
	cn := r.TLS.PeerCertificates[0].Subject.CommonName
	if cn == "" {
		return "", false
	}
	return cn, true
}

func writeOutcome(w http.ResponseWriter, status int, outcome Outcome, msg string) {
	metrics.ReceiverOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	w.WriteHeader(status)
	fmt.Fprintln(w, msg)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	clientID, ok := peerCommonName(r)
	if !ok {
		s.logger.Warn().Msg("log upload rejected: no client certificate presented")
		writeOutcome(w, http.StatusUnauthorized, OutcomeUnauthenticated, "client certificate required")
		return
	}

	sigHeader := r.Header.Get("X-Log-Signature")
	if sigHeader == "" {
		writeOutcome(w, http.StatusBadRequest, OutcomeMalformed, "missing log signature")
		return
	}
	signature, err := hex.DecodeString(sigHeader)
	if err != nil {
		writeOutcome(w, http.StatusBadRequest, OutcomeMalformed, "invalid signature encoding")
		return
	}

	batch, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes+1))
	if err != nil {
		writeOutcome(w, http.StatusInternalServerError, OutcomeServerError, "failed to read batch")
		return
	}
	if len(batch) > maxBatchBytes {
		writeOutcome(w, http.StatusBadRequest, OutcomeMalformed, "batch exceeds maximum size")
		return
	}

	pubKeyPEM, ok := s.keys.PublicKeyPEM(clientID)
	if !ok {
		log.WithClientID(clientID).Error().Msg("no verification key installed for client")
		writeOutcome(w, http.StatusForbidden, OutcomeBadSignature, "no verification key for client")
		return
	}
	verifier, err := sig.VerifierFor(sig.AlgorithmRSAPSSSHA256)
	if err != nil {
		writeOutcome(w, http.StatusInternalServerError, OutcomeServerError, "verifier unavailable")
		return
	}
	if err := verifier.Verify(pubKeyPEM, batch, signature); err != nil {
		log.WithClientID(clientID).Error().Err(err).Msg("log batch signature verification failed")
		writeOutcome(w, http.StatusForbidden, OutcomeBadSignature, "signature verification failed")
		return
	}

	correlationID := uuid.New().String()
	w.Header().Set("X-Correlation-ID", correlationID)
	outcome, status, msg := s.ingest(correlationID, clientID, batch)
	writeOutcome(w, status, outcome, msg)
}

// ingest runs the tamper check and persists the batch under this
// client's lock, serializing concurrent uploads from the same client
// while letting other clients proceed independently. correlationID ties
// together every log line for a single upload for operators grepping
// server logs.
func (s *Server) ingest(correlationID, clientID string, batch []byte) (Outcome, int, string) {
	mu := s.lockFor(clientID)
	mu.Lock()
	defer mu.Unlock()

	clientLog := log.WithClientID(clientID)

	ts := s.now().UTC()
	prev, hasPrev, err := s.chains.LastRecord(clientID)
	if err != nil {
		clientLog.Error().Str("correlation_id", correlationID).Err(err).Msg("failed to read integrity chain")
		return OutcomeServerError, http.StatusInternalServerError, "internal error"
	}
	if hasPrev && ts.Before(prev.Timestamp) {
		clientLog.Warn().Str("correlation_id", correlationID).
			Time("batch_timestamp", ts).Time("prev_timestamp", prev.Timestamp).
			Msg("tamper suspected: timestamp regression")
		return OutcomeTamperSuspected, http.StatusConflict, "tamper detected"
	}

	batchHash := sha256.Sum256(batch)
	logHash := hex.EncodeToString(batchHash[:])
	var nextHash string
	if hasPrev {
		advance := sha256.Sum256([]byte(prev.LogHash + logHash))
		nextHash = hex.EncodeToString(advance[:])
	}

	filename := fmt.Sprintf("%s.log", ts.Format("20060102T150405.000000000Z"))
	clientDir := filepath.Join(s.storageDir, clientID)
	if err := os.MkdirAll(clientDir, 0700); err != nil {
		clientLog.Error().Str("correlation_id", correlationID).Err(err).Msg("failed to create client storage directory")
		return OutcomeServerError, http.StatusInternalServerError, "internal error"
	}
	batchPath := filepath.Join(clientDir, filename)
	if err := writeFileFsync(batchPath, batch); err != nil {
		clientLog.Error().Str("correlation_id", correlationID).Err(err).Msg("failed to persist log batch")
		return OutcomeServerError, http.StatusInternalServerError, "internal error"
	}

	record := types.ChainRecord{
		Timestamp: ts,
		LogHash:   logHash,
		Filename:  filename,
		Size:      int64(len(batch)),
		NextHash:  nextHash,
	}
	length, err := s.chains.Append(clientID, record)
	if err != nil {
		clientLog.Error().Str("correlation_id", correlationID).Err(err).Msg("failed to append integrity chain record")
		return OutcomeServerError, http.StatusInternalServerError, "internal error"
	}
	metrics.ReceiverChainLength.WithLabelValues(clientID).Set(float64(length))

	clientLog.Info().Str("correlation_id", correlationID).Str("filename", filename).Int("size", len(batch)).Msg("log batch accepted")
	return OutcomeAccepted, http.StatusOK, "accepted"
}

func writeFileFsync(path string, data []byte) error {
	const op = "receiver.writeFileFsync"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fleetguarderr.New(op, fleetguarderr.Io, err)
	}
	return f.Sync()
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeOutcome(w, http.StatusBadRequest, OutcomeMalformed, "missing client_id parameter")
		return
	}

	chain, err := s.chains.Chain(clientID)
	if err != nil {
		log.WithClientID(clientID).Error().Err(err).Msg("failed to read integrity chain")
		writeOutcome(w, http.StatusInternalServerError, OutcomeServerError, "internal error")
		return
	}

	report := buildIntegrityStatus(clientID, chain)
	writeJSON(w, report)
}

func buildIntegrityStatus(clientID string, chain []types.ChainRecord) types.IntegrityStatus {
	report := types.IntegrityStatus{
		ClientID:        clientID,
		TotalLogs:       len(chain),
		IntegrityStatus: "verified",
	}
	if len(chain) == 0 {
		return report
	}
	report.LastUpdate = chain[len(chain)-1].Timestamp

	start := len(chain) - 10
	if start < 0 {
		start = 0
	}
	for _, rec := range chain[start:] {
		report.HashChain = append(report.HashChain, rec.LogHash)
	}
	return report
}
