package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/fleetguard/pkg/log"
	"github.com/cuemby/fleetguard/pkg/receiver"
	"github.com/cuemby/fleetguard/pkg/security"
	"github.com/cuemby/fleetguard/pkg/storage"
	"github.com/spf13/cobra"
)

var receiverCmd = &cobra.Command{
	Use:   "receiver",
	Short: "Operate the tamper-evident log receiver",
}

func init() {
	receiverServeCmd.Flags().String("listen", ":8443", "address to listen on")
	receiverServeCmd.Flags().String("ca-dir", "/var/lib/fleetguard/ca", "directory holding the fleet certificate authority")
	receiverServeCmd.Flags().String("fleet-id", "", "fleet identifier used to derive the CA's at-rest encryption key (required)")
	receiverServeCmd.Flags().String("storage-dir", "/var/lib/fleetguard/receiver", "directory for received log batches")
	receiverServeCmd.Flags().String("chain-db", "/var/lib/fleetguard/receiver/integrity.db", "BoltDB file for per-client hash chains")
	receiverServeCmd.Flags().String("keys-dir", "/etc/fleetguard/receiver/client-keys", "directory of <client_id>.pem RSA-PSS public keys trusted for log uploads")
	receiverServeCmd.Flags().Duration("retention", 30*24*time.Hour, "retention period recorded by the receiver (received log batches are not deleted)")
	_ = receiverServeCmd.MarkFlagRequired("fleet-id")

	receiverCmd.AddCommand(receiverServeCmd)
}

var receiverServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mTLS log receiver",
	Long: `Start the log receiver behind a mutual-TLS listener. Clients
authenticate with a certificate issued by the fleet CA; the receiver
extracts client identity from the verified peer certificate and never
trusts request content for it.`,
	RunE: runReceiverServe,
}

func loadClientKeys(dir string) (receiver.StaticKeyStore, error) {
	keys := make(receiver.StaticKeyStore)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return keys, nil
	}
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".pem" {
			continue
		}
		pemBytes, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read client key %s: %w", entry.Name(), err)
		}
		clientID := entry.Name()[:len(entry.Name())-len(".pem")]
		keys[clientID] = pemBytes
	}
	return keys, nil
}

func runReceiverServe(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	caDir, _ := cmd.Flags().GetString("ca-dir")
	fleetID, _ := cmd.Flags().GetString("fleet-id")
	storageDir, _ := cmd.Flags().GetString("storage-dir")
	chainDB, _ := cmd.Flags().GetString("chain-db")
	keysDir, _ := cmd.Flags().GetString("keys-dir")
	retention, _ := cmd.Flags().GetDuration("retention")

	if err := security.SetFleetEncryptionKey(security.DeriveKeyFromFleetID(fleetID)); err != nil {
		return fmt.Errorf("set fleet encryption key: %w", err)
	}

	if err := os.MkdirAll(caDir, 0700); err != nil {
		return fmt.Errorf("create ca dir: %w", err)
	}
	ca := security.NewCertAuthority(caDir)
	if err := ca.LoadFromStore(); err != nil {
		if err := ca.Initialize(); err != nil {
			return fmt.Errorf("initialize ca: %w", err)
		}
		if err := ca.SaveToStore(); err != nil {
			return fmt.Errorf("save ca: %w", err)
		}
		log.WithComponent("receiver").Info().Msg("initialized new fleet certificate authority")
	}

	hostname, _ := os.Hostname()
	serverCert, err := ca.IssueNodeCertificate(hostname, "receiver", []string{hostname}, []net.IP{net.ParseIP("127.0.0.1")})
	if err != nil {
		return fmt.Errorf("issue receiver certificate: %w", err)
	}

	rootPool := x509.NewCertPool()
	if !rootPool.AppendCertsFromPEM(certToPEM(ca.GetRootCACert())) {
		return fmt.Errorf("failed to build client CA pool from root certificate")
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    rootPool,
		MinVersion:   tls.VersionTLS13,
	}

	if err := os.MkdirAll(storageDir, 0700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	chains, err := storage.NewBoltChainStore(chainDB)
	if err != nil {
		return fmt.Errorf("open chain store: %w", err)
	}
	defer chains.Close()

	keys, err := loadClientKeys(keysDir)
	if err != nil {
		return fmt.Errorf("load client keys: %w", err)
	}

	srv := receiver.NewServer(chains, keys, storageDir, retention)

	httpServer := &http.Server{
		Addr:      listen,
		Handler:   srv.Handler(),
		TLSConfig: tlsConfig,
	}

	log.WithComponent("receiver").Info().Str("addr", listen).Msg("log receiver listening")
	return httpServer.ListenAndServeTLS("", "")
}

func certToPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}
