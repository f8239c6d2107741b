package tufclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/fleetguard/pkg/fleetguarderr"
)

// MetadataSource fetches raw metadata envelope bytes and target byte
// streams from an update server. Swappable so tests can serve canned
// fixtures without a listening socket.
type MetadataSource interface {
	// FetchMetadata returns the raw bytes of the named metadata file,
	// e.g. "root.json", "timestamp.json".
	FetchMetadata(ctx context.Context, filename string) ([]byte, error)

	// FetchTarget returns a stream of the named target's raw bytes. The
	// caller is responsible for closing it.
	FetchTarget(ctx context.Context, name string) (io.ReadCloser, error)
}

// HTTPSource is the production MetadataSource: GET {base}/metadata/{file}
// and GET {base}/targets/{name}, per the external interface.
type HTTPSource struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPSource builds an HTTPSource whose http.Client has no timeout.
// HTTPSource does not apply MetadataTimeout or TargetTimeout itself; a
// request is bounded only by the ctx passed to FetchMetadata or
// FetchTarget.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
	}
}

const (
	// MetadataTimeout is the timeout value for metadata fetches; nothing
	// in this package applies it.
	MetadataTimeout = 30 * time.Second
	// TargetTimeout is the timeout value for target downloads; nothing in
	// this package applies it.
	TargetTimeout = 60 * time.Second
)

func (s *HTTPSource) FetchMetadata(ctx context.Context, filename string) ([]byte, error) {
	const op = "tufclient.HTTPSource.FetchMetadata"

	url := fmt.Sprintf("%s/metadata/%s", s.BaseURL, filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Network, err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Network, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fleetguarderr.New(op, fleetguarderr.Network, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, filename))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Network, err)
	}
	return data, nil
}

func (s *HTTPSource) FetchTarget(ctx context.Context, name string) (io.ReadCloser, error) {
	const op = "tufclient.HTTPSource.FetchTarget"

	url := fmt.Sprintf("%s/targets/%s", s.BaseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Network, err)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fleetguarderr.New(op, fleetguarderr.Network, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fleetguarderr.New(op, fleetguarderr.Network, fmt.Errorf("unexpected status %d fetching target %s", resp.StatusCode, name))
	}
	return resp.Body, nil
}
