package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mwantia/blockdb/backend"
	"github.com/mwantia/blockdb/log"
	"github.com/mwantia/blockdb/protocol"
)

// RemoteBackend forwards every operation to a blockdb server.
type RemoteBackend struct {
	endpoint string
	client   *http.Client
	log      *log.Logger
}

// NewRemoteBackend creates a backend talking to the server at baseURL.
// A nil client uses http.DefaultClient.
func NewRemoteBackend(baseURL string, client *http.Client, opts ...backend.Option) (*RemoteBackend, error) {
	options, err := backend.NewOptions(opts...)
	if err != nil {
		return nil, err
	}

	if baseURL == "" {
		return nil, fmt.Errorf("blockdb: remote backend requires a base url")
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &RemoteBackend{
		endpoint: strings.TrimSuffix(baseURL, "/") + protocol.Endpoint,
		client:   client,
		log:      options.Logger.Named("remote"),
	}, nil
}

// Name returns the identifier name defined for this backend
func (*RemoteBackend) Name() string {
	return "remote"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (rb *RemoteBackend) Open(ctx context.Context) error {
	_, err := rb.ContainsCollection(ctx, "/")
	return err
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (rb *RemoteBackend) Close(ctx context.Context) error {
	rb.client.CloseIdleConnections()
	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (rb *RemoteBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityStorage,
			backend.CapabilityLock,
			backend.CapabilityHierarchy,
			backend.CapabilityRemote,
		},
	}
}

// call posts a single operation and decodes its result into result, if not nil.
func (rb *RemoteBackend) call(ctx context.Context, op protocol.Operation, path string, payload any, result any) error {
	req, err := protocol.NewRequest(op, path, payload)
	if err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, rb.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := rb.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("blockdb: remote operation '%s' failed: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var decoded protocol.Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("blockdb: remote operation '%s' returned status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if decoded.Error != nil {
		rb.log.Debug("Operation '%s' on '%s' failed with '%s'", op, path, decoded.Error.Name)
		return decoded.Error
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("blockdb: remote operation '%s' returned status %d", op, resp.StatusCode)
	}

	if result == nil || len(decoded.Result) == 0 {
		return nil
	}

	return protocol.Unmarshal(decoded.Result, result)
}
