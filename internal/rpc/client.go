package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/oshokin/chainkeeper/internal/config"
	domain "github.com/oshokin/chainkeeper/internal/domain/node"
	"github.com/oshokin/chainkeeper/internal/version"
)

// Client wraps the node's JSON-over-HTTP RPC with typed helpers.
type Client struct {
	// endpoint is the base URL of the node RPC listener.
	endpoint *url.URL
	// httpClient performs the actual requests.
	httpClient *http.Client

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for RPC calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

var (
	// errEndpointRequired is returned when a required endpoint value is missing.
	errEndpointRequired = errors.New("endpoint must be provided")
	// errBadHTTPStatus is returned when the node answers with a non-200 status.
	errBadHTTPStatus = errors.New("unexpected http status")
)

// NewClient builds a client for the node RPC at the provided base endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errEndpointRequired
	}

	parsed, err := url.ParseRequestURI(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse RPC endpoint: %w", err)
	}

	client := &Client{
		endpoint:    parsed,
		httpClient:  http.DefaultClient,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Status retrieves the node's sync status from the /status endpoint.
func (c *Client) Status(ctx context.Context) (*domain.Status, error) {
	var payload statusResult
	if err := c.get(ctx, "status", &payload); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	height, err := strconv.ParseInt(payload.SyncInfo.LatestBlockHeight, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse latest block height: %w", err)
	}

	return &domain.Status{
		Node: &domain.Identity{
			ID:      payload.NodeInfo.ID,
			Moniker: payload.NodeInfo.Moniker,
			Network: payload.NodeInfo.Network,
			Version: payload.NodeInfo.Version,
		},
		LatestHeight:    height,
		LatestBlockTime: payload.SyncInfo.LatestBlockTime,
		CatchingUp:      payload.SyncInfo.CatchingUp,
		Peers:           -1,
	}, nil
}

// AppVersion retrieves the application version from the /abci_info endpoint.
func (c *Client) AppVersion(ctx context.Context) (string, error) {
	var payload abciInfoResult
	if err := c.get(ctx, "abci_info", &payload); err != nil {
		return "", fmt.Errorf("get abci info: %w", err)
	}

	return payload.Response.Version, nil
}

// PeerCount retrieves the number of connected peers from the /net_info endpoint.
func (c *Client) PeerCount(ctx context.Context) (int, error) {
	var payload netInfoResult
	if err := c.get(ctx, "net_info", &payload); err != nil {
		return 0, fmt.Errorf("get net info: %w", err)
	}

	peers, err := strconv.Atoi(payload.NPeers)
	if err != nil {
		return 0, fmt.Errorf("parse peer count: %w", err)
	}

	return peers, nil
}

// LatestHeight is a convenience probe returning only the latest block height.
func (c *Client) LatestHeight(ctx context.Context) (int64, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}

	return status.LatestHeight, nil
}

// get performs a GET against the named RPC path and decodes the result envelope.
func (c *Client) get(ctx context.Context, rpcPath string, result any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	requestURL := *c.endpoint
	// path.Join normalizes duplicate slashes when composing the URL path.
	requestURL.Path = path.Join(requestURL.Path, rpcPath)
	finalURL := requestURL.String()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	var envelope rpcEnvelope
	if err = json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if err = json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	return nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
