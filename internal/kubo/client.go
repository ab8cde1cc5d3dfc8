// Package kubo talks to a Kubo (IPFS) daemon over its HTTP RPC API.
package kubo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocid "github.com/ipfs/go-cid"
	"go.uber.org/zap"
)

// DefaultAPIURL is where a local daemon listens.
const DefaultAPIURL = "http://localhost:5001/api/v0"

// Client is an HTTP client for the Kubo daemon API.
type Client struct {
	apiURL string
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a client for the Kubo API at the given URL.
func NewClient(apiURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("kubo"),
	}
}

// IsAvailable checks if the Kubo daemon is reachable.
func (k *Client) IsAvailable() bool {
	c := &http.Client{Timeout: 2 * time.Second}
	resp, err := c.Post(k.apiURL+"/id", "", nil)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// BlockPut stores a raw framed git object as a git-raw block hashed with
// sha1, so the daemon assigns the same CID git does.
func (k *Client) BlockPut(raw []byte) (gocid.Cid, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "object")
	if err != nil {
		return gocid.Undef, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(raw); err != nil {
		return gocid.Undef, fmt.Errorf("write form data: %w", err)
	}
	if err := w.Close(); err != nil {
		return gocid.Undef, fmt.Errorf("close form: %w", err)
	}

	q := url.Values{}
	q.Set("cid-codec", "git-raw")
	q.Set("mhtype", "sha1")
	resp, err := k.client.Post(k.apiURL+"/block/put?"+q.Encode(), w.FormDataContentType(), &buf)
	if err != nil {
		return gocid.Undef, fmt.Errorf("ipfs block/put: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return gocid.Undef, fmt.Errorf("ipfs block/put: status %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Key  string `json:"Key"`
		Size int    `json:"Size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return gocid.Undef, fmt.Errorf("ipfs block/put: parse response: %w", err)
	}
	c, err := gocid.Decode(result.Key)
	if err != nil {
		return gocid.Undef, fmt.Errorf("ipfs block/put: bad key %q: %w", result.Key, err)
	}
	k.logger.Debug("block put", zap.Stringer("cid", c), zap.Int("size", result.Size))
	return c, nil
}

// BlockGet retrieves a raw block by CID.
func (k *Client) BlockGet(c gocid.Cid) ([]byte, error) {
	resp, err := k.client.Post(k.apiURL+"/block/get?arg="+url.QueryEscape(c.String()), "", nil)
	if err != nil {
		return nil, fmt.Errorf("ipfs block/get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ipfs block/get: status %d: %s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}

// ReadCID is BlockGet under the name dag.ObjectReader expects, so a daemon
// can serve as an import source.
func (k *Client) ReadCID(c gocid.Cid) ([]byte, error) {
	return k.BlockGet(c)
}

// Pin pins content to prevent garbage collection.
func (k *Client) Pin(c gocid.Cid) error {
	resp, err := k.client.Post(k.apiURL+"/pin/add?arg="+url.QueryEscape(c.String()), "", nil)
	if err != nil {
		return fmt.Errorf("ipfs pin: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ipfs pin: status %d", resp.StatusCode)
	}
	return nil
}
