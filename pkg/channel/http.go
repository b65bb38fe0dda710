package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/quartzui/remoteops/pkg/bytecode"
)

const (
	contentTypeCBOR = "application/cbor"

	// Bodies smaller than this are sent uncompressed; zstd framing costs
	// more than it saves on tiny programs.
	compressThreshold = 512
)

// HTTPClient is an execution channel over HTTP. Requests and responses are
// CBOR bodies, zstd-compressed when large enough.
type HTTPClient struct {
	base string
	hc   *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.hc = hc }
}

// NewHTTPClient creates a channel talking to an executor at baseURL
// (e.g. "http://host:7317").
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute posts the request to the executor and decodes its response.
func (c *HTTPClient) Execute(ctx context.Context, req *bytecode.Request) (*bytecode.Response, error) {
	body, err := bytecode.MarshalRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/v1/execute", nil)
	if err != nil {
		return nil, fmt.Errorf("channel: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentTypeCBOR)
	httpReq.Header.Set("Accept-Encoding", "zstd")
	if len(body) >= compressThreshold {
		compressed, err := compressZstd(body)
		if err != nil {
			return nil, fmt.Errorf("channel: zstd compression failed: %w", err)
		}
		body = compressed
		httpReq.Header.Set("Content-Encoding", "zstd")
	}
	httpReq.Body = io.NopCloser(bytes.NewReader(body))
	httpReq.ContentLength = int64(len(body))

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	return bytecode.UnmarshalResponse(raw)
}

// Manifest fetches the executor's capability manifest.
func (c *HTTPClient) Manifest(ctx context.Context) (*Manifest, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/v1/capabilities", nil)
	if err != nil {
		return nil, fmt.Errorf("channel: building request: %w", err)
	}
	httpReq.Header.Set("Accept-Encoding", "zstd")

	raw, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	m := new(Manifest)
	if err := cbor.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("channel: decoding manifest: %w", err)
	}
	return m, nil
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("channel: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("channel: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel: executor returned %s: %s",
			resp.Status, strings.TrimSpace(string(raw)))
	}
	if resp.Header.Get("Content-Encoding") == "zstd" {
		raw, err = decompressZstd(raw)
		if err != nil {
			return nil, fmt.Errorf("channel: zstd decompression failed: %w", err)
		}
	}
	return raw, nil
}

// compressZstd compresses data using zstd.
func compressZstd(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

// decompressZstd decompresses zstd-compressed data.
func decompressZstd(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer decoder.Close()
	return decoder.DecodeAll(data, nil)
}
