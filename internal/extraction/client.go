package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

// maxResponseBytes bounds what is read back from the extraction service.
const maxResponseBytes = 1 << 20

// ErrNotConfigured is returned by a Client built without a base URL.
var ErrNotConfigured = errors.New("extraction: service not configured")

// ErrResponseTooLarge is returned when the reply exceeds maxResponseBytes.
var ErrResponseTooLarge = errors.New("extraction: response too large")

// Client posts vendor offer PDFs to the extraction service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a Client for baseURL. An empty baseURL yields a client whose
// Extract always fails with ErrNotConfigured.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// Extract uploads the document as multipart field "file" and decodes the reply
// leniently. Transport and HTTP status failures are errors; malformed fields in a
// successful reply only produce advisories.
func (c *Client) Extract(ctx context.Context, filename string, r io.Reader) (procurement.Extracted, []procurement.Advisory, error) {
	if c.baseURL == "" {
		return procurement.Extracted{}, nil, ErrNotConfigured
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return procurement.Extracted{}, nil, fmt.Errorf("extraction: form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return procurement.Extracted{}, nil, fmt.Errorf("extraction: read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return procurement.Extracted{}, nil, fmt.Errorf("extraction: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return procurement.Extracted{}, nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return procurement.Extracted{}, nil, fmt.Errorf("extraction: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return procurement.Extracted{}, nil, fmt.Errorf("extraction: read response: %w", err)
	}
	if len(data) > maxResponseBytes {
		return procurement.Extracted{}, nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, maxResponseBytes)
	}
	if resp.StatusCode >= 300 {
		return procurement.Extracted{}, nil, fmt.Errorf("extraction: http %d", resp.StatusCode)
	}

	x, adv := procurement.DecodeExtracted(data)
	return x, adv, nil
}
