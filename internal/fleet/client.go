// Package fleet is the HTTP client of the transport fleet controller.
// It starts move workflows and cancels orders; callbacks arrive through
// the handler package.
package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/sorting-hall/internal/logger"
)

// ErrNoOrderID is returned by BeginMove when the fleet accepted the
// request but the response carries no usable order id.
var ErrNoOrderID = errors.New("fleet response carries no order id")

// DefaultWorkflowID is the workflow that moves a pallet from a row to a
// table.
const DefaultWorkflowID = 501

// maxBody bounds how much of a response body is read.
const maxBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL    string
	WorkflowID int
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client talks to the fleet controller over HTTP.  It is safe for
// concurrent use.
type Client struct {
	base     string
	workflow int
	http     *http.Client
	log      logger.Logger
}

// NewClient returns a Client.  Zero options fall back to workflow 501
// and a 10 second timeout.
func NewClient(opts Options) *Client {
	if opts.WorkflowID == 0 {
		opts.WorkflowID = DefaultWorkflowID
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger{}
	}
	return &Client{
		base:     strings.TrimRight(opts.BaseURL, "/"),
		workflow: opts.WorkflowID,
		http:     opts.HTTPClient,
		log:      opts.Logger,
	}
}

// BeginMove starts the move workflow for row and table and returns the
// order id from the response.
func (c *Client) BeginMove(ctx context.Context, row, table string) (int64, error) {
	payload, err := json.Marshal(map[string]string{"@ROW": row, "@TABLE": table})
	if err != nil {
		return 0, fmt.Errorf("fleet: encode workflow: %w", err)
	}
	body, err := c.post(ctx, fmt.Sprintf("%s/workflow/%d", c.base, c.workflow), payload)
	if err != nil {
		return 0, fmt.Errorf("fleet: begin move row %s: %w", row, err)
	}
	c.log.Debugf("fleet: workflow response for row %s: %s", row, body)

	id, ok := ParseOrderID(body)
	if !ok {
		c.log.Warnf("fleet: response for row %s has no usable id: %s", row, body)
		return 0, ErrNoOrderID
	}
	return id, nil
}

// CancelOrder asks the fleet to cancel the order.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	if _, err := c.post(ctx, fmt.Sprintf("%s/order/%d/cancel", c.base, orderID), nil); err != nil {
		return fmt.Errorf("fleet: cancel order %d: %w", orderID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, rdr)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// ParseOrderID extracts the "id" field of a fleet response.
func ParseOrderID(body []byte) (int64, bool) {
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, false
	}
	return ParseID(resp.ID)
}

// ParseID decodes a fleet order id.  The id is usually a JSON number but
// a numeric string is accepted as well.
func ParseID(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
