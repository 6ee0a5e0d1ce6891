package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ticketflow/pkg/platform/sentinel"
)

// VerdictStatus is the closed set of outcomes the oracle can produce.
type VerdictStatus string

const (
	StatusValidated        VerdictStatus = "validated"
	StatusNotFound         VerdictStatus = "not_found"
	StatusOwnerMismatch    VerdictStatus = "owner_mismatch"
	StatusValidationFailed VerdictStatus = "validation_failed"
)

// TicketData is the oracle payload for a validated ticket.
type TicketData struct {
	Event    string `json:"event"`
	TicketID string `json:"ticket_id"`
	UserID   string `json:"user_id"`
	Date     string `json:"date"`
}

// Verdict is the oracle's answer for one owner/ticket pair. Data is populated
// only when Status is StatusValidated.
type Verdict struct {
	Status  VerdictStatus
	Details string
	Data    *TicketData
}

// Terminal reports whether the verdict is a business answer that persisting
// settles, as opposed to a transient condition worth retrying.
func (v Verdict) Terminal() bool {
	return v.Status != StatusValidationFailed
}

// response mirrors the oracle wire format.
type response struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    *TicketData `json:"data"`
}

// Client calls the external ticket-validation authority.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds an oracle client with a bounded request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Validate asks the oracle whether ticketID belongs to ownerID.
//
// Mapping: 2xx with a success body is validated; 404 is not_found; 403 is
// owner_mismatch; a 2xx with an error body is validation_failed. Any other
// status, and any network or timeout failure, returns an error wrapping
// sentinel.ErrUnavailable so the caller can classify it retriable.
func (c *Client) Validate(ctx context.Context, ownerID, ticketID string) (Verdict, error) {
	q := url.Values{}
	q.Set("id", ownerID)
	q.Set("ticket_id", ticketID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return Verdict{}, fmt.Errorf("build oracle request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("oracle request failed: %w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Verdict{}, fmt.Errorf("read oracle response: %w: %v", sentinel.ErrUnavailable, err)
	}

	return parseResponse(resp.StatusCode, body, ticketID)
}

func parseResponse(status int, body []byte, ticketID string) (Verdict, error) {
	var r response
	// Negative verdicts still carry a JSON message; a decode failure on an
	// error status just leaves Message empty.
	decodeErr := json.Unmarshal(body, &r)

	switch {
	case status >= 200 && status < 300:
		if decodeErr != nil {
			return Verdict{}, fmt.Errorf("decode oracle response: %w: %v", sentinel.ErrUnavailable, decodeErr)
		}
		if r.Status == "success" && r.Data != nil {
			return Verdict{
				Status:  StatusValidated,
				Details: fmt.Sprintf("Ticket %s is valid. Event: %s", ticketID, r.Data.Event),
				Data:    r.Data,
			}, nil
		}
		return Verdict{
			Status:  StatusValidationFailed,
			Details: "validation API reported an issue: " + orUnknown(r.Message),
		}, nil
	case status == http.StatusNotFound:
		return Verdict{Status: StatusNotFound, Details: orUnknown(r.Message)}, nil
	case status == http.StatusForbidden:
		return Verdict{Status: StatusOwnerMismatch, Details: orUnknown(r.Message)}, nil
	default:
		return Verdict{}, fmt.Errorf("oracle returned HTTP %d: %w: %s", status, sentinel.ErrUnavailable, orUnknown(r.Message))
	}
}

func orUnknown(msg string) string {
	if msg == "" {
		return "unknown error"
	}
	return msg
}
