package ticket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMalformed marks events that fail shape validation. Malformed input is
// never retriable: redelivery cannot fix a payload that was wrong at emission.
var ErrMalformed = errors.New("malformed ticket event")

// Event is the payload of a ticket-generated broker message. Field names match
// the wire contract exactly; the event is immutable once emitted.
type Event struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	TicketNumber string `json:"ticketNumber"`
	TicketName   string `json:"ticketName"`
	User         string `json:"user"`
	Token        string `json:"token"`
}

// ParseEvent decodes and shape-checks a broker message value. id, ticketNumber
// and token are required; the remaining fields are informational.
func ParseEvent(value []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.ID <= 0 {
		return Event{}, fmt.Errorf("%w: missing or invalid id", ErrMalformed)
	}
	if e.TicketNumber == "" {
		return Event{}, fmt.Errorf("%w: missing ticketNumber", ErrMalformed)
	}
	if e.Token == "" {
		return Event{}, fmt.Errorf("%w: missing token", ErrMalformed)
	}
	return e, nil
}

// Key is the broker partition key. All events for one ticket share a key so
// they serialize on one partition in emission order.
func (e Event) Key() string {
	return strconv.Itoa(e.ID)
}

// OwnerID is the owner identifier presented to the validation oracle.
func (e Event) OwnerID() string {
	return strconv.Itoa(e.ID)
}

// Encode renders the event as the broker message value.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
