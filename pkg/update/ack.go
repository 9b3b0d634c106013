package update

// StatusReceived is the only status a consumer ever reports.
const StatusReceived = "received"

// ReasonNotRecognized is the NACK reason for unknown or incomplete events.
const ReasonNotRecognized = "event not recognized"

// Ack is the consumer's answer to an update event.
type Ack struct {
	Status    string  `json:"status"`
	Processed bool    `json:"processed"`
	Error     string  `json:"error,omitempty"`
	EventAck  *string `json:"eventAck"`
}

// Accepted builds a positive acknowledgment.
func Accepted(eventID string) Ack {
	return Ack{Status: StatusReceived, Processed: true, EventAck: echo(eventID)}
}

// Rejected builds a negative acknowledgment. The status is still "received".
func Rejected(eventID, reason string) Ack {
	return Ack{Status: StatusReceived, Processed: false, Error: reason, EventAck: echo(eventID)}
}

func echo(eventID string) *string {
	if eventID == "" {
		return nil
	}
	return &eventID
}

// EventID returns the echoed id, or "" when it was null.
func (a Ack) EventID() string {
	if a.EventAck == nil {
		return ""
	}
	return *a.EventAck
}
