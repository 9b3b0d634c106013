package pedidos

// Order statuses, in Kanban order.
const (
	StatusReceived  = "received"
	StatusPreparing = "preparing"
	StatusReady     = "ready"
	StatusDelivered = "delivered"
	StatusCanceled  = "canceled"
)

var statuses = []string{StatusReceived, StatusPreparing, StatusReady, StatusDelivered, StatusCanceled}

var transitions = map[string][]string{
	StatusReceived:  {StatusPreparing, StatusCanceled},
	StatusPreparing: {StatusReady, StatusCanceled},
	StatusReady:     {StatusDelivered, StatusCanceled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves status.
func Terminal(status string) bool {
	return len(transitions[status]) == 0
}

// Statuses lists every order status in board order.
func Statuses() []string {
	return append([]string(nil), statuses...)
}

// Next returns the statuses an order may move to from status.
func Next(status string) []string {
	return append([]string(nil), transitions[status]...)
}
