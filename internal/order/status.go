package order

type Status string

const (
	// StatusPending is the initial state of every order.
	StatusPending Status = "PENDING"
	// StatusShipped is a provisional terminal state: the saga may still
	// revise it to FAILED via a stock compensation event.
	StatusShipped Status = "SHIPPED"
	// StatusFailed is terminal.
	StatusFailed Status = "FAILED"
)
