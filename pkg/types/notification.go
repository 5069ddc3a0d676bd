package types

// Notification holds the drafted text for each delivery channel of one
// assignment. Purely presentational; it must reference a valid assignment
// but carries no other invariant.
type Notification struct {
	ItemID         string `json:"issue_id"`
	WorkerID       string `json:"assigned_to"`
	TicketTitle    string `json:"ticket_title"`
	TicketBody     string `json:"ticket_body"`
	TicketPriority string `json:"ticket_priority"`
	ChatMessage    string `json:"chat_message"`
	StatusUpdate   string `json:"status_update"`
}
