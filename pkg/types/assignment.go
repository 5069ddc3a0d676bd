package types

// Confidence bounds for assignments. Zero is reserved for items marked
// unassignable.
const (
	MinConfidence = 0
	MaxConfidence = 10
)

// Assignment maps one work item to one worker with a bounded confidence
// score and a free-text justification. Items the matcher could not place
// are kept in the result with Unassignable set and an explanatory reason
// instead of being dropped.
type Assignment struct {
	ItemID       string `json:"issue_id"`
	WorkerID     string `json:"assigned_to,omitempty"`
	WorkerName   string `json:"developer_name,omitempty"`
	Confidence   int    `json:"confidence_score"`
	Reason       string `json:"reason"`
	Unassignable bool   `json:"unassignable,omitempty"`
}
