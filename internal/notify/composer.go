// Package notify drafts and delivers per-assignment notifications. The
// composer produces text for each channel; senders push those drafts to
// Jira and Slack. Drafting never mutates assignments, and a failed draft
// affects only its own assignment.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/provider"
	"github.com/clintrovert/sarek/pkg/types"
)

const composeSystemPrompt = `You are an expert at writing clear, professional team communications.
Write notifications announcing an issue assignment to a developer.
Keep the ticket formal, the chat message friendly and direct, and the status update to a single sentence.`

var composeSchema = provider.MustSchema(`{
	"type": "object",
	"properties": {
		"ticket_title": {"type": "string"},
		"ticket_body": {"type": "string"},
		"ticket_priority": {"type": "string", "enum": ["Low", "Medium", "High", "Critical"]},
		"chat_message": {"type": "string"},
		"status_update": {"type": "string"}
	},
	"required": ["ticket_title", "ticket_body", "chat_message", "status_update"]
}`)

type composedDraft struct {
	TicketTitle    string `json:"ticket_title"`
	TicketBody     string `json:"ticket_body"`
	TicketPriority string `json:"ticket_priority"`
	ChatMessage    string `json:"chat_message"`
	StatusUpdate   string `json:"status_update"`
}

// Composer drafts notification text for assignments.
type Composer struct {
	provider provider.Provider
	logger   *zap.Logger
}

// NewComposer creates a notification composer.
func NewComposer(p provider.Provider, logger *zap.Logger) *Composer {
	return &Composer{provider: p, logger: logger}
}

// Compose drafts all channels for one assignment. Unassignable
// assignments get a deterministic escalation draft without a model call.
func (c *Composer) Compose(ctx context.Context, a types.Assignment, item *types.AnalyzedWorkItem) (*types.Notification, error) {
	if a.Unassignable {
		return unassignableDraft(a, item), nil
	}

	req := provider.Request{
		System:      composeSystemPrompt,
		Prompt:      buildComposePrompt(a, item),
		Temperature: 0.7,
	}

	var draft composedDraft
	if err := provider.Invoke(ctx, c.provider, req, composeSchema, &draft); err != nil {
		return nil, fmt.Errorf("compose notification for %s: %w", a.ItemID, err)
	}
	if draft.TicketPriority == "" {
		draft.TicketPriority = "Medium"
	}

	c.logger.Debug("composed notification",
		zap.String("item_id", a.ItemID),
		zap.String("worker_id", a.WorkerID),
	)

	return &types.Notification{
		ItemID:         a.ItemID,
		WorkerID:       a.WorkerID,
		TicketTitle:    draft.TicketTitle,
		TicketBody:     draft.TicketBody,
		TicketPriority: draft.TicketPriority,
		ChatMessage:    draft.ChatMessage,
		StatusUpdate:   draft.StatusUpdate,
	}, nil
}

func buildComposePrompt(a types.Assignment, item *types.AnalyzedWorkItem) string {
	var sb strings.Builder
	sb.WriteString("Write notifications for the following assignment:\n\n")
	sb.WriteString("Issue: " + item.ID + " - " + item.Title + "\n")
	sb.WriteString("Summary: " + item.Summary + "\n")
	sb.WriteString("Difficulty: " + string(item.Difficulty) + "\n")
	sb.WriteString("Assigned To: " + a.WorkerName + " (" + a.WorkerID + ")\n")
	sb.WriteString(fmt.Sprintf("Confidence: %d/%d\n", a.Confidence, types.MaxConfidence))
	sb.WriteString("Reason: " + a.Reason + "\n\n")
	sb.WriteString("Produce a ticket title, ticket body, ticket priority, a chat message addressed to the developer, and a one-line status update for the team channel.")
	return sb.String()
}

func unassignableDraft(a types.Assignment, item *types.AnalyzedWorkItem) *types.Notification {
	return &types.Notification{
		ItemID:         a.ItemID,
		TicketTitle:    "Unassigned: " + item.Title,
		TicketBody:     fmt.Sprintf("No suitable assignee was found for %s.\n\nReason: %s", item.ID, a.Reason),
		TicketPriority: "High",
		ChatMessage:    fmt.Sprintf("Heads up: %s could not be assigned automatically (%s). It needs a manual owner.", item.ID, a.Reason),
		StatusUpdate:   fmt.Sprintf("%s is unassigned and needs triage.", item.ID),
	}
}
