package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/provider"
	"github.com/clintrovert/sarek/pkg/types"
)

type scriptedProvider struct {
	responses []string
	prompts   []string
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Complete(_ context.Context, req provider.Request) (string, error) {
	s.prompts = append(s.prompts, req.Prompt)
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

func TestComposeDraftsAllChannels(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"ticket_title": "Assigned: fix login", "ticket_body": "Details here.",
		  "ticket_priority": "High", "chat_message": "Hey Alice, ISSUE-1 is yours.",
		  "status_update": "ISSUE-1 assigned to Alice."}`,
	}}
	c := NewComposer(p, zap.NewNop())

	item := &types.AnalyzedWorkItem{
		WorkItem: types.WorkItem{ID: "ISSUE-1", Title: "Fix login"},
		Summary:  "Login fails on expired sessions",
	}
	a := types.Assignment{
		ItemID: "ISSUE-1", WorkerID: "dev-1", WorkerName: "Alice",
		Confidence: 8, Reason: "auth expertise",
	}

	got, err := c.Compose(context.Background(), a, item)
	require.NoError(t, err)

	assert.Equal(t, "ISSUE-1", got.ItemID)
	assert.Equal(t, "dev-1", got.WorkerID)
	assert.Equal(t, "Assigned: fix login", got.TicketTitle)
	assert.Equal(t, "High", got.TicketPriority)
	assert.NotEmpty(t, got.ChatMessage)
	assert.NotEmpty(t, got.StatusUpdate)

	require.Len(t, p.prompts, 1)
	assert.Contains(t, p.prompts[0], "Alice")
	assert.Contains(t, p.prompts[0], "auth expertise")
}

func TestComposeDefaultsPriority(t *testing.T) {
	p := &scriptedProvider{responses: []string{
		`{"ticket_title": "t", "ticket_body": "b", "chat_message": "c", "status_update": "s"}`,
	}}
	c := NewComposer(p, zap.NewNop())

	item := &types.AnalyzedWorkItem{WorkItem: types.WorkItem{ID: "ISSUE-2", Title: "x"}}
	got, err := c.Compose(context.Background(), types.Assignment{ItemID: "ISSUE-2", WorkerID: "dev-1", Confidence: 5, Reason: "r"}, item)
	require.NoError(t, err)
	assert.Equal(t, "Medium", got.TicketPriority)
}

func TestComposeUnassignableSkipsModel(t *testing.T) {
	p := &scriptedProvider{}
	c := NewComposer(p, zap.NewNop())

	item := &types.AnalyzedWorkItem{WorkItem: types.WorkItem{ID: "ISSUE-3", Title: "Orphan"}}
	a := types.Assignment{ItemID: "ISSUE-3", Reason: "no matching skills", Unassignable: true}

	got, err := c.Compose(context.Background(), a, item)
	require.NoError(t, err)
	assert.Empty(t, p.prompts)
	assert.Empty(t, got.WorkerID)
	assert.Contains(t, got.TicketTitle, "Unassigned")
	assert.Contains(t, got.ChatMessage, "no matching skills")
	assert.Equal(t, "High", got.TicketPriority)
}
