package notify

import (
	"fmt"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"github.com/clintrovert/sarek/pkg/types"
)

// JiraSender files drafted tickets in a Jira project.
type JiraSender struct {
	client     *jira.Client
	logger     *zap.Logger
	projectKey string
}

// NewJiraSender creates a Jira sender authenticated with an API token.
func NewJiraSender(baseURL, username, apiToken, projectKey string, logger *zap.Logger) (*JiraSender, error) {
	tp := jira.BasicAuthTransport{
		Username: username,
		Password: apiToken,
	}

	client, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	return &JiraSender{
		client:     client,
		logger:     logger,
		projectKey: projectKey,
	}, nil
}

// Send files a ticket with the drafted title, body and priority and
// returns the created issue key.
func (s *JiraSender) Send(n *types.Notification) (string, error) {
	issue := &jira.Issue{
		Fields: &jira.IssueFields{
			Project:     jira.Project{Key: s.projectKey},
			Type:        jira.IssueType{Name: "Task"},
			Summary:     n.TicketTitle,
			Description: n.TicketBody,
			Priority:    &jira.Priority{Name: n.TicketPriority},
		},
	}

	created, _, err := s.client.Issue.Create(issue)
	if err != nil {
		return "", fmt.Errorf("failed to create jira issue for %s: %w", n.ItemID, err)
	}

	s.logger.Info("filed jira ticket",
		zap.String("item_id", n.ItemID),
		zap.String("issue_key", created.Key),
	)
	return created.Key, nil
}
