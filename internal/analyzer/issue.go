// Package analyzer derives structured metadata for work items and workers
// ahead of assignment. Analyses are independent per record; a record that
// cannot be analyzed fails alone without touching the rest of the batch.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/provider"
	"github.com/clintrovert/sarek/pkg/types"
)

const issueSystemPrompt = `You are an expert software engineering manager analyzing issues.
Your task is to extract structured information from issue descriptions to help assign them to developers.
Be precise and thoughtful in your analysis.`

// Field types are enforced by the schema; presence is not. A field the
// model cannot produce is defaulted by the analyzer and flagged as low
// confidence instead of failing the record.
var issueSchema = provider.MustSchema(`{
	"type": "object",
	"properties": {
		"required_skills": {"type": "array", "items": {"type": "string"}},
		"difficulty": {"type": "string", "enum": ["easy", "medium", "hard", "expert"]},
		"summary": {"type": "string"},
		"complexity": {"type": "integer"}
	}
}`)

type issueAnalysis struct {
	RequiredSkills []string `json:"required_skills"`
	Difficulty     string   `json:"difficulty"`
	Summary        string   `json:"summary"`
	Complexity     int      `json:"complexity"`
}

// IssueAnalyzer produces AnalyzedWorkItems through the provider.
type IssueAnalyzer struct {
	provider provider.Provider
	logger   *zap.Logger
}

// NewIssueAnalyzer creates a new issue analyzer.
func NewIssueAnalyzer(p provider.Provider, logger *zap.Logger) *IssueAnalyzer {
	return &IssueAnalyzer{provider: p, logger: logger}
}

// Analyze derives skills, difficulty, summary and complexity for one item.
// Repeated calls on identical input converge but are not guaranteed
// byte-identical; this is best-effort model judgment.
func (a *IssueAnalyzer) Analyze(ctx context.Context, item types.WorkItem) (*types.AnalyzedWorkItem, error) {
	req := provider.Request{
		System:      issueSystemPrompt,
		Prompt:      buildIssuePrompt(item),
		Temperature: 0,
	}

	var raw issueAnalysis
	if err := provider.Invoke(ctx, a.provider, req, issueSchema, &raw); err != nil {
		return nil, fmt.Errorf("analyze item %s: %w", item.ID, err)
	}

	analyzed := &types.AnalyzedWorkItem{
		WorkItem:       item,
		RequiredSkills: raw.RequiredSkills,
		Difficulty:     types.Difficulty(raw.Difficulty),
		Summary:        raw.Summary,
		Complexity:     raw.Complexity,
	}
	a.applyDefaults(analyzed)

	a.logger.Debug("analyzed work item",
		zap.String("item_id", item.ID),
		zap.String("difficulty", string(analyzed.Difficulty)),
		zap.Int("complexity", analyzed.Complexity),
		zap.Bool("low_confidence", analyzed.LowConfidence),
	)

	return analyzed, nil
}

// applyDefaults fills any field the model left out so callers never see
// an absent value, marking the record low confidence when it does.
func (a *IssueAnalyzer) applyDefaults(item *types.AnalyzedWorkItem) {
	if item.RequiredSkills == nil {
		item.RequiredSkills = []string{}
		item.LowConfidence = true
	}
	if item.Difficulty == "" {
		item.Difficulty = types.DifficultyMedium
		item.LowConfidence = true
	}
	if item.Summary == "" {
		item.Summary = item.Title
		item.LowConfidence = true
	}
	if item.Complexity < 1 || item.Complexity > 10 {
		item.Complexity = clamp(item.Complexity, 1, 10)
		item.LowConfidence = true
	}
}

func buildIssuePrompt(item types.WorkItem) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following issue:\n\n")
	sb.WriteString("ID: " + item.ID + "\n")
	sb.WriteString("Title: " + item.Title + "\n")
	sb.WriteString("Description: " + item.Description + "\n")
	sb.WriteString("Labels: " + strings.Join(item.Labels, ", ") + "\n")
	sb.WriteString(fmt.Sprintf("Estimated Hours: %.1f\n\n", item.EstimatedHours))
	sb.WriteString("Extract the required skills, difficulty level, summary, and complexity score from 1 to 10.")
	return sb.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
