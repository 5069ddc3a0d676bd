package assign

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/provider"
	"github.com/clintrovert/sarek/pkg/types"
)

const assignSystemPrompt = `You are an expert at assigning software engineering work.
Match each issue to the single best developer, weighing skill fit, difficulty against experience, and remaining capacity.
Spread load fairly; do not pile every issue onto one developer.
If no developer is a reasonable fit for an issue, mark it unassignable with a confidence of 0 and explain why.`

var assignSchema = provider.MustSchema(`{
	"type": "object",
	"properties": {
		"assignments": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"issue_id": {"type": "string"},
					"assigned_to": {"type": "string"},
					"developer_name": {"type": "string"},
					"confidence_score": {"type": "integer"},
					"reason": {"type": "string"},
					"unassignable": {"type": "boolean"}
				},
				"required": ["issue_id", "confidence_score", "reason"]
			}
		}
	},
	"required": ["assignments"]
}`)

type assignBatch struct {
	Assignments []types.Assignment `json:"assignments"`
}

// ModelStrategy asks the provider for a whole assignment batch in one
// exchange. The batch is produced atomically; the engine validates it.
type ModelStrategy struct {
	provider provider.Provider
	logger   *zap.Logger
}

// NewModelStrategy creates a model-backed assignment strategy.
func NewModelStrategy(p provider.Provider, logger *zap.Logger) *ModelStrategy {
	return &ModelStrategy{provider: p, logger: logger}
}

func (s *ModelStrategy) Name() string { return "model" }

// Assign sends compact summaries of every item and worker and decodes the
// returned batch.
func (s *ModelStrategy) Assign(ctx context.Context, items []*types.AnalyzedWorkItem, workers []*types.AnalyzedWorker) ([]types.Assignment, error) {
	req := provider.Request{
		System:      assignSystemPrompt,
		Prompt:      buildAssignPrompt(items, workers),
		Temperature: 0,
	}

	var batch assignBatch
	if err := provider.Invoke(ctx, s.provider, req, assignSchema, &batch); err != nil {
		return nil, err
	}

	s.logger.Debug("received assignment batch",
		zap.Int("items", len(items)),
		zap.Int("assignments", len(batch.Assignments)),
	)
	return batch.Assignments, nil
}

func buildAssignPrompt(items []*types.AnalyzedWorkItem, workers []*types.AnalyzedWorker) string {
	var sb strings.Builder

	sb.WriteString("Issues to assign:\n\n")
	for _, it := range items {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", it.ID, it.Summary))
		sb.WriteString(fmt.Sprintf("  difficulty=%s complexity=%d skills=%s estimated_hours=%.1f\n",
			it.Difficulty, it.Complexity, strings.Join(it.RequiredSkills, ","), it.EstimatedHours))
	}

	sb.WriteString("\nDevelopers:\n\n")
	for _, w := range workers {
		sb.WriteString(fmt.Sprintf("- %s (%s)\n", w.ID, w.Name))
		sb.WriteString(fmt.Sprintf("  strengths=%s preferred=%s workload=%s available_hours=%.1f versatility=%d\n",
			strings.Join(w.Strengths, ","), strings.Join(w.PreferredSkills, ","),
			w.WorkloadState, w.AvailableHours, w.VersatilityScore))
	}

	sb.WriteString("\nProduce exactly one assignment per issue. ")
	sb.WriteString(fmt.Sprintf("Use a confidence score from %d to %d for assigned issues and %d for unassignable ones. ",
		types.MinConfidence+1, types.MaxConfidence, types.MinConfidence))
	sb.WriteString("Include the developer id in assigned_to and their name in developer_name.")
	return sb.String()
}
