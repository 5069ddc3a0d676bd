package analyzer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/clintrovert/sarek/internal/provider"
	"github.com/clintrovert/sarek/pkg/types"
)

const workerSystemPrompt = `You are an expert at evaluating developer capabilities and workload.
Your task is to assess developers based on their skills, experience, and current workload.
Be fair and accurate in your assessment.`

var workerSchema = provider.MustSchema(`{
	"type": "object",
	"properties": {
		"strengths": {"type": "array", "items": {"type": "string"}},
		"weaknesses": {"type": "array", "items": {"type": "string"}},
		"preferred_skills": {"type": "array", "items": {"type": "string"}},
		"workload_state": {"type": "string", "enum": ["available", "moderate", "busy", "overloaded"]},
		"availability_hours": {"type": "number"},
		"versatility_score": {"type": "integer"}
	}
}`)

type workerAnalysis struct {
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	PreferredSkills []string `json:"preferred_skills"`
	WorkloadState   string   `json:"workload_state"`
	// Pointer so an absent field is not mistaken for a real zero.
	AvailableHours   *float64 `json:"availability_hours"`
	VersatilityScore int      `json:"versatility_score"`
}

// WorkerAnalyzer produces AnalyzedWorkers through the provider.
type WorkerAnalyzer struct {
	provider provider.Provider
	logger   *zap.Logger
}

// NewWorkerAnalyzer creates a new worker analyzer.
func NewWorkerAnalyzer(p provider.Provider, logger *zap.Logger) *WorkerAnalyzer {
	return &WorkerAnalyzer{provider: p, logger: logger}
}

// Analyze assesses one worker's strengths, preferences and remaining
// capacity.
func (a *WorkerAnalyzer) Analyze(ctx context.Context, worker types.Worker) (*types.AnalyzedWorker, error) {
	req := provider.Request{
		System:      workerSystemPrompt,
		Prompt:      buildWorkerPrompt(worker),
		Temperature: 0,
	}

	var raw workerAnalysis
	if err := provider.Invoke(ctx, a.provider, req, workerSchema, &raw); err != nil {
		return nil, fmt.Errorf("analyze worker %s: %w", worker.ID, err)
	}

	analyzed := &types.AnalyzedWorker{
		Worker:           worker,
		Strengths:        raw.Strengths,
		Weaknesses:       raw.Weaknesses,
		PreferredSkills:  raw.PreferredSkills,
		WorkloadState:    types.WorkloadState(raw.WorkloadState),
		VersatilityScore: raw.VersatilityScore,
	}
	if raw.AvailableHours != nil {
		analyzed.AvailableHours = *raw.AvailableHours
	} else {
		analyzed.AvailableHours = remainingCapacity(worker)
		analyzed.LowConfidence = true
	}
	a.applyDefaults(analyzed)

	a.logger.Debug("analyzed worker",
		zap.String("worker_id", worker.ID),
		zap.String("workload_state", string(analyzed.WorkloadState)),
		zap.Float64("available_hours", analyzed.AvailableHours),
		zap.Bool("low_confidence", analyzed.LowConfidence),
	)

	return analyzed, nil
}

func (a *WorkerAnalyzer) applyDefaults(worker *types.AnalyzedWorker) {
	if worker.Strengths == nil {
		worker.Strengths = []string{}
		worker.LowConfidence = true
	}
	if worker.Weaknesses == nil {
		worker.Weaknesses = []string{}
		worker.LowConfidence = true
	}
	if worker.PreferredSkills == nil {
		worker.PreferredSkills = []string{}
		worker.LowConfidence = true
	}
	if worker.WorkloadState == "" {
		worker.WorkloadState = types.WorkloadModerate
		worker.LowConfidence = true
	}
	if worker.AvailableHours < 0 {
		worker.AvailableHours = 0
		worker.LowConfidence = true
	}
	if worker.VersatilityScore < 1 || worker.VersatilityScore > 10 {
		worker.VersatilityScore = clamp(worker.VersatilityScore, 1, 10)
		worker.LowConfidence = true
	}
}

// remainingCapacity is the fallback availability when the model omits it.
func remainingCapacity(worker types.Worker) float64 {
	if r := worker.CapacityHours - worker.WorkloadHours; r > 0 {
		return r
	}
	return 0
}

func buildWorkerPrompt(worker types.Worker) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following developer:\n\n")
	sb.WriteString("ID: " + worker.ID + "\n")
	sb.WriteString("Name: " + worker.Name + "\n")
	sb.WriteString("Skills: " + strings.Join(worker.Skills, ", ") + "\n")
	sb.WriteString(fmt.Sprintf("Experience: %d years\n", worker.ExperienceYears))
	sb.WriteString(fmt.Sprintf("Current Workload: %.1f hours\n", worker.WorkloadHours))
	sb.WriteString(fmt.Sprintf("Max Capacity: %.1f hours\n", worker.CapacityHours))
	if worker.RecentPerformance != "" {
		sb.WriteString("Recent Performance: " + worker.RecentPerformance + "\n")
	}
	if len(worker.Preferences) > 0 {
		sb.WriteString("Stated Preferences: " + strings.Join(worker.Preferences, ", ") + "\n")
	}
	sb.WriteString("\nAssess their strengths, weaknesses, preferred skills, workload state, remaining availability in hours, and a versatility score from 1 to 10.")
	return sb.String()
}
