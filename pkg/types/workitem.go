package types

// WorkItem is a single unit of work to be assigned.
type WorkItem struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Labels         []string `json:"labels"`
	EstimatedHours float64  `json:"estimated_hours"`
	SourceURL      string   `json:"source_url,omitempty"`
}

// Difficulty is the ordinal difficulty classification produced by analysis.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyExpert Difficulty = "expert"
)

// AnalyzedWorkItem carries a WorkItem plus the fields derived for it.
// It is created once per item per run and never mutated afterwards.
type AnalyzedWorkItem struct {
	WorkItem

	RequiredSkills []string   `json:"required_skills"`
	Difficulty     Difficulty `json:"difficulty"`
	Summary        string     `json:"summary"`
	Complexity     int        `json:"complexity"`

	// LowConfidence marks records where the analyzer had to fill a
	// defaulted field instead of using model output.
	LowConfidence bool `json:"low_confidence,omitempty"`
}
