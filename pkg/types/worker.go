package types

// Worker is a candidate assignee.
type Worker struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Skills            []string `json:"skills"`
	ExperienceYears   int      `json:"experience_years"`
	WorkloadHours     float64  `json:"current_workload_hours"`
	CapacityHours     float64  `json:"max_capacity_hours"`
	RecentPerformance string   `json:"recent_performance"`
	Preferences       []string `json:"preferences"`
}

// WorkloadState classifies how loaded a worker currently is.
type WorkloadState string

const (
	WorkloadAvailable  WorkloadState = "available"
	WorkloadModerate   WorkloadState = "moderate"
	WorkloadBusy       WorkloadState = "busy"
	WorkloadOverloaded WorkloadState = "overloaded"
)

// AnalyzedWorker carries a Worker plus the fields derived for it.
type AnalyzedWorker struct {
	Worker

	Strengths        []string      `json:"strengths"`
	Weaknesses       []string      `json:"weaknesses"`
	PreferredSkills  []string      `json:"preferred_skills"`
	WorkloadState    WorkloadState `json:"workload_state"`
	AvailableHours   float64       `json:"availability_hours"`
	VersatilityScore int           `json:"versatility_score"`

	LowConfidence bool `json:"low_confidence,omitempty"`
}
