package domain

// Stages reported in ItemFailure.
const (
	StagePersist = "persist"
	StageAnalyze = "analyze"
	StageAlert   = "alert"
)

// ItemFailure records one review that could not be fully processed.
// An alert-stage failure does not undo enrichment, so the same review is
// also listed in SyncResult.OK.
type ItemFailure struct {
	ExternalID string `json:"external_id"`
	Stage      string `json:"stage"`
	Reason     string `json:"reason"`
}

// SyncResult summarizes one orchestrator run; it is never persisted.
type SyncResult struct {
	Success  bool          `json:"success"`
	Total    int           `json:"total"`
	Analyzed int           `json:"analyzed"`
	Alerts   int           `json:"alerts"`
	OK       []string      `json:"ok"`
	Failed   []ItemFailure `json:"failed"`
	// Truncated is set when the provider returned fewer reviews than it reports having.
	Truncated bool `json:"truncated"`
}
