package transfer

import (
	"github.com/google/uuid"
)

type PlatformResult struct {
	Success        bool   `json:"success"`
	PlatformPostID string `json:"platform_post_id,omitempty"`
	Error          string `json:"error,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
}

type PlatformFailure struct {
	Platform string `json:"platform"`
	Error    string `json:"error"`
}

type PublishResponse struct {
	PostID  string                    `json:"post_id"`
	Status  string                    `json:"status"`
	Message string                    `json:"message"`
	Results map[string]PlatformResult `json:"results"`
	Errors  []PlatformFailure         `json:"errors,omitempty"`
}

type SweepError struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

// SweepSummary is returned by every batch run; per-item failures never
// fail the run itself.
type SweepSummary struct {
	RunID     uuid.UUID    `json:"run_id"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped,omitempty"`
	Failed    int          `json:"failed"`
	Errors    []SweepError `json:"errors"`
}

func NewSweepSummary() *SweepSummary {
	return &SweepSummary{RunID: uuid.New(), Errors: []SweepError{}}
}
