package models

import "time"

// Job is a requisition as reported by the ATS. Read-only on our side.
type Job struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Status     string   `json:"status"` // open | closed | draft
	Department string   `json:"department"`
	Offices    []string `json:"offices"`
}

// Stage is a step in a job's hiring pipeline.
type Stage struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	JobID    int64  `json:"job_id"`
}

// Answer is one free-text screening question answer from the application form.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Application is the lightweight shape used for indexing, export and ranking.
// Email/Phone are populated only on the enriched path, which costs one extra
// upstream request per candidate.
type Application struct {
	ID             int64     `json:"id"`
	CandidateID    int64     `json:"candidate_id"`
	CandidateName  string    `json:"candidate_name"`
	StageID        int64     `json:"stage_id"`
	StageName      string    `json:"stage_name"`
	AppliedAt      time.Time `json:"applied_at"`
	ResumeURL      string    `json:"resume_url,omitempty"`
	CoverLetterURL string    `json:"cover_letter_url,omitempty"`
	Answers        []Answer  `json:"answers,omitempty"`

	// Enriched fields.
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ApplicationPage is one page of applications plus a best-effort total count.
type ApplicationPage struct {
	Applications []Application `json:"applications"`
	Total        int           `json:"total"`
}

// EmbeddingRecord is one indexed candidate, owned by the embedding index.
type EmbeddingRecord struct {
	ApplicationID int64     `json:"application_id"`
	CandidateName string    `json:"candidate_name"`
	Preview       string    `json:"preview"`
	Vector        []float32 `json:"vector"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// JobIndex is the on-disk index document for a single job. The filename
// encodes the job ID; the whole document is rewritten on every save.
type JobIndex struct {
	JobID     int64             `json:"job_id"`
	JobTitle  string            `json:"job_title"`
	IndexedAt time.Time         `json:"indexed_at"`
	Records   []EmbeddingRecord `json:"records"`
}

// SearchHit is one similarity-search result.
type SearchHit struct {
	ApplicationID int64   `json:"application_id"`
	CandidateName string  `json:"candidate_name"`
	Preview       string  `json:"preview"`
	Score         float64 `json:"score"`
}

// IndexStatus reports whether a job has an index and how fresh it is.
type IndexStatus struct {
	Exists    bool      `json:"exists"`
	Records   int       `json:"records"`
	IndexedAt time.Time `json:"indexed_at,omitempty"`
}

// ScreeningResult is one verdict produced by a screening call. Each result is
// independent; the caller persists and merges across invocations.
type ScreeningResult struct {
	ApplicationID  int64    `json:"application_id"`
	Recommendation string   `json:"recommendation"` // advance | reject
	Confidence     string   `json:"confidence"`     // high | medium | low
	Summary        string   `json:"summary"`
	Strengths      []string `json:"strengths"`
	Concerns       []string `json:"concerns"`
	Reasoning      string   `json:"reasoning"`
}

// ScreeningOutcome is the per-batch return: parsed verdicts plus the IDs the
// model omitted (a warning, not a failure).
type ScreeningOutcome struct {
	Results    []ScreeningResult `json:"results"`
	MissingIDs []int64           `json:"missing_ids,omitempty"`
}

// DisagreementFeedback is a human override fed back into screening prompts so
// the model can recalibrate. Owned by the caller, never persisted here.
type DisagreementFeedback struct {
	CandidateName  string `json:"candidate_name"`
	Recommendation string `json:"recommendation"` // what we said
	Decision       string `json:"decision"`       // advance | reject, what the human did
	Reason         string `json:"reason"`
}

// HighlightedCandidate is one entry of the ranked highlights list. Tier is
// derived from rank alone, not from the model's score.
type HighlightedCandidate struct {
	Rank          int    `json:"rank"`
	ApplicationID int64  `json:"application_id"`
	CandidateID   int64  `json:"candidate_id"`
	CandidateName string `json:"candidate_name"`
	ProfileURL    string `json:"profile_url"`
	Score         int    `json:"score"` // 0-100
	Summary       string `json:"summary"`
	Tier          string `json:"tier"` // top | strong | good
}

// RejectionReason mirrors the ATS rejection reason lookup.
type RejectionReason struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// BulkRejectResult reports a per-application success/failure split. Partial
// failure is a valid, non-error response.
type BulkRejectResult struct {
	Rejected []int64 `json:"rejected"`
	Failed   []int64 `json:"failed"`
}
