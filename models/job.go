package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// JobStatus represents the current state of a job in the system
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// JobKind selects which pipeline processes a job.
type JobKind string

const (
	// KindArticle is a batch of arbitrary pages turned into articles.
	KindArticle JobKind = "article"
	// KindProduct is a single marketplace listing turned into product data.
	KindProduct JobKind = "product"
)

// Progress is the share of a job's inputs already processed, in whole percent.
// It is exposed on the wire as a display string such as "42%".
type Progress int

// ProgressOf computes the rounded percentage of done over total.
func ProgressOf(done, total int) Progress {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(done) * 100 / float64(total)))
	return Progress(min(max(p, 0), 100))
}

func (p Progress) String() string {
	return strconv.Itoa(int(p)) + "%"
}

func (p Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Progress) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("progress must be a string: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if err != nil {
		return fmt.Errorf("invalid progress %q: %w", s, err)
	}
	*p = Progress(n)
	return nil
}

// Summary is the page metadata reported next to generated content.
type Summary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ItemResult is the outcome for one input URL. Exactly one of Content or
// Error is set.
type ItemResult struct {
	URL     string       `json:"url"`
	Content *string      `json:"content"`
	Summary *Summary     `json:"summary,omitempty"`
	Product *ProductData `json:"product,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// SuccessResult builds a result carrying generated content.
func SuccessResult(url, content string, summary Summary) ItemResult {
	return ItemResult{
		URL:     url,
		Content: &content,
		Summary: &summary,
	}
}

// FailedResult builds a result carrying only an error message.
func FailedResult(url, message string) ItemResult {
	if message == "" {
		message = "unknown error"
	}
	return ItemResult{URL: url, Error: message}
}

// Succeeded reports whether the item produced content.
func (r ItemResult) Succeeded() bool {
	return r.Content != nil && r.Error == ""
}

// Job represents one batch (or single-URL) generation request.
type Job struct {
	ID          string       `json:"id"`
	Kind        JobKind      `json:"kind"`
	Status      JobStatus    `json:"status"`
	Progress    Progress     `json:"progress"`
	Inputs      []string     `json:"inputs"`
	Results     []ItemResult `json:"results"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// NewJob creates a pending job with no results.
func NewJob(id string, kind JobKind, inputs []string, now time.Time) *Job {
	in := make([]string, len(inputs))
	copy(in, inputs)

	return &Job{
		ID:        id,
		Kind:      kind,
		Status:    StatusPending,
		Inputs:    in,
		Results:   make([]ItemResult, 0, len(inputs)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal reports whether the job has reached completed or failed.
func (j *Job) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Start moves a pending job to in_progress. Starting an in-progress job is a no-op.
func (j *Job) Start(now time.Time) error {
	if j.IsTerminal() {
		return fmt.Errorf("start job %s: %w", j.ID, ErrJobTerminal)
	}
	if j.Status == StatusPending {
		j.Status = StatusInProgress
		j.StartedAt = &now
		j.UpdatedAt = now
	}
	return nil
}

// Advance raises the progress. Lower values are ignored so progress never decreases.
func (j *Job) Advance(p Progress, now time.Time) error {
	if j.IsTerminal() {
		return fmt.Errorf("advance job %s: %w", j.ID, ErrJobTerminal)
	}
	p = Progress(min(max(int(p), 0), 100))
	if p > j.Progress {
		j.Progress = p
		j.UpdatedAt = now
	}
	return nil
}

// Append records the outcome of the next input.
func (j *Job) Append(r ItemResult, now time.Time) error {
	if j.IsTerminal() {
		return fmt.Errorf("append to job %s: %w", j.ID, ErrJobTerminal)
	}
	if len(j.Results) >= len(j.Inputs) {
		return fmt.Errorf("append to job %s: all %d inputs already have results", j.ID, len(j.Inputs))
	}
	j.Results = append(j.Results, r)
	j.UpdatedAt = now
	return nil
}

// Finish marks the job completed at 100%.
func (j *Job) Finish(now time.Time) error {
	if j.IsTerminal() {
		return fmt.Errorf("finish job %s: %w", j.ID, ErrJobTerminal)
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// Abort marks the job failed with a message.
func (j *Job) Abort(message string, now time.Time) error {
	if j.IsTerminal() {
		return fmt.Errorf("abort job %s: %w", j.ID, ErrJobTerminal)
	}
	j.Status = StatusFailed
	j.Error = message
	j.UpdatedAt = now
	j.CompletedAt = &now
	return nil
}

// Clone returns a copy that shares no mutable slices with j.
func (j *Job) Clone() *Job {
	c := *j
	c.Inputs = append([]string(nil), j.Inputs...)
	c.Results = append(make([]ItemResult, 0, len(j.Results)), j.Results...)
	return &c
}
