package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// JobKind distinguishes export and import jobs.
type JobKind string

const (
	JobKindExport JobKind = "export"
	JobKindImport JobKind = "import"
)

// JobStatus is the lifecycle state of a job: queued → processing → finished|failed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusFinished   JobStatus = "finished"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// ImportMode selects the consistency policy of an import.
type ImportMode string

const (
	ImportModeMerge     ImportMode = "merge"
	ImportModeOverwrite ImportMode = "overwrite"
)

// ParseImportMode validates an import mode string.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case ImportModeMerge:
		return ImportModeMerge, nil
	case ImportModeOverwrite:
		return ImportModeOverwrite, nil
	default:
		return "", fmt.Errorf("%w: unknown import mode %q", ErrInvalidJobRequest, s)
	}
}

// ExportOptions selects the categories written to an export archive.
type ExportOptions struct {
	User      bool `json:"user"`
	Vocab     bool `json:"vocab"`
	Learning  bool `json:"learning"`
	Dict      bool `json:"dict"`
	Materials bool `json:"materials"`
}

// Any reports whether at least one category is selected.
func (o ExportOptions) Any() bool {
	return o.User || o.Vocab || o.Learning || o.Dict || o.Materials
}

// AllExportOptions selects every category.
func AllExportOptions() ExportOptions {
	return ExportOptions{User: true, Vocab: true, Learning: true, Dict: true, Materials: true}
}

// ObjectRef locates a blob; rendered as "bucket/key".
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (r ObjectRef) String() string {
	return r.Bucket + "/" + r.Key
}

// IsZero reports whether the reference is unset.
func (r ObjectRef) IsZero() bool {
	return r.Bucket == "" && r.Key == ""
}

// ParseObjectRef parses the "bucket/key" form.
func ParseObjectRef(s string) (ObjectRef, error) {
	bucket, key, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || bucket == "" || key == "" {
		return ObjectRef{}, fmt.Errorf("%w: %q", ErrInvalidObjectRef, s)
	}
	return ObjectRef{Bucket: bucket, Key: key}, nil
}

// Outcome is what happened to one snapshot entity during an import.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeReused  Outcome = "reused"
	OutcomeSkipped Outcome = "skipped"
)

// OutcomeCounts holds per-outcome counters for one entity kind.
type OutcomeCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Reused  int `json:"reused"`
	Skipped int `json:"skipped"`
}

// Total sums every counter.
func (c OutcomeCounts) Total() int {
	return c.Created + c.Updated + c.Reused + c.Skipped
}

// JobReport summarises what a job did.
type JobReport struct {
	Counts   map[string]*OutcomeCounts `json:"counts,omitempty"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// NewJobReport returns an empty report.
func NewJobReport() *JobReport {
	return &JobReport{Counts: map[string]*OutcomeCounts{}}
}

// Record increments the counter of kind for the given outcome.
func (r *JobReport) Record(kind string, outcome Outcome) {
	if r.Counts == nil {
		r.Counts = map[string]*OutcomeCounts{}
	}
	c, ok := r.Counts[kind]
	if !ok {
		c = &OutcomeCounts{}
		r.Counts[kind] = c
	}
	switch outcome {
	case OutcomeCreated:
		c.Created++
	case OutcomeUpdated:
		c.Updated++
	case OutcomeReused:
		c.Reused++
	case OutcomeSkipped:
		c.Skipped++
	}
}

// Count returns the counters recorded for kind.
func (r *JobReport) Count(kind string) OutcomeCounts {
	if r == nil || r.Counts[kind] == nil {
		return OutcomeCounts{}
	}
	return *r.Counts[kind]
}

// Warn appends a non-fatal warning.
func (r *JobReport) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Kinds returns the recorded kinds in a stable order.
func (r *JobReport) Kinds() []string {
	kinds := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Job is a persisted export or import request.
type Job struct {
	ID         string
	UserID     string
	Kind       JobKind
	Status     JobStatus
	Mode       ImportMode
	Options    ExportOptions
	Source     *ObjectRef
	Archive    *ObjectRef
	Error      string
	Report     *JobReport
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	// Owner is the runner holding a processing job; LeaseUntil is when the
	// claim lapses unless renewed.
	Owner      string
	LeaseUntil *time.Time
}

// Downloadable reports whether the job produced an archive that can be fetched.
func (j *Job) Downloadable() bool {
	return j.Kind == JobKindExport && j.Status == JobStatusFinished && j.Archive != nil && !j.Archive.IsZero()
}
