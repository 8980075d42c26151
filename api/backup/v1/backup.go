// Package backupv1 holds the wire messages of the deeplisten.backup.v1
// BackupService. Messages are encoded as JSON with camelCase field names.
package backupv1

import "time"

// ExportOptions selects the categories written to an export archive.
type ExportOptions struct {
	User      bool `json:"user,omitempty"`
	Vocab     bool `json:"vocab,omitempty"`
	Learning  bool `json:"learning,omitempty"`
	Dict      bool `json:"dict,omitempty"`
	Materials bool `json:"materials,omitempty"`
}

type CreateExportJobRequest struct {
	Include ExportOptions `json:"include"`
}

type CreateImportJobRequest struct {
	// ArchiveRef is "bucket/key" as returned by the upload endpoint or a
	// finished export.
	ArchiveRef string `json:"archiveRef"`
	Mode       string `json:"mode"`
}

type GetJobRequest struct {
	ID string `json:"id"`
}

type GetDownloadURLRequest struct {
	ID string `json:"id"`
}

type GetDownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type PaginationRequest struct {
	PageNo   int32 `json:"pageNo,omitempty"`
	PageSize int32 `json:"pageSize,omitempty"`
}

type PaginationResponse struct {
	PageNo int32 `json:"pageNo"`
	Total  int32 `json:"total"`
}

type ListJobsRequest struct {
	Pagination *PaginationRequest `json:"pagination,omitempty"`
	// Filter is a CEL expression over status, kind and created_at.
	Filter  string `json:"filter,omitempty"`
	OrderBy string `json:"orderBy,omitempty"`
}

type ListJobsResponse struct {
	Jobs       []*Job              `json:"jobs"`
	Pagination *PaginationResponse `json:"pagination"`
}

type OutcomeCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Reused  int `json:"reused"`
	Skipped int `json:"skipped"`
}

type JobReport struct {
	Counts   map[string]OutcomeCounts `json:"counts,omitempty"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// Job is the client view of an export or import job.
type Job struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Status     string         `json:"status"`
	Mode       string         `json:"mode,omitempty"`
	Include    *ExportOptions `json:"include,omitempty"`
	SourceRef  string         `json:"sourceRef,omitempty"`
	ArchiveRef string         `json:"archiveRef,omitempty"`
	Error      string         `json:"error,omitempty"`
	Report     *JobReport     `json:"report,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
}

// UploadArchiveResponse is returned by PUT /v1/uploads.
type UploadArchiveResponse struct {
	ArchiveRef string `json:"archiveRef"`
}
