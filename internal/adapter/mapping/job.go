package mapping

import (
	"github.com/samber/lo"

	backupv1 "github.com/eslsoft/deeplisten/api/backup/v1"
	"github.com/eslsoft/deeplisten/internal/entity"
)

func FromPbExportOptions(o backupv1.ExportOptions) entity.ExportOptions {
	return entity.ExportOptions{
		User:      o.User,
		Vocab:     o.Vocab,
		Learning:  o.Learning,
		Dict:      o.Dict,
		Materials: o.Materials,
	}
}

func ToPbExportOptions(o entity.ExportOptions) *backupv1.ExportOptions {
	return &backupv1.ExportOptions{
		User:      o.User,
		Vocab:     o.Vocab,
		Learning:  o.Learning,
		Dict:      o.Dict,
		Materials: o.Materials,
	}
}

func ToPbJobReport(r *entity.JobReport) *backupv1.JobReport {
	if r == nil {
		return nil
	}
	return &backupv1.JobReport{
		Counts: lo.MapValues(r.Counts, func(c *entity.OutcomeCounts, _ string) backupv1.OutcomeCounts {
			return backupv1.OutcomeCounts{Created: c.Created, Updated: c.Updated, Reused: c.Reused, Skipped: c.Skipped}
		}),
		Warnings: r.Warnings,
	}
}

// ToPbJob converts a job for the wire. Export options are only shown on
// export jobs and the import mode only on import jobs.
func ToPbJob(j *entity.Job) *backupv1.Job {
	if j == nil {
		return nil
	}
	out := &backupv1.Job{
		ID:         j.ID,
		Kind:       string(j.Kind),
		Status:     string(j.Status),
		Error:      j.Error,
		Report:     ToPbJobReport(j.Report),
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
	switch j.Kind {
	case entity.JobKindExport:
		out.Include = ToPbExportOptions(j.Options)
	case entity.JobKindImport:
		out.Mode = string(j.Mode)
	}
	if j.Source != nil {
		out.SourceRef = j.Source.String()
	}
	if j.Archive != nil {
		out.ArchiveRef = j.Archive.String()
	}
	return out
}

func ToPbJobs(jobs []entity.Job) []*backupv1.Job {
	return lo.Map(jobs, func(j entity.Job, _ int) *backupv1.Job { return ToPbJob(&j) })
}
