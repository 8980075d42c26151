package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
	"github.com/eslsoft/deeplisten/internal/usecase/backup"
)

type fakeBackup struct {
	mu        sync.Mutex
	running   map[string]int
	maxByUser map[string]int
	dirs      []string
	imports   []backup.ImportRequest

	hold      time.Duration
	gate      chan struct{} // when set, Export blocks until it is closed
	started   chan string   // receives the user of every Export that began
	exportErr error
	importErr error
	panicMsg  string
}

func newFakeBackup() *fakeBackup {
	return &fakeBackup{running: map[string]int{}, maxByUser: map[string]int{}}
}

func (f *fakeBackup) enter(userID, dir string) func() {
	f.mu.Lock()
	f.running[userID]++
	if f.running[userID] > f.maxByUser[userID] {
		f.maxByUser[userID] = f.running[userID]
	}
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.running[userID]--
		f.mu.Unlock()
	}
}

func (f *fakeBackup) Export(_ context.Context, userID string, _ entity.ExportOptions, dir string, _ ...backup.ExportOption) (*entity.JobReport, error) {
	defer f.enter(userID, dir)()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if f.started != nil {
		f.started <- userID
	}
	if f.gate != nil {
		<-f.gate
	}
	time.Sleep(f.hold)
	report := entity.NewJobReport()
	report.Record("words", entity.OutcomeCreated)
	return report, f.exportErr
}

func (f *fakeBackup) Publish(_ context.Context, _, _, bucket, key string) (entity.ObjectRef, error) {
	return entity.ObjectRef{Bucket: bucket, Key: key}, nil
}

func (f *fakeBackup) Fetch(_ context.Context, _ entity.ObjectRef, dir string) (*backup.Metadata, error) {
	return &backup.Metadata{Version: backup.ArchiveVersion}, os.MkdirAll(dir, 0o755)
}

func (f *fakeBackup) Import(_ context.Context, req backup.ImportRequest, dir string) (*entity.JobReport, error) {
	defer f.enter(req.UserID, dir)()
	f.mu.Lock()
	f.imports = append(f.imports, req)
	f.mu.Unlock()
	report := entity.NewJobReport()
	report.Warn("media missing")
	return report, f.importErr
}

func newTestRunner(t *testing.T, jobs repository.JobRepository, engine Backup, workers int) (*Runner, string) {
	t.Helper()
	scratch := t.TempDir()
	return NewRunner(jobs, engine, RunnerConfig{
		Workers:       workers,
		PollInterval:  10 * time.Millisecond,
		ScratchDir:    scratch,
		ArchiveBucket: "archives",
		LeaseTTL:      300 * time.Millisecond,
	}, quietLogger()), scratch
}

func statusOf(t *testing.T, jobs repository.JobRepository, job *entity.Job) *entity.Job {
	t.Helper()
	got, err := jobs.GetByID(context.Background(), job.UserID, job.ID)
	require.NoError(t, err)
	return got
}

func enqueue(t *testing.T, jobs repository.JobRepository, job *entity.Job) *entity.Job {
	t.Helper()
	created, err := jobs.Create(context.Background(), job)
	require.NoError(t, err)
	return created
}

func TestRunner_ExportFinishesWithArchive(t *testing.T) {
	jobs := newJobRepo(t)
	engine := newFakeBackup()
	runner, scratch := newTestRunner(t, jobs, engine, 1)
	ctx := context.Background()

	job := enqueue(t, jobs, &entity.Job{UserID: "u1", Kind: entity.JobKindExport, Options: entity.AllExportOptions()})

	ran, err := runner.RunPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ran)

	got, err := jobs.GetByID(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusFinished, got.Status)
	require.Equal(t, &entity.ObjectRef{Bucket: "archives", Key: backup.ArchiveKey("u1", job.ID)}, got.Archive)
	require.Equal(t, 1, got.Report.Count("words").Created)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)

	_, err = os.Stat(filepath.Join(scratch, job.ID))
	require.True(t, os.IsNotExist(err), "scratch dir should be removed")
}

func TestRunner_ImportFailureKeepsReport(t *testing.T) {
	jobs := newJobRepo(t)
	engine := newFakeBackup()
	engine.importErr = errors.New("decode practices: unexpected EOF")
	runner, _ := newTestRunner(t, jobs, engine, 1)
	ctx := context.Background()

	job := enqueue(t, jobs, &entity.Job{
		UserID: "u1",
		Kind:   entity.JobKindImport,
		Mode:   entity.ImportModeMerge,
		Source: &entity.ObjectRef{Bucket: "uploads", Key: "uploads/u1/a.tar.gz"},
	})

	_, err := runner.RunPending(ctx)
	require.NoError(t, err)

	got, err := jobs.GetByID(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusFailed, got.Status)
	require.Contains(t, got.Error, "unexpected EOF")
	require.Equal(t, []string{"media missing"}, got.Report.Warnings)
	require.Nil(t, got.Archive)

	require.Len(t, engine.imports, 1)
	require.Equal(t, job.ID, engine.imports[0].RunID)
	require.Equal(t, entity.ImportModeMerge, engine.imports[0].Mode)
}

func TestRunner_PanicFailsJob(t *testing.T) {
	jobs := newJobRepo(t)
	engine := newFakeBackup()
	engine.panicMsg = "nil map"
	runner, _ := newTestRunner(t, jobs, engine, 1)
	ctx := context.Background()

	job := enqueue(t, jobs, &entity.Job{UserID: "u1", Kind: entity.JobKindExport, Options: entity.AllExportOptions()})
	_, err := runner.RunPending(ctx)
	require.NoError(t, err)

	got, err := jobs.GetByID(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusFailed, got.Status)
	require.Contains(t, got.Error, "panic: nil map")
}

func TestRunner_ImportWithoutSourceFails(t *testing.T) {
	jobs := newJobRepo(t)
	runner, _ := newTestRunner(t, jobs, newFakeBackup(), 1)
	ctx := context.Background()

	job := enqueue(t, jobs, &entity.Job{UserID: "u1", Kind: entity.JobKindImport, Mode: entity.ImportModeMerge})
	_, err := runner.RunPending(ctx)
	require.NoError(t, err)

	got, err := jobs.GetByID(ctx, "u1", job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusFailed, got.Status)
}

func TestRunner_RunFailsInterruptedAndDrainsQueue(t *testing.T) {
	jobs := newJobRepo(t)
	engine := newFakeBackup()
	engine.hold = 20 * time.Millisecond
	runner, _ := newTestRunner(t, jobs, engine, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stale := enqueue(t, jobs, &entity.Job{UserID: "u0", Kind: entity.JobKindExport, Options: entity.AllExportOptions()})
	lapsed := time.Now().Add(-time.Minute)
	claimed, err := jobs.ClaimNext(ctx, "crashed-runner", lapsed, lapsed.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, stale.ID, claimed.ID)

	var queued []*entity.Job
	for _, user := range []string{"u1", "u1", "u1", "u2", "u2"} {
		queued = append(queued, enqueue(t, jobs, &entity.Job{UserID: user, Kind: entity.JobKindExport, Options: entity.AllExportOptions()}))
	}

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	runner.Wake()

	require.Eventually(t, func() bool {
		for _, j := range queued {
			got, err := jobs.GetByID(ctx, j.UserID, j.ID)
			if err != nil || !got.Status.Terminal() {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	got, err := jobs.GetByID(context.Background(), "u0", stale.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobStatusFailed, got.Status)
	require.Equal(t, interruptedMessage, got.Error)

	for _, j := range queued {
		got, err := jobs.GetByID(context.Background(), j.UserID, j.ID)
		require.NoError(t, err)
		require.Equal(t, entity.JobStatusFinished, got.Status)
	}

	engine.mu.Lock()
	defer engine.mu.Unlock()
	require.Equal(t, 1, engine.maxByUser["u1"], "jobs of one user must not overlap")
	require.Equal(t, 1, engine.maxByUser["u2"])
}

func TestRunner_SecondInstanceLeavesLiveClaimsAlone(t *testing.T) {
	jobs := newJobRepo(t)
	engineA := newFakeBackup()
	engineA.gate = make(chan struct{})
	engineA.started = make(chan string, 4)
	runnerA, _ := newTestRunner(t, jobs, engineA, 2)
	engineB := newFakeBackup()
	runnerB, _ := newTestRunner(t, jobs, engineB, 2)
	require.NotEqual(t, runnerA.InstanceID(), runnerB.InstanceID())

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()

	first := enqueue(t, jobs, &entity.Job{UserID: "u1", Kind: entity.JobKindExport, Options: entity.AllExportOptions()})
	doneA := make(chan error, 1)
	go func() { doneA <- runnerA.Run(ctxA) }()
	runnerA.Wake()
	require.Equal(t, "u1", <-engineA.started)

	second := enqueue(t, jobs, &entity.Job{UserID: "u1", Kind: entity.JobKindExport, Options: entity.AllExportOptions()})
	doneB := make(chan error, 1)
	go func() { doneB <- runnerB.Run(ctxB) }()
	runnerB.Wake()

	// Several lease periods pass while A is still exporting.
	time.Sleep(time.Second)
	held := statusOf(t, jobs, first)
	require.Equal(t, entity.JobStatusProcessing, held.Status)
	require.Equal(t, runnerA.InstanceID(), held.Owner)
	require.NotNil(t, held.LeaseUntil)
	require.Equal(t, entity.JobStatusQueued, statusOf(t, jobs, second).Status, "user exclusion must hold across runners")

	close(engineA.gate)
	require.Eventually(t, func() bool {
		return statusOf(t, jobs, first).Status.Terminal() && statusOf(t, jobs, second).Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	cancelA()
	cancelB()
	require.NoError(t, <-doneA)
	require.NoError(t, <-doneB)

	done := statusOf(t, jobs, first)
	require.Equal(t, entity.JobStatusFinished, done.Status)
	require.Empty(t, done.Error)
	require.Nil(t, done.LeaseUntil)
	require.Equal(t, entity.JobStatusFinished, statusOf(t, jobs, second).Status)
}

func TestJobLease_OnlyOwnerCompletes(t *testing.T) {
	jobs := newJobRepo(t)
	ctx := context.Background()
	now := time.Now()

	job := enqueue(t, jobs, &entity.Job{UserID: "u1", Kind: entity.JobKindExport, Options: entity.AllExportOptions()})
	_, err := jobs.ClaimNext(ctx, "runner-a", now, now.Add(time.Minute))
	require.NoError(t, err)

	err = jobs.Finish(ctx, job.ID, "runner-b", nil, nil, now)
	require.ErrorIs(t, err, entity.ErrJobNotFound)

	n, err := jobs.FailExpired(ctx, interruptedMessage, now.Add(30*time.Second))
	require.NoError(t, err)
	require.Zero(t, n, "live lease must not be reaped")

	renewed, err := jobs.RenewLeases(ctx, "runner-a", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, renewed)

	n, err = jobs.FailExpired(ctx, interruptedMessage, now.Add(90*time.Second))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = jobs.FailExpired(ctx, interruptedMessage, now.Add(3*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	got := statusOf(t, jobs, job)
	require.Equal(t, entity.JobStatusFailed, got.Status)
	require.Equal(t, interruptedMessage, got.Error)

	require.ErrorIs(t, jobs.Finish(ctx, job.ID, "runner-a", nil, nil, now), entity.ErrJobNotFound)
}
