package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
)

type ExportOption func(*exportConfig)

type exportConfig struct {
	reporter ProgressReporter
}

// WithProgressReporter registers a reporter that receives progress callbacks during export.
func WithProgressReporter(reporter ProgressReporter) ExportOption {
	return func(cfg *exportConfig) {
		if reporter != nil {
			cfg.reporter = reporter
		}
	}
}

// ArchiveKey is the object key of the export archive of one job.
func ArchiveKey(userID, jobID string) string {
	return fmt.Sprintf("exports/%s/%s.tar.gz", userID, jobID)
}

type exportRun struct {
	*Service
	userID   string
	dir      string
	report   *entity.JobReport
	reporter ProgressReporter
	logger   logrus.FieldLogger
	wordIDs  []string
}

// Export writes the selected categories of userID's data into dir. Only rows
// owned by the user and the shared words they reference are written. Media
// that cannot be fetched is skipped with a report warning.
func (s *Service) Export(ctx context.Context, userID string, options entity.ExportOptions, dir string, opts ...ExportOption) (*entity.JobReport, error) {
	if !options.Any() {
		return nil, fmt.Errorf("%w: no category selected", entity.ErrInvalidJobRequest)
	}
	cfg := exportConfig{reporter: noopProgress{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	run := &exportRun{
		Service:  s,
		userID:   userID,
		dir:      dir,
		report:   entity.NewJobReport(),
		reporter: cfg.reporter,
		logger:   s.logger.WithField("user_id", userID),
	}

	steps := []struct {
		enabled bool
		fn      func(context.Context) error
	}{
		{options.User, func(ctx context.Context) error { return run.exportUser(ctx, user) }},
		{options.Vocab, run.exportStatuses},
		{options.Dict, run.exportDictionaries},
		{options.Vocab || options.Dict, run.exportWords},
		{options.Learning, run.exportReviews},
		{options.Learning, run.exportPractices},
		{options.Learning, run.exportDailyStats},
		{options.Materials, run.exportFolders},
		{options.Materials, run.exportMaterials},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := step.fn(ctx); err != nil {
			return run.report, err
		}
	}

	meta := Metadata{
		Version:    ArchiveVersion,
		ExportedAt: s.clock().UTC(),
		UserID:     userID,
		Options:    options,
	}
	if err := writeJSON(dir, metadataFile, meta); err != nil {
		return run.report, err
	}
	return run.report, nil
}

// Publish packs dir into archivePath and uploads it as key. The returned
// reference names the bucket that actually holds the archive.
func (s *Service) Publish(ctx context.Context, dir, archivePath, bucket, key string) (entity.ObjectRef, error) {
	size, err := PackFile(dir, archivePath)
	if err != nil {
		return entity.ObjectRef{}, fmt.Errorf("pack archive: %w", err)
	}
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return entity.ObjectRef{}, err
	}
	ref, err := s.blobs.Upload(ctx, bucket, key, data)
	if err != nil {
		return entity.ObjectRef{}, fmt.Errorf("upload archive: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"ref": ref.String(), "bytes": size}).Info("archive uploaded")
	return ref, nil
}

func (r *exportRun) section(ctx context.Context, name string, c repository.Collection) {
	total := 0
	if c != "" {
		n, err := r.store.Purger().Count(ctx, c, repository.PurgeScope{UserID: r.userID})
		if err == nil {
			total = n
		}
	}
	r.reporter.StartSection(name, total)
}

func (r *exportRun) written(kind string, n int) {
	r.count(kind, n)
	r.reporter.Increment(kind, n)
}

// count records n exported rows of kind.
func (r *exportRun) count(kind string, n int) {
	for i := 0; i < n; i++ {
		r.report.Record(kind, entity.OutcomeCreated)
	}
}

func (r *exportRun) exportUser(ctx context.Context, user *entity.User) error {
	r.section(ctx, kindUser, "")
	defer r.reporter.FinishSection(kindUser)

	doc := userDoc{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Settings:    user.Settings,
		CreatedAt:   user.CreatedAt.UTC(),
	}
	if user.AvatarKey != "" {
		data, err := r.blobs.Download(ctx, entity.ObjectRef{Bucket: r.mediaBucket, Key: user.AvatarKey})
		if err != nil {
			r.mediaFailed("avatar", user.AvatarKey, err)
		} else {
			rel := avatarBase + path.Ext(user.AvatarKey)
			if err := writeFile(r.dir, rel, data); err != nil {
				return err
			}
			doc.Avatar = rel
		}
	}
	if err := writeJSON(r.dir, userFile, doc); err != nil {
		return err
	}
	r.written(kindUser, 1)
	return nil
}

func (r *exportRun) exportStatuses(ctx context.Context) error {
	r.section(ctx, kindStatuses, repository.CollectionStatuses)
	defer r.reporter.FinishSection(kindStatuses)

	docs := []statusDoc{}
	err := eachPage(ctx, r.batchSize, func(ctx context.Context, page repository.Pagination) ([]entity.UserWordStatus, error) {
		return r.store.Statuses().List(ctx, r.userID, page)
	}, func(items []entity.UserWordStatus) error {
		for _, st := range items {
			docs = append(docs, statusDoc{
				ID:        st.ID,
				WordID:    st.WordID,
				State:     string(st.State),
				Scheduler: st.Scheduler,
				Notes:     st.Notes,
				CreatedAt: st.CreatedAt.UTC(),
				UpdatedAt: st.UpdatedAt.UTC(),
			})
			r.wordIDs = append(r.wordIDs, st.WordID)
		}
		r.written(kindStatuses, len(items))
		return nil
	})
	if err != nil {
		return fmt.Errorf("export statuses: %w", err)
	}
	return writeJSON(r.dir, statusesFile, docs)
}

func (r *exportRun) exportDictionaries(ctx context.Context) error {
	r.section(ctx, kindDictionaries, repository.CollectionDictionaries)
	defer r.reporter.FinishSection(kindDictionaries)

	dicts, err := listAll(ctx, r.batchSize, func(ctx context.Context, page repository.Pagination) ([]entity.Dictionary, error) {
		return r.store.Dictionaries().List(ctx, r.userID, page)
	})
	if err != nil {
		return fmt.Errorf("export dictionaries: %w", err)
	}
	docs := make([]dictionaryDoc, 0, len(dicts))
	for _, d := range dicts {
		entries, err := r.store.Dictionaries().ListEntries(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("export dictionary %s: %w", d.ID, err)
		}
		doc := dictionaryDoc{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			CreatedAt:   d.CreatedAt.UTC(),
			Words:       make([]dictionaryWordDoc, 0, len(entries)),
		}
		for _, e := range entries {
			doc.Words = append(doc.Words, dictionaryWordDoc{WordID: e.WordID, Position: e.Position, AddedAt: e.AddedAt.UTC()})
			r.wordIDs = append(r.wordIDs, e.WordID)
		}
		docs = append(docs, doc)
		r.written(kindDictionaries, 1)
	}
	return writeJSON(r.dir, dictionariesFile, docs)
}

func (r *exportRun) exportWords(ctx context.Context) error {
	r.section(ctx, kindWords, "")
	defer r.reporter.FinishSection(kindWords)

	words, err := r.store.Words().GetByIDs(ctx, r.wordIDs)
	if err != nil {
		return fmt.Errorf("export words: %w", err)
	}
	docs := make([]wordDoc, 0, len(words))
	for _, w := range words {
		docs = append(docs, wordDoc{
			ID:         w.ID,
			Text:       w.Text,
			Normalized: w.Normalized,
			Language:   w.Language.CodeOrDefault(),
			Phonetic:   w.Phonetic,
			Definition: w.Definition,
			CreatedAt:  w.CreatedAt.UTC(),
		})
	}
	r.written(kindWords, len(docs))
	return writeJSON(r.dir, wordsFile, docs)
}

func (r *exportRun) exportReviews(ctx context.Context) error {
	r.section(ctx, kindReviews, repository.CollectionReviews)
	defer r.reporter.FinishSection(kindReviews)

	docs := []reviewDoc{}
	err := eachPage(ctx, r.batchSize, func(ctx context.Context, page repository.Pagination) ([]entity.WordReview, error) {
		return r.store.Statuses().ListReviews(ctx, r.userID, page)
	}, func(items []entity.WordReview) error {
		for _, rv := range items {
			docs = append(docs, reviewDoc{
				ID:         rv.ID,
				StatusID:   rv.StatusID,
				Rating:     rv.Rating,
				DurationMs: rv.DurationMs,
				ReviewedAt: rv.ReviewedAt.UTC(),
			})
		}
		r.written(kindReviews, len(items))
		return nil
	})
	if err != nil {
		return fmt.Errorf("export reviews: %w", err)
	}
	return writeJSON(r.dir, reviewsFile, docs)
}

func (r *exportRun) exportPractices(ctx context.Context) error {
	r.section(ctx, kindPractices, repository.CollectionPractices)
	defer r.reporter.FinishSection(kindPractices)

	docs := []practiceDoc{}
	err := eachPage(ctx, r.batchSize, func(ctx context.Context, page repository.Pagination) ([]entity.PracticeProgress, error) {
		return r.store.Study().ListPractices(ctx, r.userID, page)
	}, func(items []entity.PracticeProgress) error {
		for _, p := range items {
			docs = append(docs, practiceDoc{
				ID:              p.ID,
				SentenceID:      p.SentenceID,
				Attempts:        p.Attempts,
				BestScore:       p.BestScore,
				LastInput:       p.LastInput,
				LastPracticedAt: p.LastPracticedAt,
			})
		}
		r.written(kindPractices, len(items))
		return nil
	})
	if err != nil {
		return fmt.Errorf("export practices: %w", err)
	}
	return writeJSON(r.dir, practicesFile, docs)
}

func (r *exportRun) exportDailyStats(ctx context.Context) error {
	r.section(ctx, kindDailyStats, repository.CollectionDailyStats)
	defer r.reporter.FinishSection(kindDailyStats)

	docs := []dailyStatsDoc{}
	err := eachPage(ctx, r.batchSize, func(ctx context.Context, page repository.Pagination) ([]entity.DailyStudyStats, error) {
		return r.store.Study().ListDailyStats(ctx, r.userID, page)
	}, func(items []entity.DailyStudyStats) error {
		for _, d := range items {
			docs = append(docs, dailyStatsDoc{
				ID:                 d.ID,
				Date:               d.Date,
				NewWords:           d.NewWords,
				Reviews:            d.Reviews,
				PracticeSeconds:    d.PracticeSeconds,
				SentencesPracticed: d.SentencesPracticed,
			})
		}
		r.written(kindDailyStats, len(items))
		return nil
	})
	if err != nil {
		return fmt.Errorf("export daily stats: %w", err)
	}
	return writeJSON(r.dir, dailyStatsFile, docs)
}

func (r *exportRun) exportFolders(ctx context.Context) error {
	r.section(ctx, kindFolders, repository.CollectionFolders)
	defer r.reporter.FinishSection(kindFolders)

	docs := []folderDoc{}
	err := eachPage(ctx, r.batchSize, func(ctx context.Context, page repository.Pagination) ([]entity.Folder, error) {
		return r.store.Folders().List(ctx, r.userID, page)
	}, func(items []entity.Folder) error {
		for _, f := range items {
			docs = append(docs, folderDoc{
				ID:        f.ID,
				ParentID:  f.ParentID,
				Name:      f.Name,
				Position:  f.Position,
				CreatedAt: f.CreatedAt.UTC(),
			})
		}
		r.written(kindFolders, len(items))
		return nil
	})
	if err != nil {
		return fmt.Errorf("export folders: %w", err)
	}
	return writeJSON(r.dir, foldersFile, docs)
}

func (r *exportRun) exportMaterials(ctx context.Context) error {
	r.section(ctx, kindMaterials, repository.CollectionMaterials)
	defer r.reporter.FinishSection(kindMaterials)

	materials, err := listAll(ctx, r.batchSize, func(ctx context.Context, page repository.Pagination) ([]entity.Material, error) {
		return r.store.Materials().List(ctx, r.userID, page)
	})
	if err != nil {
		return fmt.Errorf("export materials: %w", err)
	}

	docs := make([]materialDoc, 0, len(materials))
	for _, m := range materials {
		sentences, err := r.store.Materials().ListSentences(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("export material %s: %w", m.ID, err)
		}
		doc := materialDoc{
			ID:              m.ID,
			FolderID:        m.FolderID,
			Title:           m.Title,
			Description:     m.Description,
			MediaFilename:   m.MediaFilename,
			MediaType:       m.MediaType,
			DurationSeconds: m.DurationSeconds,
			CreatedAt:       m.CreatedAt.UTC(),
			Sentences:       make([]sentenceDoc, 0, len(sentences)),
		}
		for _, st := range sentences {
			doc.Sentences = append(doc.Sentences, sentenceDoc{
				ID:           st.ID,
				Position:     st.Position,
				Text:         st.Text,
				Translation:  st.Translation,
				StartSeconds: st.StartSeconds,
				EndSeconds:   st.EndSeconds,
			})
		}
		r.count(kindSentences, len(sentences))
		if m.HasMedia() {
			rel, err := r.exportMedia(ctx, &m)
			if err != nil {
				return err
			}
			doc.Media = rel
		}
		docs = append(docs, doc)
		r.written(kindMaterials, 1)
	}
	return writeJSON(r.dir, materialsFile, docs)
}

// exportMedia copies the media blob of m into the tree. A fetch failure is
// recorded as a warning and yields an empty path.
func (r *exportRun) exportMedia(ctx context.Context, m *entity.Material) (string, error) {
	data, err := r.blobs.Download(ctx, entity.ObjectRef{Bucket: r.mediaBucket, Key: m.MediaKey})
	if err != nil {
		r.mediaFailed("material "+m.ID, m.MediaKey, err)
		return "", nil
	}
	rel := path.Join(mediaDir, m.ID+"_"+mediaFilename(m))
	if err := writeFile(r.dir, rel, data); err != nil {
		return "", err
	}
	return rel, nil
}

func (r *exportRun) mediaFailed(owner, key string, err error) {
	r.logger.WithError(err).WithField("key", key).Warn("media fetch failed, skipping")
	r.report.Warn("%s: media %s skipped: %v", owner, key, err)
}

func mediaFilename(m *entity.Material) string {
	name := m.MediaFilename
	if name == "" {
		name = m.MediaKey
	}
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "media"
	}
	return name
}
