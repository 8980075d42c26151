package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
)

// ImportRequest describes one import run. RunID tags every row the run
// writes; it defaults to a fresh id.
type ImportRequest struct {
	RunID  string
	UserID string
	Mode   entity.ImportMode
}

// Fetch downloads the archive at ref and extracts it into dir.
func (s *Service) Fetch(ctx context.Context, ref entity.ObjectRef, dir string) (*Metadata, error) {
	data, err := s.blobs.Download(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("download archive %s: %w", ref, err)
	}
	if err := Unpack(bytes.NewReader(data), dir); err != nil {
		return nil, err
	}
	return ReadMetadata(dir)
}

type importRun struct {
	*Service
	tagged repository.Store
	userID string
	dir    string
	res    *resolver
	logger logrus.FieldLogger
	// media uploaded under fresh keys, removed if the run is swept
	uploaded []entity.ObjectRef
}

// Import restores the extracted archive under dir into the account of
// req.UserID. Overwrite erases the user's rows first. Every row written is
// tagged with the run id; the tag is cleared on success and tagged rows are
// swept on failure together with the media uploaded for new materials. Rows
// erased by overwrite or updated by merge are not restored by the sweep.
func (s *Service) Import(ctx context.Context, req ImportRequest, dir string) (*entity.JobReport, error) {
	if _, err := ReadMetadata(dir); err != nil {
		return nil, err
	}
	if req.Mode != entity.ImportModeMerge && req.Mode != entity.ImportModeOverwrite {
		return nil, fmt.Errorf("%w: unknown import mode %q", entity.ErrInvalidJobRequest, req.Mode)
	}
	if _, err := s.store.Users().GetByID(ctx, req.UserID); err != nil {
		return nil, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	logger := s.logger.WithFields(logrus.Fields{"user_id": req.UserID, "import_run": req.RunID, "mode": req.Mode})
	report := entity.NewJobReport()

	if req.Mode == entity.ImportModeOverwrite {
		deleted, err := s.Eraser().EraseUser(ctx, req.UserID)
		if err != nil {
			return report, fmt.Errorf("erase user data: %w", err)
		}
		logger.WithField("deleted", deleted).Info("user data erased")
	}

	run := &importRun{
		Service: s,
		tagged:  s.store.WithImportRun(req.RunID),
		userID:  req.UserID,
		dir:     dir,
		res:     newResolver(req.Mode, report),
		logger:  logger,
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		cleanup := context.WithoutCancel(ctx)
		run.dropUploads(cleanup)
		swept, err := s.Eraser().Sweep(cleanup, req.RunID)
		if err != nil {
			logger.WithError(err).Error("sweep of failed import run failed")
			return
		}
		logger.WithField("deleted", swept).Warn("failed import run swept")
	}()
	steps := []func(context.Context) error{
		run.importWords,
		run.importStatuses,
		run.importReviews,
		run.importFolders,
		run.importMaterials,
		run.importPractices,
		run.importDailyStats,
		run.importDictionaries,
		run.importUser,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return report, err
		}
	}

	if err := s.store.Purger().CommitRun(ctx, req.RunID); err != nil {
		return report, fmt.Errorf("commit import run: %w", err)
	}
	committed = true
	return report, nil
}

func (r *importRun) importWords(ctx context.Context) error {
	var docs []wordDoc
	if ok, err := readJSON(r.dir, wordsFile, &docs); err != nil || !ok {
		return err
	}
	b := binding[wordDoc]{
		kind:   kindWords,
		policy: reuseMatch,
		global: true,
		find: func(ctx context.Context, doc wordDoc) (string, error) {
			normalized := entity.NormalizeWordToken(doc.Text)
			if id, ok := r.words.Get(normalized); ok {
				return id, nil
			}
			w, err := r.tagged.Words().FindByNormalized(ctx, normalized)
			if err != nil || w == nil {
				return "", err
			}
			r.words.Set(normalized, w.ID, 1)
			return w.ID, nil
		},
		create: func(ctx context.Context, doc wordDoc) (string, error) {
			w, err := r.tagged.Words().Create(ctx, &entity.Word{
				Text:       doc.Text,
				Language:   entity.ParseLanguage(doc.Language),
				Phonetic:   doc.Phonetic,
				Definition: doc.Definition,
				CreatedAt:  doc.CreatedAt,
			})
			if err != nil {
				return "", err
			}
			r.words.Set(w.Normalized, w.ID, 1)
			return w.ID, nil
		},
	}
	for _, doc := range docs {
		if entity.NormalizeWordToken(doc.Text) == "" {
			r.res.skip(kindWords)
			r.res.report.Warn("word %s: empty text", doc.ID)
			continue
		}
		if _, _, err := resolve(ctx, r.res, b, doc.ID, doc); err != nil {
			return err
		}
	}
	return nil
}

type statusRow struct {
	doc    statusDoc
	wordID string
}

func (r *importRun) importStatuses(ctx context.Context) error {
	var docs []statusDoc
	if ok, err := readJSON(r.dir, statusesFile, &docs); err != nil || !ok {
		return err
	}
	toEntity := func(row statusRow) *entity.UserWordStatus {
		return &entity.UserWordStatus{
			UserID:    r.userID,
			WordID:    row.wordID,
			State:     entity.ParseStatusState(row.doc.State),
			Scheduler: row.doc.Scheduler,
			Notes:     row.doc.Notes,
			CreatedAt: row.doc.CreatedAt,
			UpdatedAt: row.doc.UpdatedAt,
		}
	}
	b := binding[statusRow]{
		kind:   kindStatuses,
		policy: updateMatch,
		find: func(ctx context.Context, row statusRow) (string, error) {
			st, err := r.tagged.Statuses().FindByWord(ctx, r.userID, row.wordID)
			if err != nil || st == nil {
				return "", err
			}
			return st.ID, nil
		},
		create: func(ctx context.Context, row statusRow) (string, error) {
			st, err := r.tagged.Statuses().Create(ctx, toEntity(row))
			if err != nil {
				return "", err
			}
			return st.ID, nil
		},
		update: func(ctx context.Context, liveID string, row statusRow) error {
			st := toEntity(row)
			st.ID = liveID
			_, err := r.tagged.Statuses().Update(ctx, st)
			return err
		},
	}
	for _, doc := range docs {
		wordID, ok := r.res.remap.lookup(kindWords, doc.WordID)
		if !ok {
			r.res.skip(kindStatuses)
			continue
		}
		if _, _, err := resolve(ctx, r.res, b, doc.ID, statusRow{doc: doc, wordID: wordID}); err != nil {
			return err
		}
	}
	return nil
}

type reviewRow struct {
	doc      reviewDoc
	statusID string
}

func (r *importRun) importReviews(ctx context.Context) error {
	var docs []reviewDoc
	if ok, err := readJSON(r.dir, reviewsFile, &docs); err != nil || !ok {
		return err
	}
	b := binding[reviewRow]{
		kind:   kindReviews,
		policy: reuseMatch,
		find: func(ctx context.Context, row reviewRow) (string, error) {
			rv, err := r.tagged.Statuses().FindReview(ctx, row.statusID, row.doc.ReviewedAt)
			if err != nil || rv == nil {
				return "", err
			}
			return rv.ID, nil
		},
		create: func(ctx context.Context, row reviewRow) (string, error) {
			rv, err := r.tagged.Statuses().CreateReview(ctx, &entity.WordReview{
				UserID:     r.userID,
				StatusID:   row.statusID,
				Rating:     row.doc.Rating,
				DurationMs: row.doc.DurationMs,
				ReviewedAt: row.doc.ReviewedAt,
			})
			if err != nil {
				return "", err
			}
			return rv.ID, nil
		},
	}
	for _, doc := range docs {
		statusID, ok := r.res.remap.lookup(kindStatuses, doc.StatusID)
		if !ok {
			r.res.skip(kindReviews)
			continue
		}
		if _, _, err := resolve(ctx, r.res, b, doc.ID, reviewRow{doc: doc, statusID: statusID}); err != nil {
			return err
		}
	}
	return nil
}

func (r *importRun) importFolders(ctx context.Context) error {
	var docs []folderDoc
	if ok, err := readJSON(r.dir, foldersFile, &docs); err != nil || !ok {
		return err
	}
	folders := r.tagged.Folders()
	return importTree(ctx, r.res, treeBinding[folderDoc]{
		kind: kindFolders,
		node: func(doc folderDoc) (string, *string) { return doc.ID, doc.ParentID },
		find: func(ctx context.Context, doc folderDoc, parent *string) (string, error) {
			f, err := folders.FindByName(ctx, r.userID, doc.Name, parent)
			if err != nil || f == nil {
				return "", err
			}
			return f.ID, nil
		},
		create: func(ctx context.Context, doc folderDoc) (string, error) {
			f, err := folders.Create(ctx, &entity.Folder{
				UserID:    r.userID,
				Name:      doc.Name,
				Position:  doc.Position,
				CreatedAt: doc.CreatedAt,
			})
			if err != nil {
				return "", err
			}
			return f.ID, nil
		},
		setParent: func(ctx context.Context, liveID string, parent *string) error {
			return folders.SetParent(ctx, r.userID, liveID, parent)
		},
	}, docs)
}

type materialRow struct {
	doc      materialDoc
	folderID *string
}

func (r *importRun) importMaterials(ctx context.Context) error {
	var docs []materialDoc
	if ok, err := readJSON(r.dir, materialsFile, &docs); err != nil || !ok {
		return err
	}
	materials := r.tagged.Materials()
	b := binding[materialRow]{
		kind:   kindMaterials,
		policy: skipMatch,
		find: func(ctx context.Context, row materialRow) (string, error) {
			m, err := materials.FindByTitle(ctx, r.userID, row.doc.Title)
			if err != nil || m == nil {
				return "", err
			}
			return m.ID, nil
		},
		create: func(ctx context.Context, row materialRow) (string, error) {
			m := &entity.Material{
				ID:              uuid.NewString(),
				UserID:          r.userID,
				FolderID:        row.folderID,
				Title:           row.doc.Title,
				Description:     row.doc.Description,
				MediaType:       row.doc.MediaType,
				DurationSeconds: row.doc.DurationSeconds,
				CreatedAt:       row.doc.CreatedAt,
			}
			if row.doc.Media != "" {
				ref, err := r.restoreMedia(ctx, row.doc.Media, path.Join("media", r.userID, m.ID, path.Base(row.doc.Media)))
				if err != nil {
					r.res.report.Warn("material %s: media skipped: %v", row.doc.ID, err)
				} else {
					r.uploaded = append(r.uploaded, ref)
					m.MediaKey = ref.Key
					m.MediaFilename = row.doc.MediaFilename
				}
			}
			created, err := materials.Create(ctx, m)
			if err != nil {
				return "", err
			}
			return created.ID, nil
		},
	}

	for _, doc := range docs {
		folderID, ok := r.res.remap.lookupRef(kindFolders, doc.FolderID)
		if !ok {
			r.res.skip(kindMaterials)
			r.skipSentences(doc)
			continue
		}
		materialID, created, err := resolve(ctx, r.res, b, doc.ID, materialRow{doc: doc, folderID: folderID})
		if err != nil {
			return err
		}
		if !created {
			r.skipSentences(doc)
			continue
		}
		for _, st := range doc.Sentences {
			sentence, err := materials.CreateSentence(ctx, &entity.Sentence{
				MaterialID:   materialID,
				UserID:       r.userID,
				Position:     st.Position,
				Text:         st.Text,
				Translation:  st.Translation,
				StartSeconds: st.StartSeconds,
				EndSeconds:   st.EndSeconds,
			})
			if err != nil {
				return fmt.Errorf("create sentence %s: %w", st.ID, err)
			}
			r.res.remap.set(kindSentences, st.ID, sentence.ID)
			r.res.report.Record(kindSentences, entity.OutcomeCreated)
		}
	}
	return nil
}

func (r *importRun) skipSentences(doc materialDoc) {
	for range doc.Sentences {
		r.res.skip(kindSentences)
	}
}

type practiceRow struct {
	doc        practiceDoc
	sentenceID string
}

func (r *importRun) importPractices(ctx context.Context) error {
	var docs []practiceDoc
	if ok, err := readJSON(r.dir, practicesFile, &docs); err != nil || !ok {
		return err
	}
	study := r.tagged.Study()
	toEntity := func(row practiceRow) *entity.PracticeProgress {
		return &entity.PracticeProgress{
			UserID:          r.userID,
			SentenceID:      row.sentenceID,
			Attempts:        row.doc.Attempts,
			BestScore:       row.doc.BestScore,
			LastInput:       row.doc.LastInput,
			LastPracticedAt: row.doc.LastPracticedAt,
		}
	}
	b := binding[practiceRow]{
		kind:   kindPractices,
		policy: updateMatch,
		find: func(ctx context.Context, row practiceRow) (string, error) {
			p, err := study.FindPractice(ctx, r.userID, row.sentenceID)
			if err != nil || p == nil {
				return "", err
			}
			return p.ID, nil
		},
		create: func(ctx context.Context, row practiceRow) (string, error) {
			p, err := study.CreatePractice(ctx, toEntity(row))
			if err != nil {
				return "", err
			}
			return p.ID, nil
		},
		update: func(ctx context.Context, liveID string, row practiceRow) error {
			p := toEntity(row)
			p.ID = liveID
			_, err := study.UpdatePractice(ctx, p)
			return err
		},
	}
	for _, doc := range docs {
		sentenceID, ok := r.res.remap.lookup(kindSentences, doc.SentenceID)
		if !ok {
			r.res.skip(kindPractices)
			continue
		}
		if _, _, err := resolve(ctx, r.res, b, doc.ID, practiceRow{doc: doc, sentenceID: sentenceID}); err != nil {
			return err
		}
	}
	return nil
}

func (r *importRun) importDailyStats(ctx context.Context) error {
	var docs []dailyStatsDoc
	if ok, err := readJSON(r.dir, dailyStatsFile, &docs); err != nil || !ok {
		return err
	}
	study := r.tagged.Study()
	toEntity := func(doc dailyStatsDoc) *entity.DailyStudyStats {
		return &entity.DailyStudyStats{
			UserID:             r.userID,
			Date:               doc.Date,
			NewWords:           doc.NewWords,
			Reviews:            doc.Reviews,
			PracticeSeconds:    doc.PracticeSeconds,
			SentencesPracticed: doc.SentencesPracticed,
		}
	}
	b := binding[dailyStatsDoc]{
		kind:   kindDailyStats,
		policy: updateMatch,
		find: func(ctx context.Context, doc dailyStatsDoc) (string, error) {
			s, err := study.FindDailyStats(ctx, r.userID, doc.Date)
			if err != nil || s == nil {
				return "", err
			}
			return s.ID, nil
		},
		create: func(ctx context.Context, doc dailyStatsDoc) (string, error) {
			s, err := study.CreateDailyStats(ctx, toEntity(doc))
			if err != nil {
				return "", err
			}
			return s.ID, nil
		},
		update: func(ctx context.Context, liveID string, doc dailyStatsDoc) error {
			s := toEntity(doc)
			s.ID = liveID
			_, err := study.UpdateDailyStats(ctx, s)
			return err
		},
	}
	for _, doc := range docs {
		if _, err := time.Parse(entity.DailyStatsDateLayout, doc.Date); err != nil {
			r.res.skip(kindDailyStats)
			r.res.report.Warn("daily stats %s: invalid date %q", doc.ID, doc.Date)
			continue
		}
		if _, _, err := resolve(ctx, r.res, b, doc.ID, doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *importRun) importDictionaries(ctx context.Context) error {
	var docs []dictionaryDoc
	if ok, err := readJSON(r.dir, dictionariesFile, &docs); err != nil || !ok {
		return err
	}
	dicts := r.tagged.Dictionaries()
	b := binding[dictionaryDoc]{
		kind:   kindDictionaries,
		policy: reuseMatch,
		find: func(ctx context.Context, doc dictionaryDoc) (string, error) {
			d, err := dicts.FindByName(ctx, r.userID, doc.Name)
			if err != nil || d == nil {
				return "", err
			}
			return d.ID, nil
		},
		create: func(ctx context.Context, doc dictionaryDoc) (string, error) {
			d, err := dicts.Create(ctx, &entity.Dictionary{
				UserID:      r.userID,
				Name:        doc.Name,
				Description: doc.Description,
				CreatedAt:   doc.CreatedAt,
			})
			if err != nil {
				return "", err
			}
			return d.ID, nil
		},
	}
	for _, doc := range docs {
		dictID, _, err := resolve(ctx, r.res, b, doc.ID, doc)
		if err != nil {
			return err
		}
		for _, w := range doc.Words {
			wordID, ok := r.res.remap.lookup(kindWords, w.WordID)
			if !ok {
				r.res.skip(kindDictWords)
				continue
			}
			added, err := dicts.AddEntry(ctx, &entity.DictionaryEntry{
				DictionaryID: dictID,
				WordID:       wordID,
				UserID:       r.userID,
				Position:     w.Position,
				AddedAt:      w.AddedAt,
			})
			if err != nil {
				return fmt.Errorf("add word %s to dictionary %s: %w", w.WordID, doc.ID, err)
			}
			if added {
				r.res.report.Record(kindDictWords, entity.OutcomeCreated)
			} else {
				r.res.report.Record(kindDictWords, entity.OutcomeReused)
			}
		}
	}
	return nil
}

// importUser applies the snapshot profile to the importing account. Identity
// fields (username, email) are never taken from the archive.
func (r *importRun) importUser(ctx context.Context) error {
	var doc userDoc
	if ok, err := readJSON(r.dir, userFile, &doc); err != nil || !ok {
		return err
	}
	user, err := r.store.Users().GetByID(ctx, r.userID)
	if err != nil {
		return err
	}
	if doc.DisplayName != "" {
		user.DisplayName = doc.DisplayName
	}
	if len(doc.Settings) > 0 {
		user.Settings = doc.Settings
	}
	if doc.Avatar != "" {
		ref, err := r.restoreMedia(ctx, doc.Avatar, path.Join("avatars", r.userID, "avatar"+path.Ext(doc.Avatar)))
		if err != nil {
			r.res.report.Warn("user: avatar skipped: %v", err)
		} else {
			user.AvatarKey = ref.Key
		}
	}
	if _, err := r.store.Users().UpdateProfile(ctx, user); err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	r.res.report.Record(kindUser, entity.OutcomeUpdated)
	return nil
}

// restoreMedia uploads the archive file rel to the media bucket under key.
func (r *importRun) restoreMedia(ctx context.Context, rel, key string) (entity.ObjectRef, error) {
	target, err := safeJoin(r.dir, rel)
	if err != nil {
		return entity.ObjectRef{}, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return entity.ObjectRef{}, fmt.Errorf("%s missing from archive", rel)
	}
	if err != nil {
		return entity.ObjectRef{}, err
	}
	ref, err := r.blobs.Upload(ctx, r.mediaBucket, key, data)
	if err != nil {
		return entity.ObjectRef{}, err
	}
	if ref.Bucket != r.mediaBucket {
		r.logger.WithField("ref", ref.String()).Warn("media stored outside the media bucket")
	}
	return ref, nil
}

// dropUploads deletes the media written under fresh keys by a failed run.
// The avatar key is shared with the live profile and is left in place.
func (r *importRun) dropUploads(ctx context.Context) {
	for _, ref := range r.uploaded {
		if err := r.blobs.Delete(ctx, ref); err != nil {
			r.logger.WithError(err).WithField("ref", ref.String()).Error("orphaned media left behind")
		}
	}
	if len(r.uploaded) > 0 {
		r.logger.WithField("count", len(r.uploaded)).Warn("media of failed import run deleted")
	}
}
