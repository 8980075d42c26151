package backup

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eslsoft/deeplisten/internal/entity"
	"github.com/eslsoft/deeplisten/internal/repository"
)

func exportTo(t *testing.T, env *testEnv, userID string, opts entity.ExportOptions) (string, *entity.JobReport) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tree")
	report, err := env.svc.Export(context.Background(), userID, opts, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	return dir, report
}

func readArray(t *testing.T, dir, rel string) []json.RawMessage {
	t.Helper()
	var items []json.RawMessage
	ok, err := readJSON(dir, rel, &items)
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	if !ok {
		t.Fatalf("%s missing", rel)
	}
	return items
}

func TestExportVocabularyOnly(t *testing.T) {
	env := newTestEnv(t, "src")
	env.createUser(t, "alice")
	env.seedVocabulary(t, "alice")

	dir, report := exportTo(t, env, "alice", entity.ExportOptions{Vocab: true})

	if got := len(readArray(t, dir, wordsFile)); got != 5 {
		t.Fatalf("expected 5 words, got %d", got)
	}
	if got := len(readArray(t, dir, statusesFile)); got != 5 {
		t.Fatalf("expected 5 statuses, got %d", got)
	}
	for _, absent := range []string{"study", "dictionaries", "materials", "user"} {
		if _, err := os.Stat(filepath.Join(dir, absent)); !os.IsNotExist(err) {
			t.Fatalf("%s should be absent, stat err=%v", absent, err)
		}
	}

	meta, err := ReadMetadata(dir)
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if meta.UserID != "alice" || !meta.Options.Vocab || meta.Options.Learning {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if report.Count(kindStatuses).Created != 5 {
		t.Fatalf("unexpected report %+v", report.Counts)
	}

	var states = map[string]int{}
	var statuses []statusDoc
	if _, err := readJSON(dir, statusesFile, &statuses); err != nil {
		t.Fatalf("decode statuses: %v", err)
	}
	for _, st := range statuses {
		states[st.State]++
	}
	if states["NEW"] != 3 || states["MASTERED"] != 2 {
		t.Fatalf("unexpected states %v", states)
	}
}

func TestExportNeverWritesPasswordHash(t *testing.T) {
	env := newTestEnv(t, "src")
	env.createUser(t, "alice")

	dir, _ := exportTo(t, env, "alice", entity.ExportOptions{User: true})
	data, err := os.ReadFile(filepath.Join(dir, "user", "user.json"))
	if err != nil {
		t.Fatalf("read user: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	for key, value := range raw {
		if value == "secret-hash" {
			t.Fatalf("password hash leaked under %q", key)
		}
	}
}

func TestExportRejectsEmptySelection(t *testing.T) {
	env := newTestEnv(t, "src")
	env.createUser(t, "alice")
	_, err := env.svc.Export(context.Background(), "alice", entity.ExportOptions{}, t.TempDir())
	if !errors.Is(err, entity.ErrInvalidJobRequest) {
		t.Fatalf("expected ErrInvalidJobRequest, got %v", err)
	}
}

func TestMergeImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newTestEnv(t, "src")
	src.createUser(t, "alice")
	words := src.seedVocabulary(t, "alice")
	dir, _ := exportTo(t, src, "alice", entity.ExportOptions{Vocab: true})

	dst := newTestEnv(t, "dst")
	dst.createUser(t, "bob")

	report, err := dst.svc.Import(ctx, ImportRequest{RunID: "run-1", UserID: "bob", Mode: entity.ImportModeMerge}, dir)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if got := report.Count(kindWords).Created; got != 5 {
		t.Fatalf("expected 5 created words, got %d", got)
	}
	if got := dst.count(t, repository.CollectionStatuses, "bob"); got != 5 {
		t.Fatalf("expected 5 statuses for bob, got %d", got)
	}

	report, err = dst.svc.Import(ctx, ImportRequest{RunID: "run-2", UserID: "bob", Mode: entity.ImportModeMerge}, dir)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if got := report.Count(kindStatuses).Updated; got != 5 {
		t.Fatalf("expected 5 updated statuses, got %+v", report.Count(kindStatuses))
	}
	if got := dst.count(t, repository.CollectionStatuses, "bob"); got != 5 {
		t.Fatalf("statuses duplicated: %d", got)
	}
	for _, w := range words {
		n, err := dst.store.Words().CountByNormalized(ctx, w.Normalized)
		if err != nil {
			t.Fatalf("count word: %v", err)
		}
		if n != 1 {
			t.Fatalf("word %q stored %d times", w.Normalized, n)
		}
	}
	if got := dst.countRun(t, repository.CollectionStatuses, "run-1"); got != 0 {
		t.Fatalf("run tag should be cleared on commit, %d rows still tagged", got)
	}
}

// seedLibrary builds folders A→B→C with one material in C, two sentences,
// practice on the first sentence, a review, daily stats and a dictionary.
func seedLibrary(t *testing.T, env *testEnv, userID string) {
	t.Helper()
	ctx := context.Background()
	words := env.seedVocabulary(t, userID)

	a, err := env.store.Folders().Create(ctx, &entity.Folder{UserID: userID, Name: "A"})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	b, err := env.store.Folders().Create(ctx, &entity.Folder{UserID: userID, Name: "B", ParentID: &a.ID})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	c, err := env.store.Folders().Create(ctx, &entity.Folder{UserID: userID, Name: "C", ParentID: &b.ID})
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}

	m, err := env.store.Materials().Create(ctx, &entity.Material{
		UserID:        userID,
		FolderID:      &c.ID,
		Title:         "Lesson 1",
		MediaKey:      "media/" + userID + "/lesson1.mp3",
		MediaFilename: "lesson1.mp3",
		MediaType:     "audio/mpeg",
	})
	if err != nil {
		t.Fatalf("create material: %v", err)
	}
	if _, err := env.blobs.Upload(ctx, "media", m.MediaKey, []byte("mp3")); err != nil {
		t.Fatalf("upload media: %v", err)
	}
	var first *entity.Sentence
	for i, text := range []string{"Hello there.", "General Kenobi."} {
		s, err := env.store.Materials().CreateSentence(ctx, &entity.Sentence{
			MaterialID:   m.ID,
			UserID:       userID,
			Position:     i,
			Text:         text,
			StartSeconds: float64(i) * 2,
			EndSeconds:   float64(i)*2 + 1.5,
		})
		if err != nil {
			t.Fatalf("create sentence: %v", err)
		}
		if first == nil {
			first = s
		}
	}
	practiced := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	if _, err := env.store.Study().CreatePractice(ctx, &entity.PracticeProgress{
		UserID: userID, SentenceID: first.ID, Attempts: 3, BestScore: 0.9, LastInput: "hello there", LastPracticedAt: &practiced,
	}); err != nil {
		t.Fatalf("create practice: %v", err)
	}
	if _, err := env.store.Study().CreateDailyStats(ctx, &entity.DailyStudyStats{
		UserID: userID, Date: "2025-02-01", NewWords: 5, Reviews: 1, PracticeSeconds: 120, SentencesPracticed: 1,
	}); err != nil {
		t.Fatalf("create daily stats: %v", err)
	}

	status, err := env.store.Statuses().FindByWord(ctx, userID, words[0].ID)
	if err != nil || status == nil {
		t.Fatalf("find status: %v", err)
	}
	if _, err := env.store.Statuses().CreateReview(ctx, &entity.WordReview{
		UserID: userID, StatusID: status.ID, Rating: 4, ReviewedAt: practiced,
	}); err != nil {
		t.Fatalf("create review: %v", err)
	}

	dict, err := env.store.Dictionaries().Create(ctx, &entity.Dictionary{UserID: userID, Name: "Fruits"})
	if err != nil {
		t.Fatalf("create dictionary: %v", err)
	}
	for i, w := range words[:3] {
		if _, err := env.store.Dictionaries().AddEntry(ctx, &entity.DictionaryEntry{
			DictionaryID: dict.ID, WordID: w.ID, UserID: userID, Position: i,
		}); err != nil {
			t.Fatalf("add entry: %v", err)
		}
	}
}

func TestOverwriteImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestEnv(t, "src")
	src.createUser(t, "alice")
	seedLibrary(t, src, "alice")
	dir, report := exportTo(t, src, "alice", entity.AllExportOptions())
	if len(report.Warnings) != 0 {
		t.Fatalf("unexpected export warnings %v", report.Warnings)
	}
	if _, err := os.Stat(filepath.Join(dir, "materials", "media")); err != nil {
		t.Fatalf("media not exported: %v", err)
	}

	dst := newTestEnv(t, "dst")
	dst.createUser(t, "bob")
	seedLibrary(t, dst, "bob")

	report, err := dst.svc.Import(ctx, ImportRequest{RunID: "run-1", UserID: "bob", Mode: entity.ImportModeOverwrite}, dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	expect := map[repository.Collection]int{
		repository.CollectionFolders:      3,
		repository.CollectionMaterials:    1,
		repository.CollectionSentences:    2,
		repository.CollectionStatuses:     5,
		repository.CollectionReviews:      1,
		repository.CollectionPractices:    1,
		repository.CollectionDailyStats:   1,
		repository.CollectionDictionaries: 1,
		repository.CollectionDictEntries:  3,
	}
	for c, want := range expect {
		if got := dst.count(t, c, "bob"); got != want {
			t.Fatalf("%s: expected %d rows after overwrite, got %d", c, want, got)
		}
	}

	// Walk C to the root: every hop must land on a folder created by this run.
	folders, err := dst.store.Folders().List(ctx, "bob", repository.FirstPage(50))
	if err != nil {
		t.Fatalf("list folders: %v", err)
	}
	byName := map[string]entity.Folder{}
	for _, f := range folders {
		byName[f.Name] = f
	}
	cur, hops := byName["C"], 0
	for cur.ParentID != nil {
		parent, err := dst.store.Folders().GetByID(ctx, "bob", *cur.ParentID)
		if err != nil || parent == nil {
			t.Fatalf("dangling parent of %s: %v", cur.Name, err)
		}
		cur = *parent
		if hops++; hops > len(folders) {
			t.Fatalf("cycle walking from C")
		}
	}
	if cur.Name != "A" || hops != 2 {
		t.Fatalf("expected C→B→A, ended at %s after %d hops", cur.Name, hops)
	}
	if byName["B"].ParentID == nil || *byName["B"].ParentID != byName["A"].ID {
		t.Fatalf("B should hang under the new A")
	}

	materials, err := dst.store.Materials().List(ctx, "bob", repository.FirstPage(10))
	if err != nil || len(materials) != 1 {
		t.Fatalf("list materials: %v (%d)", err, len(materials))
	}
	if !dst.blobs.has("media", materials[0].MediaKey) {
		t.Fatalf("media %q not re-uploaded", materials[0].MediaKey)
	}
	if got := report.Count(kindSentences).Created; got != 2 {
		t.Fatalf("expected 2 sentences created, got %d", got)
	}
}

func TestEraseUserLeavesNothingBehind(t *testing.T) {
	env := newTestEnv(t, "db")
	env.createUser(t, "alice")
	env.createUser(t, "carol")
	seedLibrary(t, env, "alice")
	seedLibrary(t, env, "carol")

	if _, err := env.svc.Eraser().EraseUser(context.Background(), "alice"); err != nil {
		t.Fatalf("erase: %v", err)
	}
	for _, c := range eraseOrder {
		if got := env.count(t, c, "alice"); got != 0 {
			t.Fatalf("%s: %d rows left for alice", c, got)
		}
	}
	if got := env.count(t, repository.CollectionMaterials, "carol"); got != 1 {
		t.Fatalf("carol's materials touched: %d", got)
	}
	if got := env.count(t, repository.CollectionFolders, "carol"); got != 3 {
		t.Fatalf("carol's folders touched: %d", got)
	}
}

func TestMergeSkipsSentencesOfCollidingMaterial(t *testing.T) {
	ctx := context.Background()
	src := newTestEnv(t, "src")
	src.createUser(t, "alice")
	seedLibrary(t, src, "alice")
	dir, _ := exportTo(t, src, "alice", entity.AllExportOptions())

	dst := newTestEnv(t, "dst")
	dst.createUser(t, "bob")
	if _, err := dst.store.Materials().Create(ctx, &entity.Material{UserID: "bob", Title: "Lesson 1"}); err != nil {
		t.Fatalf("create material: %v", err)
	}

	report, err := dst.svc.Import(ctx, ImportRequest{UserID: "bob", Mode: entity.ImportModeMerge}, dir)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := report.Count(kindMaterials).Skipped; got != 1 {
		t.Fatalf("expected the colliding material skipped, got %+v", report.Count(kindMaterials))
	}
	if got := report.Count(kindSentences).Skipped; got != 2 {
		t.Fatalf("expected 2 sentences skipped, got %+v", report.Count(kindSentences))
	}
	if got := report.Count(kindPractices).Skipped; got != 1 {
		t.Fatalf("expected practice skipped, got %+v", report.Count(kindPractices))
	}
	if got := dst.count(t, repository.CollectionSentences, "bob"); got != 0 {
		t.Fatalf("sentences created under a foreign material: %d", got)
	}
	if got := dst.count(t, repository.CollectionMaterials, "bob"); got != 1 {
		t.Fatalf("expected only the pre-existing material, got %d", got)
	}
}

func TestFailedImportSweepsRun(t *testing.T) {
	ctx := context.Background()
	src := newTestEnv(t, "src")
	src.createUser(t, "alice")
	seedLibrary(t, src, "alice")
	dir, _ := exportTo(t, src, "alice", entity.AllExportOptions())

	// practices are imported after folders, materials and statuses.
	if err := writeFile(dir, practicesFile, []byte("[{")); err != nil {
		t.Fatalf("corrupt practices: %v", err)
	}

	dst := newTestEnv(t, "dst")
	dst.createUser(t, "bob")
	_, err := dst.svc.Import(ctx, ImportRequest{RunID: "run-x", UserID: "bob", Mode: entity.ImportModeMerge}, dir)
	if !errors.Is(err, entity.ErrInvalidArchive) {
		t.Fatalf("expected ErrInvalidArchive, got %v", err)
	}
	if n := dst.blobs.count("media/bob/"); n != 0 {
		t.Fatalf("%d media blobs of the failed run survived", n)
	}
	for _, c := range eraseOrder {
		if got := dst.count(t, c, "bob"); got != 0 {
			t.Fatalf("%s: %d rows survived the sweep", c, got)
		}
		if got := dst.countRun(t, c, "run-x"); got != 0 {
			t.Fatalf("%s: %d tagged rows survived the sweep", c, got)
		}
	}
}

func TestExportSkipsMissingMedia(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, "src")
	env.createUser(t, "alice")
	if _, err := env.store.Materials().Create(ctx, &entity.Material{
		UserID: "alice", Title: "Broken", MediaKey: "media/alice/gone.mp3", MediaFilename: "gone.mp3",
	}); err != nil {
		t.Fatalf("create material: %v", err)
	}

	dir, report := exportTo(t, env, "alice", entity.ExportOptions{Materials: true})
	if len(report.Warnings) != 1 {
		t.Fatalf("expected one media warning, got %v", report.Warnings)
	}
	var materials []materialDoc
	if _, err := readJSON(dir, materialsFile, &materials); err != nil {
		t.Fatalf("read materials: %v", err)
	}
	if len(materials) != 1 || materials[0].Media != "" {
		t.Fatalf("material should be exported without media: %+v", materials)
	}
}

func TestImportRejectsArchiveWithoutMetadata(t *testing.T) {
	env := newTestEnv(t, "dst")
	env.createUser(t, "bob")
	_, err := env.svc.Import(context.Background(), ImportRequest{UserID: "bob", Mode: entity.ImportModeMerge}, t.TempDir())
	if !errors.Is(err, entity.ErrInvalidArchive) {
		t.Fatalf("expected ErrInvalidArchive, got %v", err)
	}
}
