package migrate

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "username", Type: field.TypeString, Unique: true},
		{Name: "email", Type: field.TypeString},
		{Name: "display_name", Type: field.TypeString, Default: ""},
		{Name: "password_hash", Type: field.TypeString, Default: ""},
		{Name: "avatar_key", Type: field.TypeString, Nullable: true},
		{Name: "settings", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// UsersTable holds the schema information for the "users" table.
	UsersTable = &schema.Table{
		Name:       "users",
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}
	// WordsColumns holds the columns for the "words" table.
	WordsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "text", Type: field.TypeString},
		{Name: "normalized", Type: field.TypeString},
		{Name: "language", Type: field.TypeString, Default: "en"},
		{Name: "phonetic", Type: field.TypeString, Nullable: true},
		{Name: "definition", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
	}
	// WordsTable holds the schema information for the "words" table.
	WordsTable = &schema.Table{
		Name:       "words",
		Columns:    WordsColumns,
		PrimaryKey: []*schema.Column{WordsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "word_normalized", Unique: true, Columns: []*schema.Column{WordsColumns[2]}},
		},
	}
	// FoldersColumns holds the columns for the "folders" table.
	FoldersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "position", Type: field.TypeInt, Default: 0},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "parent_id", Type: field.TypeString, Nullable: true},
	}
	// FoldersTable holds the schema information for the "folders" table.
	FoldersTable = &schema.Table{
		Name:       "folders",
		Columns:    FoldersColumns,
		PrimaryKey: []*schema.Column{FoldersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "folders_folders_children",
				Columns:    []*schema.Column{FoldersColumns[6]},
				RefColumns: []*schema.Column{FoldersColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "folder_user_id_name", Columns: []*schema.Column{FoldersColumns[1], FoldersColumns[2]}},
			{Name: "folder_import_run", Columns: []*schema.Column{FoldersColumns[4]}},
		},
	}
	// MaterialsColumns holds the columns for the "materials" table.
	MaterialsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "title", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "media_key", Type: field.TypeString, Nullable: true},
		{Name: "media_filename", Type: field.TypeString, Nullable: true},
		{Name: "media_type", Type: field.TypeString, Nullable: true},
		{Name: "duration_seconds", Type: field.TypeFloat64, Default: 0},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "folder_id", Type: field.TypeString, Nullable: true},
	}
	// MaterialsTable holds the schema information for the "materials" table.
	MaterialsTable = &schema.Table{
		Name:       "materials",
		Columns:    MaterialsColumns,
		PrimaryKey: []*schema.Column{MaterialsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "materials_folders_materials",
				Columns:    []*schema.Column{MaterialsColumns[10]},
				RefColumns: []*schema.Column{FoldersColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "material_user_id_title", Columns: []*schema.Column{MaterialsColumns[1], MaterialsColumns[2]}},
			{Name: "material_import_run", Columns: []*schema.Column{MaterialsColumns[8]}},
		},
	}
	// SentencesColumns holds the columns for the "sentences" table.
	SentencesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "position", Type: field.TypeInt, Default: 0},
		{Name: "text", Type: field.TypeString, Size: 2147483647},
		{Name: "translation", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "start_seconds", Type: field.TypeFloat64, Default: 0},
		{Name: "end_seconds", Type: field.TypeFloat64, Default: 0},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
		{Name: "material_id", Type: field.TypeString},
	}
	// SentencesTable holds the schema information for the "sentences" table.
	SentencesTable = &schema.Table{
		Name:       "sentences",
		Columns:    SentencesColumns,
		PrimaryKey: []*schema.Column{SentencesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "sentences_materials_sentences",
				Columns:    []*schema.Column{SentencesColumns[8]},
				RefColumns: []*schema.Column{MaterialsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "sentence_material_id_position", Columns: []*schema.Column{SentencesColumns[8], SentencesColumns[2]}},
			{Name: "sentence_user_id", Columns: []*schema.Column{SentencesColumns[1]}},
			{Name: "sentence_import_run", Columns: []*schema.Column{SentencesColumns[7]}},
		},
	}
	// UserWordStatusesColumns holds the columns for the "user_word_statuses" table.
	UserWordStatusesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "state", Type: field.TypeString, Default: "NEW"},
		{Name: "scheduler", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "notes", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "word_id", Type: field.TypeString},
	}
	// UserWordStatusesTable holds the schema information for the "user_word_statuses" table.
	UserWordStatusesTable = &schema.Table{
		Name:       "user_word_statuses",
		Columns:    UserWordStatusesColumns,
		PrimaryKey: []*schema.Column{UserWordStatusesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "user_word_statuses_words_statuses",
				Columns:    []*schema.Column{UserWordStatusesColumns[8]},
				RefColumns: []*schema.Column{WordsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "userwordstatus_user_id_word_id", Unique: true, Columns: []*schema.Column{UserWordStatusesColumns[1], UserWordStatusesColumns[8]}},
			{Name: "userwordstatus_import_run", Columns: []*schema.Column{UserWordStatusesColumns[5]}},
		},
	}
	// WordReviewsColumns holds the columns for the "word_reviews" table.
	WordReviewsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "rating", Type: field.TypeInt, Default: 0},
		{Name: "duration_ms", Type: field.TypeInt, Default: 0},
		{Name: "reviewed_at", Type: field.TypeTime},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
		{Name: "status_id", Type: field.TypeString},
	}
	// WordReviewsTable holds the schema information for the "word_reviews" table.
	WordReviewsTable = &schema.Table{
		Name:       "word_reviews",
		Columns:    WordReviewsColumns,
		PrimaryKey: []*schema.Column{WordReviewsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "word_reviews_user_word_statuses_reviews",
				Columns:    []*schema.Column{WordReviewsColumns[6]},
				RefColumns: []*schema.Column{UserWordStatusesColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "wordreview_status_id_reviewed_at", Columns: []*schema.Column{WordReviewsColumns[6], WordReviewsColumns[4]}},
			{Name: "wordreview_user_id", Columns: []*schema.Column{WordReviewsColumns[1]}},
			{Name: "wordreview_import_run", Columns: []*schema.Column{WordReviewsColumns[5]}},
		},
	}
	// DictionariesColumns holds the columns for the "dictionaries" table.
	DictionariesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "description", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// DictionariesTable holds the schema information for the "dictionaries" table.
	DictionariesTable = &schema.Table{
		Name:       "dictionaries",
		Columns:    DictionariesColumns,
		PrimaryKey: []*schema.Column{DictionariesColumns[0]},
		Indexes: []*schema.Index{
			{Name: "dictionary_user_id_name", Columns: []*schema.Column{DictionariesColumns[1], DictionariesColumns[2]}},
			{Name: "dictionary_import_run", Columns: []*schema.Column{DictionariesColumns[4]}},
		},
	}
	// DictionaryWordsColumns holds the columns for the "dictionary_words" table.
	DictionaryWordsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "position", Type: field.TypeInt, Default: 0},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
		{Name: "added_at", Type: field.TypeTime},
		{Name: "dictionary_id", Type: field.TypeString},
		{Name: "word_id", Type: field.TypeString},
	}
	// DictionaryWordsTable holds the schema information for the "dictionary_words" table.
	DictionaryWordsTable = &schema.Table{
		Name:       "dictionary_words",
		Columns:    DictionaryWordsColumns,
		PrimaryKey: []*schema.Column{DictionaryWordsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "dictionary_words_dictionaries_entries",
				Columns:    []*schema.Column{DictionaryWordsColumns[5]},
				RefColumns: []*schema.Column{DictionariesColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "dictionary_words_words_memberships",
				Columns:    []*schema.Column{DictionaryWordsColumns[6]},
				RefColumns: []*schema.Column{WordsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "dictionaryword_dictionary_id_word_id", Unique: true, Columns: []*schema.Column{DictionaryWordsColumns[5], DictionaryWordsColumns[6]}},
			{Name: "dictionaryword_user_id", Columns: []*schema.Column{DictionaryWordsColumns[1]}},
			{Name: "dictionaryword_import_run", Columns: []*schema.Column{DictionaryWordsColumns[3]}},
		},
	}
	// PracticeProgressColumns holds the columns for the "practice_progress" table.
	PracticeProgressColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "attempts", Type: field.TypeInt, Default: 0},
		{Name: "best_score", Type: field.TypeFloat64, Default: 0},
		{Name: "last_input", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "last_practiced_at", Type: field.TypeTime, Nullable: true},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
		{Name: "sentence_id", Type: field.TypeString},
	}
	// PracticeProgressTable holds the schema information for the "practice_progress" table.
	PracticeProgressTable = &schema.Table{
		Name:       "practice_progress",
		Columns:    PracticeProgressColumns,
		PrimaryKey: []*schema.Column{PracticeProgressColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "practice_progress_sentences_practices",
				Columns:    []*schema.Column{PracticeProgressColumns[7]},
				RefColumns: []*schema.Column{SentencesColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "practiceprogress_user_id_sentence_id", Unique: true, Columns: []*schema.Column{PracticeProgressColumns[1], PracticeProgressColumns[7]}},
			{Name: "practiceprogress_import_run", Columns: []*schema.Column{PracticeProgressColumns[6]}},
		},
	}
	// DailyStudyStatsColumns holds the columns for the "daily_study_stats" table.
	DailyStudyStatsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "date", Type: field.TypeString},
		{Name: "new_words", Type: field.TypeInt, Default: 0},
		{Name: "reviews", Type: field.TypeInt, Default: 0},
		{Name: "practice_seconds", Type: field.TypeInt, Default: 0},
		{Name: "sentences_practiced", Type: field.TypeInt, Default: 0},
		{Name: "import_run", Type: field.TypeString, Nullable: true},
	}
	// DailyStudyStatsTable holds the schema information for the "daily_study_stats" table.
	DailyStudyStatsTable = &schema.Table{
		Name:       "daily_study_stats",
		Columns:    DailyStudyStatsColumns,
		PrimaryKey: []*schema.Column{DailyStudyStatsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "dailystudystats_user_id_date", Unique: true, Columns: []*schema.Column{DailyStudyStatsColumns[1], DailyStudyStatsColumns[2]}},
			{Name: "dailystudystats_import_run", Columns: []*schema.Column{DailyStudyStatsColumns[7]}},
		},
	}
	// JobsColumns holds the columns for the "jobs" table.
	JobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "user_id", Type: field.TypeString},
		{Name: "kind", Type: field.TypeString},
		{Name: "status", Type: field.TypeString},
		{Name: "mode", Type: field.TypeString, Nullable: true},
		{Name: "options", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "source_bucket", Type: field.TypeString, Nullable: true},
		{Name: "source_key", Type: field.TypeString, Nullable: true},
		{Name: "archive_bucket", Type: field.TypeString, Nullable: true},
		{Name: "archive_key", Type: field.TypeString, Nullable: true},
		{Name: "error", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "report", Type: field.TypeString, Nullable: true, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "started_at", Type: field.TypeTime, Nullable: true},
		{Name: "finished_at", Type: field.TypeTime, Nullable: true},
		{Name: "owner", Type: field.TypeString, Nullable: true},
		{Name: "lease_until", Type: field.TypeTime, Nullable: true},
	}
	// JobsTable holds the schema information for the "jobs" table.
	JobsTable = &schema.Table{
		Name:       "jobs",
		Columns:    JobsColumns,
		PrimaryKey: []*schema.Column{JobsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "job_status_created_at", Columns: []*schema.Column{JobsColumns[3], JobsColumns[12]}},
			{Name: "job_user_id_created_at", Columns: []*schema.Column{JobsColumns[1], JobsColumns[12]}},
			{Name: "job_status_lease_until", Columns: []*schema.Column{JobsColumns[3], JobsColumns[16]}},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		UsersTable,
		WordsTable,
		FoldersTable,
		MaterialsTable,
		SentencesTable,
		UserWordStatusesTable,
		WordReviewsTable,
		DictionariesTable,
		DictionaryWordsTable,
		PracticeProgressTable,
		DailyStudyStatsTable,
		JobsTable,
	}
)

func init() {
	FoldersTable.ForeignKeys[0].RefTable = FoldersTable
	MaterialsTable.ForeignKeys[0].RefTable = FoldersTable
	SentencesTable.ForeignKeys[0].RefTable = MaterialsTable
	UserWordStatusesTable.ForeignKeys[0].RefTable = WordsTable
	WordReviewsTable.ForeignKeys[0].RefTable = UserWordStatusesTable
	DictionaryWordsTable.ForeignKeys[0].RefTable = DictionariesTable
	DictionaryWordsTable.ForeignKeys[1].RefTable = WordsTable
	PracticeProgressTable.ForeignKeys[0].RefTable = SentencesTable
}
