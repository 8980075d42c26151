package entity

import "time"

// DailyStatsDateLayout is the layout of DailyStudyStats.Date.
const DailyStatsDateLayout = "2006-01-02"

// PracticeProgress records dictation practice on one sentence.
type PracticeProgress struct {
	ID              string
	UserID          string
	SentenceID      string
	Attempts        int
	BestScore       float64
	LastInput       string
	LastPracticedAt *time.Time
}

// DailyStudyStats aggregates one user's study counters for a day.
type DailyStudyStats struct {
	ID                 string
	UserID             string
	Date               string
	NewWords           int
	Reviews            int
	PracticeSeconds    int
	SentencesPracticed int
}
