package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eslsoft/deeplisten/internal/entity"
)

func TestParseInclude(t *testing.T) {
	all, err := parseInclude(nil)
	require.NoError(t, err)
	require.Equal(t, entity.AllExportOptions(), all)

	opts, err := parseInclude([]string{"vocab, Learning", "dict"})
	require.NoError(t, err)
	require.Equal(t, entity.ExportOptions{Vocab: true, Learning: true, Dict: true}, opts)

	opts, err = parseInclude([]string{"user", "all"})
	require.NoError(t, err)
	require.Equal(t, entity.AllExportOptions(), opts)

	_, err = parseInclude([]string{"photos"})
	require.Error(t, err)
}

func TestParseSeedUser(t *testing.T) {
	u, err := parseSeedUser(" alice : Alice Liddell ")
	require.NoError(t, err)
	require.Equal(t, "alice", u.ID)
	require.Equal(t, "Alice Liddell", u.DisplayName)

	u, err = parseSeedUser("bob")
	require.NoError(t, err)
	require.Equal(t, "bob", u.DisplayName)

	_, err = parseSeedUser(":nameless")
	require.Error(t, err)
}

func TestParseWordList(t *testing.T) {
	input := strings.Join([]string{
		"# header",
		"",
		"apple\tˈæp.əl\ta round fruit",
		"Apple",
		"banana",
		"cherry\t\tsmall\tred fruit",
	}, "\n")
	words, err := parseWordList(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, words, 3)
	require.Equal(t, "apple", words[0].Text)
	require.Equal(t, "ˈæp.əl", words[0].Phonetic)
	require.Equal(t, "a round fruit", words[0].Definition)
	require.Equal(t, "banana", words[1].Text)
	require.Equal(t, "small red fruit", words[2].Definition)
}

func TestPrintReportSortsKinds(t *testing.T) {
	report := entity.NewJobReport()
	report.Counts["words"] = &entity.OutcomeCounts{Created: 2}
	report.Counts["folders"] = &entity.OutcomeCounts{Reused: 1}
	report.Warnings = []string{"media missing"}

	var buf bytes.Buffer
	printReport(&buf, report)
	out := buf.String()
	require.Less(t, strings.Index(out, "folders"), strings.Index(out, "words"))
	require.Contains(t, out, "media missing")
}

func TestProgressStep(t *testing.T) {
	require.Equal(t, 1000, progressStep(0))
	require.Equal(t, 1, progressStep(10))
	require.Equal(t, 50, progressStep(1000))
	require.Equal(t, 1000, progressStep(1_000_000))
}
