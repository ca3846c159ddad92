package store

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsharvest/pkg/news"
)

func readAll(t *testing.T, path string) [][]string {
	t.Helper()

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVSink_InitAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")
	sink := NewCSVSink(path)

	require.NoError(t, sink.Init())

	created := time.Date(2024, 2, 7, 10, 45, 12, 0, time.UTC)
	require.NoError(t, sink.Append([]news.Article{
		{ID: "urn:1", Created: created, Headline: "GASC buys wheat", Body: "Egypt bought wheat, traders said."},
		{ID: "urn:2", Created: created.Add(-time.Hour), Headline: `Tunisia "tender"`, Body: "line one\nline two"},
	}))
	require.NoError(t, sink.Append([]news.Article{
		{ID: "urn:3", Created: created.Add(-2 * time.Hour), Headline: "Algeria", Body: ""},
	}))

	records := readAll(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, Header, records[0])
	for _, record := range records {
		assert.Len(t, record, len(Header))
	}

	assert.Equal(t, []string{"urn:1", "2024-02-07T10:45:12Z", "GASC buys wheat", "Egypt bought wheat, traders said."}, records[1])
	assert.Equal(t, `Tunisia "tender"`, records[2][2])
	assert.Equal(t, "line one\nline two", records[2][3])
	assert.Equal(t, "urn:3", records[3][0])
}

func TestCSVSink_InitTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale,data\n"), 0644))

	sink := NewCSVSink(path)
	require.NoError(t, sink.Init())

	records := readAll(t, path)
	assert.Equal(t, [][]string{Header}, records)
}

func TestCSVSink_AppendWithoutInit(t *testing.T) {
	sink := NewCSVSink(filepath.Join(t.TempDir(), "missing.csv"))
	err := sink.Append([]news.Article{{ID: "x"}})
	assert.Error(t, err)
}

func TestCSVSink_AppendEmptyBatch(t *testing.T) {
	sink := NewCSVSink(filepath.Join(t.TempDir(), "missing.csv"))
	assert.NoError(t, sink.Append(nil))
}

func TestRow_UsesUTC(t *testing.T) {
	cairo := time.FixedZone("EET", 2*60*60)
	row := Row(news.Article{ID: "a", Created: time.Date(2023, 5, 1, 12, 0, 0, 0, cairo), Headline: "h", Body: "b"})
	assert.Equal(t, []string{"a", "2023-05-01T10:00:00Z", "h", "b"}, row)
}

func TestOldest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")
	sink := NewCSVSink(path)
	require.NoError(t, sink.Init())

	base := time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, sink.Append([]news.Article{
		{ID: "1", Created: base},
		{ID: "2", Created: base.Add(-48 * time.Hour)},
		{ID: "3", Created: base.Add(-24 * time.Hour)},
	}))

	oldest, ok, err := Oldest(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, oldest.Equal(base.Add(-48*time.Hour)))
}

func TestOldest_MissingOrEmpty(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := Oldest(filepath.Join(dir, "nope.csv"))
	require.NoError(t, err)
	assert.False(t, ok)

	path := filepath.Join(dir, "header-only.csv")
	require.NoError(t, NewCSVSink(path).Init())
	_, ok, err = Oldest(path)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOldest_TornLastRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")
	content := "id,created_date,headline,text\n" +
		"1,2023-03-01T08:00:00Z,h,b\n" +
		"2,2023-02-28T08:00:00Z,h\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	oldest, ok, err := Oldest(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2023-03-01T08:00:00Z", oldest.Format(CreatedLayout))
}

func TestRow_KeepsMilliseconds(t *testing.T) {
	created := time.Date(2024, 2, 7, 10, 45, 12, 345_000_000, time.UTC)
	row := Row(news.Article{ID: "a", Created: created})
	assert.Equal(t, "2024-02-07T10:45:12.345Z", row[1])

	parsed, err := time.Parse(CreatedLayout, row[1])
	require.NoError(t, err)
	assert.True(t, parsed.Equal(created))
}

func TestCSVSink_Resume(t *testing.T) {
	const complete = "id,created_date,headline,text\n" +
		"1,2023-03-01T08:00:00Z,h,b\n"

	tests := []struct {
		name    string
		content string
	}{
		{"clean end", complete},
		{"short last row without newline", complete + "2,2023-02-28T08:00:00Z,h"},
		{"short last row with newline", complete + "2,2023-02-28T08:00:00Z,h\n"},
		{"full last row without newline", complete + "2,2023-02-28T08:00:00Z,h,bo"},
		{"unterminated quote", complete + `2,2023-02-28T08:00:00Z,h,"body cut`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "articles.csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			sink := NewCSVSink(path)

			oldest, ok, err := sink.Resume()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "2023-03-01T08:00:00Z", oldest.Format(CreatedLayout))

			require.NoError(t, sink.Append([]news.Article{
				{ID: "3", Created: time.Date(2023, 2, 1, 9, 0, 0, 0, time.UTC), Headline: "h3", Body: "b3"},
			}))

			file, err := os.Open(path)
			require.NoError(t, err)
			defer file.Close()
			reader := csv.NewReader(file)
			reader.FieldsPerRecord = len(Header)
			records, err := reader.ReadAll()
			require.NoError(t, err)

			assert.Equal(t, [][]string{
				Header,
				{"1", "2023-03-01T08:00:00Z", "h", "b"},
				{"3", "2023-02-01T09:00:00Z", "h3", "b3"},
			}, records)
		})
	}
}

func TestCSVSink_ResumeNothingToKeep(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := NewCSVSink(filepath.Join(dir, "nope.csv")).Resume()
	require.NoError(t, err)
	assert.False(t, ok)

	path := filepath.Join(dir, "torn-header.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,created_date,headline,text"), 0644))
	_, ok, err = NewCSVSink(path).Resume()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOldest_CorruptMiddleRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "articles.csv")
	content := "id,created_date,headline,text\n" +
		"1,2023-03-01T08:00:00Z,h\n" +
		"2,2023-02-28T08:00:00Z,h,b\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, _, err := Oldest(path)
	assert.Error(t, err)

	_, _, err = NewCSVSink(path).Resume()
	assert.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(after), "a corrupt file is never truncated")
}

func TestOldest_ForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c,d\n1,2,3,4\n"), 0644))

	_, _, err := Oldest(path)
	assert.Error(t, err)
}
