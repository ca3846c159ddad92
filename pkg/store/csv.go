// Package store writes harvested articles to a CSV file.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"newsharvest/pkg/news"
)

// Header is the column order of every output file.
var Header = []string{"id", "created_date", "headline", "text"}

// CreatedLayout is how created_date is written.
const CreatedLayout = time.RFC3339Nano

// CSVSink appends article rows to a CSV file. It reopens the file for every
// batch and holds no handle between calls, so it assumes a single writer.
type CSVSink struct {
	Path string
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{Path: path}
}

// Init truncates the file and writes the header row.
func (s *CSVSink) Init() error {
	file, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return file.Close()
}

// Append writes one row per article at the end of the file.
func (s *CSVSink) Append(articles []news.Article) error {
	if len(articles) == 0 {
		return nil
	}

	file, err := os.OpenFile(s.Path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	for _, article := range articles {
		if err := writer.Write(Row(article)); err != nil {
			return fmt.Errorf("failed to write article %s: %w", article.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", s.Path, err)
	}

	return file.Close()
}

// Row lays an article out in Header order.
func Row(article news.Article) []string {
	return []string{
		article.ID,
		article.Created.UTC().Format(CreatedLayout),
		article.Headline,
		article.Body,
	}
}

// Oldest scans an existing output file for its earliest created_date. ok is
// false when the file is missing or has no complete data rows.
func Oldest(path string) (oldest time.Time, ok bool, err error) {
	oldest, _, ok, err = scan(path)
	return oldest, ok, err
}

// Resume prepares an existing file for more appends. It drops a torn last
// row left by a crash, so the next Append starts on a fresh line, and
// returns the earliest created_date of the rows that remain. ok is false
// when there is nothing to resume; the file is left untouched then.
func (s *CSVSink) Resume() (oldest time.Time, ok bool, err error) {
	oldest, end, ok, err := scan(s.Path)
	if err != nil || !ok {
		return oldest, ok, err
	}

	info, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to stat %s: %w", s.Path, err)
	}
	if info.Size() > end {
		if err := os.Truncate(s.Path, end); err != nil {
			return time.Time{}, false, fmt.Errorf("failed to drop torn row of %s: %w", s.Path, err)
		}
	}

	return oldest, true, nil
}

// scan returns the earliest created_date and the offset just past the last
// complete row. A row counts as complete when it has every column and ends
// with a newline.
func scan(path string) (oldest time.Time, end int64, ok bool, err error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if header[1] != Header[1] {
		return time.Time{}, 0, false, fmt.Errorf("%s does not look like a harvest file (column 2 is %q)", path, header[1])
	}
	end = reader.InputOffset()
	if !endsLine(file, end, info.Size()) {
		return time.Time{}, 0, false, nil
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return time.Time{}, 0, false, fmt.Errorf("failed to read %s: %w", path, err)
			}
			// only the last row may be torn
			if _, next := reader.Read(); !errors.Is(next, io.EOF) {
				return time.Time{}, 0, false, fmt.Errorf("corrupt row in %s: %w", path, err)
			}
			break
		}

		recordEnd := reader.InputOffset()
		if !endsLine(file, recordEnd, info.Size()) {
			break
		}

		created, err := time.Parse(CreatedLayout, record[1])
		if err != nil {
			return time.Time{}, 0, false, fmt.Errorf("bad created_date %q in %s: %w", record[1], path, err)
		}
		if !ok || created.Before(oldest) {
			oldest = created
			ok = true
		}
		end = recordEnd
	}

	return oldest, end, ok, nil
}

// endsLine reports whether the byte before offset is a newline. Offsets
// short of the end of the file always are, since the reader only stops a
// row at a line break there.
func endsLine(file *os.File, offset, size int64) bool {
	if offset < size {
		return true
	}
	if offset == 0 {
		return false
	}
	var last [1]byte
	if _, err := file.ReadAt(last[:], offset-1); err != nil {
		return false
	}
	return last[0] == '\n'
}
