// Package filesource reads task exports from CSV and Excel files, as
// produced by most trackers' "export to spreadsheet" feature.
package filesource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Afrawles/capledger/internal/capacity"
	"github.com/Afrawles/capledger/internal/report"
	"github.com/xuri/excelize/v2"
)

var ErrNoAssigneeColumn = errors.New("no assignee column in header")

// headerAliases maps lower-cased header names to task fields.
var headerAliases = map[string]string{
	"assignee":     "assignee",
	"owner":        "assignee",
	"assigned to":  "assignee",
	"team":         "team",
	"project":      "team",
	"start":        "start",
	"start date":   "start",
	"start_date":   "start",
	"due":          "due",
	"due date":     "due",
	"due_date":     "due",
	"end":          "due",
	"end date":     "due",
	"created":      "created",
	"created at":   "created",
	"date created": "created",
	"id":           "id",
	"key":          "id",
	"title":        "title",
	"summary":      "title",
	"name":         "title",
}

// FileSource is a report.TaskSource backed by a local export file.
type FileSource struct {
	name string
	path string
	read func() ([][]string, error)
}

var _ report.TaskSource = (*FileSource)(nil)

func NewCSVSource(path string) *FileSource {
	return &FileSource{
		name: "CSV " + filepath.Base(path),
		path: path,
		read: func() ([][]string, error) { return readCSV(path) },
	}
}

// NewXLSXSource reads sheet from an Excel workbook. An empty sheet name
// selects the first sheet.
func NewXLSXSource(path, sheet string) *FileSource {
	return &FileSource{
		name: "Excel " + filepath.Base(path),
		path: path,
		read: func() ([][]string, error) { return readXLSX(path, sheet) },
	}
}

func (s *FileSource) Name() string {
	return s.name
}

func (s *FileSource) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s.path)
	}
	return nil
}

// FetchTasks returns every row of the file. Rows are not filtered by
// window; tasks outside it simply occupy nothing.
func (s *FileSource) FetchTasks(ctx context.Context, window capacity.Window) ([]capacity.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tasks, err := parseRows(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	for i := range tasks {
		tasks[i].Source = s.name
	}
	return tasks, nil
}

func parseRows(rows [][]string) ([]capacity.Task, error) {
	columns := make(map[string]int)
	for i, h := range rows[0] {
		field, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		// first matching column wins
		if _, dup := columns[field]; !dup {
			columns[field] = i
		}
	}
	if _, ok := columns["assignee"]; !ok {
		return nil, ErrNoAssigneeColumn
	}

	cell := func(row []string, field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	tasks := make([]capacity.Task, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blank(row) {
			continue
		}
		id := cell(row, "id")
		if id == "" {
			id = fmt.Sprintf("row %d", n+2)
		}
		tasks = append(tasks, capacity.Task{
			ID:       id,
			Title:    cell(row, "title"),
			Assignee: cell(row, "assignee"),
			Team:     cell(row, "team"),
			Start:    cell(row, "start"),
			Due:      cell(row, "due"),
			Created:  cell(row, "created"),
		})
	}
	return tasks, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 && len(row) > 0 {
			row[0] = strings.TrimPrefix(row[0], "\ufeff")
		}
		rows = append(rows, row)
	}
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	// raw values keep date cells as serial numbers instead of display text
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	convertSerialDates(rows, date1904)
	return rows, nil
}

var dateFields = map[string]bool{"start": true, "due": true, "created": true}

// maxSerial is the Excel serial of 9999-12-31. Larger numbers in a date
// column are epoch milliseconds or yyyymmdd and are left to ParseTimestamp.
const maxSerial = 2958465

// convertSerialDates rewrites Excel date serials in the date columns of
// rows as dates ParseTimestamp understands.
func convertSerialDates(rows [][]string, date1904 bool) {
	if len(rows) == 0 {
		return
	}
	var cols []int
	for i, h := range rows[0] {
		if dateFields[headerAliases[strings.ToLower(strings.TrimSpace(h))]] {
			cols = append(cols, i)
		}
	}
	for _, row := range rows[1:] {
		for _, i := range cols {
			if i >= len(row) {
				continue
			}
			if converted, ok := serialDate(row[i], date1904); ok {
				row[i] = converted
			}
		}
	}
}

func serialDate(value string, date1904 bool) (string, bool) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || serial <= 0 || serial > maxSerial {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return "", false
	}
	if t.Equal(capacity.Midnight(t)) {
		return t.Format(capacity.DateLayout), true
	}
	return t.UTC().Format("2006-01-02T15:04:05"), true
}
