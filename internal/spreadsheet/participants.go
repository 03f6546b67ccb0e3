package spreadsheet

import (
	"strings"

	"github.com/google/logger"
	"github.com/google/uuid"

	"luckydraw/internal/models"
)

// SkipReason explains why a row produced no participant.
type SkipReason string

const (
	SkipShortRow  SkipReason = "short_row"
	SkipBlankName SkipReason = "blank_name"
)

// headerTokens are the cell values that mark the first row as a header.
var headerTokens = map[string]bool{
	"id":          true,
	"name":        true,
	"department":  true,
	"dept":        true,
	"employee id": true,
	"姓名":          true,
	"工号":          true,
	"部门":          true,
}

// headerCells is how many leading cells are checked for header tokens.
const headerCells = 3

// ImportReport is the outcome of reading a participant file.
type ImportReport struct {
	Participants   []models.Participant `json:"participants"`
	HeaderDetected bool                 `json:"headerDetected"`
	Skipped        map[SkipReason]int   `json:"skipped"`
}

// SkippedTotal returns how many rows were skipped for any reason.
func (r *ImportReport) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// IsHeaderRow reports whether one of the row's first cells is a known column title.
func IsHeaderRow(row []string) bool {
	for i := 0; i < len(row) && i < headerCells; i++ {
		if headerTokens[strings.ToLower(strings.TrimSpace(row[i]))] {
			return true
		}
	}
	return false
}

// MapRow converts one row into a participant. Columns are id, name and
// department. A blank id gets a generated token and a blank department the
// default placeholder.
func MapRow(row []string, newID func() string) (models.Participant, SkipReason) {
	if len(row) < 2 {
		return models.Participant{}, SkipShortRow
	}
	name := strings.TrimSpace(row[1])
	if name == "" {
		return models.Participant{}, SkipBlankName
	}

	id := strings.TrimSpace(row[0])
	if id == "" {
		id = newID()
	}
	department := ""
	if len(row) > 2 {
		department = strings.TrimSpace(row[2])
	}
	if department == "" {
		department = models.DefaultDepartment
	}

	return models.Participant{ID: id, Name: name, Department: department}, ""
}

func randomToken() string {
	return uuid.NewString()[:8]
}

// ParseParticipants maps rows to participants, skipping an optional header row.
func ParseParticipants(rows [][]string) *ImportReport {
	report := &ImportReport{
		Participants: make([]models.Participant, 0, len(rows)),
		Skipped:      make(map[SkipReason]int),
	}

	start := 0
	if len(rows) > 0 && IsHeaderRow(rows[0]) {
		report.HeaderDetected = true
		start = 1
	}

	for i := start; i < len(rows); i++ {
		p, reason := MapRow(rows[i], randomToken)
		if reason != "" {
			logger.Infof("Skipping participant row %d (%s): %v", i+1, reason, rows[i])
			report.Skipped[reason]++
			continue
		}
		report.Participants = append(report.Participants, p)
	}
	return report
}

// ReadParticipants picks a parser for filename and parses data. Nothing is
// returned unless the whole file could be read.
func ReadParticipants(factory ParserFactory, filename string, data []byte) (*ImportReport, error) {
	parser, err := factory.GetParser(filename)
	if err != nil {
		return nil, err
	}
	rows, err := parser.Rows(data)
	if err != nil {
		return nil, err
	}
	return ParseParticipants(rows), nil
}
