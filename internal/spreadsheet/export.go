package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"luckydraw/internal/models"
)

// Format is an export file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// TimeLayout is how win times are written to exports.
const TimeLayout = "2006-01-02 15:04:05"

const winnersSheet = "Winners"

// ExportHeader is the first row of every export.
var ExportHeader = []string{"Prize Name", "Prize Level", "Employee ID", "Name", "Department", "Win Time"}

// ParseFormat maps a query value to a Format. An empty value means XLSX.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Filename returns the download name for the format.
func (f Format) Filename() string {
	return "Lottery_Winners." + string(f)
}

// exportRow is one winner as written to a file.
type exportRow struct {
	PrizeName  string
	PrizeLevel int
	ID         string
	Name       string
	Department string
	WinTime    string
}

func (r exportRow) values() []string {
	return []string{r.PrizeName, strconv.Itoa(r.PrizeLevel), r.ID, r.Name, r.Department, r.WinTime}
}

func (r exportRow) cells() []interface{} {
	return []interface{}{r.PrizeName, r.PrizeLevel, r.ID, r.Name, r.Department, r.WinTime}
}

// winnerRows joins records with their prizes. Records of a prize that no
// longer exists are labelled Unknown with level 0.
func winnerRows(records []models.WinnerRecord, prizes []models.Prize) []exportRow {
	byID := make(map[string]models.Prize, len(prizes))
	for _, p := range prizes {
		byID[p.ID] = p
	}

	rows := make([]exportRow, 0, len(records))
	for _, r := range records {
		row := exportRow{
			PrizeName:  "Unknown",
			ID:         r.Participant.ID,
			Name:       r.Participant.Name,
			Department: r.Participant.Department,
			WinTime:    r.Timestamp.Local().Format(TimeLayout),
		}
		if p, ok := byID[r.PrizeID]; ok {
			row.PrizeName = p.Name
			row.PrizeLevel = p.Level
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteWinners writes one row per winner record in the requested format.
func WriteWinners(w io.Writer, format Format, records []models.WinnerRecord, prizes []models.Prize) error {
	rows := winnerRows(records, prizes)
	switch format {
	case FormatCSV:
		return writeCSV(w, rows)
	case FormatXLSX:
		return writeXLSX(w, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeCSV(w io.Writer, rows []exportRow) error {
	// Add BOM to ensure UTF-8 compatibility in Excel
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(row.values()); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, rows []exportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), winnersSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]interface{}, len(ExportHeader))
	for i, h := range ExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(winnersSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cells := row.cells()
		if err := f.SetSheetRow(winnersSheet, axis, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
