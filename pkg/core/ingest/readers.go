package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ClaimsSheetName is the worksheet read from xlsx files when present
const ClaimsSheetName = "Claims"

// ReadFile reads a claims table from a .csv or .xlsx file
func ReadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to open claims file: %w", err)
	}
	defer f.Close()

	return Read(filepath.Base(path), f)
}

// Read reads a claims table, choosing the format from the file name.
// Anything that is not .xlsx is read as CSV.
func Read(filename string, r io.Reader) (Table, error) {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return ReadXLSX(r)
	}
	return ReadCSV(r)
}

// ReadCSV reads a claims table from CSV
func ReadCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("error reading file: %w", err)
	}

	return toTable(records)
}

// ReadXLSX reads a claims table from the Claims sheet of a workbook, or its first sheet
func ReadXLSX(r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("error reading file: %w", err)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, fmt.Errorf("error reading file: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("error reading file: workbook has no sheets")
	}
	sheet := sheets[0]
	if slices.Contains(sheets, ClaimsSheetName) {
		sheet = ClaimsSheetName
	}

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("error reading sheet %s: %w", sheet, err)
	}

	return toTable(rows)
}

// FromValues builds a table from spreadsheet values such as a Google Sheets range
func FromValues(values [][]interface{}) (Table, error) {
	records := make([][]string, len(values))
	for i, row := range values {
		records[i] = make([]string, len(row))
		for j, cell := range row {
			records[i][j] = fmt.Sprint(cell)
		}
	}
	return toTable(records)
}

func toTable(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, fmt.Errorf("file is empty")
	}
	return Table{Header: records[0], Rows: records[1:]}, nil
}
