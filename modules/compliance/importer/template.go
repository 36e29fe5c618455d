package importer

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/meridian-grc/meridian/pkg/delimited"
)

type TemplateFormat string

const (
	FormatCSV  TemplateFormat = "csv"
	FormatXLSX TemplateFormat = "xlsx"
)

func ParseTemplateFormat(s string) (TemplateFormat, error) {
	switch TemplateFormat(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown template format %q", s)
}

func (f TemplateFormat) ContentType() string {
	if f == FormatXLSX {
		return MimeXLSX
	}
	return MimeCSV + "; charset=utf-8"
}

// TemplateRows returns the header and example row for kind. Controls
// templates carry one result/notes pair for the month before now.
func TemplateRows(kind Kind, now time.Time) ([][]string, error) {
	c, err := CatalogueFor(kind)
	if err != nil {
		return nil, err
	}
	header := c.Labels()
	example := make([]string, len(c))
	for i, spec := range c {
		example[i] = spec.Example
	}
	if kind == KindControls {
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		period := PeriodColumn{Year: prev.Year(), Month: int(prev.Month())}
		header = append(header, period.ResultField(), period.NotesField())
		example = append(example, "PARTIALLY", "Two of ten samples lacked a final response letter")
	}
	return [][]string{header, example}, nil
}

// Template renders a downloadable import template.
func Template(kind Kind, format TemplateFormat, now time.Time) ([]byte, error) {
	rows, err := TemplateRows(kind, now)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return []byte(delimited.Format(rows, delimited.Comma) + "\n"), nil
	case FormatXLSX:
		return workbook(string(kind), rows)
	}
	return nil, fmt.Errorf("unknown template format %q", format)
}

func workbook(sheet string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, errors.Wrap(err, "rename sheet")
	}
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, errors.Wrap(err, "write row")
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "header style")
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return nil, errors.Wrap(err, "apply header style")
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "encode workbook")
	}
	return buf.Bytes(), nil
}
