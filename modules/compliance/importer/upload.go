package importer

import (
	"bytes"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/meridian-grc/meridian/pkg/delimited"
)

const (
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeCSV  = "text/csv"
)

var ErrUnsupportedUpload = errors.New("unsupported upload type")

// DecodeUpload turns an uploaded file into a table. Workbooks, and zip
// containers that may be workbooks, are read from their first sheet; any
// text content is parsed as delimited text.
func DecodeUpload(data []byte) (delimited.Table, error) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is(MimeXLSX), m.Is("application/zip"):
			return ReadWorkbook(data)
		case m.Is("text/plain"):
			return delimited.ParseTable(string(data)), nil
		}
	}
	return delimited.Table{}, fmt.Errorf("%w: %s", ErrUnsupportedUpload, mt.String())
}

// ReadWorkbook reads the first sheet of an xlsx workbook.
func ReadWorkbook(data []byte) (delimited.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return delimited.Table{}, errors.Wrap(err, "open workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return delimited.Table{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return delimited.Table{}, errors.Wrapf(err, "read sheet %s", sheets[0])
	}
	return delimited.FromRows(rows), nil
}
