package dtos

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ImportRequest is the JSON body of the import endpoints.
type ImportRequest struct {
	CSV     string            `json:"csv" validate:"required"`
	Preview bool              `json:"preview"`
	Mapping map[string]string `json:"mapping"`
}

// ImportForm carries the non-file fields of a multipart upload. Mapping is a
// JSON object of field to header.
type ImportForm struct {
	Preview string `form:"preview"`
	Mapping string `form:"mapping"`
}

func (f ImportForm) IsPreview() bool {
	v, err := strconv.ParseBool(strings.TrimSpace(f.Preview))
	return err == nil && v
}

func (f ImportForm) ParseMapping() (map[string]string, error) {
	if strings.TrimSpace(f.Mapping) == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(f.Mapping), &m); err != nil {
		return nil, err
	}
	return m, nil
}

type TemplateQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv xlsx"`
}

type PublishVersionRequest struct {
	Snapshot    json.RawMessage `json:"snapshot" validate:"required"`
	PublishedBy string          `json:"publishedBy" validate:"omitempty,max=255"`
	Note        string          `json:"note" validate:"omitempty,max=2000"`
}

type CompareQuery struct {
	Base      string `form:"base" validate:"required,uuid"`
	Compare   string `form:"compare" validate:"required,uuid"`
	Patch     bool   `form:"patch"`
	TextEdits *bool  `form:"textEdits"`
}
