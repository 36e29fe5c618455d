package controllers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/meridian-grc/meridian/modules/compliance/importer"
	"github.com/meridian-grc/meridian/modules/compliance/presentation/dtos"
	"github.com/meridian-grc/meridian/modules/compliance/services"
	"github.com/meridian-grc/meridian/pkg/application"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/constants"
	"github.com/meridian-grc/meridian/pkg/delimited"
)

// multipartMemory is how much of a multipart upload is buffered in memory
// before spilling to temporary files.
const multipartMemory = 8 << 20

type ImportController struct {
	imports  *services.ImportService
	maxBytes int64
}

// NewImportController serves the import endpoints. Bodies larger than
// maxBytes are refused with 413; zero disables the limit.
func NewImportController(app application.Application, maxBytes int64) application.Controller {
	return &ImportController{
		imports:  app.Service(services.ImportService{}).(*services.ImportService),
		maxBytes: maxBytes,
	}
}

func (c *ImportController) Key() string {
	return "/api/imports"
}

func (c *ImportController) Register(r *mux.Router) {
	r.HandleFunc("/api/controls/import", instrumentAPI("controls.import", c.handleImport(importer.KindControls))).Methods(http.MethodPost)
	r.HandleFunc("/api/risks/import", instrumentAPI("risks.import", c.handleImport(importer.KindRisks))).Methods(http.MethodPost)
	r.HandleFunc("/api/consumer-duty/measures/import", instrumentAPI("measures.import", c.handleImport(importer.KindMeasures))).Methods(http.MethodPost)
	r.HandleFunc("/api/consumer-duty/mi/import", instrumentAPI("metrics.import", c.handleImport(importer.KindMetrics))).Methods(http.MethodPost)

	r.HandleFunc("/api/imports/{kind}/template", instrumentAPI("imports.template", c.Template)).Methods(http.MethodGet)
}

type importInput struct {
	table   delimited.Table
	preview bool
	mapping map[string]string
}

func (c *ImportController) handleImport(kind importer.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := c.readInput(w, r)
		if !ok {
			return
		}

		v, err := c.imports.Validate(r.Context(), services.ImportRequest{
			Kind:    kind,
			Table:   in.table,
			Mapping: in.mapping,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if in.preview {
			writeJSON(w, http.StatusOK, previewBody(v))
			return
		}
		if !v.Valid {
			body := previewBody(v)
			body["code"] = services.CodeImportValidationFailed
			body["message"] = "validation failed, nothing was imported"
			writeJSON(w, http.StatusBadRequest, body)
			return
		}

		res, err := c.imports.Commit(r.Context(), v)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		body := map[string]any{
			"created":    res.Created,
			"updated":    res.Updated,
			string(kind): res.Items,
		}
		if kind == importer.KindControls {
			body["areasCreated"] = res.AreasCreated
		}
		writeJSON(w, http.StatusCreated, body)
	}
}

func previewBody(v *services.Validation) map[string]any {
	body := map[string]any{
		"kind":         v.Kind,
		"valid":        v.Valid,
		"rowCount":     v.RowCount,
		"errors":       v.Errors,
		"warnings":     v.Warnings,
		"mapping":      v.Mapping,
		string(v.Kind): v.Rows,
	}
	if len(v.Periods) > 0 {
		body["periods"] = v.Periods
	}
	return body
}

// readInput reads a JSON {csv} body or a multipart "file" upload. It writes
// the error response itself and reports false when the body is unusable.
func (c *ImportController) readInput(w http.ResponseWriter, r *http.Request) (importInput, bool) {
	if c.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, c.maxBytes)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return c.readMultipart(w, r)
	}

	var req dtos.ImportRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		c.writeBodyError(w, r, err)
		return importInput{}, false
	}
	if err := constants.Validate.Struct(&req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, services.CodeImportInvalidBody, "csv is required", validationMeta(err))
		return importInput{}, false
	}
	return importInput{
		table:   delimited.ParseTable(req.CSV),
		preview: req.Preview,
		mapping: req.Mapping,
	}, true
}

func (c *ImportController) readMultipart(w http.ResponseWriter, r *http.Request) (importInput, bool) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		c.writeBodyError(w, r, err)
		return importInput{}, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, services.CodeImportInvalidBody, "file is required", nil)
		return importInput{}, false
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		c.writeBodyError(w, r, err)
		return importInput{}, false
	}
	table, err := importer.DecodeUpload(data)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, services.CodeImportInvalidBody, err.Error(), nil)
		return importInput{}, false
	}

	var form dtos.ImportForm
	if err := constants.Decoder.Decode(&form, url.Values(r.MultipartForm.Value)); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, services.CodeImportInvalidBody, "invalid form fields", nil)
		return importInput{}, false
	}
	mapping, err := form.ParseMapping()
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, services.CodeImportInvalidBody, "mapping must be a JSON object of field to header", nil)
		return importInput{}, false
	}
	return importInput{table: table, preview: form.IsPreview(), mapping: mapping}, true
}

func (c *ImportController) writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	if isTooLarge(err) {
		writeAPIError(w, r, http.StatusRequestEntityTooLarge, services.CodeImportTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", c.maxBytes), map[string]any{"max_bytes": c.maxBytes})
		return
	}
	writeAPIError(w, r, http.StatusBadRequest, services.CodeImportInvalidBody, "invalid request body", nil)
}

// Template downloads an empty import sheet for a kind.
func (c *ImportController) Template(w http.ResponseWriter, r *http.Request) {
	kind, err := importer.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		writeAPIError(w, r, http.StatusNotFound, services.CodeNotFound, err.Error(), nil)
		return
	}
	q, err := composables.UseQuery(&dtos.TemplateQuery{}, r)
	if err == nil {
		err = constants.Validate.Struct(q)
	}
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, codeInvalidQuery, "format must be csv or xlsx", validationMeta(err))
		return
	}
	format, err := importer.ParseTemplateFormat(q.Format)
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error(), nil)
		return
	}

	data, err := importer.Template(kind, format, time.Now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-template.%s"`, kind, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
