package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/meridian-grc/meridian/modules/compliance/diff"
	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/modules/compliance/presentation/dtos"
	"github.com/meridian-grc/meridian/modules/compliance/services"
	"github.com/meridian-grc/meridian/pkg/application"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/constants"
)

type ReportVersionController struct {
	versions *services.ReportVersionService
	maxBytes int64
}

func NewReportVersionController(app application.Application, maxBytes int64) application.Controller {
	return &ReportVersionController{
		versions: app.Service(services.ReportVersionService{}).(*services.ReportVersionService),
		maxBytes: maxBytes,
	}
}

func (c *ReportVersionController) Key() string {
	return "/api/reports"
}

func (c *ReportVersionController) Register(r *mux.Router) {
	const base = "/api/reports/{reportID}/versions"
	r.HandleFunc(base, instrumentAPI("reports.versions.publish", c.Publish)).Methods(http.MethodPost)
	r.HandleFunc(base, instrumentAPI("reports.versions.list", c.List)).Methods(http.MethodGet)
	r.HandleFunc(base+"/compare", instrumentAPI("reports.versions.compare", c.Compare)).Methods(http.MethodGet)
	r.HandleFunc(base+"/{versionID}", instrumentAPI("reports.versions.get", c.Get)).Methods(http.MethodGet)
	r.HandleFunc(base+"/{versionID}/snapshot", instrumentAPI("reports.versions.snapshot", c.Snapshot)).Methods(http.MethodGet)
}

func (c *ReportVersionController) Publish(w http.ResponseWriter, r *http.Request) {
	if c.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, c.maxBytes)
	}
	var req dtos.PublishVersionRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		if isTooLarge(err) {
			writeAPIError(w, r, http.StatusRequestEntityTooLarge, services.CodeImportTooLarge, "snapshot too large",
				map[string]any{"max_bytes": c.maxBytes})
			return
		}
		writeAPIError(w, r, http.StatusBadRequest, services.CodeReportInvalidSnapshot, "invalid request body", nil)
		return
	}
	if err := constants.Validate.Struct(&req); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, services.CodeReportInvalidSnapshot, "invalid request body", validationMeta(err))
		return
	}

	v, err := c.versions.Publish(r.Context(), services.PublishInput{
		ReportID:    mux.Vars(r)["reportID"],
		Snapshot:    req.Snapshot,
		PublishedBy: req.PublishedBy,
		Note:        req.Note,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (c *ReportVersionController) List(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["reportID"]
	versions, err := c.versions.List(r.Context(), reportID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if versions == nil {
		versions = []domain.ReportVersion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reportId": reportID,
		"versions": versions,
	})
}

// version resolves the {versionID} path variable to a version of the
// {reportID} report, writing a 404 otherwise.
func (c *ReportVersionController) version(w http.ResponseWriter, r *http.Request) (domain.ReportVersion, bool) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["versionID"])
	if err != nil {
		writeAPIError(w, r, http.StatusNotFound, services.CodeReportVersionNotFound, "report version not found",
			map[string]any{"version_id": vars["versionID"]})
		return domain.ReportVersion{}, false
	}
	v, err := c.versions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return domain.ReportVersion{}, false
	}
	if v.ReportID != vars["reportID"] {
		writeAPIError(w, r, http.StatusNotFound, services.CodeReportVersionNotFound, "report version not found",
			map[string]any{"version_id": id.String()})
		return domain.ReportVersion{}, false
	}
	return v, true
}

func (c *ReportVersionController) Get(w http.ResponseWriter, r *http.Request) {
	v, ok := c.version(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Snapshot returns the stored snapshot document unchanged.
func (c *ReportVersionController) Snapshot(w http.ResponseWriter, r *http.Request) {
	v, ok := c.version(w, r)
	if !ok {
		return
	}
	_, data, err := c.versions.Raw(r.Context(), v.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (c *ReportVersionController) Compare(w http.ResponseWriter, r *http.Request) {
	q, err := composables.UseQuery(&dtos.CompareQuery{}, r)
	if err == nil {
		err = constants.Validate.Struct(q)
	}
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, codeInvalidQuery, "base and compare must be version ids", validationMeta(err))
		return
	}

	var opts []diff.Option
	if q.Patch {
		opts = append(opts, diff.WithContentPatch())
	}
	if q.TextEdits != nil && !*q.TextEdits {
		opts = append(opts, diff.WithoutTextEdits())
	}
	cmp, err := c.versions.Compare(r.Context(), mux.Vars(r)["reportID"], uuid.MustParse(q.Base), uuid.MustParse(q.Compare), opts...)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
