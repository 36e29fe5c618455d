package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/modules/compliance/domain/events"
	"github.com/meridian-grc/meridian/modules/compliance/importer"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/delimited"
	"github.com/meridian-grc/meridian/pkg/eventbus"
	"github.com/meridian-grc/meridian/pkg/refnum"
)

var tracer = otel.Tracer("meridian-compliance")

const (
	controlPrefix = "CTRL-"
	riskPrefix    = "RISK-"

	ActionCreated = "created"
	ActionUpdated = "updated"
)

// ReferenceLoader reads the lookup state a kind validates against.
type ReferenceLoader interface {
	Load(ctx context.Context, kind importer.Kind) (importer.ReferenceSet, error)
}

type ImportRepositories struct {
	Areas        domain.BusinessAreaRepository
	Controls     domain.ControlRepository
	Risks        domain.RiskRepository
	ConsumerDuty domain.ConsumerDutyRepository
}

type ImportService struct {
	loader    ReferenceLoader
	repos     ImportRepositories
	refs      *refnum.Generator
	publisher eventbus.EventBus
	maxRows   int
	now       func() time.Time
}

type ImportOption func(*ImportService)

// WithMaxRows rejects tables with more than n data rows. Zero disables the
// limit.
func WithMaxRows(n int) ImportOption {
	return func(s *ImportService) { s.maxRows = n }
}

func WithImportClock(now func() time.Time) ImportOption {
	return func(s *ImportService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewImportService(
	loader ReferenceLoader,
	repos ImportRepositories,
	refs *refnum.Generator,
	publisher eventbus.EventBus,
	opts ...ImportOption,
) *ImportService {
	s := &ImportService{
		loader:    loader,
		repos:     repos,
		refs:      refs,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ImportRequest struct {
	Kind  importer.Kind
	Table delimited.Table
	// Mapping overrides the auto-detected column for a field, keyed by
	// field name with the source header as value.
	Mapping map[string]string
}

// Preview is the validation outcome returned to callers. Rows holds one
// summary per valid row.
type Preview struct {
	Kind     importer.Kind           `json:"kind"`
	Valid    bool                    `json:"valid"`
	RowCount int                     `json:"rowCount"`
	Errors   []importer.RowError     `json:"errors"`
	Warnings []importer.RowError     `json:"warnings"`
	Mapping  importer.Mapping        `json:"mapping"`
	Periods  []importer.PeriodColumn `json:"periods,omitempty"`
	Rows     []importer.Summary      `json:"rows"`
}

// Validation keeps the typed rows of a validated upload for Commit.
type Validation struct {
	Preview

	controls []importer.ControlRow
	risks    []importer.RiskRow
	measures []importer.MeasureRow
	metrics  []importer.MetricRow
}

type CreatedEntity struct {
	ID        uuid.UUID `json:"id"`
	Reference string    `json:"reference,omitempty"`
	Name      string    `json:"name"`
	Action    string    `json:"action"`
}

type CommitResult struct {
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Items   []CreatedEntity `json:"items"`
	// AreasCreated counts business areas materialized for the import.
	AreasCreated int `json:"areasCreated,omitempty"`
}

func (r *CommitResult) add(e CreatedEntity) {
	if e.Action == ActionUpdated {
		r.Updated++
	} else {
		r.Created++
	}
	r.Items = append(r.Items, e)
}

func newCommitResult() *CommitResult {
	return &CommitResult{Items: []CreatedEntity{}}
}

// Validate maps and validates req without side effects.
func (s *ImportService) Validate(ctx context.Context, req ImportRequest) (*Validation, error) {
	ctx, span := tracer.Start(ctx, "compliance.import.validate")
	defer span.End()
	span.SetAttributes(attribute.String("import.kind", string(req.Kind)))

	catalogue, err := importer.CatalogueFor(req.Kind)
	if err != nil {
		return nil, newServiceError(http.StatusBadRequest, CodeImportInvalidBody, err.Error(), err)
	}
	if len(req.Table.Header) == 0 {
		return nil, newServiceError(http.StatusBadRequest, CodeImportInvalidBody, "input has no header row", nil)
	}
	if n := req.Table.DataRows(); s.maxRows > 0 && n > s.maxRows {
		return nil, newServiceError(
			http.StatusBadRequest, CodeImportInvalidBody,
			fmt.Sprintf("too many rows: %d (max %d)", n, s.maxRows), nil,
		).withMeta("max_rows", s.maxRows)
	}

	mapping := importer.AutoMap(req.Table.Header, catalogue)
	if len(req.Mapping) > 0 {
		mapping, err = mapping.Override(req.Mapping, req.Table.Header, catalogue)
		if err != nil {
			svcErr := newServiceError(http.StatusBadRequest, CodeImportMappingInvalid, "invalid column mapping", err)
			var mErrs importer.MappingErrors
			if errors.As(err, &mErrs) {
				svcErr.withMeta("fields", mErrs)
			}
			return nil, svcErr
		}
	}

	set, err := s.loader.Load(ctx, req.Kind)
	if err != nil {
		span.RecordError(err)
		return nil, newServiceError(http.StatusInternalServerError, CodeInternal, "load reference data", err)
	}
	ref := importer.NewReferenceData(set)

	v := &Validation{}
	switch req.Kind {
	case importer.KindControls:
		report := importer.ValidateControls(req.Table, mapping, ref, s.now())
		v.Preview = previewOf(report, importer.Summaries(report))
		v.controls = report.Entities()
	case importer.KindRisks:
		report := importer.ValidateRisks(req.Table, mapping, ref)
		v.Preview = previewOf(report, importer.Summaries(report))
		v.risks = report.Entities()
	case importer.KindMeasures:
		report := importer.ValidateMeasures(req.Table, mapping, ref)
		v.Preview = previewOf(report, importer.Summaries(report))
		v.measures = report.Entities()
	case importer.KindMetrics:
		report := importer.ValidateMetrics(req.Table, mapping, ref)
		v.Preview = previewOf(report, importer.Summaries(report))
		v.metrics = report.Entities()
	}
	span.SetAttributes(
		attribute.Int("import.rows", v.RowCount),
		attribute.Int("import.errors", len(v.Errors)),
	)
	composables.UseLogger(ctx).WithFields(logrus.Fields{
		"kind":   req.Kind,
		"rows":   v.RowCount,
		"errors": len(v.Errors),
	}).Debug("import validated")
	return v, nil
}

func previewOf[T any](r importer.Report[T], rows []importer.Summary) Preview {
	return Preview{
		Kind:     r.Kind,
		Valid:    r.Valid(),
		RowCount: r.RowCount,
		Errors:   r.Errors,
		Warnings: r.Warnings,
		Mapping:  r.Mapping,
		Periods:  r.Periods,
		Rows:     rows,
	}
}

// Commit writes a valid upload. An invalid one is refused with
// IMPORT_VALIDATION_FAILED and nothing is written.
func (s *ImportService) Commit(ctx context.Context, v *Validation) (*CommitResult, error) {
	if !v.Valid {
		return nil, newServiceError(http.StatusBadRequest, CodeImportValidationFailed, "validation failed", nil).
			withMeta("errors", len(v.Errors))
	}
	ctx, span := tracer.Start(ctx, "compliance.import.commit")
	defer span.End()
	span.SetAttributes(attribute.String("import.kind", string(v.Kind)))

	var res *CommitResult
	var err error
	switch v.Kind {
	case importer.KindControls:
		res, err = s.CommitControls(ctx, v.controls)
	case importer.KindRisks:
		res, err = s.CommitRisks(ctx, v.risks)
	case importer.KindMeasures:
		res, err = s.CommitMeasures(ctx, v.measures)
	case importer.KindMetrics:
		res, err = s.CommitMetrics(ctx, v.metrics)
	default:
		return nil, newServiceError(http.StatusBadRequest, CodeImportInvalidBody, "unknown import kind", nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return res, err
	}

	s.publish(ctx, v, res)
	return res, nil
}

func (s *ImportService) publish(ctx context.Context, v *Validation, res *CommitResult) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(&events.ImportCommittedEvent{
		EventID:      uuid.New(),
		EventVersion: events.EventVersionV1,
		RequestID:    composables.UseRequestID(ctx),
		Kind:         string(v.Kind),
		Rows:         v.RowCount,
		Created:      res.Created,
		Updated:      res.Updated,
		AreasCreated: res.AreasCreated,
		CommittedAt:  s.now().UTC(),
	})
}

// commitRows runs write for each row in its own transaction. A failing row
// stops the import; rows before it stay committed.
func commitRows[T any](ctx context.Context, res *CommitResult, rows []T, write func(context.Context, T) (CreatedEntity, error)) (*CommitResult, error) {
	for i, row := range rows {
		entity, err := composables.InTxResult(ctx, func(txCtx context.Context) (CreatedEntity, error) {
			return write(txCtx, row)
		})
		if err != nil {
			composables.UseLogger(ctx).WithError(err).WithField("index", i).Error("import row commit failed")
			return res, newServiceError(http.StatusInternalServerError, CodeImportCommitFailed, "import commit failed", err).
				withMeta("committed", len(res.Items))
		}
		res.add(entity)
	}
	return res, nil
}

// CommitControls materializes pending business areas, then writes each
// control with its testing schedule and period results.
func (s *ImportService) CommitControls(ctx context.Context, rows []importer.ControlRow) (*CommitResult, error) {
	res := newCommitResult()
	areas, created, err := s.materializeAreas(ctx, rows)
	if err != nil {
		return res, newServiceError(http.StatusInternalServerError, CodeImportCommitFailed, "create business areas", err).
			withMeta("committed", 0)
	}
	res.AreasCreated = created

	return commitRows(ctx, res, rows, func(ctx context.Context, row importer.ControlRow) (CreatedEntity, error) {
		areaID := row.BusinessArea.ID
		if row.BusinessArea.Pending {
			areaID = areas[foldName(row.BusinessArea.Name)]
		}
		control, action, err := s.saveControl(ctx, row, areaID)
		if err != nil {
			return CreatedEntity{}, err
		}
		if row.Testing != nil {
			schedule, err := s.repos.Controls.SaveSchedule(ctx, domain.TestingSchedule{
				ControlID: control.ID,
				Frequency: row.Testing.Frequency,
				TesterID:  row.Testing.TesterID,
				Summary:   row.Testing.Summary,
			})
			if err != nil {
				return CreatedEntity{}, err
			}
			now := s.now()
			for _, pr := range row.Results {
				_, err := s.repos.Controls.UpsertResult(ctx, domain.TestResult{
					ScheduleID:  schedule.ID,
					Year:        pr.Year,
					Month:       pr.Month,
					Result:      pr.Result,
					Notes:       pr.Notes,
					IsBackdated: domain.IsBackdated(pr.Year, pr.Month, now),
					TestedAt:    now.UTC(),
				})
				if err != nil {
					return CreatedEntity{}, err
				}
			}
		}
		return CreatedEntity{ID: control.ID, Reference: control.Reference, Name: control.Name, Action: action}, nil
	})
}

func (s *ImportService) saveControl(ctx context.Context, row importer.ControlRow, areaID uuid.UUID) (domain.Control, string, error) {
	c := domain.Control{
		Name:             row.Name,
		Description:      row.Description,
		BusinessAreaID:   areaID,
		OwnerID:          row.OwnerID,
		Outcome:          row.Outcome,
		Frequency:        row.Frequency,
		Sourcing:         row.Sourcing,
		ControlType:      row.ControlType,
		StandingComments: row.StandingComments,
	}
	if row.ExistingID != nil {
		c.ID = *row.ExistingID
		updated, err := s.repos.Controls.Update(ctx, c)
		return updated, ActionUpdated, err
	}
	ref, err := s.refs.Next(ctx, controlPrefix, "control")
	if err != nil {
		return domain.Control{}, "", err
	}
	c.Reference = ref
	created, err := s.repos.Controls.Create(ctx, c)
	return created, ActionCreated, err
}

// materializeAreas creates each distinct pending area once, in order of
// first appearance, with sort orders after the existing ones. A name taken
// concurrently is re-read on a second pass.
func (s *ImportService) materializeAreas(ctx context.Context, rows []importer.ControlRow) (map[string]uuid.UUID, int, error) {
	var names []string
	seen := map[string]bool{}
	for _, row := range rows {
		if !row.BusinessArea.Pending {
			continue
		}
		key := foldName(row.BusinessArea.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, strings.TrimSpace(row.BusinessArea.Name))
	}
	if len(names) == 0 {
		return map[string]uuid.UUID{}, 0, nil
	}

	type outcome struct {
		ids     map[string]uuid.UUID
		created int
	}
	attempt := func(txCtx context.Context) (outcome, error) {
		out := outcome{ids: make(map[string]uuid.UUID, len(names))}
		order, err := s.repos.Areas.MaxSortOrder(txCtx)
		if err != nil {
			return out, err
		}
		for _, name := range names {
			existing, err := s.repos.Areas.GetByName(txCtx, name)
			if err == nil {
				out.ids[foldName(name)] = existing.ID
				continue
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return out, err
			}
			order++
			area, err := s.repos.Areas.Create(txCtx, domain.BusinessArea{Name: name, SortOrder: order})
			if err != nil {
				return out, err
			}
			out.ids[foldName(name)] = area.ID
			out.created++
		}
		return out, nil
	}

	out, err := composables.InTxResult(ctx, attempt)
	if errors.Is(err, domain.ErrDuplicate) {
		composables.UseLogger(ctx).WithError(err).Warn("business area created concurrently, re-reading")
		out, err = composables.InTxResult(ctx, attempt)
	}
	if err != nil {
		return nil, 0, err
	}
	return out.ids, out.created, nil
}

func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CommitRisks creates risks with RISK- references, or updates the risk a
// row's reference resolved to.
func (s *ImportService) CommitRisks(ctx context.Context, rows []importer.RiskRow) (*CommitResult, error) {
	return commitRows(ctx, newCommitResult(), rows, func(ctx context.Context, row importer.RiskRow) (CreatedEntity, error) {
		r := domain.Risk{
			Name:               row.Name,
			Description:        row.Description,
			Category:           row.Category,
			SubCategory:        row.SubCategory,
			OwnerID:            row.OwnerID,
			InherentLikelihood: row.InherentLikelihood,
			InherentImpact:     row.InherentImpact,
			ResidualLikelihood: row.ResidualLikelihood,
			ResidualImpact:     row.ResidualImpact,
			Direction:          row.Direction,
		}
		if row.ExistingID != nil {
			r.ID = *row.ExistingID
			updated, err := s.repos.Risks.Update(ctx, r)
			if err != nil {
				return CreatedEntity{}, err
			}
			return CreatedEntity{ID: updated.ID, Reference: updated.Reference, Name: updated.Name, Action: ActionUpdated}, nil
		}
		ref, err := s.refs.Next(ctx, riskPrefix, "risk")
		if err != nil {
			return CreatedEntity{}, err
		}
		r.Reference = ref
		created, err := s.repos.Risks.Create(ctx, r)
		if err != nil {
			return CreatedEntity{}, err
		}
		return CreatedEntity{ID: created.ID, Reference: created.Reference, Name: created.Name, Action: ActionCreated}, nil
	})
}

// CommitMeasures upserts measures by (outcome, measure id).
func (s *ImportService) CommitMeasures(ctx context.Context, rows []importer.MeasureRow) (*CommitResult, error) {
	return commitRows(ctx, newCommitResult(), rows, func(ctx context.Context, row importer.MeasureRow) (CreatedEntity, error) {
		m := domain.ConsumerDutyMeasure{
			OutcomeID: row.OutcomeID,
			MeasureID: row.MeasureID,
			Name:      row.Name,
			Owner:     row.Owner,
			Summary:   row.Description,
			RAGStatus: row.RAGStatus,
		}
		action := ActionCreated
		if row.ExistingID != nil {
			m.ID = *row.ExistingID
			action = ActionUpdated
		}
		saved, err := s.repos.ConsumerDuty.UpsertMeasure(ctx, m)
		if err != nil {
			return CreatedEntity{}, err
		}
		return CreatedEntity{ID: saved.ID, Reference: saved.MeasureID, Name: saved.Name, Action: action}, nil
	})
}

// CommitMetrics upserts MI metrics by (measure, metric).
func (s *ImportService) CommitMetrics(ctx context.Context, rows []importer.MetricRow) (*CommitResult, error) {
	return commitRows(ctx, newCommitResult(), rows, func(ctx context.Context, row importer.MetricRow) (CreatedEntity, error) {
		m := domain.ConsumerDutyMetric{
			MeasureID:    row.MeasureID,
			Metric:       row.Metric,
			CurrentValue: row.CurrentValue,
			TargetValue:  row.TargetValue,
			RAGStatus:    row.RAGStatus,
		}
		action := ActionCreated
		if row.ExistingID != nil {
			m.ID = *row.ExistingID
			action = ActionUpdated
		}
		saved, err := s.repos.ConsumerDuty.UpsertMetric(ctx, m)
		if err != nil {
			return CreatedEntity{}, err
		}
		return CreatedEntity{ID: saved.ID, Reference: row.MeasureRef, Name: saved.Metric, Action: action}, nil
	})
}
