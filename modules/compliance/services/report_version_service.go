package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/wI2L/jsondiff"
	"go.opentelemetry.io/otel/attribute"

	"github.com/meridian-grc/meridian/modules/compliance/diff"
	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/modules/compliance/domain/events"
	"github.com/meridian-grc/meridian/pkg/blob"
	"github.com/meridian-grc/meridian/pkg/composables"
	"github.com/meridian-grc/meridian/pkg/eventbus"
)

const (
	snapshotContentType = "application/json"
	// maxOrphanSkips bounds how many versions a publish steps over when their
	// blob keys are already occupied by snapshots without a version row.
	maxOrphanSkips = 16
)

// ReportVersionService publishes immutable report snapshots and compares
// them.
type ReportVersionService struct {
	repo      domain.ReportVersionRepository
	blobs     blob.Store
	publisher eventbus.EventBus
	now       func() time.Time
}

func NewReportVersionService(repo domain.ReportVersionRepository, blobs blob.Store, publisher eventbus.EventBus) *ReportVersionService {
	return &ReportVersionService{repo: repo, blobs: blobs, publisher: publisher, now: time.Now}
}

type PublishInput struct {
	ReportID    string
	Snapshot    json.RawMessage
	PublishedBy string
	Note        string
}

// BlobKey is where version v of a report's snapshot is stored.
func BlobKey(reportID string, version int) string {
	return fmt.Sprintf("reports/%s/v%d.json", reportID, version)
}

// Publish stores the snapshot under the next version number. A version
// number taken by a concurrent publish is retried once.
func (s *ReportVersionService) Publish(ctx context.Context, in PublishInput) (domain.ReportVersion, error) {
	ctx, span := tracer.Start(ctx, "compliance.report_version.publish")
	defer span.End()

	in.ReportID = strings.TrimSpace(in.ReportID)
	if in.ReportID == "" || strings.ContainsAny(in.ReportID, `/\`) || strings.Contains(in.ReportID, "..") {
		return domain.ReportVersion{}, newServiceError(http.StatusBadRequest, CodeReportInvalidSnapshot, "invalid report id", nil)
	}
	span.SetAttributes(attribute.String("report.id", in.ReportID))

	body, err := canonicalSnapshot(in.Snapshot)
	if err != nil {
		return domain.ReportVersion{}, newServiceError(http.StatusBadRequest, CodeReportInvalidSnapshot, "snapshot must be a JSON object", err)
	}

	var v domain.ReportVersion
	for attempt := 0; attempt < 2; attempt++ {
		v, err = s.publishOnce(ctx, in, body)
		if !errors.Is(err, domain.ErrDuplicate) && !errors.Is(err, blob.ErrExists) {
			break
		}
		composables.UseLogger(ctx).WithError(err).Warn("report version taken, retrying")
	}
	if err != nil {
		span.RecordError(err)
		return domain.ReportVersion{}, err
	}

	if s.publisher != nil {
		s.publisher.Publish(&events.ReportVersionPublishedEvent{
			EventID:      uuid.New(),
			EventVersion: events.EventVersionV1,
			RequestID:    composables.UseRequestID(ctx),
			ReportID:     v.ReportID,
			VersionID:    v.ID,
			Version:      v.Version,
			PublishedAt:  v.PublishedAt,
		})
	}
	return v, nil
}

func (s *ReportVersionService) publishOnce(ctx context.Context, in PublishInput, body []byte) (domain.ReportVersion, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (domain.ReportVersion, error) {
		latest, err := s.repo.MaxVersion(txCtx, in.ReportID)
		if err != nil {
			return domain.ReportVersion{}, err
		}
		v := domain.ReportVersion{
			ReportID:    in.ReportID,
			SizeBytes:   int64(len(body)),
			PublishedBy: strings.TrimSpace(in.PublishedBy),
			Note:        strings.TrimSpace(in.Note),
			PublishedAt: s.now().UTC(),
		}
		for skipped := 0; ; skipped++ {
			v.Version = latest + 1 + skipped
			v.BlobKey = BlobKey(in.ReportID, v.Version)
			err := s.blobs.Put(txCtx, v.BlobKey, body, snapshotContentType)
			if err == nil {
				break
			}
			if !errors.Is(err, blob.ErrExists) || skipped >= maxOrphanSkips {
				return domain.ReportVersion{}, err
			}
			composables.UseLogger(ctx).WithField("key", v.BlobKey).Warn("snapshot blob already exists, skipping version")
		}
		created, err := s.repo.Create(txCtx, v)
		if err != nil {
			if delErr := s.blobs.Delete(ctx, v.BlobKey); delErr != nil {
				composables.UseLogger(ctx).WithError(delErr).WithField("key", v.BlobKey).Warn("orphaned snapshot blob")
			}
			return domain.ReportVersion{}, err
		}
		return created, nil
	})
}

// canonicalSnapshot checks raw is a snapshot object and re-encodes it with
// its key order intact.
func canonicalSnapshot(raw json.RawMessage) ([]byte, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("snapshot is not a JSON object")
	}
	obj, err := domain.ParseObject(raw)
	if err != nil {
		return nil, err
	}
	if _, err := domain.ParseSnapshot(raw); err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

func (s *ReportVersionService) List(ctx context.Context, reportID string) ([]domain.ReportVersion, error) {
	return s.repo.List(ctx, reportID)
}

func (s *ReportVersionService) Get(ctx context.Context, id uuid.UUID) (domain.ReportVersion, error) {
	v, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return v, newServiceError(http.StatusNotFound, CodeReportVersionNotFound, "report version not found", err).
			withMeta("version_id", id.String())
	}
	return v, err
}

// Raw returns the stored snapshot bytes of a version.
func (s *ReportVersionService) Raw(ctx context.Context, id uuid.UUID) (domain.ReportVersion, []byte, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return v, nil, err
	}
	data, err := s.blobs.Get(ctx, v.BlobKey)
	if errors.Is(err, blob.ErrNotFound) {
		return v, nil, newServiceError(http.StatusNotFound, CodeReportVersionNotFound, "snapshot content missing", err).
			withMeta("version_id", id.String())
	}
	return v, data, err
}

func (s *ReportVersionService) Snapshot(ctx context.Context, id uuid.UUID) (domain.Snapshot, error) {
	_, data, err := s.Raw(ctx, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap, err := domain.ParseSnapshot(data)
	if err != nil {
		return domain.Snapshot{}, newServiceError(http.StatusUnprocessableEntity, CodeReportInvalidSnapshot, "stored snapshot is not valid JSON", err)
	}
	return snap, nil
}

type VersionComparison struct {
	Base    domain.ReportVersion `json:"base"`
	Compare domain.ReportVersion `json:"compare"`
	diff.Result
}

// Compare diffs two versions of reportID. Versions belonging to another
// report are rejected with REPORT_VERSION_MISMATCH.
func (s *ReportVersionService) Compare(ctx context.Context, reportID string, baseID, compareID uuid.UUID, opts ...diff.Option) (*VersionComparison, error) {
	ctx, span := tracer.Start(ctx, "compliance.report_version.compare")
	defer span.End()

	base, err := s.Get(ctx, baseID)
	if err != nil {
		return nil, err
	}
	compare, err := s.Get(ctx, compareID)
	if err != nil {
		return nil, err
	}
	if base.ReportID != compare.ReportID || (reportID != "" && base.ReportID != reportID) {
		return nil, newServiceError(http.StatusUnprocessableEntity, CodeReportVersionMismatch, "versions belong to different reports", nil).
			withMeta("base_report_id", base.ReportID).
			withMeta("compare_report_id", compare.ReportID)
	}

	baseSnap, err := s.Snapshot(ctx, baseID)
	if err != nil {
		return nil, err
	}
	compareSnap, err := s.Snapshot(ctx, compareID)
	if err != nil {
		return nil, err
	}
	return &VersionComparison{
		Base:    base,
		Compare: compare,
		Result:  diff.Compare(baseSnap, compareSnap, opts...),
	}, nil
}

// Reconstruct applies a content patch produced by a comparison to the base
// version's section content, returning the patched content.
func (s *ReportVersionService) Reconstruct(ctx context.Context, baseID uuid.UUID, sectionID string, patch jsondiff.Patch) (domain.Object, error) {
	snap, err := s.Snapshot(ctx, baseID)
	if err != nil {
		return domain.Object{}, err
	}
	for _, section := range snap.Sections {
		if section.ID != sectionID {
			continue
		}
		return ApplyContentPatch(section.Content, patch)
	}
	return domain.Object{}, newServiceError(http.StatusNotFound, CodeReportVersionNotFound, "section not found in base version", nil).
		withMeta("section_id", sectionID)
}

// ApplyContentPatch applies an RFC 6902 patch to section content.
func ApplyContentPatch(content domain.Object, patch jsondiff.Patch) (domain.Object, error) {
	doc, err := json.Marshal(content)
	if err != nil {
		return domain.Object{}, err
	}
	rawPatch, err := json.Marshal(patch)
	if err != nil {
		return domain.Object{}, err
	}
	decoded, err := jsonpatch.DecodePatch(rawPatch)
	if err != nil {
		return domain.Object{}, newServiceError(http.StatusBadRequest, CodeReportInvalidSnapshot, "invalid patch", err)
	}
	out, err := decoded.Apply(doc)
	if err != nil {
		return domain.Object{}, newServiceError(http.StatusUnprocessableEntity, CodeReportInvalidSnapshot, "patch does not apply", err)
	}
	return domain.ParseObject(out)
}
