package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/meridian-grc/meridian/modules/compliance/domain"
	"github.com/meridian-grc/meridian/pkg/composables"
)

const reportVersionColumns = `id, report_id, version, blob_key, size_bytes, published_by, note, published_at`

type ReportVersionRepository struct{}

func NewReportVersionRepository() domain.ReportVersionRepository {
	return &ReportVersionRepository{}
}

// List returns the versions of a report, newest first.
func (r *ReportVersionRepository) List(ctx context.Context, reportID string) ([]domain.ReportVersion, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	versions := []domain.ReportVersion{}
	err = sqlx.SelectContext(ctx, tx, &versions, tx.Rebind(`
		SELECT `+reportVersionColumns+` FROM report_versions
		WHERE report_id = ?
		ORDER BY version DESC`), reportID)
	return versions, wrap(err, "list report versions")
}

func (r *ReportVersionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ReportVersion, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.ReportVersion{}, err
	}
	var v domain.ReportVersion
	err = sqlx.GetContext(ctx, tx, &v, tx.Rebind(`SELECT `+reportVersionColumns+` FROM report_versions WHERE id = ?`), id)
	return v, wrap(err, "get report version")
}

func (r *ReportVersionRepository) MaxVersion(ctx context.Context, reportID string) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = sqlx.GetContext(ctx, tx, &n, tx.Rebind(`SELECT COALESCE(MAX(version), 0) FROM report_versions WHERE report_id = ?`), reportID)
	return n, wrap(err, "max report version")
}

func (r *ReportVersionRepository) Create(ctx context.Context, v domain.ReportVersion) (domain.ReportVersion, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return domain.ReportVersion{}, err
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.PublishedAt.IsZero() {
		v.PublishedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO report_versions (`+reportVersionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		v.ID, v.ReportID, v.Version, v.BlobKey, v.SizeBytes, v.PublishedBy, v.Note, v.PublishedAt,
	)
	if err != nil {
		return domain.ReportVersion{}, wrap(err, "create report version")
	}
	return v, nil
}
