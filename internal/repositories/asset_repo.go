package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adpilot/backend/internal/models"
)

type AssetRepo struct {
	db DB
}

func NewAssetRepo(db DB) *AssetRepo {
	return &AssetRepo{db: db}
}

const assetColumns = `id, project_id, type, state, risk_score, quality_score, platform_compatibility, created_at, updated_at`

func scanAsset(row pgx.Row) (*models.Asset, error) {
	var a models.Asset
	var compat []string
	if err := row.Scan(&a.ID, &a.ProjectID, &a.Type, &a.State, &a.RiskScore, &a.QualityScore, &compat,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.PlatformCompatibility = toPlatforms(compat)
	return &a, nil
}

func (r *AssetRepo) Create(ctx context.Context, a *models.Asset) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO assets (project_id, type, state, platform_compatibility)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, a.ProjectID, a.Type, a.State, fromPlatforms(a.PlatformCompatibility)).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return wrapErr("create asset", err)
}

func (r *AssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Asset, error) {
	a, err := scanAsset(r.db.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err != nil {
		return nil, wrapErr("get asset", err)
	}
	return a, nil
}

func (r *AssetRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Asset, error) {
	rows, err := r.db.Query(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, wrapErr("list assets", err)
	}
	defer rows.Close()

	var out []*models.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, wrapErr("scan asset", err)
		}
		out = append(out, a)
	}
	return out, wrapErr("list assets", rows.Err())
}

// UpdateState moves the asset only if it is still in from.
func (r *AssetRepo) UpdateState(ctx context.Context, id uuid.UUID, from, to models.AssetState) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE assets SET state = $3, updated_at = now()
		WHERE id = $1 AND state = $2
	`, id, from, to)
	if err != nil {
		return wrapErr("update asset state", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}

// ApplyAnalysis stores analyzer output together with the resulting state change.
func (r *AssetRepo) ApplyAnalysis(ctx context.Context, id uuid.UUID, from, to models.AssetState, res models.AnalysisResult) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE assets
		SET state = $3, risk_score = $4, quality_score = $5, platform_compatibility = $6, updated_at = now()
		WHERE id = $1 AND state = $2
	`, id, from, to, res.RiskScore, res.QualityScore, fromPlatforms(res.PlatformCompatibility))
	if err != nil {
		return wrapErr("apply asset analysis", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStateChanged
	}
	return nil
}

func toPlatforms(in []string) []models.Platform {
	out := make([]models.Platform, 0, len(in))
	for _, p := range in {
		out = append(out, models.Platform(p))
	}
	return out
}

func fromPlatforms(in []models.Platform) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, string(p))
	}
	return out
}
