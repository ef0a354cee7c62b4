package postgres

import (
	"context"

	"github.com/pgvector/pgvector-go"
	"github.com/vitalink/teleconsult/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PortalRepo interface {
	Insert(ctx context.Context, m *models.PortalMessage) error
	LatestN(ctx context.Context, patientID string, n int) ([]models.PortalMessage, error)
	SearchSimilar(ctx context.Context, patientID string, embedding []float32, n int) ([]models.PortalMessage, error)
}

type portalRepo struct {
	db *gorm.DB
}

func NewPortalRepo(db *gorm.DB) PortalRepo {
	return &portalRepo{db: db}
}

func (r *portalRepo) Insert(ctx context.Context, m *models.PortalMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *portalRepo) LatestN(ctx context.Context, patientID string, n int) ([]models.PortalMessage, error) {
	if n <= 0 {
		n = 20
	}
	var rows []models.PortalMessage
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("timestamp DESC").
		Limit(n).
		Find(&rows).Error
	return rows, err
}

// SearchSimilar returns the patient's stored messages nearest to the query
// embedding by L2 distance. Rows without an embedding are skipped.
func (r *portalRepo) SearchSimilar(ctx context.Context, patientID string, embedding []float32, n int) ([]models.PortalMessage, error) {
	if n <= 0 {
		n = 5
	}
	var rows []models.PortalMessage
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND embedding IS NOT NULL", patientID).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "embedding <-> ?",
			Vars:               []interface{}{pgvector.NewVector(embedding)},
			WithoutParentheses: true,
		}}).
		Limit(n).
		Find(&rows).Error
	return rows, err
}
