package postgres

import (
	"context"
	"errors"

	"github.com/vitalink/teleconsult/internal/models"
	"github.com/vitalink/teleconsult/internal/utils"
	"gorm.io/gorm"
)

type PatientRepo interface {
	Create(ctx context.Context, p *models.Patient) error
	GetByID(ctx context.Context, id string) (*models.Patient, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Patient, error)
}

type patientRepo struct {
	db *gorm.DB
}

func NewPatientRepo(db *gorm.DB) PatientRepo {
	return &patientRepo{db: db}
}

func (r *patientRepo) Create(ctx context.Context, p *models.Patient) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (*models.Patient, error) {
	var row models.Patient
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *patientRepo) ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Patient, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []models.Patient
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
