package postgres

import (
	"context"
	"errors"

	"github.com/vitalink/teleconsult/internal/models"
	"github.com/vitalink/teleconsult/internal/utils"
	"gorm.io/gorm"
)

type ConsultationRepo interface {
	Create(ctx context.Context, c *models.Consultation) error
	GetByID(ctx context.Context, id string) (*models.Consultation, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Consultation, error)
	LatestByPatient(ctx context.Context, patientID string) (*models.Consultation, error)
}

type consultationRepo struct {
	db *gorm.DB
}

func NewConsultationRepo(db *gorm.DB) ConsultationRepo {
	return &consultationRepo{db: db}
}

func (r *consultationRepo) Create(ctx context.Context, c *models.Consultation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *consultationRepo) GetByID(ctx context.Context, id string) (*models.Consultation, error) {
	var row models.Consultation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *consultationRepo) ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Consultation, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.Consultation
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *consultationRepo) LatestByPatient(ctx context.Context, patientID string) (*models.Consultation, error) {
	var row models.Consultation
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND status = ?", patientID, models.ConsultationCompleted).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
