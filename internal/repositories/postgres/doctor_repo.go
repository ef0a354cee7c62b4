package postgres

import (
	"context"
	"errors"

	"github.com/vitalink/teleconsult/internal/models"
	"github.com/vitalink/teleconsult/internal/utils"
	"gorm.io/gorm"
)

type DoctorRepo interface {
	Create(ctx context.Context, d *models.Doctor) error
	GetByID(ctx context.Context, id string) (*models.Doctor, error)
	GetByEmail(ctx context.Context, email string) (*models.Doctor, error)
}

type doctorRepo struct {
	db *gorm.DB
}

func NewDoctorRepo(db *gorm.DB) DoctorRepo {
	return &doctorRepo{db: db}
}

func (r *doctorRepo) Create(ctx context.Context, d *models.Doctor) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *doctorRepo) GetByID(ctx context.Context, id string) (*models.Doctor, error) {
	var row models.Doctor
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *doctorRepo) GetByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	var row models.Doctor
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
