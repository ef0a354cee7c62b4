package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vitalink/teleconsult/internal/models"
	"github.com/vitalink/teleconsult/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnalyticsRepo interface {
	UpsertWeek(ctx context.Context, doctorID string, weekStart time.Time, delta models.AnalyticsDelta) error
	GetWeek(ctx context.Context, doctorID string, weekStart time.Time) (*models.WeeklyAnalytics, error)
}

type analyticsRepo struct {
	db *gorm.DB
}

func NewAnalyticsRepo(db *gorm.DB) AnalyticsRepo {
	return &analyticsRepo{db: db}
}

func (r *analyticsRepo) UpsertWeek(ctx context.Context, doctorID string, weekStart time.Time, delta models.AnalyticsDelta) error {
	row := &models.WeeklyAnalytics{
		ID:                uuid.NewString(),
		DoctorID:          doctorID,
		WeekStart:         weekStart,
		PatientsSeen:      delta.PatientsSeen,
		ConsultationHours: delta.ConsultationHours,
		Revenue:           delta.Revenue,
		UpdatedAt:         time.Now().UTC(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "doctor_id"}, {Name: "week_start"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"patients_seen":      gorm.Expr("weekly_analytics.patients_seen + ?", delta.PatientsSeen),
			"consultation_hours": gorm.Expr("weekly_analytics.consultation_hours + ?", delta.ConsultationHours),
			"revenue":            gorm.Expr("weekly_analytics.revenue + ?", delta.Revenue),
			"updated_at":         time.Now().UTC(),
		}),
	}).Create(row).Error
}

func (r *analyticsRepo) GetWeek(ctx context.Context, doctorID string, weekStart time.Time) (*models.WeeklyAnalytics, error) {
	var row models.WeeklyAnalytics
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND week_start = ?", doctorID, weekStart).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
