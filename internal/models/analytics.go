package models

import "time"

// WeeklyAnalytics aggregates one doctor's activity per ISO week. Rows are
// upserted at consultation commit time.
type WeeklyAnalytics struct {
	ID                string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DoctorID          string    `gorm:"column:doctor_id;type:uuid;uniqueIndex:uniq_doctor_week" json:"doctor_id"`
	WeekStart         time.Time `gorm:"column:week_start;type:date;uniqueIndex:uniq_doctor_week" json:"week_start"`
	PatientsSeen      int       `gorm:"column:patients_seen" json:"patients_seen"`
	ConsultationHours float64   `gorm:"column:consultation_hours" json:"consultation_hours"`
	Revenue           float64   `gorm:"column:revenue" json:"revenue"`
	UpdatedAt         time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (WeeklyAnalytics) TableName() string { return "weekly_analytics" }

// AnalyticsDelta is one consultation's contribution to the weekly row.
type AnalyticsDelta struct {
	PatientsSeen      int
	ConsultationHours float64
	Revenue           float64
}

// WeekStart truncates t to the Monday of its week, UTC midnight.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}
