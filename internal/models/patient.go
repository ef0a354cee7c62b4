package models

import "time"

type Patient struct {
	ID          string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	DoctorID    string     `gorm:"column:doctor_id;type:uuid;index" json:"doctor_id"`
	FullName    string     `gorm:"column:full_name;type:text" json:"full_name"`
	Phone       string     `gorm:"column:phone;type:text" json:"phone"` // E.164, used for WhatsApp delivery
	Email       string     `gorm:"column:email;type:text" json:"email"`
	DateOfBirth *time.Time `gorm:"column:date_of_birth;type:date" json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Patient) TableName() string { return "patients" }
