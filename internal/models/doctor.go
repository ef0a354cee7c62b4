package models

import "time"

type Doctor struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"column:email;type:text;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;type:text" json:"-"`
	FullName     string    `gorm:"column:full_name;type:text" json:"full_name"`
	Specialty    string    `gorm:"column:specialty;type:text" json:"specialty"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Doctor) TableName() string { return "doctors" }
