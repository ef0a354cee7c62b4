package services

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vitalink/teleconsult/internal/cache"
	"github.com/vitalink/teleconsult/internal/models"
	pgrepo "github.com/vitalink/teleconsult/internal/repositories/postgres"
	"github.com/vitalink/teleconsult/internal/utils"
)

const patientCacheTTL = 10 * time.Minute

type PatientService interface {
	Create(ctx context.Context, doctorID, fullName, phone, email string, dob *time.Time) (*models.Patient, error)
	Get(ctx context.Context, id string) (*models.Patient, error)
	ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Patient, error)
	PortalToken(ctx context.Context, doctorID, patientID string) (string, error)
}

type patientService struct {
	patients pgrepo.PatientRepo
	cache    cache.Cache
}

func NewPatientService(patients pgrepo.PatientRepo, c cache.Cache) PatientService {
	return &patientService{patients: patients, cache: c}
}

func (s *patientService) Create(ctx context.Context, doctorID, fullName, phone, email string, dob *time.Time) (*models.Patient, error) {
	const op = "PatientService.Create"

	if doctorID == "" || fullName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "doctor_id and full_name are required", nil)
	}

	patient := &models.Patient{
		ID:          uuid.NewString(),
		DoctorID:    doctorID,
		FullName:    fullName,
		Phone:       phone,
		Email:       email,
		DateOfBirth: dob,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create patient", err)
	}
	return patient, nil
}

func (s *patientService) Get(ctx context.Context, id string) (*models.Patient, error) {
	const op = "PatientService.Get"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}

	key := "patient:" + id
	if s.cache != nil {
		var cached models.Patient
		if hit, _ := s.cache.GetJSON(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	patient, err := s.patients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "patient not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load patient", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, patient, patientCacheTTL)
	}
	return patient, nil
}

// PortalToken mints a patient-role access token for the portal chat. Only
// the treating doctor can issue one; delivery to the patient (link, QR) is
// the client's concern.
func (s *patientService) PortalToken(ctx context.Context, doctorID, patientID string) (string, error) {
	const op = "PatientService.PortalToken"

	patient, err := s.Get(ctx, patientID)
	if err != nil {
		return "", err
	}
	if patient.DoctorID != doctorID {
		return "", utils.E(utils.CodeForbidden, op, "patient belongs to another doctor", nil)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", utils.E(utils.CodeInternal, op, "JWT_SECRET is not set", nil)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  patient.ID,
		"role": "patient",
		"iat":  now.Unix(),
		"exp":  now.Add(30 * 24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to sign token", err)
	}
	return token, nil
}

func (s *patientService) ListByDoctor(ctx context.Context, doctorID string, limit int) ([]models.Patient, error) {
	const op = "PatientService.ListByDoctor"

	if doctorID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "doctor_id is required", nil)
	}

	rows, err := s.patients.ListByDoctor(ctx, doctorID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list patients", err)
	}
	return rows, nil
}
