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

const doctorCacheTTL = 10 * time.Minute

type DoctorService interface {
	Register(ctx context.Context, email, password, fullName, specialty string) (*models.Doctor, error)
	Login(ctx context.Context, email, password string) (token string, doctor *models.Doctor, err error)
	Get(ctx context.Context, id string) (*models.Doctor, error)
	WeeklyStats(ctx context.Context, doctorID string, week time.Time) (*models.WeeklyAnalytics, error)
}

type doctorService struct {
	doctors   pgrepo.DoctorRepo
	analytics pgrepo.AnalyticsRepo
	cache     cache.Cache
}

func NewDoctorService(doctors pgrepo.DoctorRepo, analytics pgrepo.AnalyticsRepo, c cache.Cache) DoctorService {
	return &doctorService{doctors: doctors, analytics: analytics, cache: c}
}

func (s *doctorService) Register(ctx context.Context, email, password, fullName, specialty string) (*models.Doctor, error) {
	const op = "DoctorService.Register"

	if email == "" || password == "" || fullName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email, password, and full_name are required", nil)
	}

	if _, err := s.doctors.GetByEmail(ctx, email); err == nil {
		return nil, utils.E(utils.CodeConflict, op, "email already registered", nil)
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to check email", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	doctor := &models.Doctor{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Specialty:    specialty,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create doctor", err)
	}
	return doctor, nil
}

func (s *doctorService) Login(ctx context.Context, email, password string) (string, *models.Doctor, error) {
	const op = "DoctorService.Login"

	if email == "" || password == "" {
		return "", nil, utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}

	doctor, err := s.doctors.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return "", nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
		}
		return "", nil, utils.E(utils.CodeInternal, op, "failed to load doctor", err)
	}

	if err := utils.CheckPassword(doctor.PasswordHash, password); err != nil {
		return "", nil, utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", nil, utils.E(utils.CodeInternal, op, "JWT_SECRET is not set", nil)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  doctor.ID,
		"role": "doctor",
		"iat":  now.Unix(),
		"exp":  now.Add(12 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, utils.E(utils.CodeInternal, op, "failed to sign token", err)
	}
	return token, doctor, nil
}

func (s *doctorService) Get(ctx context.Context, id string) (*models.Doctor, error) {
	const op = "DoctorService.Get"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}

	key := "doctor:" + id
	if s.cache != nil {
		var cached models.Doctor
		if hit, _ := s.cache.GetJSON(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	doctor, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "doctor not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load doctor", err)
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, doctor, doctorCacheTTL)
	}
	return doctor, nil
}

func (s *doctorService) WeeklyStats(ctx context.Context, doctorID string, week time.Time) (*models.WeeklyAnalytics, error) {
	const op = "DoctorService.WeeklyStats"

	if doctorID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "doctor_id is required", nil)
	}

	weekStart := models.WeekStart(week)
	stats, err := s.analytics.GetWeek(ctx, doctorID, weekStart)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			// An empty week is a zero row, not an error.
			return &models.WeeklyAnalytics{DoctorID: doctorID, WeekStart: weekStart}, nil
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load analytics", err)
	}
	return stats, nil
}
