package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/vitalink/teleconsult/config"
	"github.com/vitalink/teleconsult/internal/api/handlers"
	"github.com/vitalink/teleconsult/internal/api/middleware"
	"github.com/vitalink/teleconsult/internal/api/routes"
	"github.com/vitalink/teleconsult/internal/cache"
	"github.com/vitalink/teleconsult/internal/logger"
	"github.com/vitalink/teleconsult/internal/models"
	"github.com/vitalink/teleconsult/internal/notify"
	"github.com/vitalink/teleconsult/internal/providers/ai"
	"github.com/vitalink/teleconsult/internal/providers/stt"
	"github.com/vitalink/teleconsult/internal/providers/tts"
	mongorepo "github.com/vitalink/teleconsult/internal/repositories/mongo"
	pgrepo "github.com/vitalink/teleconsult/internal/repositories/postgres"
	"github.com/vitalink/teleconsult/internal/services"
	"github.com/vitalink/teleconsult/internal/session"
	"github.com/vitalink/teleconsult/internal/storage"
	"github.com/vitalink/teleconsult/internal/workers"
)

func main() {
	_ = godotenv.Load()

	appLog := logger.New()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	fmt.Println("MongoDB connected")

	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	fmt.Println("PostgreSQL connected")

	if err := config.PostgresDB.AutoMigrate(
		&models.Doctor{},
		&models.Patient{},
		&models.Consultation{},
		&models.WeeklyAnalytics{},
		&models.PortalMessage{},
	); err != nil {
		log.Fatalf("PostgreSQL migrate error: %v", err)
	}

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	fmt.Println("Redis connected")

	ctx := context.Background()

	// AI providers
	gemini, err := ai.NewVertexGemini(ctx,
		os.Getenv("VERTEX_PROJECT_ID"),
		getenv("VERTEX_LOCATION", "us-central1"),
		getenv("VERTEX_MODEL", "gemini-1.5-flash"),
	)
	if err != nil {
		log.Fatalf("Vertex AI init error: %v", err)
	}

	var embedder ai.EmbeddingService
	if emb, err := ai.NewVertexEmbedder(ctx,
		os.Getenv("VERTEX_PROJECT_ID"),
		getenv("VERTEX_LOCATION", "us-central1"),
		getenv("VERTEX_EMBED_MODEL", "text-embedding-004"),
	); err != nil {
		appLog.WithError(err).Warn("Vertex embedder unavailable, portal recall disabled")
	} else {
		embedder = emb
	}

	speech, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.Fatalf("Google Speech init error: %v", err)
	}

	// Optional providers: audio storage, voice replies, WhatsApp summaries
	var uploader storage.Uploader
	var signer storage.Signer
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, bucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		uploader = gcs
		signer = gcs
	}

	var voice tts.Provider
	if base := os.Getenv("TTS_BASE_URL"); base != "" {
		voice = tts.NewHTTPClient(base)
	}

	var notifier notify.Notifier
	if apiURL := os.Getenv("WHATSAPP_API_URL"); apiURL != "" {
		notifier = notify.NewWhatsAppClient(apiURL, os.Getenv("WHATSAPP_TOKEN"))
	}

	// Repositories
	doctorRepo := pgrepo.NewDoctorRepo(config.PostgresDB)
	patientRepo := pgrepo.NewPatientRepo(config.PostgresDB)
	consultationRepo := pgrepo.NewConsultationRepo(config.PostgresDB)
	analyticsRepo := pgrepo.NewAnalyticsRepo(config.PostgresDB)
	portalRepo := pgrepo.NewPortalRepo(config.PostgresDB)

	mongoDB := config.MongoClient.Database(getenv("MONGO_DB", "teleconsult"))
	transcriptRepo := mongorepo.NewTranscriptRepo(mongoDB)

	// Session core
	registry := session.NewRegistry()
	insightGen := session.NewInsightGenerator(gemini, appLog)
	synthesizer := session.NewReportSynthesizer(gemini, appLog)
	committer := session.NewCommitter(consultationRepo, analyticsRepo, appLog)

	// Services
	redisCache := cache.NewRedisCache(config.RedisClient)
	doctorSvc := services.NewDoctorService(doctorRepo, analyticsRepo, redisCache)
	patientSvc := services.NewPatientService(patientRepo, redisCache)
	portalSvc := services.NewPortalService(portalRepo, consultationRepo, gemini, embedder, voice, appLog)
	consultSvc := services.NewConsultService(services.ConsultDeps{
		Registry:    registry,
		Insights:    insightGen,
		Synthesizer: synthesizer,
		Committer:   committer,
		Patients:    patientRepo,
		Transcripts: transcriptRepo,
		Redis:       config.RedisClient,
		Notifier:    notifier,
		Logger:      appLog,
	})

	// Audio pipeline workers
	pool := &workers.AudioWorkerPool{
		Redis:    config.RedisClient,
		Consults: consultSvc,
		STT:      speech,
		Uploader: uploader,
		Logger:   appLog,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("audio worker init error: %v", err)
	}
	fmt.Println("Audio workers started")

	// Start Gin server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(appLog))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:         handlers.NewAuthHandler(doctorSvc),
		Session:      handlers.NewSessionHandler(consultSvc),
		Consultation: handlers.NewConsultationHandler(consultationRepo, doctorSvc, transcriptRepo, signer),
		Patient:      handlers.NewPatientHandler(patientSvc),
		Portal:       handlers.NewPortalHandler(portalSvc),
		WS:           handlers.NewWSHandler(consultSvc, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
