package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/carelink/clinic-api/internal/config"
	"github.com/carelink/clinic-api/internal/esewa"
	"github.com/carelink/clinic-api/internal/handlers"
	"github.com/carelink/clinic-api/internal/middleware"
	"github.com/carelink/clinic-api/internal/payments"
	"github.com/carelink/clinic-api/internal/ratelimit"
	"github.com/carelink/clinic-api/internal/services"
)

func main() {
	// A missing .env is fine in containers.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := newLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal().Err(err).Msg("MongoDB is unreachable")
	}
	db := client.Database(cfg.MongoDB)
	log.Info().Str("database", cfg.MongoDB).Msg("connected to MongoDB")

	// Rate limit counters live in Redis when configured, otherwise in
	// process memory.
	var limitStore ratelimit.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, falling back to in-memory rate limiting")
			limitStore = ratelimit.NewMemoryStore()
		} else {
			limitStore = ratelimit.NewRedisStore(rdb)
			log.Info().Str("addr", cfg.RedisAddr).Msg("rate limiting via Redis")
		}
	} else {
		limitStore = ratelimit.NewMemoryStore()
	}

	gateway := esewa.NewClient(cfg.EsewaSecret, cfg.EsewaProductCode, cfg.EsewaGatewayURL)
	notifier := services.NewEmailNotifier(db, cfg, log)
	paySvc := payments.NewService(payments.NewMongoStore(client, db), gateway, notifier, log)

	h := handlers.NewHandler(db, cfg, paySvc, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.CSRFHeader},
		AllowCredentials: true,
	}))
	r.Use(middleware.RateLimit(limitStore, 300, time.Minute, log))

	// Gateway callbacks and the auth endpoints cannot carry a CSRF token.
	csrf := middleware.NewCSRF([]string{
		"/api/auth/register",
		"/api/auth/login",
		"/api/payments/esewa/success",
		"/api/payments/esewa/failure",
	}, cfg.IsProduction())
	r.Use(csrf.Handler())

	registerRoutes(r, h, cfg)

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func registerRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	auth := middleware.Auth([]byte(cfg.JWTSecret))
	patientOnly := middleware.RequireRoles("patient")
	staff := middleware.RequireRoles("doctor", "admin")
	adminOnly := middleware.RequireRoles("admin")

	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", auth, h.Logout)
		api.GET("/auth/me", auth, h.Me)

		api.GET("/slots", h.GetSlots)

		api.GET("/doctors", h.ListDoctors)
		api.GET("/doctors/:id", h.GetDoctor)
		api.POST("/doctors", auth, adminOnly, h.CreateDoctor)
		api.PUT("/doctors/:id/availability", auth, adminOnly, h.UpdateAvailability)

		api.GET("/departments", h.ListDepartments)
		api.POST("/departments", auth, adminOnly, h.CreateDepartment)
		api.PUT("/departments/:id", auth, adminOnly, h.UpdateDepartment)
		api.DELETE("/departments/:id", auth, adminOnly, h.DeleteDepartment)

		api.GET("/services", h.ListServices)
		api.GET("/services/:id", h.GetService)
		api.POST("/services", auth, adminOnly, h.CreateService)
		api.PUT("/services/:id", auth, adminOnly, h.UpdateService)
		api.DELETE("/services/:id", auth, adminOnly, h.DeleteService)

		api.POST("/appointments", auth, patientOnly, h.CreateAppointment)
		api.GET("/appointments/me", auth, patientOnly, h.GetMyAppointments)
		api.GET("/appointments/doctor", auth, staff, h.GetDoctorAppointments)
		api.GET("/appointments/:id", auth, h.GetAppointment)
		api.PATCH("/appointments/:id/status", auth, h.UpdateAppointmentStatus)

		api.POST("/payments/esewa/initiate", auth, patientOnly, h.InitiatePayment)
		api.GET("/payments/esewa/success", h.EsewaSuccess)
		api.POST("/payments/esewa/success", h.EsewaSuccess)
		api.GET("/payments/esewa/failure", h.EsewaFailure)
		api.POST("/payments/esewa/failure", h.EsewaFailure)
		api.GET("/payments/verify/:appointmentId", auth, h.VerifyPayment)
	}
}

// newLogger writes human-readable logs in development and JSON in
// production.
func newLogger(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.IsProduction() {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Msg("request")
	}
}
