package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/vitalguard/careboard/internal/config"
	"github.com/vitalguard/careboard/internal/domain/access"
	"github.com/vitalguard/careboard/internal/domain/audit"
	"github.com/vitalguard/careboard/internal/domain/consent"
	"github.com/vitalguard/careboard/internal/domain/identity"
	"github.com/vitalguard/careboard/internal/domain/ingest"
	"github.com/vitalguard/careboard/internal/domain/insight"
	"github.com/vitalguard/careboard/internal/domain/integrity"
	"github.com/vitalguard/careboard/internal/domain/interop"
	"github.com/vitalguard/careboard/internal/domain/patient"
	"github.com/vitalguard/careboard/internal/domain/session"
	"github.com/vitalguard/careboard/internal/domain/teamchat"
	"github.com/vitalguard/careboard/internal/platform/auth"
	"github.com/vitalguard/careboard/internal/platform/db"
	"github.com/vitalguard/careboard/internal/platform/middleware"
	"github.com/vitalguard/careboard/internal/platform/websocket"
)

const version = "0.1.0"

// app holds the assembled server and everything that needs closing.
type app struct {
	echo        *echo.Echo
	pool        *pgxpool.Pool
	users       *identity.Service
	patients    *patient.Service
	patientRepo patient.Repository
	ledger      *consent.Ledger
	trail       *audit.Trail
	hub         *websocket.Hub
	ingest      *ingest.Subscriber
	store       identity.Store
}

type repos struct {
	patients patient.Repository
	consents consent.Repository
	audit    audit.Repository
	team     teamchat.Repository
}

func openRepos(pool *pgxpool.Pool) repos {
	if pool == nil {
		return repos{
			patients: patient.NewMemoryRepo(),
			consents: consent.NewMemoryRepo(),
			audit:    audit.NewMemoryRepo(),
			team:     teamchat.NewMemoryRepo(),
		}
	}
	return repos{
		patients: patient.NewRepoPG(pool),
		consents: consent.NewRepoPG(pool),
		audit:    audit.NewRepoPG(pool),
		team:     teamchat.NewRepoPG(pool),
	}
}

func openIdentityStore(cfg *config.Config) (identity.Store, error) {
	switch cfg.IdentityStore {
	case "leveldb":
		return identity.OpenLevelDBStore(cfg.IdentityLevelDBPath)
	case "redis":
		return identity.OpenRedisStore(context.Background(), identity.RedisConfig{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return identity.NewMemoryStore(), nil
	}
}

func sessionConfig(cfg *config.Config) auth.SessionConfig {
	return auth.SessionConfig{SigningKey: []byte(cfg.SessionSigningKey), TTL: cfg.SessionTTL}
}

// newApp wires every component. pool is nil for the memory backend.
func newApp(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*app, error) {
	store, err := openIdentityStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	r := openRepos(pool)

	trail := audit.NewTrail(r.audit, logger)
	users := identity.NewService(store)
	users.EnableAutoAssign(cfg.AutoAssignDemo)

	provider, err := insight.New(cfg.AIProvider, insight.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.AITimeout,
		Retries: cfg.AIRetries,
	}, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	hub := websocket.NewHub(logger)

	patients := patient.NewService(r.patients, trail, logger)
	patients.SetAnalyzer(provider)
	patients.SetSummarizer(provider)
	patients.SetVisibility(access.NewGate[*patient.Patient](users))
	patients.SetAssigner(users)
	patients.SetPublisher(hub)

	hub.WithAuthorizer(liveTopicAuthorizer(patients))

	ledger := consent.NewLedger(r.consents, trail)
	if pool != nil {
		tx := db.NewPoolTransactor(pool)
		patients.SetTransactor(tx)
		ledger.SetTransactor(tx)
	}

	nav := session.NewNavigator(patients, trail, logger)
	nav.AddHook(session.ConsentSweep(ledger))

	team := teamchat.NewService(r.team, trail, logger)
	team.SetPublisher(hub)

	a := &app{
		pool:        pool,
		users:       users,
		patients:    patients,
		patientRepo: r.patients,
		ledger:      ledger,
		trail:       trail,
		hub:         hub,
		store:       store,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
		HSTS:           cfg.IsProduction(),
		ExemptPrefixes: []string{"/api/v1/ws"},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	} else {
		e.GET("/health/db", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "storage": "memory"})
		})
	}

	rl := middleware.RateLimitConfig{RequestsPerSecond: cfg.RateLimitRPS, BurstSize: cfg.RateLimitBurst}
	if rl.RequestsPerSecond <= 0 {
		rl = middleware.DefaultRateLimitConfig()
	}

	public := e.Group("/api/v1", middleware.RateLimit(rl))
	api := e.Group("/api/v1", middleware.RateLimit(rl), auth.SessionMiddleware(sessionConfig(cfg)))

	identityHandler := identity.NewHandler(users, auth.NewIssuer(sessionConfig(cfg)), trail)
	identityHandler.RegisterPublicRoutes(public)
	identityHandler.RegisterRoutes(api)

	patient.NewHandler(patients).RegisterRoutes(api)
	audit.NewHandler(trail).RegisterRoutes(api)
	consent.NewHandler(ledger).RegisterRoutes(api)
	integrity.NewHandler(integrity.NewVerifier(patients, trail)).RegisterRoutes(api)
	interop.NewHandler(interop.NewService(ledger, patients, trail)).RegisterRoutes(api)
	session.NewHandler(nav).RegisterRoutes(api)
	teamchat.NewHandler(team).RegisterRoutes(api)
	websocket.NewHandler(hub).RegisterRoutes(api)

	a.echo = e

	if cfg.IngestEnabled() {
		sub, err := ingest.Start(ingest.Config{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topic:     cfg.MQTTTopic,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			QoS:       byte(cfg.MQTTQoS),
		}, ingest.NewConsumer(patients, logger), logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.ingest = sub
	}

	return a, nil
}

// liveTopicAuthorizer limits ward-wide topics to staff and patient topics to
// callers who can see that patient.
func liveTopicAuthorizer(patients *patient.Service) websocket.TopicAuthorizer {
	return func(ctx context.Context, topic string) bool {
		if id, ok := strings.CutPrefix(topic, "patient/"); ok {
			pid, err := uuid.Parse(id)
			if err != nil {
				return false
			}
			_, err = patients.Authorize(ctx, pid)
			return err == nil
		}
		role := auth.RoleFromContext(ctx)
		for _, r := range auth.StaffRoles {
			if r == role {
				return true
			}
		}
		return false
	}
}

func (a *app) Close() {
	if a.ingest != nil {
		a.ingest.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
