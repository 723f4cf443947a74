package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	redisclient "github.com/projetocrm/consultas/internal/redis"
	"github.com/projetocrm/consultas/internal/store"
)

type RouterConfig struct {
	Store       store.Store
	Locker      redisclient.Locker
	Tokens      *TokenIssuer
	Credentials Credentials
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Logger      zerolog.Logger
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	locker := cfg.Locker
	if locker == nil {
		locker = redisclient.NewLocalLocker(0)
	}
	h := &handlers{store: cfg.Store, locker: locker, logger: cfg.Logger}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Post("/usuarios/logar", loginHandler(cfg.Tokens, cfg.Credentials))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))

		r.Get("/medicos", h.listPractitioners)
		r.Get("/medicos/especialidade/{especialidade}", h.listPractitionersBySpecialty)
		r.Get("/pacientes/cpf/{cpf}", h.findPatientByCPF)

		r.Get("/consultas", h.listAppointments)
		r.Post("/consultas", h.createAppointment)
		r.Put("/consultas", h.updateAppointment)
	})

	return r
}
