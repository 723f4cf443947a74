package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// Schema creates the sandbox tables. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS pacientes (
		id         BIGSERIAL PRIMARY KEY,
		nome       TEXT NOT NULL,
		email      TEXT,
		telefone   TEXT,
		cpf        TEXT NOT NULL UNIQUE,
		endereco   TEXT,
		convenio   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS medicos (
		id            BIGSERIAL PRIMARY KEY,
		nome          TEXT NOT NULL,
		especialidade TEXT NOT NULL,
		crm           TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS medicos_especialidade_idx ON medicos (lower(especialidade))`,
	`CREATE TABLE IF NOT EXISTS consultas (
		id               BIGSERIAL PRIMARY KEY,
		especialidade    TEXT NOT NULL,
		queixa           TEXT NOT NULL,
		data_hora        TEXT NOT NULL,
		medico_id        BIGINT REFERENCES medicos(id),
		status           TEXT NOT NULL,
		status_pagamento TEXT,
		paciente_id      BIGINT REFERENCES pacientes(id),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS consultas_medico_data_idx ON consultas (medico_id, data_hora)`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range Schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
