package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/projetocrm/consultas/internal/appointment"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

var _ Store = (*PgStore)(nil)

// Helpers

const uniqueViolation = "23505"

func scanPatient(row pgx.Row) (*appointment.Patient, error) {
	var p appointment.Patient
	var email, phone, address *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&phone,
		&p.CPF,
		&address,
		&p.Insurance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = deref(email)
	p.Phone = deref(phone)
	p.Address = deref(address)
	return &p, nil
}

func scanPractitioner(row pgx.Row) (*appointment.Practitioner, error) {
	var p appointment.Practitioner
	var crm *string

	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &crm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	p.CRM = deref(crm)
	return &p, nil
}

const appointmentColumns = `
	c.id, c.especialidade, c.queixa, c.data_hora, c.status, c.status_pagamento,
	m.id, m.nome, m.especialidade, m.crm,
	p.id, p.nome, p.email, p.telefone, p.cpf, p.endereco, p.convenio
	FROM consultas c
	LEFT JOIN medicos m ON m.id = c.medico_id
	LEFT JOIN pacientes p ON p.id = c.paciente_id`

func scanAppointment(row pgx.Row) (*appointment.Appointment, error) {
	var a appointment.Appointment
	var payment *string

	var mID *int64
	var mName, mSpecialty, mCRM *string

	var pID *int64
	var pName, pEmail, pPhone, pCPF, pAddress *string
	var pInsurance *bool

	err := row.Scan(
		&a.ID,
		&a.Specialty,
		&a.Complaint,
		&a.DateTime,
		&a.Status,
		&payment,
		&mID, &mName, &mSpecialty, &mCRM,
		&pID, &pName, &pEmail, &pPhone, &pCPF, &pAddress, &pInsurance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PaymentMethod = appointment.PaymentMethod(deref(payment))
	if mID != nil {
		a.Practitioner = &appointment.Practitioner{
			ID:        *mID,
			Name:      deref(mName),
			Specialty: appointment.Specialty(deref(mSpecialty)),
			CRM:       deref(mCRM),
		}
	}
	if pID != nil {
		a.Patient = &appointment.Patient{
			ID:        *pID,
			Name:      deref(pName),
			Email:     deref(pEmail),
			Phone:     deref(pPhone),
			CPF:       deref(pCPF),
			Address:   deref(pAddress),
			Insurance: pInsurance != nil && *pInsurance,
		}
	}
	return &a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func practitionerID(a appointment.Appointment) *int64 {
	if a.Practitioner == nil {
		return nil
	}
	return &a.Practitioner.ID
}

func patientID(a appointment.Appointment) *int64 {
	if a.Patient == nil {
		return nil
	}
	return &a.Patient.ID
}

// Interface methods

func (s *PgStore) FindPatientByCPF(ctx context.Context, cpf string) (*appointment.Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, nome, email, telefone, cpf, endereco, convenio
		FROM pacientes
		WHERE cpf = $1
	`, NormalizeCPF(cpf))
	return scanPatient(row)
}

func (s *PgStore) GetPatient(ctx context.Context, id int64) (*appointment.Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, nome, email, telefone, cpf, endereco, convenio
		FROM pacientes
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) CreatePatient(ctx context.Context, p appointment.Patient) (*appointment.Patient, error) {
	p.CPF = NormalizeCPF(p.CPF)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO pacientes (nome, email, telefone, cpf, endereco, convenio)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.Name, nullable(p.Email), nullable(p.Phone), p.CPF, nullable(p.Address), p.Insurance).Scan(&p.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateCPF
		}
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return &p, nil
}

func (s *PgStore) GetPractitioner(ctx context.Context, id int64) (*appointment.Practitioner, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, nome, especialidade, crm
		FROM medicos
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (s *PgStore) ListPractitioners(ctx context.Context) ([]appointment.Practitioner, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, nome, especialidade, crm
		FROM medicos
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query practitioners: %w", err)
	}
	return collectPractitioners(rows)
}

func (s *PgStore) ListPractitionersBySpecialty(ctx context.Context, specialty appointment.Specialty) ([]appointment.Practitioner, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, nome, especialidade, crm
		FROM medicos
		WHERE lower(especialidade) = lower($1)
		ORDER BY id
	`, string(specialty))
	if err != nil {
		return nil, fmt.Errorf("query practitioners by specialty: %w", err)
	}
	return collectPractitioners(rows)
}

func collectPractitioners(rows pgx.Rows) ([]appointment.Practitioner, error) {
	defer rows.Close()

	out := []appointment.Practitioner{}
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PgStore) CreatePractitioner(ctx context.Context, p appointment.Practitioner) (*appointment.Practitioner, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO medicos (nome, especialidade, crm)
		VALUES ($1, $2, $3)
		RETURNING id
	`, p.Name, string(p.Specialty), nullable(p.CRM)).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("insert practitioner: %w", err)
	}
	return &p, nil
}

func (s *PgStore) GetAppointment(ctx context.Context, id int64) (*appointment.Appointment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` WHERE c.id = $1`, id)
	return scanAppointment(row)
}

func (s *PgStore) ListAppointments(ctx context.Context) ([]appointment.Appointment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+appointmentColumns+` ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	out := []appointment.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PgStore) FindAppointmentConflict(ctx context.Context, practitionerID int64, dateTime string, excludeID int64) (*appointment.Appointment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+appointmentColumns+`
		WHERE c.medico_id = $1
		  AND c.data_hora = $2
		  AND c.id <> $3
		  AND c.status <> $4
		LIMIT 1`,
		practitionerID, dateTime, excludeID, string(appointment.StatusCancelled))
	return scanAppointment(row)
}

func (s *PgStore) CreateAppointment(ctx context.Context, appt appointment.Appointment) (*appointment.Appointment, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO consultas (especialidade, queixa, data_hora, medico_id, status, status_pagamento, paciente_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		string(appt.Specialty),
		appt.Complaint,
		appt.DateTime,
		practitionerID(appt),
		string(appt.Status),
		nullable(string(appt.PaymentMethod)),
		patientID(appt),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return s.GetAppointment(ctx, id)
}

func (s *PgStore) UpdateAppointment(ctx context.Context, appt appointment.Appointment) (*appointment.Appointment, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE consultas
		SET especialidade = $2,
		    queixa = $3,
		    data_hora = $4,
		    medico_id = $5,
		    status = $6,
		    status_pagamento = COALESCE($7, status_pagamento),
		    paciente_id = COALESCE($8, paciente_id),
		    updated_at = now()
		WHERE id = $1
	`,
		appt.ID,
		string(appt.Specialty),
		appt.Complaint,
		appt.DateTime,
		practitionerID(appt),
		string(appt.Status),
		nullable(string(appt.PaymentMethod)),
		patientID(appt),
	)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAppointmentNotFound
	}
	return s.GetAppointment(ctx, appt.ID)
}
