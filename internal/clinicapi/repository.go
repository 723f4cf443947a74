package clinicapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/projetocrm/consultas/internal/appointment"
	"github.com/projetocrm/consultas/internal/transport"
)

// Doer is the transport used by the repository.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// Repository implements appointment.Repository against the clinic REST API.
type Repository struct {
	client Doer
}

func NewRepository(client Doer) *Repository {
	return &Repository{client: client}
}

var _ appointment.Repository = (*Repository)(nil)

func (r *Repository) FindPatientByCPF(ctx context.Context, cpf string) (*appointment.Patient, error) {
	var p *appointment.Patient
	if err := r.client.Do(ctx, http.MethodGet, "pacientes/cpf/"+url.PathEscape(cpf), nil, &p); err != nil {
		return nil, classify("find patient", err)
	}
	if p == nil {
		return nil, fmt.Errorf("find patient: empty response: %w", appointment.ErrNotFound)
	}
	return p, nil
}

func (r *Repository) ListPractitioners(ctx context.Context) ([]appointment.Practitioner, error) {
	var list []appointment.Practitioner
	if err := r.client.Do(ctx, http.MethodGet, "medicos", nil, &list); err != nil {
		return nil, classify("list practitioners", err)
	}
	return list, nil
}

func (r *Repository) ListPractitionersBySpecialty(ctx context.Context, specialty appointment.Specialty) ([]appointment.Practitioner, error) {
	var list []appointment.Practitioner
	path := "medicos/especialidade/" + url.PathEscape(string(specialty))
	if err := r.client.Do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, classify("list practitioners by specialty", err)
	}
	return list, nil
}

func (r *Repository) ListAppointments(ctx context.Context) ([]appointment.Appointment, error) {
	var list []appointment.Appointment
	if err := r.client.Do(ctx, http.MethodGet, "consultas", nil, &list); err != nil {
		return nil, classify("list appointments", err)
	}
	return list, nil
}

func (r *Repository) CreateAppointment(ctx context.Context, appt appointment.Appointment) (*appointment.Appointment, error) {
	var created appointment.Appointment
	if err := r.client.Do(ctx, http.MethodPost, "consultas", appt, &created); err != nil {
		return nil, classify("create appointment", err)
	}
	return &created, nil
}

func (r *Repository) UpdateAppointment(ctx context.Context, appt appointment.Appointment) (*appointment.Appointment, error) {
	var updated appointment.Appointment
	if err := r.client.Do(ctx, http.MethodPut, "consultas", appt, &updated); err != nil {
		return nil, classify("update appointment", err)
	}
	return &updated, nil
}

// Login exchanges credentials for the Authorization value expected by the
// other endpoints.
func (r *Repository) Login(ctx context.Context, user, password string) (string, error) {
	in := struct {
		User     string `json:"usuario"`
		Password string `json:"senha"`
	}{user, password}
	var out struct {
		Token string `json:"token"`
	}
	if err := r.client.Do(ctx, http.MethodPost, "usuarios/logar", in, &out); err != nil {
		return "", classify("login", err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", errors.New("login: empty token in response")
	}
	return out.Token, nil
}

// classify maps 404 to appointment.ErrNotFound and 403 to
// appointment.ErrForbidden, keeping the transport error in the chain.
func classify(op string, err error) error {
	switch transport.StatusCode(err) {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w", op, appointment.ErrNotFound, err)
	case http.StatusForbidden:
		return fmt.Errorf("%s: %w: %w", op, appointment.ErrForbidden, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
