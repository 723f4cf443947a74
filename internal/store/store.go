package store

import (
	"context"
	"errors"
	"regexp"

	"github.com/projetocrm/consultas/internal/appointment"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrDuplicateCPF         = errors.New("cpf already registered")
)

// Store contains all persistence needed by the sandbox API. Appointments are
// returned hydrated with their patient and practitioner.
type Store interface {
	FindPatientByCPF(ctx context.Context, cpf string) (*appointment.Patient, error)
	GetPatient(ctx context.Context, id int64) (*appointment.Patient, error)
	CreatePatient(ctx context.Context, p appointment.Patient) (*appointment.Patient, error)

	GetPractitioner(ctx context.Context, id int64) (*appointment.Practitioner, error)
	ListPractitioners(ctx context.Context) ([]appointment.Practitioner, error)
	ListPractitionersBySpecialty(ctx context.Context, specialty appointment.Specialty) ([]appointment.Practitioner, error)
	CreatePractitioner(ctx context.Context, p appointment.Practitioner) (*appointment.Practitioner, error)

	GetAppointment(ctx context.Context, id int64) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context) ([]appointment.Appointment, error)

	// For double booking checks; excludeID skips the appointment being edited.
	FindAppointmentConflict(ctx context.Context, practitionerID int64, dateTime string, excludeID int64) (*appointment.Appointment, error)

	CreateAppointment(ctx context.Context, appt appointment.Appointment) (*appointment.Appointment, error)
	UpdateAppointment(ctx context.Context, appt appointment.Appointment) (*appointment.Appointment, error)
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// NormalizeCPF keeps only the digits of a CPF.
func NormalizeCPF(cpf string) string {
	return nonDigits.ReplaceAllString(cpf, "")
}
