package appointment

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// Repository is the remote clinic API as seen by the workflow. Implementations
// wrap ErrNotFound for 404 responses and ErrForbidden for 403 responses.
type Repository interface {
	FindPatientByCPF(ctx context.Context, cpf string) (*Patient, error)

	ListPractitioners(ctx context.Context) ([]Practitioner, error)
	ListPractitionersBySpecialty(ctx context.Context, specialty Specialty) ([]Practitioner, error)

	ListAppointments(ctx context.Context) ([]Appointment, error)
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
}

// Notifier receives the user facing outcome messages of the workflow.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Session is the ambient authentication state the workflow reads from.
type Session interface {
	Token() string
	Invalidate()
}

// Navigator moves the host to a named view.
type Navigator interface {
	Navigate(route string)
}

// LinkOpener hands a deep link to the host environment.
type LinkOpener interface {
	Open(link string) error
}

const (
	RouteAppointments = "/dashboard/consulta"
	RouteHome         = "/home"
)
