package appointment

import (
	"context"
	"errors"
	"sync"
)

type fakeRepo struct {
	mu    sync.Mutex
	calls map[string]int

	findPatient  func(ctx context.Context, cpf string) (*Patient, error)
	bySpecialty  func(ctx context.Context, s Specialty) ([]Practitioner, error)
	all          []Practitioner
	appointments []Appointment
	create       func(ctx context.Context, a Appointment) (*Appointment, error)
	update       func(ctx context.Context, a Appointment) (*Appointment, error)
}

func (f *fakeRepo) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeRepo) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRepo) FindPatientByCPF(ctx context.Context, cpf string) (*Patient, error) {
	f.hit("FindPatientByCPF")
	if f.findPatient == nil {
		return nil, ErrNotFound
	}
	return f.findPatient(ctx, cpf)
}

func (f *fakeRepo) ListPractitioners(ctx context.Context) ([]Practitioner, error) {
	f.hit("ListPractitioners")
	return f.all, nil
}

func (f *fakeRepo) ListPractitionersBySpecialty(ctx context.Context, s Specialty) ([]Practitioner, error) {
	f.hit("ListPractitionersBySpecialty")
	if f.bySpecialty == nil {
		return nil, ErrNotFound
	}
	return f.bySpecialty(ctx, s)
}

func (f *fakeRepo) ListAppointments(ctx context.Context) ([]Appointment, error) {
	f.hit("ListAppointments")
	return f.appointments, nil
}

func (f *fakeRepo) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	f.hit("CreateAppointment")
	if f.create == nil {
		a.ID = 1
		return &a, nil
	}
	return f.create(ctx, a)
}

func (f *fakeRepo) UpdateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	f.hit("UpdateAppointment")
	if f.update == nil {
		return &a, nil
	}
	return f.update(ctx, a)
}

type notes struct {
	mu      sync.Mutex
	success []string
	errors  []string
}

func (n *notes) Success(msg string) {
	n.mu.Lock()
	n.success = append(n.success, msg)
	n.mu.Unlock()
}

func (n *notes) Error(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

func (n *notes) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

func (n *notes) lastSuccess() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.success) == 0 {
		return ""
	}
	return n.success[len(n.success)-1]
}

type fakeSession struct {
	mu          sync.Mutex
	token       string
	invalidated int
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.invalidated++
}

type routes struct {
	mu   sync.Mutex
	seen []string
}

func (r *routes) Navigate(route string) {
	r.mu.Lock()
	r.seen = append(r.seen, route)
	r.mu.Unlock()
}

type opener struct {
	links []string
}

func (o *opener) Open(link string) error {
	o.links = append(o.links, link)
	return nil
}

var errNoPhone = errors.New("no phone")

// linkComposer builds "wa:<phone>:<date>" so tests can check what was sent.
type linkComposer struct{}

func (linkComposer) DeepLink(appt Appointment, p *Patient) (string, error) {
	if p == nil || p.Phone == "" {
		return "", errNoPhone
	}
	return "wa:" + p.Phone + ":" + appt.DateTime, nil
}

var (
	ana = &Patient{ID: 1, Name: "Ana", CPF: "12345678900", Phone: "11999990000"}
	bia = &Patient{ID: 2, Name: "Bia", CPF: "98765432100", Phone: "11988887777", Insurance: true}

	drCarlos = Practitioner{ID: 10, Name: "Dr. Carlos", Specialty: SpecialtyCardiology}
	drDiana  = Practitioner{ID: 11, Name: "Dra. Diana", Specialty: SpecialtyCardiology}
	drElisa  = Practitioner{ID: 20, Name: "Dra. Elisa", Specialty: SpecialtyDermatology}
)

func directoryRepo() *fakeRepo {
	return &fakeRepo{
		findPatient: func(_ context.Context, cpf string) (*Patient, error) {
			switch cpf {
			case ana.CPF:
				p := *ana
				return &p, nil
			case bia.CPF:
				p := *bia
				return &p, nil
			}
			return nil, ErrNotFound
		},
		bySpecialty: func(_ context.Context, s Specialty) ([]Practitioner, error) {
			switch s {
			case SpecialtyCardiology:
				return []Practitioner{drCarlos, drDiana, drCarlos}, nil
			case SpecialtyDermatology:
				return []Practitioner{drElisa}, nil
			}
			return nil, ErrNotFound
		},
		all: []Practitioner{drCarlos, drDiana, drElisa},
	}
}
