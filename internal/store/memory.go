package store

import (
	"context"
	"strings"
	"sync"

	"github.com/projetocrm/consultas/internal/appointment"
)

type appointmentRow struct {
	appt           appointment.Appointment
	patientID      int64
	practitionerID int64
}

// MemoryStore is a thread-safe Store kept in process memory. Lists come back
// in insertion order.
type MemoryStore struct {
	mu sync.RWMutex

	patients     map[int64]appointment.Patient
	patientOrder []int64
	cpfIndex     map[string]int64

	practitioners     map[int64]appointment.Practitioner
	practitionerOrder []int64

	appointments     map[int64]*appointmentRow
	appointmentOrder []int64

	nextPatientID      int64
	nextPractitionerID int64
	nextAppointmentID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients:      make(map[int64]appointment.Patient),
		cpfIndex:      make(map[string]int64),
		practitioners: make(map[int64]appointment.Practitioner),
		appointments:  make(map[int64]*appointmentRow),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) FindPatientByCPF(_ context.Context, cpf string) (*appointment.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.cpfIndex[NormalizeCPF(cpf)]
	if !ok {
		return nil, ErrPatientNotFound
	}
	p := s.patients[id]
	return &p, nil
}

func (s *MemoryStore) GetPatient(_ context.Context, id int64) (*appointment.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (s *MemoryStore) CreatePatient(_ context.Context, p appointment.Patient) (*appointment.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeCPF(p.CPF)
	if _, dup := s.cpfIndex[key]; dup {
		return nil, ErrDuplicateCPF
	}
	s.nextPatientID++
	p.ID = s.nextPatientID
	s.patients[p.ID] = p
	s.patientOrder = append(s.patientOrder, p.ID)
	s.cpfIndex[key] = p.ID
	return &p, nil
}

func (s *MemoryStore) GetPractitioner(_ context.Context, id int64) (*appointment.Practitioner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPractitioners(_ context.Context) ([]appointment.Practitioner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]appointment.Practitioner, 0, len(s.practitionerOrder))
	for _, id := range s.practitionerOrder {
		out = append(out, s.practitioners[id])
	}
	return out, nil
}

func (s *MemoryStore) ListPractitionersBySpecialty(_ context.Context, specialty appointment.Specialty) ([]appointment.Practitioner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []appointment.Practitioner
	for _, id := range s.practitionerOrder {
		p := s.practitioners[id]
		if strings.EqualFold(string(p.Specialty), string(specialty)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreatePractitioner(_ context.Context, p appointment.Practitioner) (*appointment.Practitioner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPractitionerID++
	p.ID = s.nextPractitionerID
	s.practitioners[p.ID] = p
	s.practitionerOrder = append(s.practitionerOrder, p.ID)
	return &p, nil
}

func (s *MemoryStore) GetAppointment(_ context.Context, id int64) (*appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a := s.hydrate(row)
	return &a, nil
}

func (s *MemoryStore) ListAppointments(_ context.Context) ([]appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]appointment.Appointment, 0, len(s.appointmentOrder))
	for _, id := range s.appointmentOrder {
		out = append(out, s.hydrate(s.appointments[id]))
	}
	return out, nil
}

func (s *MemoryStore) FindAppointmentConflict(_ context.Context, practitionerID int64, dateTime string, excludeID int64) (*appointment.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.appointmentOrder {
		row := s.appointments[id]
		if id == excludeID || row.practitionerID != practitionerID || row.appt.DateTime != dateTime {
			continue
		}
		if row.appt.Status == appointment.StatusCancelled {
			continue
		}
		a := s.hydrate(row)
		return &a, nil
	}
	return nil, ErrAppointmentNotFound
}

func (s *MemoryStore) CreateAppointment(_ context.Context, appt appointment.Appointment) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.row(appt)
	if err != nil {
		return nil, err
	}
	s.nextAppointmentID++
	row.appt.ID = s.nextAppointmentID
	s.appointments[row.appt.ID] = row
	s.appointmentOrder = append(s.appointmentOrder, row.appt.ID)

	a := s.hydrate(row)
	return &a, nil
}

func (s *MemoryStore) UpdateAppointment(_ context.Context, appt appointment.Appointment) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.appointments[appt.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if appt.Patient == nil {
		appt.Patient = &appointment.Patient{ID: existing.patientID}
	}
	row, err := s.row(appt)
	if err != nil {
		return nil, err
	}
	s.appointments[appt.ID] = row

	a := s.hydrate(row)
	return &a, nil
}

// row requires s.mu held for writing.
func (s *MemoryStore) row(appt appointment.Appointment) (*appointmentRow, error) {
	row := &appointmentRow{appt: appt}
	row.appt.Patient = nil
	row.appt.Practitioner = nil

	if appt.Patient != nil {
		if _, ok := s.patients[appt.Patient.ID]; !ok {
			return nil, ErrPatientNotFound
		}
		row.patientID = appt.Patient.ID
	}
	if appt.Practitioner != nil {
		if _, ok := s.practitioners[appt.Practitioner.ID]; !ok {
			return nil, ErrPractitionerNotFound
		}
		row.practitionerID = appt.Practitioner.ID
	}
	return row, nil
}

// hydrate requires s.mu held.
func (s *MemoryStore) hydrate(row *appointmentRow) appointment.Appointment {
	a := row.appt
	if p, ok := s.patients[row.patientID]; ok {
		a.Patient = &p
	}
	if p, ok := s.practitioners[row.practitionerID]; ok {
		a.Practitioner = &p
	}
	return a
}
