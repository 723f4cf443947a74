package store

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/projetocrm/consultas/internal/appointment"
)

func mustPatient(t *testing.T, s Store, p appointment.Patient) *appointment.Patient {
	t.Helper()
	created, err := s.CreatePatient(context.Background(), p)
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	return created
}

func mustPractitioner(t *testing.T, s Store, name string, spec appointment.Specialty) *appointment.Practitioner {
	t.Helper()
	created, err := s.CreatePractitioner(context.Background(), appointment.Practitioner{Name: name, Specialty: spec})
	if err != nil {
		t.Fatalf("CreatePractitioner: %v", err)
	}
	return created
}

func TestMemoryStore_PatientByCPF(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ana := mustPatient(t, s, appointment.Patient{Name: "Ana", CPF: "123.456.789-00", Phone: "11999990000"})

	got, err := s.FindPatientByCPF(ctx, "12345678900")
	if err != nil {
		t.Fatalf("FindPatientByCPF: %v", err)
	}
	if got.ID != ana.ID || got.Name != "Ana" {
		t.Errorf("got %+v", got)
	}

	if _, err := s.FindPatientByCPF(ctx, "00000000000"); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("err = %v, want ErrPatientNotFound", err)
	}

	if _, err := s.CreatePatient(ctx, appointment.Patient{Name: "Outra", CPF: "12345678900"}); !errors.Is(err, ErrDuplicateCPF) {
		t.Errorf("err = %v, want ErrDuplicateCPF", err)
	}
}

func TestMemoryStore_PractitionersBySpecialty(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustPractitioner(t, s, "Dr. A", appointment.SpecialtyCardiology)
	mustPractitioner(t, s, "Dr. B", appointment.SpecialtyDermatology)
	mustPractitioner(t, s, "Dr. C", appointment.SpecialtyCardiology)

	got, err := s.ListPractitionersBySpecialty(ctx, "cardiologia")
	if err != nil {
		t.Fatalf("ListPractitionersBySpecialty: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Dr. A" || got[1].Name != "Dr. C" {
		t.Errorf("got %+v", got)
	}

	all, _ := s.ListPractitioners(ctx)
	if len(all) != 3 {
		t.Errorf("len(all) = %d", len(all))
	}

	none, _ := s.ListPractitionersBySpecialty(ctx, appointment.SpecialtyUrology)
	if len(none) != 0 {
		t.Errorf("expected no urologists, got %+v", none)
	}
}

func TestMemoryStore_AppointmentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ana := mustPatient(t, s, appointment.Patient{Name: "Ana", CPF: "12345678900"})
	doc := mustPractitioner(t, s, "Dr. A", appointment.SpecialtyCardiology)

	created, err := s.CreateAppointment(ctx, appointment.Appointment{
		Specialty:     appointment.SpecialtyCardiology,
		Complaint:     "dor no peito",
		DateTime:      "2024-05-10T14:30",
		Practitioner:  &appointment.Practitioner{ID: doc.ID},
		Status:        appointment.StatusPending,
		PaymentMethod: appointment.PaymentPix,
		Patient:       &appointment.Patient{ID: ana.ID},
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if created.Patient == nil || created.Patient.Name != "Ana" {
		t.Errorf("patient not hydrated: %+v", created.Patient)
	}
	if created.Practitioner == nil || created.Practitioner.Name != "Dr. A" {
		t.Errorf("practitioner not hydrated: %+v", created.Practitioner)
	}

	conflict, err := s.FindAppointmentConflict(ctx, doc.ID, "2024-05-10T14:30", 0)
	if err != nil || conflict.ID != created.ID {
		t.Errorf("conflict = %+v, err = %v", conflict, err)
	}
	if _, err := s.FindAppointmentConflict(ctx, doc.ID, "2024-05-10T14:30", created.ID); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("excluding self should find nothing, err = %v", err)
	}

	upd := *created
	upd.Patient = nil
	upd.Status = appointment.StatusCancelled
	updated, err := s.UpdateAppointment(ctx, upd)
	if err != nil {
		t.Fatalf("UpdateAppointment: %v", err)
	}
	if updated.Status != appointment.StatusCancelled {
		t.Errorf("status = %q", updated.Status)
	}
	if updated.Patient == nil || updated.Patient.ID != ana.ID {
		t.Errorf("update without patient should keep it, got %+v", updated.Patient)
	}

	if _, err := s.FindAppointmentConflict(ctx, doc.ID, "2024-05-10T14:30", 0); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("cancelled appointment should not conflict, err = %v", err)
	}

	list, _ := s.ListAppointments(ctx)
	if len(list) != 1 {
		t.Errorf("len(list) = %d", len(list))
	}

	if _, err := s.UpdateAppointment(ctx, appointment.Appointment{ID: 999}); !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestMemoryStore_CreateAppointmentUnknownReferences(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.CreateAppointment(ctx, appointment.Appointment{Patient: &appointment.Patient{ID: 42}})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("err = %v, want ErrPatientNotFound", err)
	}

	ana := mustPatient(t, s, appointment.Patient{Name: "Ana", CPF: "1"})
	_, err = s.CreateAppointment(ctx, appointment.Appointment{
		Patient:      &appointment.Patient{ID: ana.ID},
		Practitioner: &appointment.Practitioner{ID: 7},
	})
	if !errors.Is(err, ErrPractitionerNotFound) {
		t.Errorf("err = %v, want ErrPractitionerNotFound", err)
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := Seed(ctx, s, gofakeit.New(42), 20, 2); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	ana, err := s.FindPatientByCPF(ctx, DemoPatient.CPF)
	if err != nil {
		t.Fatalf("demo patient missing: %v", err)
	}
	if ana.Name != "Ana" || ana.Phone != "11999990000" || ana.Insurance {
		t.Errorf("demo patient = %+v", ana)
	}

	for _, spec := range appointment.Specialties() {
		list, _ := s.ListPractitionersBySpecialty(ctx, spec)
		if len(list) != 2 {
			t.Errorf("%s: %d practitioners, want 2", spec, len(list))
		}
	}

	// a second run keeps the demo patient unique
	if err := Seed(ctx, s, gofakeit.New(7), 0, 0); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
}

func TestNormalizeCPF(t *testing.T) {
	if got := NormalizeCPF(" 123.456.789-00 "); got != "12345678900" {
		t.Errorf("NormalizeCPF = %q", got)
	}
}
