package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/projetocrm/consultas/internal/appointment"
)

// DemoPatient is always present after Seed so the lookup flow has a known CPF.
var DemoPatient = appointment.Patient{
	Name:      "Ana",
	Email:     "ana@example.com",
	Phone:     "11999990000",
	CPF:       "12345678900",
	Address:   "Rua das Flores, 100",
	Insurance: false,
}

const maxCPFAttempts = 5

// Seed fills s with the demo patient, count random patients and perSpecialty
// practitioners for every known specialty. A fixed faker seed gives the same
// data on every run.
func Seed(ctx context.Context, s Store, f *gofakeit.Faker, patients, perSpecialty int) error {
	if _, err := s.CreatePatient(ctx, DemoPatient); err != nil && !errors.Is(err, ErrDuplicateCPF) {
		return fmt.Errorf("seed demo patient: %w", err)
	}

	for i := 0; i < patients; i++ {
		if err := seedPatient(ctx, s, f); err != nil {
			return err
		}
	}

	for _, spec := range appointment.Specialties() {
		for i := 0; i < perSpecialty; i++ {
			p := appointment.Practitioner{
				Name:      "Dr(a). " + f.Name(),
				Specialty: spec,
				CRM:       f.Numerify("######") + "/" + f.StateAbr(),
			}
			if _, err := s.CreatePractitioner(ctx, p); err != nil {
				return fmt.Errorf("seed practitioner: %w", err)
			}
		}
	}
	return nil
}

func seedPatient(ctx context.Context, s Store, f *gofakeit.Faker) error {
	for attempt := 0; attempt < maxCPFAttempts; attempt++ {
		p := appointment.Patient{
			Name:      f.Name(),
			Email:     f.Email(),
			Phone:     f.Numerify("119########"),
			CPF:       f.Numerify("###########"),
			Address:   fmt.Sprintf("%s, %s", f.Street(), f.City()),
			Insurance: f.Bool(),
		}
		_, err := s.CreatePatient(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateCPF) {
			return fmt.Errorf("seed patient: %w", err)
		}
	}
	return fmt.Errorf("seed patient: %w after %d attempts", ErrDuplicateCPF, maxCPFAttempts)
}
