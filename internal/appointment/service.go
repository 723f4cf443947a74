package appointment

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Service wraps the remote lookups used by the registration and update
// flows. Failures are reported through the Notifier and never panic; a 403
// invalidates the session.
type Service struct {
	repo     Repository
	notifier Notifier
	session  Session
	logger   zerolog.Logger
}

func NewService(repo Repository, notifier Notifier, session Session, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		session:  session,
		logger:   logger,
	}
}

// LookupResult is the outcome of a patient lookup.
type LookupResult struct {
	Found   bool
	Patient *Patient
}

// LookupByDocument finds a patient by CPF. Every failure degrades to a
// not-found result.
func (s *Service) LookupByDocument(ctx context.Context, cpf string) LookupResult {
	cpf = strings.TrimSpace(cpf)
	if cpf == "" {
		s.notifier.Error("Informe o CPF do paciente.")
		return LookupResult{}
	}

	p, err := s.repo.FindPatientByCPF(ctx, cpf)
	if err != nil {
		if s.handleForbidden(err) {
			return LookupResult{}
		}
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn().Err(err).Msg("patient lookup failed")
		}
		s.notifier.Error("Nenhum Paciente encontrado!")
		return LookupResult{}
	}
	if p == nil || (p.ID == 0 && p.Name == "") {
		s.notifier.Error("Nenhum Paciente encontrado!")
		return LookupResult{}
	}

	msg := "Paciente encontrado: " + p.Name
	if p.Insurance {
		msg += " - Este Paciente possui convênio"
	}
	s.notifier.Success(msg)

	return LookupResult{Found: true, Patient: p}
}

// ListBySpecialty returns the practitioners of a specialty in server order
// without duplicate ids. An empty specialty issues no request.
func (s *Service) ListBySpecialty(ctx context.Context, specialty Specialty) ([]Practitioner, error) {
	if specialty == "" {
		s.notifier.Error("Nenhuma especialidade selecionada")
		return nil, &ValidationError{Field: "especialidade", Message: "Nenhuma especialidade selecionada"}
	}

	list, err := s.repo.ListPractitionersBySpecialty(ctx, specialty)
	if err != nil {
		switch {
		case s.handleForbidden(err):
		case errors.Is(err, ErrNotFound):
			s.notifier.Error("Nenhum médico encontrado.")
		default:
			s.logger.Warn().Err(err).Str("especialidade", string(specialty)).Msg("practitioner directory fetch failed")
			s.notifier.Error("Erro ao buscar médicos. Tente novamente.")
		}
		return nil, err
	}

	return uniqueByID(list), nil
}

// ListAll returns every practitioner.
func (s *Service) ListAll(ctx context.Context) ([]Practitioner, error) {
	list, err := s.repo.ListPractitioners(ctx)
	if err != nil {
		if !s.handleForbidden(err) {
			s.logger.Warn().Err(err).Msg("practitioner list fetch failed")
			s.notifier.Error("Erro ao buscar médicos. Tente novamente.")
		}
		return nil, err
	}
	return uniqueByID(list), nil
}

// ListAppointments returns the appointments shown on the list view.
func (s *Service) ListAppointments(ctx context.Context) ([]Appointment, error) {
	list, err := s.repo.ListAppointments(ctx)
	if err != nil {
		if !s.handleForbidden(err) {
			s.logger.Warn().Err(err).Msg("appointment list fetch failed")
			s.notifier.Error("Erro ao buscar consultas.")
		}
		return nil, err
	}
	return list, nil
}

// handleForbidden invalidates the session when err is a 403.
func (s *Service) handleForbidden(err error) bool {
	if !errors.Is(err, ErrForbidden) {
		return false
	}
	s.logger.Info().Msg("session rejected by API, logging out")
	s.session.Invalidate()
	return true
}

// requireSession mirrors the "must be logged in" guard of the forms.
func (s *Service) requireSession(nav Navigator) bool {
	if s.session.Token() != "" {
		return true
	}
	s.notifier.Error("Você precisa estar logado")
	if nav != nil {
		nav.Navigate(RouteHome)
	}
	return false
}

func uniqueByID(list []Practitioner) []Practitioner {
	seen := make(map[int64]struct{}, len(list))
	out := make([]Practitioner, 0, len(list))
	for _, p := range list {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
