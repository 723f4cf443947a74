package appointment

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Editor updates an existing consulta. Practitioners can be picked from the
// full list, not only from one specialty.
type Editor struct {
	svc *Service

	mu            sync.Mutex
	appt          Appointment
	practitioners []Practitioner
	saving        bool
}

func NewEditor(svc *Service) *Editor {
	return &Editor{svc: svc}
}

// Open loads appt into the editor and fetches the practitioner list. A
// practitioner known only by name is matched against that list.
func (e *Editor) Open(ctx context.Context, appt Appointment) error {
	e.mu.Lock()
	e.appt = appt
	e.practitioners = nil
	e.mu.Unlock()

	list, err := e.svc.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load practitioners: %w", err)
	}

	e.mu.Lock()
	e.practitioners = list
	if p := e.appt.Practitioner; p != nil && p.ID == 0 {
		e.appt.Practitioner = practitionerByName(list, p.Name)
	}
	e.mu.Unlock()
	return nil
}

func practitionerByName(list []Practitioner, name string) *Practitioner {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for _, p := range list {
		if strings.EqualFold(strings.TrimSpace(p.Name), name) {
			return &p
		}
	}
	return nil
}

func (e *Editor) Practitioners() []Practitioner {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Practitioner(nil), e.practitioners...)
}

func (e *Editor) Appointment() Appointment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.appt
}

func (e *Editor) SetSpecialty(s Specialty) {
	e.mu.Lock()
	e.appt.Specialty = Specialty(strings.TrimSpace(string(s)))
	e.mu.Unlock()
}

func (e *Editor) SetComplaint(s string) {
	e.mu.Lock()
	e.appt.Complaint = s
	e.mu.Unlock()
}

func (e *Editor) SetDateTime(s string) error {
	s = strings.TrimSpace(s)
	if s != "" {
		if _, err := ParseDateTime(s); err != nil {
			return &ValidationError{Field: "dataHora", Message: "Data e hora inválidas"}
		}
	}
	e.mu.Lock()
	e.appt.DateTime = s
	e.mu.Unlock()
	return nil
}

func (e *Editor) SetStatus(s Status) error {
	if !s.Valid() {
		return &ValidationError{Field: "status", Message: "Status inválido"}
	}
	e.mu.Lock()
	e.appt.Status = s
	e.mu.Unlock()
	return nil
}

// SelectPractitioner picks from the loaded list; an unknown id clears the
// selection.
func (e *Editor) SelectPractitioner(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := findPractitioner(e.practitioners, id); ok {
		e.appt.Practitioner = &p
		return
	}
	e.appt.Practitioner = nil
}

func (e *Editor) validate() error {
	switch {
	case e.appt.ID == 0:
		return &ValidationError{Field: "id", Message: "Consulta sem identificador."}
	case e.appt.Specialty == "":
		return &ValidationError{Field: "especialidade", Message: "Informe a especialidade."}
	case strings.TrimSpace(e.appt.Complaint) == "":
		return &ValidationError{Field: "queixa", Message: "Informe a queixa do paciente."}
	case e.appt.DateTime == "":
		return &ValidationError{Field: "dataHora", Message: "Informe a data da consulta."}
	case !e.appt.Status.Valid():
		return &ValidationError{Field: "status", Message: "Selecione o status."}
	case e.appt.Practitioner == nil || e.appt.Practitioner.ID == 0:
		return &ValidationError{Field: "medico", Message: "Selecione o médico."}
	}
	return nil
}

// Save sends the edited consulta with PUT. The editor keeps its state on
// failure so the user can retry.
func (e *Editor) Save(ctx context.Context) (*Appointment, error) {
	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if err := e.validate(); err != nil {
		e.mu.Unlock()
		e.svc.notifier.Error(userMessage(err))
		return nil, err
	}
	e.saving = true
	payload := e.appt
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.saving = false
		e.mu.Unlock()
	}()

	updated, err := e.svc.repo.UpdateAppointment(ctx, payload)
	if err != nil {
		if !e.svc.handleForbidden(err) {
			e.svc.logger.Error().Err(err).Int64("consulta_id", payload.ID).Msg("update appointment failed")
			e.svc.notifier.Error("Erro ao atualizar consulta.")
		}
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	result := mergeResponse(updated, payload)
	e.mu.Lock()
	e.appt = result
	e.mu.Unlock()

	e.svc.notifier.Success("Consulta atualizada com sucesso!")
	return &result, nil
}
