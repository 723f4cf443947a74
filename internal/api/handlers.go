package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/projetocrm/consultas/internal/appointment"
	redisclient "github.com/projetocrm/consultas/internal/redis"
	"github.com/projetocrm/consultas/internal/store"
)

var ErrBookingConflict = errors.New("practitioner already booked at this date and time")

type handlers struct {
	store  store.Store
	locker redisclient.Locker
	logger zerolog.Logger
}

func (h *handlers) listPractitioners(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListPractitioners(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) listPractitionersBySpecialty(w http.ResponseWriter, r *http.Request) {
	specialty, err := url.PathUnescape(chi.URLParam(r, "especialidade"))
	if err != nil || strings.TrimSpace(specialty) == "" {
		writeError(w, http.StatusBadRequest, "invalid_specialty", "especialidade inválida")
		return
	}

	list, err := h.store.ListPractitionersBySpecialty(r.Context(), appointment.Specialty(strings.TrimSpace(specialty)))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if len(list) == 0 {
		writeError(w, http.StatusNotFound, "practitioners_not_found", "Nenhum médico encontrado.")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) findPatientByCPF(w http.ResponseWriter, r *http.Request) {
	cpf, err := url.PathUnescape(chi.URLParam(r, "cpf"))
	if err != nil || store.NormalizeCPF(cpf) == "" {
		writeError(w, http.StatusBadRequest, "invalid_cpf", "cpf inválido")
		return
	}

	p, err := h.store.FindPatientByCPF(r.Context(), cpf)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAppointments(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointment.Appointment
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	req.ID = 0

	in, err := h.prepare(r.Context(), req, nil)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	created, err := h.book(r.Context(), in, h.store.CreateAppointment)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.Info().
		Int64("consulta_id", created.ID).
		Str("user", GetUser(r.Context())).
		Str("request_id", GetRequestID(r.Context())).
		Msg("appointment created")
	writeJSON(w, http.StatusCreated, created)
}

func (h *handlers) updateAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointment.Appointment
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	if req.ID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id é obrigatório")
		return
	}

	existing, err := h.store.GetAppointment(r.Context(), req.ID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	in, err := h.prepare(r.Context(), req, existing)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	updated, err := h.book(r.Context(), in, h.store.UpdateAppointment)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// prepare validates req and resolves its patient and practitioner
// references. existing is the stored appointment on updates.
func (h *handlers) prepare(ctx context.Context, req appointment.Appointment, existing *appointment.Appointment) (appointment.Appointment, error) {
	req.Specialty = appointment.Specialty(strings.TrimSpace(string(req.Specialty)))
	req.Complaint = strings.TrimSpace(req.Complaint)
	req.DateTime = strings.TrimSpace(req.DateTime)

	switch {
	case req.Specialty == "":
		return req, &appointment.ValidationError{Field: "especialidade", Message: "Nenhuma especialidade selecionada"}
	case req.Complaint == "":
		return req, &appointment.ValidationError{Field: "queixa", Message: "Informe a queixa do paciente."}
	case req.DateTime == "":
		return req, &appointment.ValidationError{Field: "dataHora", Message: "Informe a data e hora da consulta."}
	}
	dateTime, err := appointment.CanonicalDateTime(req.DateTime)
	if err != nil {
		return req, &appointment.ValidationError{Field: "dataHora", Message: "Data e hora inválidas"}
	}
	req.DateTime = dateTime

	if req.Status == "" {
		req.Status = appointment.StatusPending
	}
	if !req.Status.Valid() {
		return req, &appointment.ValidationError{Field: "status", Message: "Status inválido"}
	}

	if req.Practitioner != nil && req.Practitioner.ID == 0 {
		req.Practitioner = nil
	}
	if req.Practitioner != nil {
		p, err := h.store.GetPractitioner(ctx, req.Practitioner.ID)
		if err != nil {
			return req, err
		}
		req.Practitioner = p
	}

	if req.Patient == nil && existing != nil {
		req.Patient = existing.Patient
	}
	if req.Patient == nil || req.Patient.ID == 0 {
		return req, &appointment.ValidationError{Field: "paciente", Message: "Selecione um paciente antes de cadastrar a consulta."}
	}
	patient, err := h.store.GetPatient(ctx, req.Patient.ID)
	if err != nil {
		return req, err
	}
	req.Patient = patient

	switch {
	case patient.Insurance:
		req.PaymentMethod = appointment.PaymentInsurance
	case req.PaymentMethod == "" && existing != nil:
		req.PaymentMethod = existing.PaymentMethod
	case !req.PaymentMethod.SelfPay():
		return req, &appointment.ValidationError{Field: "statusPagamento", Message: "Escolha um método de pagamento."}
	}
	return req, nil
}

// book runs write under the practitioner+dataHora lock after checking for a
// double booking. Appointments without practitioner are written directly.
func (h *handlers) book(ctx context.Context, in appointment.Appointment, write func(context.Context, appointment.Appointment) (*appointment.Appointment, error)) (*appointment.Appointment, error) {
	if in.Practitioner == nil || in.Status == appointment.StatusCancelled {
		return write(ctx, in)
	}

	var out *appointment.Appointment
	key := redisclient.BookingKey(in.Practitioner.ID, in.DateTime)
	err := h.locker.WithLock(ctx, key, func(ctx context.Context) error {
		_, err := h.store.FindAppointmentConflict(ctx, in.Practitioner.ID, in.DateTime, in.ID)
		switch {
		case err == nil:
			return ErrBookingConflict
		case !errors.Is(err, store.ErrAppointmentNotFound):
			return err
		}
		out, err = write(ctx, in)
		return err
	})
	return out, err
}

func (h *handlers) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *appointment.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Message)
	case errors.Is(err, store.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", "Nenhum Paciente encontrado!")
	case errors.Is(err, store.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", "Médico não encontrado.")
	case errors.Is(err, store.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "Consulta não encontrada.")
	case errors.Is(err, ErrBookingConflict):
		writeError(w, http.StatusConflict, "booking_conflict", "Médico já possui consulta neste horário.")
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "booking_in_progress", "Horário sendo reservado, tente novamente.")
	default:
		h.logger.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
