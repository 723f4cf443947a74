package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Composer builds the messaging deep link announcing a new appointment.
type Composer interface {
	DeepLink(appt Appointment, patient *Patient) (string, error)
}

type WorkflowOptions struct {
	InitialStatus Status
	Composer      Composer
	Opener        LinkOpener
	Navigator     Navigator
}

// Workflow drives the registration of a new consulta: patient lookup,
// practitioner directory per specialty, draft validation and submission.
type Workflow struct {
	svc   *Service
	draft *Draft
	opts  WorkflowOptions

	mu           sync.Mutex
	state        State
	onTransition func(from, to State)
}

func NewWorkflow(svc *Service, opts WorkflowOptions) *Workflow {
	return &Workflow{
		svc:   svc,
		draft: NewDraft(opts.InitialStatus),
		opts:  opts,
	}
}

func (w *Workflow) Draft() *Draft {
	return w.draft
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// OnTransition registers fn to observe state changes. fn runs with the
// workflow lock held and must not call back into the Workflow.
func (w *Workflow) OnTransition(fn func(from, to State)) {
	w.mu.Lock()
	w.onTransition = fn
	w.mu.Unlock()
}

// CommitDocument looks the CPF up and makes the result the draft's resolved
// patient. A miss clears any previously resolved patient.
func (w *Workflow) CommitDocument(ctx context.Context, cpf string) LookupResult {
	if !w.svc.requireSession(w.opts.Navigator) {
		return LookupResult{}
	}
	res := w.svc.LookupByDocument(ctx, cpf)
	w.draft.SetPatient(res.Patient)
	return res
}

// ChangeSpecialty selects a specialty and refreshes its directory. A
// response that arrives after the specialty changed again is dropped.
func (w *Workflow) ChangeSpecialty(ctx context.Context, specialty Specialty) error {
	gen := w.draft.SetSpecialty(specialty)
	if specialty == "" {
		_, err := w.svc.ListBySpecialty(ctx, specialty)
		return err
	}
	if !w.svc.requireSession(w.opts.Navigator) {
		return fmt.Errorf("%w: no session token", ErrForbidden)
	}

	list, err := w.svc.ListBySpecialty(ctx, specialty)
	if err != nil {
		w.draft.ClearDirectory(gen)
		return err
	}
	if !w.draft.ApplyDirectory(gen, list) {
		w.svc.logger.Debug().Str("especialidade", string(specialty)).Msg("stale practitioner directory discarded")
	}
	return nil
}

// SelectPractitioner picks a practitioner of the loaded directory.
func (w *Workflow) SelectPractitioner(id int64) error {
	if err := w.draft.SelectPractitioner(id); err != nil {
		w.svc.notifier.Error(userMessage(err))
		return err
	}
	return nil
}

// Submit sends the draft to the API. It refuses to run while a previous
// submission is in flight and never retries.
func (w *Workflow) Submit(ctx context.Context) (*Appointment, error) {
	if !w.svc.requireSession(w.opts.Navigator) {
		return nil, fmt.Errorf("%w: no session token", ErrForbidden)
	}

	w.mu.Lock()
	if w.state == StateSubmitting {
		w.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if w.state != StateIdle {
		w.transition(StateIdle)
	}
	if err := w.draft.Validate(); err != nil {
		w.mu.Unlock()
		w.svc.notifier.Error(userMessage(err))
		return nil, err
	}
	w.transition(StateSubmitting)
	w.mu.Unlock()

	payload := w.draft.Payload()

	created, err := w.svc.repo.CreateAppointment(ctx, payload)
	if err != nil {
		w.setState(StateFailed)
		if !w.svc.handleForbidden(err) {
			w.svc.logger.Error().Err(err).Msg("create appointment failed")
			w.svc.notifier.Error("Erro ao cadastrar consulta.")
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	w.setState(StateSucceeded)

	result := mergeResponse(created, payload)
	w.svc.logger.Info().Int64("consulta_id", result.ID).Msg("appointment created")

	w.svc.notifier.Success("Consulta cadastrada com sucesso!")
	w.announce(result, payload.Patient)
	w.draft.Reset()
	if w.opts.Navigator != nil {
		w.opts.Navigator.Navigate(RouteAppointments)
	}

	return &result, nil
}

// Acknowledge returns a finished submission to Idle.
func (w *Workflow) Acknowledge() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSucceeded || w.state == StateFailed {
		w.transition(StateIdle)
	}
}

func (w *Workflow) announce(appt Appointment, patient *Patient) {
	if w.opts.Composer == nil {
		return
	}
	link, err := w.opts.Composer.DeepLink(appt, patient)
	if err != nil {
		w.svc.logger.Warn().Err(err).Msg("whatsapp message not composed")
		w.svc.notifier.Error("WhatsApp: Paciente ou telefone inválido!")
		return
	}
	if w.opts.Opener == nil {
		return
	}
	if err := w.opts.Opener.Open(link); err != nil {
		w.svc.logger.Warn().Err(err).Msg("open whatsapp link")
	}
}

func (w *Workflow) setState(to State) {
	w.mu.Lock()
	w.transition(to)
	w.mu.Unlock()
}

// transition requires w.mu.
func (w *Workflow) transition(to State) {
	from := w.state
	w.state = to
	if w.onTransition != nil {
		w.onTransition(from, to)
	}
}

// mergeResponse fills the fields the API left empty in its response with the
// values that were sent.
func mergeResponse(created *Appointment, sent Appointment) Appointment {
	if created == nil {
		return sent
	}
	out := *created
	if out.Specialty == "" {
		out.Specialty = sent.Specialty
	}
	if out.Complaint == "" {
		out.Complaint = sent.Complaint
	}
	if out.DateTime == "" {
		out.DateTime = sent.DateTime
	}
	if out.Practitioner == nil {
		out.Practitioner = sent.Practitioner
	}
	if out.Status == "" {
		out.Status = sent.Status
	}
	if out.PaymentMethod == "" {
		out.PaymentMethod = sent.PaymentMethod
	}
	if out.Patient == nil {
		out.Patient = sent.Patient
	}
	return out
}

// IsForbidden reports whether err came from a rejected session.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
