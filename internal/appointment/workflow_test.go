package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type harness struct {
	wf      *Workflow
	repo    *fakeRepo
	notes   *notes
	session *fakeSession
	nav     *routes
	opener  *opener

	mu          sync.Mutex
	transitions []string
}

func newHarness(repo *fakeRepo) *harness {
	svc, n, s := newTestService(repo)
	h := &harness{repo: repo, notes: n, session: s, nav: &routes{}, opener: &opener{}}
	h.wf = NewWorkflow(svc, WorkflowOptions{
		InitialStatus: StatusInProgress,
		Composer:      linkComposer{},
		Opener:        h.opener,
		Navigator:     h.nav,
	})
	h.wf.OnTransition(func(from, to State) {
		h.mu.Lock()
		h.transitions = append(h.transitions, from.String()+"->"+to.String())
		h.mu.Unlock()
	})
	return h
}

func (h *harness) fill(t *testing.T, cpf string) {
	t.Helper()
	ctx := context.Background()
	if res := h.wf.CommitDocument(ctx, cpf); !res.Found {
		t.Fatalf("lookup %s failed: %v", cpf, h.notes.errors)
	}
	if err := h.wf.ChangeSpecialty(ctx, SpecialtyCardiology); err != nil {
		t.Fatalf("ChangeSpecialty: %v", err)
	}
	if err := h.wf.SelectPractitioner(drCarlos.ID); err != nil {
		t.Fatalf("SelectPractitioner: %v", err)
	}
	h.wf.Draft().SetComplaint("dor no peito")
	if err := h.wf.Draft().SetDateTime("2024-05-10T14:30"); err != nil {
		t.Fatal(err)
	}
	_ = h.wf.Draft().SetPaymentMethod(PaymentPix)
}

func (h *harness) transitionLog() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.transitions...)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSubmit_IncompleteDraftMakesNoCall(t *testing.T) {
	h := newHarness(directoryRepo())

	_, err := h.wf.Submit(context.Background())
	if !IsValidation(err) {
		t.Fatalf("err = %v", err)
	}
	if h.repo.count("CreateAppointment") != 0 {
		t.Error("create called for incomplete draft")
	}
	if h.wf.State() != StateIdle {
		t.Errorf("state = %v", h.wf.State())
	}
	if h.notes.lastError() != "Selecione um paciente antes de cadastrar a consulta." {
		t.Errorf("error = %q", h.notes.lastError())
	}
}

func TestSubmit_Success(t *testing.T) {
	repo := directoryRepo()
	var sent Appointment
	repo.create = func(_ context.Context, a Appointment) (*Appointment, error) {
		sent = a
		return &Appointment{ID: 42}, nil
	}
	h := newHarness(repo)
	h.fill(t, ana.CPF)

	created, err := h.wf.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if sent.Patient == nil || sent.Patient.ID != ana.ID || sent.Status != StatusInProgress || sent.PaymentMethod != PaymentPix {
		t.Errorf("sent = %+v", sent)
	}
	if created.ID != 42 || created.Complaint != "dor no peito" || created.Practitioner == nil {
		t.Errorf("created should be merged with what was sent: %+v", created)
	}
	if got := h.transitionLog(); !equal(got, []string{"idle->submitting", "submitting->succeeded"}) {
		t.Errorf("transitions = %v", got)
	}
	if h.notes.lastSuccess() != "Consulta cadastrada com sucesso!" {
		t.Errorf("success = %q", h.notes.lastSuccess())
	}
	if len(h.opener.links) != 1 || h.opener.links[0] != "wa:11999990000:2024-05-10T14:30" {
		t.Errorf("links = %v", h.opener.links)
	}
	if len(h.nav.seen) != 1 || h.nav.seen[0] != RouteAppointments {
		t.Errorf("routes = %v", h.nav.seen)
	}
	if h.wf.Draft().Patient() != nil || h.wf.Draft().Specialty() != "" {
		t.Error("draft not reset after success")
	}

	h.wf.Acknowledge()
	if h.wf.State() != StateIdle {
		t.Errorf("state after Acknowledge = %v", h.wf.State())
	}
}

func TestSubmit_ComposerFailureStillSucceeds(t *testing.T) {
	repo := directoryRepo()
	repo.findPatient = func(context.Context, string) (*Patient, error) {
		return &Patient{ID: 3, Name: "Sem Telefone"}, nil
	}
	h := newHarness(repo)
	h.fill(t, "1")

	if _, err := h.wf.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h.notes.lastError() != "WhatsApp: Paciente ou telefone inválido!" {
		t.Errorf("error = %q", h.notes.lastError())
	}
	if len(h.opener.links) != 0 {
		t.Errorf("links = %v", h.opener.links)
	}
	if h.wf.State() != StateSucceeded {
		t.Errorf("state = %v", h.wf.State())
	}
}

func TestSubmit_Forbidden(t *testing.T) {
	repo := directoryRepo()
	repo.create = func(context.Context, Appointment) (*Appointment, error) {
		return nil, fmt.Errorf("create appointment: %w", ErrForbidden)
	}
	h := newHarness(repo)
	h.fill(t, ana.CPF)

	_, err := h.wf.Submit(context.Background())
	if !IsForbidden(err) {
		t.Fatalf("err = %v", err)
	}
	if h.session.invalidated != 1 {
		t.Errorf("invalidated = %d", h.session.invalidated)
	}
	if h.wf.State() != StateFailed {
		t.Errorf("state = %v", h.wf.State())
	}
	if p := h.wf.Draft().Patient(); p == nil || p.ID != ana.ID {
		t.Error("draft should be kept after a failed submit")
	}
	if h.notes.lastError() == "Erro ao cadastrar consulta." {
		t.Error("403 should not show the generic error")
	}

	h.wf.Acknowledge()
	if h.wf.State() != StateIdle {
		t.Errorf("state after Acknowledge = %v", h.wf.State())
	}
}

func TestSubmit_FailureThenRetry(t *testing.T) {
	repo := directoryRepo()
	fail := true
	repo.create = func(_ context.Context, a Appointment) (*Appointment, error) {
		if fail {
			return nil, errors.New("http 500")
		}
		a.ID = 7
		return &a, nil
	}
	h := newHarness(repo)
	h.fill(t, ana.CPF)

	if _, err := h.wf.Submit(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if h.notes.lastError() != "Erro ao cadastrar consulta." {
		t.Errorf("error = %q", h.notes.lastError())
	}
	if h.repo.count("CreateAppointment") != 1 {
		t.Errorf("create calls = %d, no automatic retry expected", h.repo.count("CreateAppointment"))
	}

	fail = false
	created, err := h.wf.Submit(context.Background())
	if err != nil || created.ID != 7 {
		t.Fatalf("retry = %+v, %v", created, err)
	}
	want := []string{
		"idle->submitting", "submitting->failed",
		"failed->idle", "idle->submitting", "submitting->succeeded",
	}
	if got := h.transitionLog(); !equal(got, want) {
		t.Errorf("transitions = %v", got)
	}
}

func TestSubmit_RejectsConcurrentSubmit(t *testing.T) {
	repo := directoryRepo()
	entered := make(chan struct{})
	release := make(chan struct{})
	repo.create = func(_ context.Context, a Appointment) (*Appointment, error) {
		close(entered)
		<-release
		a.ID = 1
		return &a, nil
	}
	h := newHarness(repo)
	h.fill(t, ana.CPF)

	done := make(chan error, 1)
	go func() {
		_, err := h.wf.Submit(context.Background())
		done <- err
	}()

	<-entered
	if h.wf.State() != StateSubmitting {
		t.Errorf("state = %v", h.wf.State())
	}
	if _, err := h.wf.Submit(context.Background()); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("second Submit err = %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if h.repo.count("CreateAppointment") != 1 {
		t.Errorf("create calls = %d", h.repo.count("CreateAppointment"))
	}
}

func TestSubmit_NoSession(t *testing.T) {
	h := newHarness(directoryRepo())
	h.fill(t, ana.CPF)
	h.session.token = ""

	_, err := h.wf.Submit(context.Background())
	if !IsForbidden(err) {
		t.Fatalf("err = %v", err)
	}
	if h.repo.count("CreateAppointment") != 0 {
		t.Error("create called without session")
	}
	if h.notes.lastError() != "Você precisa estar logado" {
		t.Errorf("error = %q", h.notes.lastError())
	}
	if len(h.nav.seen) != 1 || h.nav.seen[0] != RouteHome {
		t.Errorf("routes = %v", h.nav.seen)
	}
}

func TestChangeSpecialty_StaleResponseDiscarded(t *testing.T) {
	repo := directoryRepo()
	cardioEntered := make(chan struct{})
	releaseCardio := make(chan struct{})
	repo.bySpecialty = func(_ context.Context, s Specialty) ([]Practitioner, error) {
		if s == SpecialtyCardiology {
			close(cardioEntered)
			<-releaseCardio
			return []Practitioner{drCarlos, drDiana}, nil
		}
		return []Practitioner{drElisa}, nil
	}
	h := newHarness(repo)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.wf.ChangeSpecialty(ctx, SpecialtyCardiology) }()
	<-cardioEntered

	if err := h.wf.ChangeSpecialty(ctx, SpecialtyDermatology); err != nil {
		t.Fatalf("ChangeSpecialty: %v", err)
	}
	close(releaseCardio)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stale ChangeSpecialty: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cardiology request never returned")
	}

	dir := h.wf.Draft().Directory()
	if len(dir) != 1 || dir[0].ID != drElisa.ID {
		t.Errorf("directory = %+v, want dermatology only", dir)
	}
	if h.wf.Draft().Specialty() != SpecialtyDermatology {
		t.Errorf("specialty = %q", h.wf.Draft().Specialty())
	}
	if err := h.wf.SelectPractitioner(drCarlos.ID); !IsValidation(err) {
		t.Errorf("selecting a cardiologist after switch: err = %v", err)
	}
}

func TestChangeSpecialty_LateResponseOfReselectedSpecialty(t *testing.T) {
	repo := directoryRepo()
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	var (
		mu          sync.Mutex
		cardioCalls int
	)
	repo.bySpecialty = func(_ context.Context, s Specialty) ([]Practitioner, error) {
		if s != SpecialtyCardiology {
			return []Practitioner{drElisa}, nil
		}
		mu.Lock()
		cardioCalls++
		first := cardioCalls == 1
		mu.Unlock()
		if first {
			close(firstEntered)
			<-releaseFirst
			return []Practitioner{drDiana}, nil
		}
		return []Practitioner{drCarlos, drDiana}, nil
	}
	h := newHarness(repo)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.wf.ChangeSpecialty(ctx, SpecialtyCardiology) }()
	<-firstEntered

	if err := h.wf.ChangeSpecialty(ctx, SpecialtyDermatology); err != nil {
		t.Fatalf("ChangeSpecialty(derm): %v", err)
	}
	if err := h.wf.ChangeSpecialty(ctx, SpecialtyCardiology); err != nil {
		t.Fatalf("ChangeSpecialty(cardio): %v", err)
	}
	if err := h.wf.SelectPractitioner(drCarlos.ID); err != nil {
		t.Fatalf("SelectPractitioner: %v", err)
	}

	close(releaseFirst)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first ChangeSpecialty: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first cardiology request never returned")
	}

	if dir := h.wf.Draft().Directory(); len(dir) != 2 || dir[0].ID != drCarlos.ID {
		t.Errorf("directory = %+v, want the latest cardiology list", dir)
	}
	if p := h.wf.Draft().Practitioner(); p == nil || p.ID != drCarlos.ID {
		t.Errorf("practitioner = %+v, want Dr. Carlos kept", p)
	}
}

func TestChangeSpecialty_NoSessionBlocksStalePractitioner(t *testing.T) {
	h := newHarness(directoryRepo())
	h.fill(t, ana.CPF)

	h.session.token = ""
	if err := h.wf.ChangeSpecialty(context.Background(), SpecialtyDermatology); !IsForbidden(err) {
		t.Fatalf("err = %v", err)
	}
	h.session.token = "Bearer t"

	if _, err := h.wf.Submit(context.Background()); !IsValidation(err) {
		t.Fatalf("Submit err = %v, want validation error", err)
	}
	if h.repo.count("CreateAppointment") != 0 {
		t.Error("appointment created with a practitioner of another specialty")
	}
}

func TestChangeSpecialty_FailureClearsDirectory(t *testing.T) {
	repo := directoryRepo()
	h := newHarness(repo)
	ctx := context.Background()

	if err := h.wf.ChangeSpecialty(ctx, SpecialtyUrology); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if h.notes.lastError() != "Nenhum médico encontrado." {
		t.Errorf("error = %q", h.notes.lastError())
	}
	if len(h.wf.Draft().Directory()) != 0 {
		t.Error("directory should be empty")
	}
}

func TestCommitDocument_MissClearsPatient(t *testing.T) {
	h := newHarness(directoryRepo())
	ctx := context.Background()

	h.wf.CommitDocument(ctx, bia.CPF)
	if h.wf.Draft().PaymentMethod() != PaymentInsurance {
		t.Fatalf("payment = %q", h.wf.Draft().PaymentMethod())
	}
	h.wf.CommitDocument(ctx, "00000000000")
	if h.wf.Draft().Patient() != nil {
		t.Error("patient should be cleared on miss")
	}
	if h.wf.Draft().CanSubmit() {
		t.Error("draft without patient can submit")
	}
}

func TestMergeResponse(t *testing.T) {
	sent := Appointment{Specialty: SpecialtyCardiology, Complaint: "x", DateTime: "2024-01-01", Status: StatusPending, Patient: ana}
	if got := mergeResponse(nil, sent); got.Complaint != "x" {
		t.Errorf("nil response = %+v", got)
	}
	got := mergeResponse(&Appointment{ID: 9, Complaint: "y"}, sent)
	if got.ID != 9 || got.Complaint != "y" || got.DateTime != "2024-01-01" || got.Patient != ana {
		t.Errorf("merged = %+v", got)
	}
}
