package appointment

import (
	"strings"
	"sync"
)

// Draft accumulates the user's input for a new consulta until it is
// submitted. All methods are safe for concurrent use.
type Draft struct {
	mu sync.Mutex

	initial      Status
	specialty    Specialty
	complaint    string
	dateTime     string
	practitioner *Practitioner
	status       Status
	payment      PaymentMethod
	patient      *Patient

	// directory is the practitioner list loaded for directoryFor. gen
	// changes with every specialty change so late lists can be told apart.
	directory    []Practitioner
	directoryFor Specialty
	gen          uint64
}

// NewDraft returns an empty draft whose status starts at initial. Invalid
// values fall back to StatusInProgress.
func NewDraft(initial Status) *Draft {
	if !initial.Valid() {
		initial = StatusInProgress
	}
	return &Draft{initial: initial, status: initial}
}

// SetSpecialty changes the selected specialty and drops the directory loaded
// for the previous one. The chosen practitioner is re-checked when the new
// directory arrives. The returned generation must accompany that directory.
func (d *Draft) SetSpecialty(s Specialty) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s == d.specialty {
		return d.gen
	}
	d.gen++
	d.specialty = s
	d.directory = nil
	d.directoryFor = ""
	if s == "" {
		d.practitioner = nil
	}
	return d.gen
}

// ApplyDirectory installs the practitioners fetched for generation gen. A
// list from an older generation is discarded and false is returned.
func (d *Draft) ApplyDirectory(gen uint64, list []Practitioner) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen || d.specialty == "" {
		return false
	}

	directory := uniqueByID(list)
	d.directory = directory
	d.directoryFor = d.specialty

	if d.practitioner != nil {
		if p, ok := findPractitioner(directory, d.practitioner.ID); ok {
			d.practitioner = &p
		} else {
			d.practitioner = nil
		}
	}
	return true
}

// ClearDirectory drops the loaded list when the fetch for generation gen
// failed. Failures of older generations are ignored.
func (d *Draft) ClearDirectory(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen {
		return
	}
	d.directory = nil
	d.directoryFor = d.specialty
	d.practitioner = nil
}

// SelectPractitioner picks a practitioner from the loaded directory. Zero
// clears the selection.
func (d *Draft) SelectPractitioner(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id == 0 {
		d.practitioner = nil
		return nil
	}
	if d.directoryFor != d.specialty || d.specialty == "" {
		return &ValidationError{Field: "medico", Message: "Lista de médicos ainda não carregada para a especialidade"}
	}
	p, ok := findPractitioner(d.directory, id)
	if !ok {
		return &ValidationError{Field: "medico", Message: "Médico não pertence à especialidade selecionada"}
	}
	d.practitioner = &p
	return nil
}

func (d *Draft) SetComplaint(s string) {
	d.mu.Lock()
	d.complaint = s
	d.mu.Unlock()
}

// SetDateTime accepts an ISO-8601 date or date-time. Empty clears the field.
func (d *Draft) SetDateTime(s string) error {
	s = strings.TrimSpace(s)
	if s != "" {
		if _, err := ParseDateTime(s); err != nil {
			return &ValidationError{Field: "dataHora", Message: "Data e hora inválidas"}
		}
	}

	d.mu.Lock()
	d.dateTime = s
	d.mu.Unlock()
	return nil
}

func (d *Draft) SetStatus(s Status) error {
	if !s.Valid() {
		return &ValidationError{Field: "status", Message: "Status inválido"}
	}

	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
	return nil
}

// SetPaymentMethod records the chosen method. Insured patients keep
// "Convênio" whatever is passed.
func (d *Draft) SetPaymentMethod(m PaymentMethod) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.patient != nil && d.patient.Insurance {
		d.payment = PaymentInsurance
		return nil
	}
	if m != "" && !m.SelfPay() {
		return &ValidationError{Field: "statusPagamento", Message: "Método de pagamento inválido"}
	}
	d.payment = m
	return nil
}

// SetPatient sets the resolved patient. Insurance forces the payment method
// to "Convênio"; losing it clears a forced "Convênio".
func (d *Draft) SetPatient(p *Patient) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p == nil {
		d.patient = nil
		if d.payment == PaymentInsurance {
			d.payment = ""
		}
		return
	}

	cp := *p
	d.patient = &cp
	switch {
	case cp.Insurance:
		d.payment = PaymentInsurance
	case d.payment == PaymentInsurance:
		d.payment = ""
	}
}

// Validate returns the first failing field as a *ValidationError.
func (d *Draft) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.patient == nil:
		return &ValidationError{Field: "paciente", Message: "Selecione um paciente antes de cadastrar a consulta."}
	case d.specialty == "":
		return &ValidationError{Field: "especialidade", Message: "Nenhuma especialidade selecionada"}
	case strings.TrimSpace(d.complaint) == "":
		return &ValidationError{Field: "queixa", Message: "Informe a queixa do paciente."}
	case d.dateTime == "":
		return &ValidationError{Field: "dataHora", Message: "Informe a data e hora da consulta."}
	case d.practitioner != nil && !d.practitionerListed():
		return &ValidationError{Field: "medico", Message: "Médico não pertence à especialidade selecionada"}
	}

	if d.patient.Insurance {
		if d.payment != PaymentInsurance {
			return &ValidationError{Field: "statusPagamento", Message: "Pagamento deve ser Convênio para paciente conveniado."}
		}
		return nil
	}
	if !d.payment.SelfPay() {
		return &ValidationError{Field: "statusPagamento", Message: "Escolha um método de pagamento."}
	}
	return nil
}

func (d *Draft) CanSubmit() bool {
	return d.Validate() == nil
}

// Reset returns the draft to its initial empty state.
func (d *Draft) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.specialty = ""
	d.complaint = ""
	d.dateTime = ""
	d.practitioner = nil
	d.status = d.initial
	d.payment = ""
	d.patient = nil
	d.directory = nil
	d.directoryFor = ""
	d.gen++
}

// practitionerListed requires d.mu. It reports whether the selected
// practitioner is in the directory loaded for the current specialty.
func (d *Draft) practitionerListed() bool {
	if d.directoryFor != d.specialty {
		return false
	}
	_, ok := findPractitioner(d.directory, d.practitioner.ID)
	return ok
}

// Payload builds the appointment sent to the API.
func (d *Draft) Payload() Appointment {
	d.mu.Lock()
	defer d.mu.Unlock()

	appt := Appointment{
		Specialty:     d.specialty,
		Complaint:     strings.TrimSpace(d.complaint),
		DateTime:      d.dateTime,
		Status:        d.status,
		PaymentMethod: d.payment,
	}
	if d.practitioner != nil {
		p := *d.practitioner
		appt.Practitioner = &p
	}
	if d.patient != nil {
		p := *d.patient
		appt.Patient = &p
	}
	return appt
}

func (d *Draft) Specialty() Specialty {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.specialty
}

func (d *Draft) Patient() *Patient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.patient == nil {
		return nil
	}
	p := *d.patient
	return &p
}

func (d *Draft) Practitioner() *Practitioner {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.practitioner == nil {
		return nil
	}
	p := *d.practitioner
	return &p
}

func (d *Draft) PaymentMethod() PaymentMethod {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.payment
}

func (d *Draft) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Directory returns the practitioners loaded for the current specialty.
func (d *Draft) Directory() []Practitioner {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Practitioner(nil), d.directory...)
}

func findPractitioner(list []Practitioner, id int64) (Practitioner, bool) {
	for _, p := range list {
		if p.ID == id {
			return p, true
		}
	}
	return Practitioner{}, false
}
