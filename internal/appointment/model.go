package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "Pendente"
	StatusInProgress Status = "Em andamento"
	StatusConfirmed  Status = "Confirmada"
	StatusCancelled  Status = "Cancelada"
	StatusCompleted  Status = "Concluída"
)

var statuses = []Status{StatusPending, StatusInProgress, StatusConfirmed, StatusCancelled, StatusCompleted}

// Statuses lists every accepted status in display order.
func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

func (s Status) Valid() bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "Cartão de Crédito"
	PaymentDebitCard  PaymentMethod = "Cartão de Débito"
	PaymentPix        PaymentMethod = "Pix"
	PaymentCash       PaymentMethod = "Dinheiro"
	PaymentInsurance  PaymentMethod = "Convênio"
)

var selfPayMethods = []PaymentMethod{PaymentCreditCard, PaymentDebitCard, PaymentPix, PaymentCash}

// SelfPayMethods lists the methods offered to patients without insurance.
func SelfPayMethods() []PaymentMethod {
	return append([]PaymentMethod(nil), selfPayMethods...)
}

// SelfPay reports whether m is one of the non-insurance methods.
func (m PaymentMethod) SelfPay() bool {
	for _, v := range selfPayMethods {
		if v == m {
			return true
		}
	}
	return false
}

type Specialty string

const (
	SpecialtyCardiology    Specialty = "Cardiologia"
	SpecialtyDermatology   Specialty = "Dermatologia"
	SpecialtyEndocrinology Specialty = "Endocrinologia"
	SpecialtyGynecology    Specialty = "Ginecologia"
	SpecialtyNeurology     Specialty = "Neurologia"
	SpecialtyOphthalmology Specialty = "Oftalmologia"
	SpecialtyOrthopedics   Specialty = "Ortopedia"
	SpecialtyPediatrics    Specialty = "Pediatria"
	SpecialtyPsychiatry    Specialty = "Psiquiatria"
	SpecialtyUrology       Specialty = "Urologia"
)

var specialties = []Specialty{
	SpecialtyCardiology,
	SpecialtyDermatology,
	SpecialtyEndocrinology,
	SpecialtyGynecology,
	SpecialtyNeurology,
	SpecialtyOphthalmology,
	SpecialtyOrthopedics,
	SpecialtyPediatrics,
	SpecialtyPsychiatry,
	SpecialtyUrology,
}

// Specialties lists the specialties offered by the clinic.
func Specialties() []Specialty {
	return append([]Specialty(nil), specialties...)
}

// ParseSpecialty matches s case-insensitively against the known specialties.
func ParseSpecialty(s string) (Specialty, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ValidationError{Field: "especialidade", Message: "Nenhuma especialidade selecionada"}
	}
	for _, v := range specialties {
		if strings.EqualFold(string(v), s) {
			return v, nil
		}
	}
	return "", &ValidationError{Field: "especialidade", Message: fmt.Sprintf("Especialidade desconhecida: %s", s)}
}

type Patient struct {
	ID        int64  `json:"id"`
	Name      string `json:"nome"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"telefone,omitempty"`
	CPF       string `json:"cpf"`
	Address   string `json:"endereco,omitempty"`
	Insurance bool   `json:"convenio"`
}

type Practitioner struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nome"`
	Specialty Specialty `json:"especialidade"`
	CRM       string    `json:"crm,omitempty"`
}

// Appointment is the canonical consulta shape exchanged with the API.
type Appointment struct {
	ID            int64         `json:"id"`
	Specialty     Specialty     `json:"especialidade"`
	Complaint     string        `json:"queixa"`
	DateTime      string        `json:"dataHora"`
	Practitioner  *Practitioner `json:"medico"`
	Status        Status        `json:"status"`
	PaymentMethod PaymentMethod `json:"statusPagamento,omitempty"`
	Patient       *Patient      `json:"paciente"`
}

// UnmarshalJSON accepts the legacy consulta shape as well: "data" fills
// DateTime and a free-text "medicoResponsavel" becomes the practitioner name.
func (a *Appointment) UnmarshalJSON(data []byte) error {
	type canonical Appointment
	var raw struct {
		canonical
		LegacyDate         string `json:"data"`
		LegacyPractitioner string `json:"medicoResponsavel"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Appointment(raw.canonical)
	if a.DateTime == "" {
		a.DateTime = raw.LegacyDate
	}
	if a.Practitioner == nil && raw.LegacyPractitioner != "" {
		a.Practitioner = &Practitioner{Name: raw.LegacyPractitioner, Specialty: a.Specialty}
	}
	return nil
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04"
)

var dateTimeLayouts = []string{
	dateLayout,
	dateTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDateTime parses the ISO-8601 forms produced by date and
// datetime-local inputs as well as RFC 3339.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date/time %q", s)
}

// CanonicalDateTime rewrites any form accepted by ParseDateTime to a single
// spelling, so equal wall-clock times compare equal as strings. Bare dates
// stay "2006-01-02"; everything else becomes "2006-01-02T15:04", with
// seconds only when non-zero. A zone offset is dropped and the wall-clock
// time kept.
func CanonicalDateTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	t, err := ParseDateTime(s)
	if err != nil {
		return "", err
	}
	if t.Second() != 0 {
		return t.Format("2006-01-02T15:04:05"), nil
	}
	return t.Format(dateTimeLayout), nil
}
