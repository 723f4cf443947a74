package whatsapp

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/projetocrm/consultas/internal/appointment"
)

const DefaultBaseURL = "https://api.whatsapp.com/send"

var ErrInvalidRecipient = errors.New("whatsapp: paciente ou telefone inválido")

var nonDigits = regexp.MustCompile(`[^0-9]`)

// Message is a composed appointment confirmation ready to be linked.
type Message struct {
	Phone string // digits only
	Text  string
}

// Composer renders appointment confirmations and their deep links.
type Composer struct {
	baseURL string
}

// NewComposer returns a composer linking to baseURL, DefaultBaseURL when empty.
func NewComposer(baseURL string) *Composer {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Composer{baseURL: strings.TrimRight(baseURL, "?")}
}

// NormalizePhone strips everything that is not a digit.
func NormalizePhone(phone string) string {
	return nonDigits.ReplaceAllString(phone, "")
}

// Compose renders the confirmation text for patient. It fails without a
// patient or a phone number with digits.
func Compose(appt appointment.Appointment, patient *appointment.Patient) (Message, error) {
	if patient == nil {
		return Message{}, ErrInvalidRecipient
	}
	phone := NormalizePhone(patient.Phone)
	if phone == "" {
		return Message{}, ErrInvalidRecipient
	}

	practitioner := "Não especificado"
	if appt.Practitioner != nil && appt.Practitioner.Name != "" {
		practitioner = appt.Practitioner.Name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s, sua consulta foi agendada com sucesso!\n\n", patient.Name)
	b.WriteString("Aqui estão os detalhes:\n\n")
	fmt.Fprintf(&b, "Especialidade: %s\n", appt.Specialty)
	fmt.Fprintf(&b, "Data: %s\n", FormatDate(appt.DateTime))
	fmt.Fprintf(&b, "Médico Responsável: %s\n", practitioner)
	fmt.Fprintf(&b, "Queixa: %s\n", appt.Complaint)
	fmt.Fprintf(&b, "Status: %s\n", appt.Status)
	if appt.PaymentMethod != "" {
		fmt.Fprintf(&b, "Método Pagamento: %s\n", appt.PaymentMethod)
	}
	b.WriteString("\nAguardamos você na data e horário agendado. Qualquer dúvida, estamos à disposição.")

	return Message{Phone: phone, Text: b.String()}, nil
}

// Link builds the deep link for m.
func (c *Composer) Link(m Message) string {
	return fmt.Sprintf("%s?phone=%s&text=%s", c.baseURL, m.Phone, encodeComponent(m.Text))
}

// DeepLink composes the confirmation and returns its link.
func (c *Composer) DeepLink(appt appointment.Appointment, patient *appointment.Patient) (string, error) {
	m, err := Compose(appt, patient)
	if err != nil {
		return "", err
	}
	return c.Link(m), nil
}

// FormatDate turns "YYYY-MM-DD" into "DD/MM/YYYY", keeping an "HH:MM" time
// part when present. Anything else is returned unchanged.
func FormatDate(s string) string {
	datePart, timePart, hasTime := strings.Cut(strings.TrimSpace(s), "T")
	parts := strings.Split(datePart, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 || len(parts[2]) != 2 {
		return s
	}
	out := parts[2] + "/" + parts[1] + "/" + parts[0]
	if hasTime && len(timePart) >= 5 {
		out += " " + timePart[:5]
	}
	return out
}

// componentUnescape undoes what url.QueryEscape does beyond a URI component
// encoding: spaces come back as %20 and !'()* stay literal.
var componentUnescape = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent escapes s the way a browser's encodeURIComponent does.
func encodeComponent(s string) string {
	return componentUnescape.Replace(url.QueryEscape(s))
}
