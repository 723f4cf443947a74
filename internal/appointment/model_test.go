package appointment

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAppointment_JSONCanonicalShape(t *testing.T) {
	p := drCarlos
	a := Appointment{
		Specialty:     SpecialtyCardiology,
		Complaint:     "dor",
		DateTime:      "2024-05-10T14:30",
		Practitioner:  &p,
		Status:        StatusInProgress,
		PaymentMethod: PaymentPix,
		Patient:       ana,
	}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"medico":{`, `"dataHora":"2024-05-10T14:30"`, `"statusPagamento":"Pix"`, `"paciente":{`, `"status":"Em andamento"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("%s missing from %s", key, data)
		}
	}
}

func TestAppointment_UnmarshalLegacy(t *testing.T) {
	var a Appointment
	err := json.Unmarshal([]byte(`{"id":3,"especialidade":"Pediatria","data":"2024-06-01","medicoResponsavel":"Dra. B","status":"Pendente"}`), &a)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != 3 || a.DateTime != "2024-06-01" {
		t.Errorf("a = %+v", a)
	}
	if a.Practitioner == nil || a.Practitioner.Name != "Dra. B" || a.Practitioner.Specialty != SpecialtyPediatrics {
		t.Errorf("practitioner = %+v", a.Practitioner)
	}
}

func TestParseSpecialty(t *testing.T) {
	got, err := ParseSpecialty(" cardiologia ")
	if err != nil || got != SpecialtyCardiology {
		t.Errorf("ParseSpecialty = %q, %v", got, err)
	}
	if _, err := ParseSpecialty(""); !IsValidation(err) {
		t.Errorf("empty: %v", err)
	}
	if _, err := ParseSpecialty("Astrologia"); !IsValidation(err) {
		t.Errorf("unknown: %v", err)
	}
	if len(Specialties()) != 10 {
		t.Errorf("specialties = %d", len(Specialties()))
	}
}

func TestStatusAndPayment(t *testing.T) {
	for _, s := range Statuses() {
		if !s.Valid() {
			t.Errorf("%q invalid", s)
		}
	}
	if Status("Talvez").Valid() {
		t.Error("unknown status valid")
	}
	if PaymentInsurance.SelfPay() {
		t.Error("Convênio is not self-pay")
	}
	if len(SelfPayMethods()) != 4 {
		t.Errorf("self pay = %v", SelfPayMethods())
	}
}

func TestCanonicalDateTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-05-10", "2024-05-10"},
		{"2024-05-10T14:30", "2024-05-10T14:30"},
		{" 2024-05-10T14:30:00 ", "2024-05-10T14:30"},
		{"2024-05-10T14:30:45", "2024-05-10T14:30:45"},
		{"2024-05-10T14:30:00-03:00", "2024-05-10T14:30"},
		{"2024-05-10T14:30:00Z", "2024-05-10T14:30"},
	}
	for _, tt := range tests {
		got, err := CanonicalDateTime(tt.in)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalDateTime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := CanonicalDateTime("10/05/2024"); err == nil {
		t.Error("expected error for dd/mm/yyyy")
	}
}
