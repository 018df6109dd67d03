package intake

import (
	"bytes"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestParseEchoesValuesUnchanged(t *testing.T) {
	values := url.Values{
		"name":             {"Jane Doe"},
		"age":              {"34"},
		"gender":           {"Female"},
		"contact":          {"555-1234"},
		"appointment_date": {"2024-05-01"},
		"reason_for_visit": {"Cleaning"},
	}
	rec, err := Parse(values)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{
		"Patient Name: Jane Doe",
		"Age: 34",
		"Gender: Female",
		"Contact: 555-1234",
		"Appointment Date: 2024-05-01",
		"Reason for Visit: Cleaning",
	}
	got := rec.Confirmation()
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestParseDefaults(t *testing.T) {
	today := time.Date(2026, 3, 9, 15, 4, 5, 0, time.Local)
	rec, err := ParseAt(url.Values{}, today)
	if err != nil {
		t.Fatalf("ParseAt: %v", err)
	}
	if rec.Age != 0 || rec.Gender != "Male" {
		t.Errorf("unexpected defaults %+v", rec)
	}
	if got := rec.AppointmentDate.Format(DateLayout); got != "2026-03-09" {
		t.Errorf("expected today's date, got %s", got)
	}
}

func TestParseRejectsWidgetViolations(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"age below range", FieldAge, "-1"},
		{"age above range", FieldAge, "121"},
		{"age not a number", FieldAge, "thirty"},
		{"age fractional", FieldAge, "34.5"},
		{"unknown gender", FieldGender, "female"},
		{"malformed date", FieldAppointmentDate, "05/01/2024"},
		{"impossible date", FieldAppointmentDate, "2024-02-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(url.Values{tt.key: {tt.value}})
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FieldError, got %v", err)
			}
			if fe.Field != tt.key {
				t.Errorf("expected field %q, got %q", tt.key, fe.Field)
			}
		})
	}
}

func TestParseAgeBounds(t *testing.T) {
	for _, s := range []string{"0", "120", " 7 "} {
		if _, err := ParseAge(s); err != nil {
			t.Errorf("ParseAge(%q): %v", s, err)
		}
	}
}

func TestTerminalFormRecord(t *testing.T) {
	today := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f := NewTerminalForm(today)
	f.name = "Jane Doe"
	f.age = "34"
	f.gender = "Female"
	f.contact = "555-1234"
	f.reason = "Cleaning"

	rec, err := f.Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	var buf bytes.Buffer
	WriteConfirmation(&buf, rec)
	out := buf.String()
	for _, line := range []string{"Patient Name: Jane Doe", "Appointment Date: 2024-05-01", "Reason for Visit: Cleaning"} {
		if !strings.Contains(out, line+"\n") {
			t.Errorf("missing %q in output:\n%s", line, out)
		}
	}
}
