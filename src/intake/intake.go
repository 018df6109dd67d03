package intake

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	MinAge = 0
	MaxAge = 120

	DateLayout = "2006-01-02"
)

// Genders lists the selectable genders; the first entry is the default.
var Genders = []string{"Male", "Female", "Other"}

// Form field names shared by the web form and the terminal form.
const (
	FieldName            = "name"
	FieldAge             = "age"
	FieldGender          = "gender"
	FieldContact         = "contact"
	FieldAppointmentDate = "appointment_date"
	FieldReasonForVisit  = "reason_for_visit"
)

// PatientRecord is one intake submission. It is echoed back and never stored.
type PatientRecord struct {
	Name            string
	Age             int
	Gender          string
	Contact         string
	AppointmentDate time.Time
	ReasonForVisit  string
}

// FieldError reports a value that the form widget would not have accepted.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Parse reads a submission, defaulting a blank appointment date to today.
func Parse(values url.Values) (PatientRecord, error) {
	return ParseAt(values, time.Now())
}

// ParseAt is Parse with an explicit "today".
func ParseAt(values url.Values, today time.Time) (PatientRecord, error) {
	rec := PatientRecord{
		Name:           values.Get(FieldName),
		Contact:        values.Get(FieldContact),
		ReasonForVisit: values.Get(FieldReasonForVisit),
	}

	age, err := ParseAge(values.Get(FieldAge))
	if err != nil {
		return PatientRecord{}, err
	}
	rec.Age = age

	gender, err := ParseGender(values.Get(FieldGender))
	if err != nil {
		return PatientRecord{}, err
	}
	rec.Gender = gender

	date, err := ParseDate(values.Get(FieldAppointmentDate), today)
	if err != nil {
		return PatientRecord{}, err
	}
	rec.AppointmentDate = date

	return rec, nil
}

// ParseAge accepts whole numbers in [MinAge, MaxAge]. Blank means MinAge.
func ParseAge(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MinAge, nil
	}
	age, err := strconv.Atoi(s)
	if err != nil {
		return 0, &FieldError{Field: FieldAge, Reason: "must be a whole number"}
	}
	if age < MinAge || age > MaxAge {
		return 0, &FieldError{Field: FieldAge, Reason: fmt.Sprintf("must be between %d and %d", MinAge, MaxAge)}
	}
	return age, nil
}

// ParseGender accepts one of Genders. Blank means the first option.
func ParseGender(s string) (string, error) {
	if s == "" {
		return Genders[0], nil
	}
	for _, g := range Genders {
		if s == g {
			return g, nil
		}
	}
	return "", &FieldError{Field: FieldGender, Reason: "must be one of " + strings.Join(Genders, ", ")}
}

// ParseDate accepts YYYY-MM-DD. Blank means today.
func ParseDate(s string, today time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		y, m, d := today.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &FieldError{Field: FieldAppointmentDate, Reason: "use YYYY-MM-DD"}
	}
	return date, nil
}

// Confirmation returns the echo lines shown after a submission, in display order.
func (r PatientRecord) Confirmation() []string {
	return []string{
		"Patient Name: " + r.Name,
		"Age: " + strconv.Itoa(r.Age),
		"Gender: " + r.Gender,
		"Contact: " + r.Contact,
		"Appointment Date: " + r.AppointmentDate.Format(DateLayout),
		"Reason for Visit: " + r.ReasonForVisit,
	}
}
