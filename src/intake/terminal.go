package intake

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
)

// ErrAborted is returned when the user leaves the terminal form.
var ErrAborted = errors.New("form aborted")

// TerminalForm is the huh rendition of the intake form.
type TerminalForm struct {
	form  *huh.Form
	today time.Time

	name    string
	age     string
	gender  string
	contact string
	date    string
	reason  string
}

// NewTerminalForm builds the form with widget defaults.
func NewTerminalForm(today time.Time) *TerminalForm {
	f := &TerminalForm{
		today:  today,
		age:    strconv.Itoa(MinAge),
		gender: Genders[0],
		date:   today.Format(DateLayout),
	}

	options := make([]huh.Option[string], 0, len(Genders))
	for _, g := range Genders {
		options = append(options, huh.NewOption(g, g))
	}

	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("Patient Information"),
			huh.NewInput().
				Key(FieldName).
				Title("Name").
				Value(&f.name),
			huh.NewInput().
				Key(FieldAge).
				Title("Age").
				Description(fmt.Sprintf("%d to %d", MinAge, MaxAge)).
				Value(&f.age).
				Validate(func(s string) error {
					_, err := ParseAge(s)
					return err
				}),
			huh.NewSelect[string]().
				Key(FieldGender).
				Title("Gender").
				Options(options...).
				Value(&f.gender),
			huh.NewInput().
				Key(FieldContact).
				Title("Contact Number").
				Value(&f.contact),
		),
		huh.NewGroup(
			huh.NewNote().Title("Appointment Details"),
			huh.NewInput().
				Key(FieldAppointmentDate).
				Title("Appointment Date").
				Description("Format: YYYY-MM-DD").
				Value(&f.date).
				Validate(func(s string) error {
					_, err := ParseDate(s, today)
					return err
				}),
			huh.NewText().
				Key(FieldReasonForVisit).
				Title("Reason for Visit").
				Value(&f.reason),
		),
	).WithShowHelp(true).WithShowErrors(true)

	return f
}

// Values returns the current field values in submission form.
func (f *TerminalForm) Values() url.Values {
	return url.Values{
		FieldName:            {f.name},
		FieldAge:             {f.age},
		FieldGender:          {f.gender},
		FieldContact:         {f.contact},
		FieldAppointmentDate: {f.date},
		FieldReasonForVisit:  {f.reason},
	}
}

// Record parses the current values the same way a web submission is parsed.
func (f *TerminalForm) Record() (PatientRecord, error) {
	return ParseAt(f.Values(), f.today)
}

// Run shows the form on the terminal.
func (f *TerminalForm) Run() error {
	if err := f.form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return fmt.Errorf("intake form: %w", err)
	}
	return nil
}

// RunTerminal collects one record interactively and prints the confirmation lines to out.
func RunTerminal(out io.Writer) (PatientRecord, error) {
	f := NewTerminalForm(time.Now())
	if err := f.Run(); err != nil {
		return PatientRecord{}, err
	}
	rec, err := f.Record()
	if err != nil {
		return PatientRecord{}, err
	}
	WriteConfirmation(out, rec)
	return rec, nil
}

// WriteConfirmation prints the confirmation lines, one per line.
func WriteConfirmation(out io.Writer, rec PatientRecord) {
	for _, line := range rec.Confirmation() {
		fmt.Fprintln(out, line)
	}
}
