package registration

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/age"
)

// Fixed choice texts offered on the registration form.
const (
	CakeFriday = "Wir spenden einen Rührkuchen für den Freitag."
	CakeSunday = "Wir spenden einen Kuchen für den Sonntag."

	HelpSetup    = "Wir helfen beim Aufbau am Donnerstag, 17. Juli ab 18:00 Uhr."
	HelpTeardown = "Wir helfen beim Abbau am Sonntag, 20. Juli ab 13:00 Uhr."
)

// Domain errors
var (
	ErrAlreadyConfirmed = errors.New("registration is already confirmed")
	ErrNoPersons        = errors.New("registration must contain at least one person")
	ErrInvalidEmail     = errors.New("invalid email address")
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Person is one child entry nested inside a Registration. It has no identity
// of its own; its lifecycle is bound to the owning Registration.
type Person struct {
	FirstName      string `json:"person_firstname"`
	LastName       string `json:"person_lastname"`
	BirthDate      string `json:"birthdate"`
	ClubMembership string `json:"club_membership"`
}

// Registration holds one submitted form instance: the contact (adult
// submitter) plus one or more children. The child list is carried as the
// serialized JSON array it is persisted as; views that need the individual
// persons decode it and deal with unreadable payloads locally.
type Registration struct {
	ID               string
	PersonsJSON      string
	ContactFirstName string
	ContactLastName  string
	ContactBirthDate string
	PhoneNumber      string
	Email            string
	CakeDonation     string
	HelpOrganisation string
	Confirmed        bool
	CreatedAt        time.Time
}

// DecodePersons parses the serialized child list.
// POST: Returns the persons in submission order, or an error if the stored
// payload is not a valid Person array
func (r *Registration) DecodePersons() ([]Person, error) {
	var persons []Person
	if err := json.Unmarshal([]byte(r.PersonsJSON), &persons); err != nil {
		return nil, fmt.Errorf("persons payload unreadable: %w", err)
	}
	return persons, nil
}

// SetPersons serializes the child list onto the entity.
// PRE: persons is the full child list for this registration
// POST: PersonsJSON round-trips through DecodePersons
func (r *Registration) SetPersons(persons []Person) error {
	raw, err := json.Marshal(persons)
	if err != nil {
		return fmt.Errorf("persons payload not serializable: %w", err)
	}
	r.PersonsJSON = string(raw)
	return nil
}

// Validate checks write-time invariants of the entity.
// PRE: Registration struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Person list decodes and is non-empty, Email matches
// local@domain.tld and is lower-case
func (r *Registration) Validate() error {
	persons, err := r.DecodePersons()
	if err != nil {
		return err
	}
	if len(persons) == 0 {
		return ErrNoPersons
	}
	if !emailPattern.MatchString(r.Email) {
		return ErrInvalidEmail
	}
	if r.Email != strings.ToLower(r.Email) {
		return ErrInvalidEmail
	}
	return nil
}

// MarkConfirmed sets the confirmed flag. The flag is monotonic: it can only
// ever go from false to true, once.
// PRE: Registration is not yet confirmed
// POST: Confirmed is true
func (r *Registration) MarkConfirmed() error {
	if r.Confirmed {
		return ErrAlreadyConfirmed
	}
	r.Confirmed = true
	return nil
}

// Submission is the incoming registration payload as posted by the form.
type Submission struct {
	ContactFirstName string   `json:"contact_firstname"`
	ContactLastName  string   `json:"contact_lastname"`
	ContactBirthDate string   `json:"contact_birthdate"`
	PhoneNumber      string   `json:"phone_number"`
	Email            string   `json:"email"`
	CakeDonation     string   `json:"cake_donation"`
	HelpOrganisation string   `json:"help_organisation"`
	Persons          []Person `json:"persons"`
}

// ValidateFields checks the field-level rules shared by submit and edit:
// every required contact/category field must be present. Messages are
// user-facing and returned verbatim.
// POST: Returns nil if all required fields are present
func ValidateFields(s Submission) error {
	required := []struct {
		name  string
		value string
	}{
		{"contact_firstname", s.ContactFirstName},
		{"contact_lastname", s.ContactLastName},
		{"contact_birthdate", s.ContactBirthDate},
		{"phone_number", s.PhoneNumber},
		{"email", s.Email},
		{"cake_donation", s.CakeDonation},
		{"help_organisation", s.HelpOrganisation},
	}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("Missing required fields: %s", strings.Join(missing, ", "))
	}

	return nil
}

// ValidateSubmission checks a submission against the business rules, in
// order, first failure wins: required fields, non-empty child list, then the
// per-child age band.
// PRE: band is the configured camp age band; now is the submission time
// POST: Returns nil if the submission is acceptable
func ValidateSubmission(s Submission, band age.Band, now time.Time) error {
	if err := ValidateFields(s); err != nil {
		return err
	}

	if len(s.Persons) == 0 {
		return errors.New("Mindestens ein Kind muss hinzugefügt werden.")
	}

	for i, p := range s.Persons {
		if p.BirthDate == "" {
			continue
		}
		years, ok := age.Age(p.BirthDate, now)
		if ok && !band.Contains(years) {
			return fmt.Errorf("Kind %d: Kind ist %d Jahre alt. Zeltlager ist für 1.-5. Klasse (%d-%d Jahre).",
				i+1, years, band.Min, band.Max)
		}
	}

	return nil
}
