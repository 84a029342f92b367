package registration_test

import (
	"strings"
	"testing"
	"time"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/age"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

var band = age.Band{Min: 6, Max: 12}

// submission time used by all validation tests
var now = time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

func validSubmission() registration.Submission {
	return registration.Submission{
		ContactFirstName: "Max",
		ContactLastName:  "Mustermann",
		ContactBirthDate: "1985-04-12",
		PhoneNumber:      "+49 170 1234567",
		Email:            "max@example.com",
		CakeDonation:     registration.CakeFriday,
		HelpOrganisation: registration.HelpSetup,
		Persons: []registration.Person{
			{FirstName: "Lena", LastName: "Mustermann", BirthDate: "2017-03-01", ClubMembership: "Ja"},
			{FirstName: "Paul", LastName: "Mustermann", BirthDate: "2015-01-20", ClubMembership: "Nein"},
		},
	}
}

// TestValidateSubmission tests the rule order and the exact messages.
func TestValidateSubmission(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*registration.Submission)
		wantErr string
	}{
		{
			name:    "valid submission",
			mutate:  func(s *registration.Submission) {},
			wantErr: "",
		},
		{
			name: "single missing field",
			mutate: func(s *registration.Submission) {
				s.Email = ""
			},
			wantErr: "Missing required fields: email",
		},
		{
			name: "multiple missing fields listed in payload order",
			mutate: func(s *registration.Submission) {
				s.ContactFirstName = ""
				s.PhoneNumber = " "
				s.HelpOrganisation = ""
			},
			wantErr: "Missing required fields: contact_firstname, phone_number, help_organisation",
		},
		{
			name: "empty persons rejected even with valid fields",
			mutate: func(s *registration.Submission) {
				s.Persons = nil
			},
			wantErr: "Mindestens ein Kind muss hinzugefügt werden.",
		},
		{
			name: "missing fields win over empty persons",
			mutate: func(s *registration.Submission) {
				s.CakeDonation = ""
				s.Persons = nil
			},
			wantErr: "Missing required fields: cake_donation",
		},
		{
			name: "child too old names index and age",
			mutate: func(s *registration.Submission) {
				// 13 years old on 2025-06-01
				s.Persons[1].BirthDate = "2012-01-15"
			},
			wantErr: "Kind 2: Kind ist 13 Jahre alt. Zeltlager ist für 1.-5. Klasse (6-12 Jahre).",
		},
		{
			name: "child too young",
			mutate: func(s *registration.Submission) {
				s.Persons[0].BirthDate = "2020-06-02"
			},
			wantErr: "Kind 1: Kind ist 4 Jahre alt. Zeltlager ist für 1.-5. Klasse (6-12 Jahre).",
		},
		{
			name: "child exactly at lower bound accepted",
			mutate: func(s *registration.Submission) {
				// turns 6 on 2025-06-01
				s.Persons[0].BirthDate = "2019-06-01"
			},
			wantErr: "",
		},
		{
			name: "child exactly at upper bound accepted",
			mutate: func(s *registration.Submission) {
				// turned 12 earlier this year
				s.Persons[0].BirthDate = "2013-02-10"
			},
			wantErr: "",
		},
		{
			name: "unparseable child birthdate is not an age failure",
			mutate: func(s *registration.Submission) {
				s.Persons[0].BirthDate = "kaputt"
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.mutate(&s)
			err := registration.ValidateSubmission(s, band, now)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.wantErr)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

// TestValidateSubmissionBandIsConfiguration checks the upper bound follows the band.
func TestValidateSubmissionBandIsConfiguration(t *testing.T) {
	s := validSubmission()
	s.Persons[0].BirthDate = "2013-02-10" // 12 years old

	if err := registration.ValidateSubmission(s, age.Band{Min: 6, Max: 12}, now); err != nil {
		t.Errorf("band 6-12 should accept a 12 year old: %v", err)
	}
	err := registration.ValidateSubmission(s, age.Band{Min: 6, Max: 11}, now)
	if err == nil {
		t.Fatal("band 6-11 should reject a 12 year old")
	}
	if !strings.Contains(err.Error(), "(6-11 Jahre)") {
		t.Errorf("error should carry the configured band, got %q", err.Error())
	}
}

// TestRegistrationValidate tests write-time entity invariants.
func TestRegistrationValidate(t *testing.T) {
	valid := registration.Registration{Email: "max@example.com"}
	if err := valid.SetPersons([]registration.Person{{FirstName: "Lena", BirthDate: "2017-03-01"}}); err != nil {
		t.Fatalf("SetPersons: %v", err)
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid registration rejected: %v", err)
	}

	noPersons := valid
	noPersons.PersonsJSON = "[]"
	if err := noPersons.Validate(); err != registration.ErrNoPersons {
		t.Errorf("want ErrNoPersons, got %v", err)
	}

	badPersons := valid
	badPersons.PersonsJSON = "{broken"
	if err := badPersons.Validate(); err == nil {
		t.Error("unreadable persons payload must fail validation")
	}

	badEmail := valid
	badEmail.Email = "not-an-address"
	if err := badEmail.Validate(); err != registration.ErrInvalidEmail {
		t.Errorf("want ErrInvalidEmail, got %v", err)
	}

	upperCase := valid
	upperCase.Email = "Max@Example.com"
	if err := upperCase.Validate(); err != registration.ErrInvalidEmail {
		t.Errorf("mixed-case email must be rejected, got %v", err)
	}
}

// TestPersonsRoundTrip tests that the serialized child list survives a decode.
func TestPersonsRoundTrip(t *testing.T) {
	persons := []registration.Person{
		{FirstName: "Lena", LastName: "Mustermann", BirthDate: "2017-03-01", ClubMembership: "Ja"},
		{FirstName: "Paul", LastName: "Mustermann", BirthDate: "2015-01-20", ClubMembership: "Nein"},
	}
	var r registration.Registration
	if err := r.SetPersons(persons); err != nil {
		t.Fatalf("SetPersons: %v", err)
	}
	got, err := r.DecodePersons()
	if err != nil {
		t.Fatalf("DecodePersons: %v", err)
	}
	if len(got) != len(persons) {
		t.Fatalf("got %d persons, want %d", len(got), len(persons))
	}
	for i := range persons {
		if got[i] != persons[i] {
			t.Errorf("person %d = %+v, want %+v", i, got[i], persons[i])
		}
	}
}

// TestMarkConfirmed tests that the confirmed flag is monotonic.
func TestMarkConfirmed(t *testing.T) {
	r := registration.Registration{}
	if err := r.MarkConfirmed(); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	if !r.Confirmed {
		t.Fatal("confirmed flag not set")
	}
	if err := r.MarkConfirmed(); err != registration.ErrAlreadyConfirmed {
		t.Errorf("second confirm: want ErrAlreadyConfirmed, got %v", err)
	}
	if !r.Confirmed {
		t.Error("confirmed flag must stay true")
	}
}
