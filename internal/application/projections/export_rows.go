package projections

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/age"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/stats"
)

// Sheet names and the fixed German labels used in the export.
const (
	SheetStats    = "Statistik"
	SheetChildren = "Angemeldete Kinder"
	SheetContacts = "Kontaktpersonen"

	groupAdult   = "Erwachsener (ab 18)"
	groupMinor   = "Kind/Jugendl. (bis 17)"
	ageUnknown   = "Unbekannt"
	adultMinAge  = 18
	exportLayout = "02.01.2006"
)

// Sheet is one tab of the export workbook.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Workbook is the full export, independent of any file format.
type Workbook struct {
	Sheets []Sheet
}

// BuildWorkbook projects all registrations into the three export sheets.
// Ages are computed against reference; a registration with an unreadable
// child payload is logged and skipped for the children sheet only.
// PRE: entities is the full registration list, newest first
// POST: Children row count equals the sum of parseable child-list lengths
func BuildWorkbook(entities []registration.Registration, reference time.Time) Workbook {
	dateStr := reference.Format(exportLayout)
	ageHeader := "Alter am " + dateStr

	childrenSheet := Sheet{
		Name: SheetChildren,
		Header: []string{
			"Vorname", "Nachname", "Geburtsdatum", ageHeader, "Altersgruppe",
			"Vereinsmitgliedschaft", "Kontaktperson", "Kontakt E-Mail", "Kontakt Telefon",
			"Anmeldung bestätigt", "Anmeldezeitpunkt",
		},
		Rows: [][]string{},
	}
	contactsSheet := Sheet{
		Name: SheetContacts,
		Header: []string{
			"Vorname", "Nachname", "Geburtsdatum", ageHeader, "Altersgruppe",
			"Telefon", "E-Mail", "Kuchenspende", "Auf-/Abbau", "Anzahl Kinder",
			"Anmeldung bestätigt", "Anmeldezeitpunkt",
		},
		Rows: [][]string{},
	}

	adults, minors := 0, 0
	countGroup := func(group string) {
		if group == groupAdult {
			adults++
		} else {
			minors++
		}
	}

	for _, e := range entities {
		confirmed := jaNein(e.Confirmed)
		createdAt := e.CreatedAt.Format(DisplayTimestampLayout)

		contactAge, contactGroup := ageCells(e.ContactBirthDate, reference)
		countGroup(contactGroup)

		persons, err := e.DecodePersons()
		childCount := "0"
		if err != nil {
			slog.Error("registration_persons_unreadable", "id", e.ID, "raw", e.PersonsJSON)
		} else {
			childCount = strconv.Itoa(len(persons))
			for _, p := range persons {
				personAge, personGroup := ageCells(p.BirthDate, reference)
				countGroup(personGroup)
				childrenSheet.Rows = append(childrenSheet.Rows, []string{
					p.FirstName, p.LastName, p.BirthDate, personAge, personGroup,
					p.ClubMembership,
					e.ContactFirstName + " " + e.ContactLastName, e.Email, e.PhoneNumber,
					confirmed, createdAt,
				})
			}
		}

		contactsSheet.Rows = append(contactsSheet.Rows, []string{
			e.ContactFirstName, e.ContactLastName, e.ContactBirthDate, contactAge, contactGroup,
			e.PhoneNumber, e.Email, e.CakeDonation, e.HelpOrganisation, childCount,
			confirmed, createdAt,
		})
	}

	tallies := stats.Summarize(entities)
	statsSheet := Sheet{
		Name:   SheetStats,
		Header: []string{"Statistik", "Anzahl"},
		Rows: [][]string{
			{"Gesamt Anmeldungen", strconv.Itoa(tallies.TotalRegistrations)},
			{"Bestätigte Anmeldungen", strconv.Itoa(tallies.ConfirmedRegistrations)},
			{"Unbestätigte Anmeldungen", strconv.Itoa(tallies.TotalRegistrations - tallies.ConfirmedRegistrations)},
			{"Anzahl angemeldete Kinder", strconv.Itoa(len(childrenSheet.Rows))},
			{"Anzahl Kontaktpersonen", strconv.Itoa(len(contactsSheet.Rows))},
			{"Anzahl Erwachsene", strconv.Itoa(adults)},
			{"Anzahl Kinder/Jugendliche", strconv.Itoa(minors)},
			{"Kuchenspende Freitag", strconv.Itoa(tallies.CakeFriday)},
			{"Kuchenspende Sonntag", strconv.Itoa(tallies.CakeSunday)},
			{"Hilfe Aufbau", strconv.Itoa(tallies.HelpSetup)},
			{"Hilfe Abbau", strconv.Itoa(tallies.HelpTeardown)},
			{"Exportiert am", fmt.Sprintf("%s %s", dateStr, reference.Format("15:04:05"))},
		},
	}

	return Workbook{Sheets: []Sheet{statsSheet, childrenSheet, contactsSheet}}
}

// ageCells computes the age column value and age group for one birth date.
// An unparseable or empty date yields "Unbekannt" and the minor group, the
// same way an unknown age is grouped on the sign-up form side.
func ageCells(birthDate string, reference time.Time) (string, string) {
	years, ok := age.Age(birthDate, reference)
	if !ok {
		return ageUnknown, groupMinor
	}
	if years >= adultMinAge {
		return strconv.Itoa(years), groupAdult
	}
	return strconv.Itoa(years), groupMinor
}

func jaNein(b bool) string {
	if b {
		return "Ja"
	}
	return "Nein"
}
