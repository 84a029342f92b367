// Package confirmation renders the registration confirmation email. All
// functions are pure: same entity in, same bodies out, no transport concerns.
package confirmation

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/age"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

// Subject of every confirmation email.
const Subject = "Bestätigung Ihrer Anmeldung zum Zeltlager"

// DisplayDateLayout is the human-facing date format.
const DisplayDateLayout = "02.01.2006"

// TotalDue computes the camp fee for a registration.
// INVARIANT: fee is childCount × feePerChild, nothing else
func TotalDue(childCount, feePerChild int) int {
	return childCount * feePerChild
}

// FormatDate reformats an ISO birth date for display. Values that do not
// parse are returned unchanged rather than hidden.
func FormatDate(iso string) string {
	d, err := time.Parse(age.DateLayout, iso)
	if err != nil {
		return iso
	}
	return d.Format(DisplayDateLayout)
}

// ShortCakeLabel reduces the full cake-donation choice text to a short human
// label. Matching is by keyword so sanitized text still resolves.
func ShortCakeLabel(choice string) string {
	lower := strings.ToLower(choice)
	switch {
	case strings.Contains(lower, "freitag"):
		return "Rührkuchen am Freitag"
	case strings.Contains(lower, "sonntag"):
		return "Kuchen am Sonntag"
	default:
		return choice
	}
}

// ShortHelpLabel reduces the full help-organisation choice text to a short
// human label.
func ShortHelpLabel(choice string) string {
	lower := strings.ToLower(choice)
	switch {
	case strings.Contains(lower, "aufbau"):
		return "Aufbau am Donnerstag"
	case strings.Contains(lower, "abbau"):
		return "Abbau am Sonntag"
	default:
		return choice
	}
}

// personLine renders one child as a single display line.
func personLine(p registration.Person) string {
	line := fmt.Sprintf("%s %s (Geb.: %s)", p.FirstName, p.LastName, FormatDate(p.BirthDate))
	if p.ClubMembership != "" {
		line += fmt.Sprintf(" – Vereinsmitglied: %s", p.ClubMembership)
	}
	return line
}

// TextBody renders the plain-text confirmation body.
// PRE: r has been persisted (persons non-empty, contact fields set)
// POST: Deterministic body including contact, children, choices and total due
func TextBody(r registration.Registration, persons []registration.Person, feePerChild int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Liebe/r %s %s,\n\n", r.ContactFirstName, r.ContactLastName)
	b.WriteString("vielen Dank für Ihre Anmeldung zum Zeltlager!\n\n")
	b.WriteString("Ihre Anmeldedaten:\n")
	fmt.Fprintf(&b, "- Kontaktperson: %s %s\n", r.ContactFirstName, r.ContactLastName)
	fmt.Fprintf(&b, "- E-Mail: %s\n", r.Email)
	fmt.Fprintf(&b, "- Telefon: %s\n", r.PhoneNumber)
	fmt.Fprintf(&b, "- Kuchenspende: %s\n", ShortCakeLabel(r.CakeDonation))
	fmt.Fprintf(&b, "- Auf-/Abbau: %s\n\n", ShortHelpLabel(r.HelpOrganisation))

	b.WriteString("Angemeldete Kinder:\n")
	for _, p := range persons {
		fmt.Fprintf(&b, "%s\n", personLine(p))
	}

	fmt.Fprintf(&b, "\nTeilnahmebeitrag: %d Euro (%d Kind(er) à %d Euro)\n",
		TotalDue(len(persons), feePerChild), len(persons), feePerChild)
	b.WriteString("\nDas ausgefüllte Anmeldeformular finden Sie im Anhang.\n")
	b.WriteString("\nMit freundlichen Grüßen\nIhr Zeltlager-Team\n")

	return b.String()
}

// HTMLBody renders the HTML alternative of the confirmation body. Person
// fields are escaped here; contact fields were already entity-escaped at the
// submission boundary and are embedded as stored.
// POST: Deterministic HTML derived from the same entity as TextBody
func HTMLBody(r registration.Registration, persons []registration.Person, feePerChild int) string {
	esc := template.HTMLEscapeString

	var b strings.Builder
	b.WriteString("<html><body>\n")
	fmt.Fprintf(&b, "<p>Liebe/r %s %s,</p>\n", r.ContactFirstName, r.ContactLastName)
	b.WriteString("<p>vielen Dank für Ihre Anmeldung zum Zeltlager!</p>\n")
	b.WriteString("<h3>Ihre Anmeldedaten</h3>\n<ul>\n")
	fmt.Fprintf(&b, "<li>Kontaktperson: %s %s</li>\n", r.ContactFirstName, r.ContactLastName)
	fmt.Fprintf(&b, "<li>E-Mail: %s</li>\n", r.Email)
	fmt.Fprintf(&b, "<li>Telefon: %s</li>\n", r.PhoneNumber)
	fmt.Fprintf(&b, "<li>Kuchenspende: %s</li>\n", ShortCakeLabel(r.CakeDonation))
	fmt.Fprintf(&b, "<li>Auf-/Abbau: %s</li>\n", ShortHelpLabel(r.HelpOrganisation))
	b.WriteString("</ul>\n<h3>Angemeldete Kinder</h3>\n<ul>\n")
	for _, p := range persons {
		fmt.Fprintf(&b, "<li>%s</li>\n", esc(personLine(p)))
	}
	b.WriteString("</ul>\n")
	fmt.Fprintf(&b, "<p><strong>Teilnahmebeitrag: %d Euro</strong> (%d Kind(er) à %d Euro)</p>\n",
		TotalDue(len(persons), feePerChild), len(persons), feePerChild)
	b.WriteString("<p>Das ausgefüllte Anmeldeformular finden Sie im Anhang.</p>\n")
	b.WriteString("<p>Mit freundlichen Grüßen<br>Ihr Zeltlager-Team</p>\n")
	b.WriteString("</body></html>\n")

	return b.String()
}
