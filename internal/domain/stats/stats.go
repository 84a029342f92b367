// Package stats aggregates registration data for the admin dashboard.
package stats

import (
	"log/slog"
	"strings"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

// Keywords used for the categorical tallies. Matching is case-insensitive
// containment so shortened or sanitized choice texts still count.
const (
	keywordFriday   = "freitag"
	keywordSunday   = "sonntag"
	keywordSetup    = "aufbau"
	keywordTeardown = "abbau"
)

// Stats holds the aggregate counters shown on the admin dashboard.
type Stats struct {
	TotalRegistrations     int
	ConfirmedRegistrations int
	TotalChildren          int

	CakeFriday   int
	CakeSunday   int
	HelpSetup    int
	HelpTeardown int
}

// Summarize produces dashboard counters in a single pass over all
// registrations and their child lists. A registration whose person payload
// does not decode is logged and excluded from the child count but still
// counts toward the registration totals; no single bad row aborts the pass.
// PRE: regs is the full table scan (any order)
// POST: TotalRegistrations == len(regs) regardless of malformed person data
func Summarize(regs []registration.Registration) Stats {
	var s Stats
	for _, r := range regs {
		s.TotalRegistrations++
		if r.Confirmed {
			s.ConfirmedRegistrations++
		}

		cake := strings.ToLower(r.CakeDonation)
		if strings.Contains(cake, keywordFriday) {
			s.CakeFriday++
		}
		if strings.Contains(cake, keywordSunday) {
			s.CakeSunday++
		}
		help := strings.ToLower(r.HelpOrganisation)
		if strings.Contains(help, keywordSetup) {
			s.HelpSetup++
		}
		if strings.Contains(help, keywordTeardown) {
			s.HelpTeardown++
		}

		persons, err := r.DecodePersons()
		if err != nil {
			slog.Error("registration_persons_unreadable", "id", r.ID, "raw", r.PersonsJSON, "error", err)
			continue
		}
		s.TotalChildren += len(persons)
	}
	return s
}
