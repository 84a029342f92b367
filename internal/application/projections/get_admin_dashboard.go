package projections

import (
	"context"

	registrationStore "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/stats"
)

// DashboardRow is one registration prepared for the admin table.
type DashboardRow struct {
	ID                string
	ContactFirstName  string
	ContactLastName   string
	ContactBirthDate  string
	PhoneNumber       string
	Email             string
	CakeDonation      string
	HelpOrganisation  string
	Confirmed         bool
	CreatedAt         string
	Persons           []registration.Person
	PersonsUnreadable bool
}

// GetAdminDashboardResult carries the query result.
type GetAdminDashboardResult struct {
	Rows  []DashboardRow
	Stats stats.Stats
}

// GetAdminDashboardDeps holds dependencies for GetAdminDashboard.
type GetAdminDashboardDeps struct {
	RegistrationStore registrationStore.Store
}

// DisplayTimestampLayout is the created-at format shown in the admin table.
const DisplayTimestampLayout = "02.01.2006 15:04"

// QueryGetAdminDashboard loads every registration, newest first, together
// with the aggregate counters.
// POST: A row with an unreadable child payload is still listed, flagged, and
// still counted in the aggregates
func QueryGetAdminDashboard(ctx context.Context, deps GetAdminDashboardDeps) (GetAdminDashboardResult, error) {
	entities, err := deps.RegistrationStore.List(ctx)
	if err != nil {
		return GetAdminDashboardResult{}, err
	}

	rows := make([]DashboardRow, 0, len(entities))
	for _, e := range entities {
		row := DashboardRow{
			ID:               e.ID,
			ContactFirstName: e.ContactFirstName,
			ContactLastName:  e.ContactLastName,
			ContactBirthDate: e.ContactBirthDate,
			PhoneNumber:      e.PhoneNumber,
			Email:            e.Email,
			CakeDonation:     e.CakeDonation,
			HelpOrganisation: e.HelpOrganisation,
			Confirmed:        e.Confirmed,
			CreatedAt:        e.CreatedAt.Format(DisplayTimestampLayout),
		}
		persons, err := e.DecodePersons()
		if err != nil {
			row.PersonsUnreadable = true
		} else {
			row.Persons = persons
		}
		rows = append(rows, row)
	}

	return GetAdminDashboardResult{
		Rows:  rows,
		Stats: stats.Summarize(entities),
	}, nil
}
