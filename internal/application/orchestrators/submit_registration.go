package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	registrationStore "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/age"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/sanitize"
)

// SubmitRegistrationInput carries the incoming form payload.
type SubmitRegistrationInput struct {
	Submission registration.Submission
}

// SubmitRegistrationDeps holds dependencies for SubmitRegistration.
type SubmitRegistrationDeps struct {
	RegistrationStore registrationStore.Store
	Band              age.Band
	Location          *time.Location
	GenerateID        func() string
	Now               func() time.Time
}

// ExecuteSubmitRegistration validates, sanitizes and persists one
// registration. Validation failures come back as *ValidationError with the
// user-facing message; anything else is a persistence failure.
// PRE: deps are fully populated
// POST: On success the returned entity is persisted with Confirmed=false
func ExecuteSubmitRegistration(ctx context.Context, input SubmitRegistrationInput, deps SubmitRegistrationDeps) (registration.Registration, error) {
	now := deps.Now().In(deps.Location)

	if err := registration.ValidateSubmission(input.Submission, deps.Band, now); err != nil {
		return registration.Registration{}, validationErr(err)
	}

	entity := registration.Registration{
		ID:               deps.GenerateID(),
		ContactFirstName: sanitize.Clean(input.Submission.ContactFirstName),
		ContactLastName:  sanitize.Clean(input.Submission.ContactLastName),
		ContactBirthDate: sanitize.Clean(input.Submission.ContactBirthDate),
		PhoneNumber:      sanitize.Clean(input.Submission.PhoneNumber),
		Email:            sanitize.Clean(strings.ToLower(input.Submission.Email)),
		CakeDonation:     sanitize.Clean(input.Submission.CakeDonation),
		HelpOrganisation: sanitize.Clean(input.Submission.HelpOrganisation),
		CreatedAt:        now,
	}
	if err := entity.SetPersons(input.Submission.Persons); err != nil {
		return registration.Registration{}, fmt.Errorf("serialize persons: %w", err)
	}
	if err := entity.Validate(); err != nil {
		return registration.Registration{}, validationErr(err)
	}

	if err := deps.RegistrationStore.Create(ctx, entity); err != nil {
		return registration.Registration{}, fmt.Errorf("persist registration: %w", err)
	}

	slog.Info("registration_event", "event", "registration_created", "id", entity.ID,
		"email", entity.Email, "children", len(input.Submission.Persons))
	return entity, nil
}
