package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	registrationStore "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/sanitize"
)

// EditRegistrationInput carries the id of the entity to edit plus the
// replacement field values. Persons may be empty, in which case the
// stored children are kept as-is.
type EditRegistrationInput struct {
	ID         string
	Submission registration.Submission
}

// EditRegistrationDeps holds dependencies for EditRegistration.
type EditRegistrationDeps struct {
	RegistrationStore registrationStore.Store
}

// ExecuteEditRegistration updates the contact fields of an existing
// registration from the admin edit form. Field presence is validated but the
// age band is not re-checked; the children were already admitted once.
// POST: ID, CreatedAt and Confirmed are never changed by an edit
func ExecuteEditRegistration(ctx context.Context, input EditRegistrationInput, deps EditRegistrationDeps) (registration.Registration, error) {
	entity, err := deps.RegistrationStore.GetByID(ctx, input.ID)
	if err != nil {
		return registration.Registration{}, err
	}

	s := input.Submission
	if err := registration.ValidateFields(s); err != nil {
		return registration.Registration{}, validationErr(err)
	}

	entity.ContactFirstName = sanitize.Clean(s.ContactFirstName)
	entity.ContactLastName = sanitize.Clean(s.ContactLastName)
	entity.ContactBirthDate = sanitize.Clean(s.ContactBirthDate)
	entity.PhoneNumber = sanitize.Clean(s.PhoneNumber)
	entity.Email = strings.ToLower(sanitize.Clean(s.Email))
	entity.CakeDonation = sanitize.Clean(s.CakeDonation)
	entity.HelpOrganisation = sanitize.Clean(s.HelpOrganisation)
	if len(input.Submission.Persons) > 0 {
		if err := entity.SetPersons(input.Submission.Persons); err != nil {
			return registration.Registration{}, fmt.Errorf("encode persons: %w", err)
		}
	}

	if err := entity.Validate(); err != nil {
		return registration.Registration{}, validationErr(err)
	}
	if err := deps.RegistrationStore.Update(ctx, entity); err != nil {
		return registration.Registration{}, fmt.Errorf("persist registration: %w", err)
	}

	slog.Info("registration_event", "event", "registration_edited", "id", entity.ID, "email", entity.Email)
	return entity, nil
}
