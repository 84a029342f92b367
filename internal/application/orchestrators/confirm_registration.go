package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	emailAdapter "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/email"
	registrationStore "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/application/executor"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/confirmation"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

// ConfirmRegistrationInput carries input for the admin confirm action.
type ConfirmRegistrationInput struct {
	ID string
}

// ConfirmRegistrationDeps holds dependencies for ConfirmRegistration.
type ConfirmRegistrationDeps struct {
	RegistrationStore registrationStore.Store
	EmailSender       emailAdapter.Sender
	Executor          executor.Executor
	FromAddress       string
	ReplyTo           string
	FeePerChild       int
	AttachmentPath    string
	ReadFile          func(string) ([]byte, error) // nil means os.ReadFile
	SendTimeout       time.Duration                // zero means 30s
}

// ExecuteConfirmRegistration marks a registration confirmed and dispatches
// the confirmation email as a single bounded background attempt. A second
// call on an already-confirmed entity is a no-op signalled by
// registration.ErrAlreadyConfirmed; no email is re-sent. The returned
// channel carries the send outcome and may be ignored.
// PRE: input.ID is non-empty
// POST: Confirmed flag committed before any email leaves; one send attempt at most
func ExecuteConfirmRegistration(ctx context.Context, input ConfirmRegistrationInput, deps ConfirmRegistrationDeps) (<-chan bool, error) {
	entity, err := deps.RegistrationStore.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if err := entity.MarkConfirmed(); err != nil {
		return nil, err
	}
	if err := deps.RegistrationStore.Update(ctx, entity); err != nil {
		return nil, fmt.Errorf("persist confirmation: %w", err)
	}

	slog.Info("registration_event", "event", "registration_confirmed", "id", entity.ID, "email", entity.Email)

	timeout := deps.SendTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	result := make(chan bool, 1)
	deps.Executor.Submit(func() {
		// Detached from the request context: the response does not wait
		// for the mail server.
		sendCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result <- ExecuteSendConfirmation(sendCtx, entity, deps)
	})
	return result, nil
}

// ExecuteSendConfirmation renders and sends the confirmation email for an
// entity. Transport failure is converted to a false return and a logged
// error; a missing attachment file downgrades to a send without it.
// POST: Exactly one delivery attempt; never panics or returns an error
func ExecuteSendConfirmation(ctx context.Context, entity registration.Registration, deps ConfirmRegistrationDeps) bool {
	persons, err := entity.DecodePersons()
	if err != nil {
		slog.Error("confirmation_mail_failed", "id", entity.ID, "error", err, "raw", entity.PersonsJSON)
		return false
	}

	req := emailAdapter.SendRequest{
		To:      []string{entity.Email},
		From:    deps.FromAddress,
		ReplyTo: deps.ReplyTo,
		Subject: confirmation.Subject,
		Text:    confirmation.TextBody(entity, persons, deps.FeePerChild),
		HTML:    confirmation.HTMLBody(entity, persons, deps.FeePerChild),
	}

	readFile := deps.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	if deps.AttachmentPath != "" {
		content, err := readFile(deps.AttachmentPath)
		if err != nil {
			slog.Warn("confirmation_attachment_missing", "path", deps.AttachmentPath, "error", err)
		} else {
			req.Attachments = append(req.Attachments, emailAdapter.Attachment{
				Filename:    filepath.Base(deps.AttachmentPath),
				ContentType: "application/pdf",
				Content:     content,
			})
		}
	}

	if _, err := deps.EmailSender.Send(ctx, req); err != nil {
		slog.Error("confirmation_mail_failed", "id", entity.ID, "email", entity.Email, "error", err)
		return false
	}

	slog.Info("registration_event", "event", "confirmation_mail_sent", "id", entity.ID, "email", entity.Email)
	return true
}
