package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	mail "github.com/wneessen/go-mail"
)

// SMTPSender sends emails over authenticated SMTP with STARTTLS.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPSender creates a new SMTPSender with the given server settings and
// default from address.
// PRE: host/port point at an SMTP server that offers STARTTLS
// POST: Returns a ready-to-use sender; no connection is opened yet
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send builds a multipart message (plain text, HTML alternative, binary
// attachments) and delivers it in a single connect/auth/send attempt.
// PRE: req has at least one recipient and a subject
// POST: Message is handed to the server, or an error is returned; no retry
func (s *SMTPSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	from := req.From
	if from == "" {
		from = s.from
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return SendResult{}, fmt.Errorf("smtp from address: %w", err)
	}
	if err := msg.To(req.To...); err != nil {
		return SendResult{}, fmt.Errorf("smtp to address: %w", err)
	}
	if req.ReplyTo != "" {
		if err := msg.ReplyTo(req.ReplyTo); err != nil {
			return SendResult{}, fmt.Errorf("smtp reply-to address: %w", err)
		}
	}
	msg.Subject(req.Subject)
	msg.SetMessageID()

	msg.SetBodyString(mail.TypeTextPlain, req.Text)
	if req.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, req.HTML)
	}
	for _, att := range req.Attachments {
		var opts []mail.FileOption
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if err := msg.AttachReader(att.Filename, bytes.NewReader(att.Content), opts...); err != nil {
			return SendResult{}, fmt.Errorf("smtp attach %s: %w", att.Filename, err)
		}
	}

	client, err := mail.NewClient(s.host,
		mail.WithPort(s.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.username),
		mail.WithPassword(s.password),
	)
	if err != nil {
		return SendResult{}, fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("smtp_send_failed", "error", err, "to", req.To, "subject", req.Subject)
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}

	slog.Info("smtp_sent", "message_id", msg.GetMessageID(), "to", req.To, "subject", req.Subject)
	return SendResult{
		MessageID: msg.GetMessageID(),
		SentAt:    time.Now(),
	}, nil
}
