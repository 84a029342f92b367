// Package config collects all runtime settings. Components receive the
// values they need explicitly; nothing reads the environment after startup.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/age"
)

// Mail provider selection values.
const (
	MailProviderSMTP   = "smtp"
	MailProviderResend = "resend"
	MailProviderNoop   = "noop"
)

// PaymentInfo is shown on the confirmation page.
type PaymentInfo struct {
	PayPalLink string
	BankName   string
	Recipient  string
	IBAN       string
	BIC        string
}

// Config holds all runtime settings.
type Config struct {
	ListenAddr string
	DBPath     string
	Env        string // "production" or anything else for development

	AdminPasswordHash []byte // bcrypt hash of the admin password
	CSRFKey           []byte // 32 bytes; empty means generate per startup

	MailProvider string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPass     string
	ResendAPIKey string
	MailFrom     string
	MailReplyTo  string

	// AttachmentPath points at the PDF registration form attached to every
	// confirmation email. A missing file downgrades to a send without it.
	AttachmentPath string

	Location    *time.Location // event timezone, stamps created_at
	AgeBand     age.Band
	FeePerChild int // Euro per registered child

	Payment PaymentInfo
}

// Load reads the configuration from ZELTLAGER_* environment variables,
// filling development defaults where unset.
// POST: Returns a complete Config or an error naming the offending variable
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:     envOrDefault("ZELTLAGER_ADDR", ":8080"),
		DBPath:         envOrDefault("ZELTLAGER_DB_PATH", "zeltlager.db"),
		Env:            envOrDefault("ZELTLAGER_ENV", "development"),
		MailProvider:   envOrDefault("ZELTLAGER_MAIL_PROVIDER", MailProviderNoop),
		SMTPHost:       os.Getenv("ZELTLAGER_SMTP_HOST"),
		SMTPUser:       os.Getenv("ZELTLAGER_SMTP_USER"),
		SMTPPass:       os.Getenv("ZELTLAGER_SMTP_PASS"),
		ResendAPIKey:   os.Getenv("ZELTLAGER_RESEND_API_KEY"),
		MailFrom:       envOrDefault("ZELTLAGER_MAIL_FROM", "anmeldung@tsv-bitzfeld.example"),
		MailReplyTo:    os.Getenv("ZELTLAGER_MAIL_REPLY_TO"),
		AttachmentPath: envOrDefault("ZELTLAGER_ATTACHMENT_PATH", "assets/anmeldeformular.pdf"),
		Payment: PaymentInfo{
			PayPalLink: os.Getenv("ZELTLAGER_PAYPAL_LINK"),
			BankName:   os.Getenv("ZELTLAGER_BANK_NAME"),
			Recipient:  os.Getenv("ZELTLAGER_RECIPIENT_NAME"),
			IBAN:       os.Getenv("ZELTLAGER_BANK_IBAN"),
			BIC:        os.Getenv("ZELTLAGER_BANK_BIC"),
		},
	}

	port, err := envOrDefaultInt("ZELTLAGER_SMTP_PORT", 587)
	if err != nil {
		return Config{}, err
	}
	cfg.SMTPPort = port

	fee, err := envOrDefaultInt("ZELTLAGER_FEE_PER_CHILD", 35)
	if err != nil {
		return Config{}, err
	}
	cfg.FeePerChild = fee

	minAge, err := envOrDefaultInt("ZELTLAGER_MIN_AGE", 6)
	if err != nil {
		return Config{}, err
	}
	maxAge, err := envOrDefaultInt("ZELTLAGER_MAX_AGE", 12)
	if err != nil {
		return Config{}, err
	}
	if minAge > maxAge {
		return Config{}, fmt.Errorf("ZELTLAGER_MIN_AGE %d exceeds ZELTLAGER_MAX_AGE %d", minAge, maxAge)
	}
	cfg.AgeBand = age.Band{Min: minAge, Max: maxAge}

	tz := envOrDefault("ZELTLAGER_TIMEZONE", "Europe/Berlin")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("ZELTLAGER_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	if password := os.Getenv("ZELTLAGER_ADMIN_PASSWORD"); password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return Config{}, fmt.Errorf("hash admin password: %w", err)
		}
		cfg.AdminPasswordHash = hash
	} else if cfg.Env == "production" {
		return Config{}, fmt.Errorf("ZELTLAGER_ADMIN_PASSWORD is required in production")
	}

	if keyHex := os.Getenv("ZELTLAGER_CSRF_KEY"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return Config{}, fmt.Errorf("ZELTLAGER_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		cfg.CSRFKey = key
	} else if cfg.Env == "production" {
		return Config{}, fmt.Errorf("ZELTLAGER_CSRF_KEY is required in production")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
