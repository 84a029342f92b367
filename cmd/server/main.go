package main

import (
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	emailPkg "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/email"
	web "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/http"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage"
	registrationStore "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/application/executor"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Local development settings; a missing .env file is fine.
	if err := godotenv.Overload(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// Initialize database with WAL mode and busy timeout
	dsn := cfg.DBPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	loggedDB := storage.NewLoggedDB(db)

	// Connection pool settings for WAL mode
	loggedDB.RawDB().SetMaxOpenConns(25)
	loggedDB.RawDB().SetMaxIdleConns(25)

	if err := loggedDB.RawDB().Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(loggedDB.RawDB()); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	log.Println("Database initialized successfully!")

	stores := &web.Stores{
		RegistrationStore: registrationStore.NewSQLiteStore(loggedDB),
	}

	sender := buildEmailSender(cfg)

	// Confirmation mails go out through a small background pool; a slow
	// mail server never stalls the admin request that triggered the send.
	pool := executor.NewPool(2, 32)
	defer pool.Close()

	mux := web.NewMux(cfg, "static", stores, sender, pool)

	log.Printf("Zeltlager %s starting on %s (env=%s)", version, cfg.ListenAddr, cfg.Env)
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func buildEmailSender(cfg config.Config) emailPkg.Sender {
	switch cfg.MailProvider {
	case config.MailProviderSMTP:
		if cfg.SMTPHost == "" {
			log.Fatal("ZELTLAGER_SMTP_HOST is required for the smtp mail provider")
		}
		log.Println("Email sender configured (SMTP STARTTLS)")
		return emailPkg.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	case config.MailProviderResend:
		if cfg.ResendAPIKey == "" {
			log.Fatal("ZELTLAGER_RESEND_API_KEY is required for the resend mail provider")
		}
		log.Println("Email sender configured (Resend)")
		return emailPkg.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom)
	default:
		if cfg.Env == "production" {
			log.Println("WARNING: mail provider is noop - confirmation mails are DISABLED in production")
		} else {
			log.Println("Email sender configured (noop - set ZELTLAGER_MAIL_PROVIDER=smtp for real delivery)")
		}
		return emailPkg.NewNoopSender()
	}
}
