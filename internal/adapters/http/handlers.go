package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"golang.org/x/crypto/bcrypt"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/http/middleware"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/spreadsheet"
	registrationStore "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/application/orchestrators"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/application/projections"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// templatesDir is relative to the server working directory; tests point it
// at the package-local directory.
var templatesDir = "internal/adapters/http/templates"

func registerRoutes(mux *http.ServeMux) {
	admin := middleware.RequireAdmin(sessions)

	mux.HandleFunc("/{$}", handleRegister)
	mux.HandleFunc("GET /confirmation", handleConfirmation)
	mux.HandleFunc("/admin-login", handleAdminLogin)
	mux.HandleFunc("GET /datenschutz", handlePrivacy)
	mux.HandleFunc("GET /logout", handleLogout)
	mux.HandleFunc("/", handleNotFound)

	mux.Handle("GET /admin", admin(http.HandlerFunc(handleAdminDashboard)))
	mux.Handle("POST /confirm-mail/{id}", admin(http.HandlerFunc(handleConfirmMail)))
	mux.Handle("POST /delete-entry/{id}", admin(http.HandlerFunc(handleDeleteEntry)))
	mux.Handle("POST /delete-all-entries", admin(http.HandlerFunc(handleDeleteAll)))
	mux.Handle("/edit-entry/{id}", admin(http.HandlerFunc(handleEditEntry)))
	mux.Handle("GET /export-excel", admin(http.HandlerFunc(handleExportExcel)))
}

func renderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data map[string]any) {
	token, _ := middleware.TokenFromContext(r.Context())
	adminLoggedIn := false
	if session, ok := sessions.Get(token); ok {
		adminLoggedIn = session.AdminLoggedIn
	}

	funcMap := template.FuncMap{
		"csrfToken": func() string { return csrf.Token(r) },
		"csrfField": func() template.HTML { return csrf.TemplateField(r) },
		"isAdmin":   func() bool { return adminLoggedIn },
		"mul":       func(a, b int) int { return a * b },
	}

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Flashes"]; !ok {
		data["Flashes"] = sessions.TakeFlashes(token)
	}

	layoutPath := filepath.Join(templatesDir, "layout.html")
	pagePath := filepath.Join(templatesDir, templateName)
	tpl, err := template.New("layout.html").Funcs(funcMap).ParseFiles(layoutPath, pagePath)
	if err != nil {
		http.Error(w, "Template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tpl.Execute(w, data); err != nil {
		http.Error(w, "Render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func isJSONSubmission(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		r.Header.Get("Content-Type") == "application/json"
}

// handleRegister serves the sign-up form (GET /) and accepts the form
// script's JSON submission (POST /).
func handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method == "POST" {
		if !isJSONSubmission(r) {
			token, _ := middleware.TokenFromContext(r.Context())
			sessions.AddFlash(token, "danger", "Ungültige Anfrage. Bitte verwenden Sie das Formular.")
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		handleSubmitRegistration(w, r)
		return
	}

	renderTemplate(w, r, "form.html", map[string]any{
		"CakeFriday":   registration.CakeFriday,
		"CakeSunday":   registration.CakeSunday,
		"HelpSetup":    registration.HelpSetup,
		"HelpTeardown": registration.HelpTeardown,
		"MinAge":       appConfig.AgeBand.Min,
		"MaxAge":       appConfig.AgeBand.Max,
	})
}

func handleSubmitRegistration(w http.ResponseWriter, r *http.Request) {
	var submission registration.Submission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid request format",
		})
		return
	}

	entity, err := orchestrators.ExecuteSubmitRegistration(r.Context(),
		orchestrators.SubmitRegistrationInput{Submission: submission},
		orchestrators.SubmitRegistrationDeps{
			RegistrationStore: stores.RegistrationStore,
			Band:              appConfig.AgeBand,
			Location:          appConfig.Location,
			GenerateID:        generateID,
			Now:               timeNow,
		})
	if err != nil {
		var verr *orchestrators.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   verr.Message,
			})
			return
		}
		slog.Error("registration_create_failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Datenbankfehler. Bitte versuchen Sie es erneut.",
		})
		return
	}

	// Cache the sanitized submission for the confirmation page.
	if token, ok := middleware.TokenFromContext(r.Context()); ok {
		if session, found := sessions.Get(token); found {
			cached := registration.Submission{
				ContactFirstName: entity.ContactFirstName,
				ContactLastName:  entity.ContactLastName,
				ContactBirthDate: entity.ContactBirthDate,
				PhoneNumber:      entity.PhoneNumber,
				Email:            entity.Email,
				CakeDonation:     entity.CakeDonation,
				HelpOrganisation: entity.HelpOrganisation,
				Persons:          submission.Persons,
			}
			session.Submission = &cached
			sessions.Put(token, session)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"redirect": "/confirmation",
	})
}

// handleConfirmation shows the summary of the just-submitted registration
// from the session cache (GET /confirmation).
func handleConfirmation(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	session, ok := sessions.Get(token)
	if !ok || session.Submission == nil {
		sessions.AddFlash(token, "error", "Keine Anmeldedaten gefunden. Bitte füllen Sie das Formular erneut aus.")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := session.Submission
	renderTemplate(w, r, "confirmation.html", map[string]any{
		"Data":        data,
		"FeePerChild": appConfig.FeePerChild,
		"TotalDue":    len(data.Persons) * appConfig.FeePerChild,
		"Payment":     appConfig.Payment,
	})
}

// handleAdminLogin serves the login form and checks the password
// (GET+POST /admin-login).
func handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())

	if r.Method == "POST" {
		password := r.FormValue("password")
		switch {
		case password == "":
			slog.Warn("admin_login_failed", "reason", "empty_password")
			sessions.AddFlash(token, "danger", "Bitte geben Sie ein Passwort ein.")
		case len(appConfig.AdminPasswordHash) == 0:
			slog.Error("admin_login_failed", "reason", "no_password_configured")
			sessions.AddFlash(token, "danger", "Systemkonfigurationsfehler. Bitte kontaktieren Sie den Administrator.")
		case bcrypt.CompareHashAndPassword(appConfig.AdminPasswordHash, []byte(password)) == nil:
			session, _ := sessions.Get(token)
			session.AdminLoggedIn = true
			sessions.Put(token, session)
			slog.Info("admin_login_ok")
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		default:
			slog.Warn("admin_login_failed", "reason", "wrong_password")
			sessions.AddFlash(token, "danger", "Falsches Passwort. Bitte erneut versuchen.")
		}
	}

	renderTemplate(w, r, "admin_login.html", nil)
}

// handleAdminDashboard renders the registration table and counters
// (GET /admin).
func handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := projections.QueryGetAdminDashboard(r.Context(), projections.GetAdminDashboardDeps{
		RegistrationStore: stores.RegistrationStore,
	})
	if err != nil {
		slog.Error("admin_dashboard_failed", "error", err)
		token, _ := middleware.TokenFromContext(r.Context())
		sessions.AddFlash(token, "danger", "Fehler beim Laden der Daten.")
		http.Redirect(w, r, "/admin-login", http.StatusSeeOther)
		return
	}

	renderTemplate(w, r, "admin.html", map[string]any{
		"Registrations": result.Rows,
		"Stats":         result.Stats,
	})
}

// handleConfirmMail marks an entry confirmed and dispatches the confirmation
// email in the background (POST /confirm-mail/{id}).
func handleConfirmMail(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	id := r.PathValue("id")

	_, err := orchestrators.ExecuteConfirmRegistration(r.Context(),
		orchestrators.ConfirmRegistrationInput{ID: id},
		orchestrators.ConfirmRegistrationDeps{
			RegistrationStore: stores.RegistrationStore,
			EmailSender:       emailSender,
			Executor:          jobExecutor,
			FromAddress:       appConfig.MailFrom,
			ReplyTo:           appConfig.MailReplyTo,
			FeePerChild:       appConfig.FeePerChild,
			AttachmentPath:    appConfig.AttachmentPath,
		})
	switch {
	case errors.Is(err, registrationStore.ErrNotFound):
		sessions.AddFlash(token, "danger", "Eintrag nicht gefunden.")
	case errors.Is(err, registration.ErrAlreadyConfirmed):
		sessions.AddFlash(token, "warning", "Bestätigungsmail wurde bereits versendet.")
	case err != nil:
		slog.Error("confirm_mail_failed", "id", id, "error", err)
		sessions.AddFlash(token, "danger", "Fehler beim Speichern der Bestätigung.")
	default:
		sessions.AddFlash(token, "success", "Bestätigungsmail wurde erfolgreich versandt.")
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleDeleteEntry removes one entry (POST /delete-entry/{id}).
func handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	id := r.PathValue("id")

	err := stores.RegistrationStore.Delete(r.Context(), id)
	switch {
	case errors.Is(err, registrationStore.ErrNotFound):
		sessions.AddFlash(token, "danger", "Der Eintrag konnte nicht gefunden werden.")
	case err != nil:
		slog.Error("delete_entry_failed", "id", id, "error", err)
		sessions.AddFlash(token, "danger", "Fehler beim Löschen des Eintrags.")
	default:
		slog.Info("registration_event", "event", "registration_deleted", "id", id)
		sessions.AddFlash(token, "success", "Der ausgewählte Eintrag wurde erfolgreich gelöscht.")
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleDeleteAll wipes the whole table (POST /delete-all-entries).
func handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())

	count, err := stores.RegistrationStore.DeleteAll(r.Context())
	if err != nil {
		slog.Error("delete_all_failed", "error", err)
		sessions.AddFlash(token, "danger", "Beim Löschen aller Einträge ist ein Fehler aufgetreten.")
	} else {
		slog.Info("registration_event", "event", "registrations_wiped", "count", count)
		sessions.AddFlash(token, "success", fmt.Sprintf("Alle %d Einträge wurden erfolgreich gelöscht.", count))
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleEditEntry serves the edit form and applies the changes
// (GET+POST /edit-entry/{id}).
func handleEditEntry(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	id := r.PathValue("id")

	if r.Method == "POST" {
		submission := registration.Submission{
			ContactFirstName: r.FormValue("contact_firstname"),
			ContactLastName:  r.FormValue("contact_lastname"),
			ContactBirthDate: r.FormValue("contact_birthdate"),
			PhoneNumber:      r.FormValue("phone_number"),
			Email:            r.FormValue("email"),
			CakeDonation:     r.FormValue("cake_donation"),
			HelpOrganisation: r.FormValue("help_organisation"),
			Persons:          personsFromForm(r),
		}

		_, err := orchestrators.ExecuteEditRegistration(r.Context(),
			orchestrators.EditRegistrationInput{ID: id, Submission: submission},
			orchestrators.EditRegistrationDeps{RegistrationStore: stores.RegistrationStore})
		var verr *orchestrators.ValidationError
		switch {
		case errors.Is(err, registrationStore.ErrNotFound):
			sessions.AddFlash(token, "danger", "Eintrag nicht gefunden.")
		case errors.As(err, &verr):
			sessions.AddFlash(token, "danger", verr.Message)
			http.Redirect(w, r, "/edit-entry/"+id, http.StatusSeeOther)
			return
		case err != nil:
			slog.Error("edit_entry_failed", "id", id, "error", err)
			sessions.AddFlash(token, "danger", "Fehler beim Speichern des Eintrags.")
		default:
			sessions.AddFlash(token, "success", "Der Eintrag wurde erfolgreich aktualisiert.")
		}
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	entity, err := stores.RegistrationStore.GetByID(r.Context(), id)
	if err != nil {
		sessions.AddFlash(token, "danger", "Eintrag nicht gefunden.")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	persons, err := entity.DecodePersons()
	if err != nil {
		slog.Error("registration_persons_unreadable", "id", entity.ID, "raw", entity.PersonsJSON)
		persons = nil
	}

	renderTemplate(w, r, "edit_entry.html", map[string]any{
		"Entry":        entity,
		"Persons":      persons,
		"CakeFriday":   registration.CakeFriday,
		"CakeSunday":   registration.CakeSunday,
		"HelpSetup":    registration.HelpSetup,
		"HelpTeardown": registration.HelpTeardown,
	})
}

// personsFromForm collects the person rows of the edit form. Rows whose
// fields are all blank are dropped; an empty result means the stored
// children stay untouched.
func personsFromForm(r *http.Request) []registration.Person {
	r.ParseForm()
	firstNames := r.PostForm["person_firstname"]
	lastNames := r.PostForm["person_lastname"]
	birthDates := r.PostForm["birthdate"]
	memberships := r.PostForm["club_membership"]

	at := func(values []string, i int) string {
		if i < len(values) {
			return strings.TrimSpace(values[i])
		}
		return ""
	}

	var persons []registration.Person
	for i := range firstNames {
		p := registration.Person{
			FirstName:      at(firstNames, i),
			LastName:       at(lastNames, i),
			BirthDate:      at(birthDates, i),
			ClubMembership: at(memberships, i),
		}
		if p.FirstName == "" && p.LastName == "" && p.BirthDate == "" {
			continue
		}
		persons = append(persons, p)
	}
	return persons
}

// handleExportExcel streams the three-sheet workbook (GET /export-excel).
func handleExportExcel(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())

	entities, err := stores.RegistrationStore.List(r.Context())
	if err != nil {
		slog.Error("export_failed", "error", err)
		sessions.AddFlash(token, "danger", "Fehler beim Erstellen der Excel-Datei.")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	if len(entities) == 0 {
		sessions.AddFlash(token, "warning", "Keine Daten zum Exportieren vorhanden.")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	now := timeNow().In(appConfig.Location)
	data, err := spreadsheet.WriteXLSX(projections.BuildWorkbook(entities, now))
	if err != nil {
		slog.Error("export_failed", "error", err)
		sessions.AddFlash(token, "danger", "Fehler beim Erstellen der Excel-Datei.")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	filename := fmt.Sprintf("Anmeldungen_Stand-%s.xlsx", now.Format("02-01-2006_15-04-05"))
	w.Header().Set("Content-Type", spreadsheet.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(data)

	slog.Info("registration_event", "event", "export_generated", "registrations", len(entities))
}

// handleLogout ends the admin session (GET /logout). The session token is
// rotated so the old cookie value stops resolving.
func handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	fresh, err := sessions.Rotate(w, token)
	if err != nil {
		slog.Error("session_rotate_failed", "error", err)
		sessions.Delete(token)
		middleware.ClearSessionCookie(w)
		http.Redirect(w, r, "/admin-login", http.StatusSeeOther)
		return
	}
	sessions.AddFlash(fresh, "success", "Erfolgreich ausgeloggt.")
	http.Redirect(w, r, "/admin-login", http.StatusSeeOther)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	slog.Warn("not_found", "path", r.URL.Path)
	w.WriteHeader(http.StatusNotFound)
	renderErrorPage(w, r, 404, "Seite nicht gefunden")
}

func renderErrorPage(w http.ResponseWriter, r *http.Request, code int, message string) {
	renderTemplate(w, r, "error.html", map[string]any{
		"ErrorCode":    code,
		"ErrorMessage": message,
	})
}
