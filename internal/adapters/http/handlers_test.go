package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	emailAdapter "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/email"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/http/middleware"
	registrationStore "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/adapters/storage/registration"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/application/executor"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/config"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/age"
	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

// Mock implementations for testing
type mockRegistrationStore struct {
	entities map[string]registration.Registration
	order    []string
}

func newMockRegistrationStore() *mockRegistrationStore {
	return &mockRegistrationStore{entities: map[string]registration.Registration{}}
}

func (m *mockRegistrationStore) Create(_ context.Context, r registration.Registration) error {
	m.entities[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

func (m *mockRegistrationStore) List(_ context.Context) ([]registration.Registration, error) {
	out := []registration.Registration{}
	for i := len(m.order) - 1; i >= 0; i-- {
		if r, ok := m.entities[m.order[i]]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRegistrationStore) GetByID(_ context.Context, id string) (registration.Registration, error) {
	r, ok := m.entities[id]
	if !ok {
		return registration.Registration{}, registrationStore.ErrNotFound
	}
	return r, nil
}

func (m *mockRegistrationStore) Update(_ context.Context, r registration.Registration) error {
	if _, ok := m.entities[r.ID]; !ok {
		return registrationStore.ErrNotFound
	}
	m.entities[r.ID] = r
	return nil
}

func (m *mockRegistrationStore) Delete(_ context.Context, id string) error {
	if _, ok := m.entities[id]; !ok {
		return registrationStore.ErrNotFound
	}
	delete(m.entities, id)
	return nil
}

func (m *mockRegistrationStore) DeleteAll(_ context.Context) (int, error) {
	n := len(m.entities)
	m.entities = map[string]registration.Registration{}
	m.order = nil
	return n, nil
}

type recordingSender struct {
	requests []emailAdapter.SendRequest
}

func (s *recordingSender) Send(_ context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	s.requests = append(s.requests, req)
	return emailAdapter.SendResult{MessageID: "test"}, nil
}

func setupHandlers(t *testing.T) (*mockRegistrationStore, *recordingSender) {
	t.Helper()
	templatesDir = "templates"

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("geheim"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	store := newMockRegistrationStore()
	sender := &recordingSender{}
	stores = &Stores{RegistrationStore: store}
	sessions = middleware.NewSessionStore()
	emailSender = sender
	jobExecutor = executor.Sync{}
	appConfig = config.Config{
		Env:               "test",
		AdminPasswordHash: hash,
		Location:          berlin,
		AgeBand:           age.Band{Min: 6, Max: 12},
		FeePerChild:       35,
		MailFrom:          "zeltlager@example.org",
	}
	return store, sender
}

func sessionRequest(t *testing.T, method, target, body string) (*http.Request, string) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	token := "test-token"
	sessions.Put(token, middleware.Session{CreatedAt: time.Now()})
	return req.WithContext(middleware.ContextWithToken(req.Context(), token)), token
}

func validPayload() string {
	return `{
		"contact_firstname": "Anna",
		"contact_lastname": "Beispiel",
		"contact_birthdate": "1985-04-12",
		"phone_number": "0171 1234567",
		"email": "Anna@Example.com",
		"cake_donation": "Wir spenden einen Rührkuchen für den Freitag.",
		"help_organisation": "Wir helfen beim Aufbau am Donnerstag, 17. Juli ab 18:00 Uhr.",
		"persons": [
			{"person_firstname": "Max", "person_lastname": "Beispiel", "birthdate": "2017-06-01", "club_membership": "Ja"}
		]
	}`
}

func TestHandleSubmitRegistration_Valid(t *testing.T) {
	store, _ := setupHandlers(t)
	req, token := sessionRequest(t, "POST", "/", validPayload())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	rec := httptest.NewRecorder()

	handleRegister(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success  bool   `json:"success"`
		Redirect string `json:"redirect"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if !resp.Success || resp.Redirect != "/confirmation" {
		t.Errorf("response = %+v", resp)
	}
	if len(store.entities) != 1 {
		t.Fatalf("stored %d entities", len(store.entities))
	}
	for _, e := range store.entities {
		if e.Email != "anna@example.com" {
			t.Errorf("email = %q", e.Email)
		}
		if e.Confirmed {
			t.Error("stored entity must be unconfirmed")
		}
	}
	session, _ := sessions.Get(token)
	if session.Submission == nil || session.Submission.ContactFirstName != "Anna" {
		t.Errorf("submission not cached on session: %+v", session.Submission)
	}
}

func TestHandleSubmitRegistration_ValidationError(t *testing.T) {
	store, _ := setupHandlers(t)
	payload := strings.Replace(validPayload(), `"persons": [
			{"person_firstname": "Max", "person_lastname": "Beispiel", "birthdate": "2017-06-01", "club_membership": "Ja"}
		]`, `"persons": []`, 1)
	req, _ := sessionRequest(t, "POST", "/", payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handleRegister(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Success || resp.Error != "Mindestens ein Kind muss hinzugefügt werden." {
		t.Errorf("response = %+v", resp)
	}
	if len(store.entities) != 0 {
		t.Error("nothing may be persisted on validation failure")
	}
}

func TestHandleSubmitRegistration_MalformedJSON(t *testing.T) {
	setupHandlers(t)
	req, _ := sessionRequest(t, "POST", "/", "{not json")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handleRegister(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid request format") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleConfirmMail_SendsAndGuards(t *testing.T) {
	store, sender := setupHandlers(t)
	entity := registration.Registration{
		ID:               "abc",
		ContactFirstName: "Anna",
		ContactLastName:  "Beispiel",
		Email:            "anna@example.com",
		CakeDonation:     registration.CakeFriday,
		HelpOrganisation: registration.HelpSetup,
		CreatedAt:        time.Now(),
	}
	entity.SetPersons([]registration.Person{{FirstName: "Max", BirthDate: "2017-06-01"}})
	store.Create(context.Background(), entity)

	req, token := sessionRequest(t, "POST", "/confirm-mail/abc", "")
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	handleConfirmMail(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	stored, _ := store.GetByID(context.Background(), "abc")
	if !stored.Confirmed {
		t.Error("entity not confirmed")
	}
	if len(sender.requests) != 1 {
		t.Fatalf("sent %d mails", len(sender.requests))
	}
	flashes := sessions.TakeFlashes(token)
	if len(flashes) != 1 || flashes[0].Text != "Bestätigungsmail wurde erfolgreich versandt." {
		t.Errorf("flashes = %+v", flashes)
	}

	// Second confirm is a warning, not a resend.
	req2, token2 := sessionRequest(t, "POST", "/confirm-mail/abc", "")
	req2.SetPathValue("id", "abc")
	rec2 := httptest.NewRecorder()
	handleConfirmMail(rec2, req2)

	if len(sender.requests) != 1 {
		t.Errorf("re-confirm sent another mail, total %d", len(sender.requests))
	}
	flashes2 := sessions.TakeFlashes(token2)
	if len(flashes2) != 1 || flashes2[0].Text != "Bestätigungsmail wurde bereits versendet." {
		t.Errorf("flashes = %+v", flashes2)
	}
	if flashes2[0].Category != "warning" {
		t.Errorf("category = %q", flashes2[0].Category)
	}
}

func TestHandleConfirmMail_UnknownID(t *testing.T) {
	setupHandlers(t)
	req, token := sessionRequest(t, "POST", "/confirm-mail/nope", "")
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	handleConfirmMail(rec, req)

	flashes := sessions.TakeFlashes(token)
	if len(flashes) != 1 || flashes[0].Text != "Eintrag nicht gefunden." {
		t.Errorf("flashes = %+v", flashes)
	}
}

func TestHandleDeleteAll_ReportsCount(t *testing.T) {
	store, _ := setupHandlers(t)
	for _, id := range []string{"a", "b", "c"} {
		e := registration.Registration{ID: id, Email: "x@example.com", CreatedAt: time.Now()}
		e.SetPersons([]registration.Person{{FirstName: "Kind"}})
		store.Create(context.Background(), e)
	}

	req, token := sessionRequest(t, "POST", "/delete-all-entries", "")
	rec := httptest.NewRecorder()
	handleDeleteAll(rec, req)

	if len(store.entities) != 0 {
		t.Error("entities not wiped")
	}
	flashes := sessions.TakeFlashes(token)
	if len(flashes) != 1 || flashes[0].Text != "Alle 3 Einträge wurden erfolgreich gelöscht." {
		t.Errorf("flashes = %+v", flashes)
	}
}

func TestHandleExportExcel_Headers(t *testing.T) {
	store, _ := setupHandlers(t)
	e := registration.Registration{
		ID:               "abc",
		ContactFirstName: "Anna",
		ContactLastName:  "Beispiel",
		Email:            "anna@example.com",
		CreatedAt:        time.Now(),
	}
	e.SetPersons([]registration.Person{{FirstName: "Max", BirthDate: "2017-06-01"}})
	store.Create(context.Background(), e)

	req, _ := sessionRequest(t, "GET", "/export-excel", "")
	rec := httptest.NewRecorder()
	handleExportExcel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content type = %q", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, "attachment; filename=Anmeldungen_Stand-") || !strings.HasSuffix(cd, ".xlsx") {
		t.Errorf("content disposition = %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty workbook body")
	}
}

func TestHandleExportExcel_EmptyTable(t *testing.T) {
	setupHandlers(t)
	req, token := sessionRequest(t, "GET", "/export-excel", "")
	rec := httptest.NewRecorder()
	handleExportExcel(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	flashes := sessions.TakeFlashes(token)
	if len(flashes) != 1 || flashes[0].Text != "Keine Daten zum Exportieren vorhanden." {
		t.Errorf("flashes = %+v", flashes)
	}
}

func TestRequireAdmin_RedirectsToLogin(t *testing.T) {
	setupHandlers(t)
	handler := middleware.RequireAdmin(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req, _ := sessionRequest(t, "GET", "/admin", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin-login" {
		t.Errorf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRequireAdmin_AllowsAdminSession(t *testing.T) {
	setupHandlers(t)
	handler := middleware.RequireAdmin(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req, token := sessionRequest(t, "GET", "/admin", "")
	session, _ := sessions.Get(token)
	session.AdminLoggedIn = true
	sessions.Put(token, session)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHandleAdminLogin_WrongPassword(t *testing.T) {
	setupHandlers(t)
	req, token := sessionRequest(t, "POST", "/admin-login", "password=falsch")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handleAdminLogin(rec, req)

	session, _ := sessions.Get(token)
	if session.AdminLoggedIn {
		t.Error("wrong password must not log in")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Falsches Passwort. Bitte erneut versuchen.") {
		t.Errorf("body missing flash: %s", rec.Body.String())
	}
}

func TestHandleAdminLogin_CorrectPassword(t *testing.T) {
	setupHandlers(t)
	req, token := sessionRequest(t, "POST", "/admin-login", "password=geheim")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handleAdminLogin(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	session, _ := sessions.Get(token)
	if !session.AdminLoggedIn {
		t.Error("session not marked admin")
	}
}

func TestHandleConfirmation_WithoutCachedData(t *testing.T) {
	setupHandlers(t)
	req, _ := sessionRequest(t, "GET", "/confirmation", "")
	rec := httptest.NewRecorder()
	handleConfirmation(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func seedEditableEntity(t *testing.T, store *mockRegistrationStore) {
	t.Helper()
	entity := registration.Registration{
		ID:               "abc",
		ContactFirstName: "Anna",
		ContactLastName:  "Beispiel",
		ContactBirthDate: "1985-04-12",
		PhoneNumber:      "0171 1234567",
		Email:            "anna@example.com",
		CakeDonation:     registration.CakeFriday,
		HelpOrganisation: registration.HelpSetup,
		CreatedAt:        time.Now(),
	}
	entity.SetPersons([]registration.Person{
		{FirstName: "Max", LastName: "Beispiel", BirthDate: "2017-06-01", ClubMembership: "Kein Vereinsmitglied"},
	})
	store.Create(context.Background(), entity)
}

func editForm() url.Values {
	return url.Values{
		"contact_firstname": {"Anna"},
		"contact_lastname":  {"Beispiel"},
		"contact_birthdate": {"1985-04-12"},
		"phone_number":      {"0171 1234567"},
		"email":             {"anna@example.com"},
		"cake_donation":     {registration.CakeFriday},
		"help_organisation": {registration.HelpSetup},
	}
}

func TestHandleEditEntry_ReplacesPersons(t *testing.T) {
	store, _ := setupHandlers(t)
	seedEditableEntity(t, store)

	form := editForm()
	form["person_firstname"] = []string{"Lena", "Paul"}
	form["person_lastname"] = []string{"Beispiel", "Beispiel"}
	form["birthdate"] = []string{"2016-03-02", "2018-09-10"}
	form["club_membership"] = []string{"Mitglied im TSV Bitzfeld", "Kein Vereinsmitglied"}

	req, token := sessionRequest(t, "POST", "/edit-entry/abc", form.Encode())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	handleEditEntry(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	flashes := sessions.TakeFlashes(token)
	if len(flashes) != 1 || flashes[0].Text != "Der Eintrag wurde erfolgreich aktualisiert." {
		t.Fatalf("flashes = %+v", flashes)
	}

	stored, err := store.GetByID(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	persons, err := stored.DecodePersons()
	if err != nil {
		t.Fatalf("DecodePersons: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("persons = %d, want 2", len(persons))
	}
	if persons[0].FirstName != "Lena" || persons[0].BirthDate != "2016-03-02" {
		t.Errorf("first person = %+v", persons[0])
	}
	if persons[1].FirstName != "Paul" || persons[1].ClubMembership != "Kein Vereinsmitglied" {
		t.Errorf("second person = %+v", persons[1])
	}
}

func TestHandleEditEntry_BlankRowsKeepPersons(t *testing.T) {
	store, _ := setupHandlers(t)
	seedEditableEntity(t, store)

	form := editForm()
	form["phone_number"] = []string{"0172 7654321"}
	form["person_firstname"] = []string{""}
	form["person_lastname"] = []string{""}
	form["birthdate"] = []string{""}
	form["club_membership"] = []string{"Kein Vereinsmitglied"}

	req, _ := sessionRequest(t, "POST", "/edit-entry/abc", form.Encode())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	handleEditEntry(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	stored, _ := store.GetByID(context.Background(), "abc")
	if stored.PhoneNumber != "0172 7654321" {
		t.Errorf("phone = %q", stored.PhoneNumber)
	}
	persons, err := stored.DecodePersons()
	if err != nil {
		t.Fatalf("DecodePersons: %v", err)
	}
	if len(persons) != 1 || persons[0].FirstName != "Max" {
		t.Errorf("persons = %+v, want the stored child kept", persons)
	}
}

func TestHandleLogout_RotatesSession(t *testing.T) {
	setupHandlers(t)
	req, token := sessionRequest(t, "GET", "/logout", "")
	sessions.Put(token, middleware.Session{AdminLoggedIn: true, CreatedAt: time.Now()})
	rec := httptest.NewRecorder()
	handleLogout(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin-login" {
		t.Fatalf("redirect = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if _, ok := sessions.Get(token); ok {
		t.Error("old session token still resolves after logout")
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "zeltlager_session" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || cookie.Value == token {
		t.Fatalf("cookie = %+v, want a fresh session token", cookie)
	}
	fresh, ok := sessions.Get(cookie.Value)
	if !ok {
		t.Fatal("fresh token does not resolve")
	}
	if fresh.AdminLoggedIn {
		t.Error("fresh session must not be admin")
	}
	flashes := sessions.TakeFlashes(cookie.Value)
	if len(flashes) != 1 || flashes[0].Text != "Erfolgreich ausgeloggt." {
		t.Errorf("flashes = %+v", flashes)
	}
}
