package auth_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/SmallTownDocumentary/gallery-backend/internal/auth"
	"github.com/SmallTownDocumentary/gallery-backend/internal/config"
	"github.com/SmallTownDocumentary/gallery-backend/internal/db"
	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
)

// pgDB is set when DATABASE_URL points at a reachable Postgres.
var pgDB *gorm.DB

// pgServer serves the /auth router against Postgres.
var pgServer *httptest.Server

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	if os.Getenv("DATABASE_URL") == "" {
		os.Exit(m.Run())
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	// httptest serves plain HTTP.
	cfg.Session.SecureCookie = false
	cfg.RateLimit.Auth = ""

	gdb, err := db.Connect(cfg, zerolog.Nop())
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect:", err)
		os.Exit(1)
	}
	if err := db.Migrate(gdb, cfg.Database.Schema); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	pgDB = gdb

	router, err := auth.Setup(cfg, gdb, nil, nil, zerolog.Nop())
	if err != nil {
		fmt.Fprintln(os.Stderr, "setup:", err)
		os.Exit(1)
	}
	r := chi.NewRouter()
	r.Use(middleware.CORS(nil))
	r.Mount("/auth", router)

	pgServer = httptest.NewServer(r)
	code := m.Run()
	pgServer.Close()
	_ = db.Close(gdb)
	os.Exit(code)
}

// createPGUser inserts a unique approved user and removes it after the test.
func createPGUser(t *testing.T) (email, password string) {
	t.Helper()
	if pgDB == nil {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}

	email = fmt.Sprintf("it_%s@example.test", uuid.New().String()[:8])
	password = "TestPass123!"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}

	user := models.User{Email: email, Name: "Integration User", PasswordHash: string(hashed), Role: models.RolePhotographer}
	if err := pgDB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	t.Cleanup(func() {
		pgDB.Where("user_id = ?", user.ID).Delete(&models.Session{})
		pgDB.Where("id = ?", user.ID).Delete(&models.User{})
	})
	return email, password
}

func newClientWithJar(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	return &http.Client{Jar: jar}
}

func loginUser(t *testing.T, client *http.Client, base, email, password string) *http.Response {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := client.Post(base+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /auth/login: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestPostgresLoginReturnsSessionCookie(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
	email, password := createPGUser(t)
	client := newClientWithJar(t)

	resp := loginUser(t, client, pgServer.URL, email, password)
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", resp.StatusCode, body)
	}
	if !strings.Contains(resp.Header.Get("Set-Cookie"), middleware.SessionCookie) {
		t.Errorf("expected Set-Cookie to contain %q, got: %q", middleware.SessionCookie, resp.Header.Get("Set-Cookie"))
	}
}

func TestPostgresLogoutClearsSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
	email, password := createPGUser(t)
	client := newClientWithJar(t)

	loginResp := loginUser(t, client, pgServer.URL, email, password)
	if body := readBody(t, loginResp); loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d %s", loginResp.StatusCode, body)
	}

	meResp, err := client.Get(pgServer.URL + "/auth/me")
	if err != nil {
		t.Fatalf("GET /auth/me: %v", err)
	}
	if body := readBody(t, meResp); meResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /auth/me, got %d; body: %s", meResp.StatusCode, body)
	}

	logoutResp, err := client.Post(pgServer.URL+"/auth/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /auth/logout: %v", err)
	}
	if body := readBody(t, logoutResp); logoutResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /auth/logout, got %d; body: %s", logoutResp.StatusCode, body)
	}

	meResp, err = client.Get(pgServer.URL + "/auth/me")
	if err != nil {
		t.Fatalf("GET /auth/me after logout: %v", err)
	}
	if body := readBody(t, meResp); meResp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 from /auth/me after logout, got %d; body: %s", meResp.StatusCode, body)
	}
}
