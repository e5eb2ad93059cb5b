package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SmallTownDocumentary/gallery-backend/internal/middleware"
	"github.com/SmallTownDocumentary/gallery-backend/internal/models"
	"github.com/SmallTownDocumentary/gallery-backend/internal/utils"
)

// StaticSession resolves every session cookie to one fixed caller.
type StaticSession struct {
	UserID string
	Role   models.Role
}

func AsUser(u *models.User) StaticSession {
	return StaticSession{UserID: u.ID, Role: u.Role}
}

func (s StaticSession) FindSessionByID(string) (utils.SessionData, error) {
	return utils.SessionData{UserID: s.UserID, Role: s.Role, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// Do sends a request with a session cookie and a JSON body (empty for none).
func Do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "test-session"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// DecodeBody unmarshals a recorded JSON response into a generic map.
func DecodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
