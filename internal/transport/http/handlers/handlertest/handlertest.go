// Package handlertest drives chi routers in handler tests.
package handlertest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"employeehub/internal/domain/auth"
	"employeehub/internal/domain/scope"
	"employeehub/internal/transport/http/middleware"
)

// Perms grants the listed permissions to every role. A nil map grants all.
type Perms map[string]bool

func (p Perms) HasPermission(_ context.Context, _, permission string) (bool, error) {
	if p == nil {
		return true, nil
	}
	return p[permission], nil
}

var (
	Admin   = auth.UserContext{UserID: "admin-user", RoleID: "r-admin", RoleName: auth.RoleAdmin, DataScope: scope.ScopeAll}
	Manager = auth.UserContext{UserID: "manager-user", RoleID: "r-manager", RoleName: auth.RoleManager, EmployeeID: "manager", DataScope: scope.ScopeReports}
)

// ID derives a stable UUID from a readable fixture name.
func ID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Router mounts register behind a middleware that injects user. A nil
// user leaves the request anonymous.
func Router(user *auth.UserContext, register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != nil {
				req = req.WithContext(middleware.WithUser(req.Context(), *user))
			}
			next.ServeHTTP(w, req)
		})
	})
	register(r)
	return r
}

func Do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// Decode unmarshals the envelope and, when dst is non-nil, its data.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}
