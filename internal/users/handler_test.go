package users

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/scentstock/scentstock/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	svc, _, _ := newTestService(t)
	h := NewHandler(slog.Default(), svc)
	r := chi.NewRouter()
	h.MountAuthRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(svc.tokens.RequireAuth)
		h.MountRoutes(r)
		r.Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(shared.ActorFromContext(r.Context())))
		})
	})
	return r, svc
}

func do(router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	rr := do(router, http.MethodPost, "/auth/login", `{"name":"admin","password":"admin123"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var res struct {
		User  User   `json:"user"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Equal(t, RoleAdmin, res.User.Role)
	require.NotContains(t, rr.Body.String(), "password")
	return res.Token
}

func TestHandlerLoginAndWhoAmI(t *testing.T) {
	router, _ := newTestRouter(t)
	token := login(t, router)

	rr := do(router, http.MethodGet, "/whoami", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "admin", rr.Body.String())
}

func TestHandlerLoginInvalid(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := do(router, http.MethodPost, "/auth/login", `{"name":"admin","password":"nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = do(router, http.MethodPost, "/auth/login", `{"name":"admin"}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)

	require.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/users", "", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/users", "", "garbage").Code)
}

func TestHandlerUserLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	token := login(t, router)

	rr := do(router, http.MethodPost, "/users", `{"name":"packer","password":"pw"}`, token)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, RoleUser, created.Role)

	rr = do(router, http.MethodPost, "/users", `{"name":"packer","password":"pw"}`, token)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = do(router, http.MethodGet, "/users", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 2)

	rr = do(router, http.MethodPut, "/users/2/password", `{"password":"new"}`, token)
	require.Equal(t, http.StatusOK, rr.Code)

	require.Equal(t, http.StatusForbidden, do(router, http.MethodDelete, "/users/1", "", token).Code)
	require.Equal(t, http.StatusOK, do(router, http.MethodDelete, "/users/2", "", token).Code)
	require.Equal(t, http.StatusNotFound, do(router, http.MethodDelete, "/users/2", "", token).Code)
	require.Equal(t, http.StatusBadRequest, do(router, http.MethodDelete, "/users/abc", "", token).Code)
}
