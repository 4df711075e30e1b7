package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dom/product-console/internal/config"
	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, apiURL, input string) (*app, *bytes.Buffer) {
	t.Helper()
	cfg := &config.ClientConfig{
		APIURL:      apiURL,
		SessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
	out := &bytes.Buffer{}
	return newApp(cfg, zap.NewNop().Sugar(), strings.NewReader(input), out), out
}

func seedSession(t *testing.T, a *app, role domain.Role, expiry time.Time) {
	t.Helper()
	err := a.store.Save(&session.Session{
		Token:  "token-" + string(role),
		User:   domain.PublicUser{ID: uuid.New(), Email: string(role) + "@example.com", Role: role},
		Expiry: expiry,
	})
	require.NoError(t, err)
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{name: "plain words", line: "products list --sort=price", want: []string{"products", "list", "--sort=price"}},
		{name: "double quotes", line: `products create --name="Desk Lamp"`, want: []string{"products", "create", "--name=Desk Lamp"}},
		{name: "single quotes", line: "audit list --action 'CREATE'", want: []string{"audit", "list", "--action", "CREATE"}},
		{name: "extra whitespace", line: "  whoami \t ", want: []string{"whoami"}},
		{name: "blank", line: "", want: nil},
		{name: "unterminated", line: `products create --name="Lamp`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_GuardRefusesWithoutSession(t *testing.T) {
	a, out := newTestApp(t, "http://127.0.0.1:1", "")

	err := a.run(context.Background(), "products", []string{"list"})

	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out.String(), "Please log in to access /products")
}

func TestRun_GuardRefusesWrongRole(t *testing.T) {
	a, out := newTestApp(t, "http://127.0.0.1:1", "")
	seedSession(t, a, domain.RoleUser, time.Now().Add(time.Hour))

	err := a.run(context.Background(), "audit", []string{"stats"})

	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out.String(), "Access denied: requires role 'admin', current role 'user'")
}

func TestRun_ExpiredSessionIsClearedWithNotice(t *testing.T) {
	a, out := newTestApp(t, "http://127.0.0.1:1", "")
	seedSession(t, a, domain.RoleAdmin, time.Now().Add(-time.Minute))

	err := a.run(context.Background(), "whoami", nil)

	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out.String(), session.ExpiredMessage)
	s, err := a.store.Load()
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRun_ProductsListCallsAPI(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"products": []domain.Product{{ID: uuid.New(), Name: "Desk Lamp", Price: 39.99}},
			"total":    1,
		})
	}))
	defer srv.Close()

	a, out := newTestApp(t, srv.URL, "")
	seedSession(t, a, domain.RoleUser, time.Now().Add(time.Hour))

	err := a.run(context.Background(), "products", []string{"list", "--sort=price", "--order=asc"})

	require.NoError(t, err)
	assert.Equal(t, "Bearer token-user", gotAuth)
	assert.Contains(t, gotQuery, "sortBy=price")
	assert.Contains(t, out.String(), "Desk Lamp")
	assert.Contains(t, out.String(), "1 product(s)")
}

func TestRun_UpdateSendsOnlyGivenFlags(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "Product updated successfully",
			"product": domain.Product{ID: uuid.New(), Name: "Lamp", Price: 12.5},
		})
	}))
	defer srv.Close()

	a, _ := newTestApp(t, srv.URL, "")
	seedSession(t, a, domain.RoleAdmin, time.Now().Add(time.Hour))

	err := a.run(context.Background(), "products", []string{"update", uuid.NewString(), "--price=12.5"})

	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"price": 12.5}, body)
}

func TestRun_UnauthorizedResponseEndsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid or expired token"})
	}))
	defer srv.Close()

	a, _ := newTestApp(t, srv.URL, "")
	seedSession(t, a, domain.RoleUser, time.Now().Add(time.Hour))

	err := a.run(context.Background(), "whoami", nil)

	require.Error(t, err)
	s, err := a.store.Load()
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, session.ExpiredMessage, a.sessions.Message())
}

func TestShell_RunsLinesUntilExit(t *testing.T) {
	a, out := newTestApp(t, "http://127.0.0.1:1", "status\n\nbogus\nexit\nstatus\n")

	err := a.shellCmd(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out.String(), "Session: no-session"))
	assert.Contains(t, out.String(), "Unknown command: bogus")
	assert.False(t, a.isLive())
}
