package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newSQLiteServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(storage.Options{Path: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	svc := services.NewLedgerService(repo, nil)
	t.Cleanup(func() { _ = svc.Close() })
	return NewServer(":0", svc, Options{Logger: quietLogger()})
}

func newMemoryServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv := NewServer(":0", services.NewLedgerService(memory.New(memory.DefaultCategories()), nil), opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertErrorBody(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	assert.Equal(t, status, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode[map[string]string](t, rec)
	assert.NotEmpty(t, body["error"])
}

// servers runs a test against both storage backends.
func servers(t *testing.T, fn func(t *testing.T, srv *Server)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteServer(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, newMemoryServer(t, Options{})) })
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		rec := do(t, srv, http.MethodPost, "/transactions",
			`{"type":"expense","category":4,"amount":850.25,"date":"2024-03-01","description":"March rent"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		created := decode[core.Transaction](t, rec)
		assert.Positive(t, created.ID)
		assert.Equal(t, core.Expense, created.Type)
		assert.Equal(t, int64(4), *created.Category)
		assert.Equal(t, 850.25, created.Amount)
		assert.Equal(t, "2024-03-01", created.Date)
		assert.Equal(t, "March rent", *created.Description)

		rec = do(t, srv, http.MethodGet, "/transactions/"+itoa(created.ID), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, created, decode[core.Transaction](t, rec))
	})
}

func TestCreateOptionalFieldsAreNull(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		rec := do(t, srv, http.MethodPost, "/transactions", `{"type":"income","amount":10,"date":"2024-01-01"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		raw := decode[map[string]any](t, rec)
		assert.Contains(t, raw, "category")
		assert.Nil(t, raw["category"])
		assert.Nil(t, raw["description"])
	})
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	bodies := map[string]string{
		"bad type":       `{"type":"savings","amount":5,"date":"2024-01-01"}`,
		"missing type":   `{"amount":5,"date":"2024-01-01"}`,
		"missing amount": `{"type":"income","date":"2024-01-01"}`,
		"missing date":   `{"type":"income","amount":5}`,
		"malformed":      `{"type":`,
		"empty":          ``,
	}

	servers(t, func(t *testing.T, srv *Server) {
		for name, body := range bodies {
			t.Run(name, func(t *testing.T) {
				assertErrorBody(t, do(t, srv, http.MethodPost, "/transactions", body), http.StatusBadRequest)
			})
		}

		rec := do(t, srv, http.MethodGet, "/transactions", "")
		assert.Empty(t, decode[[]core.Transaction](t, rec), "nothing persisted")
	})
}

func TestListOrderedAndUnique(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		rec := do(t, srv, http.MethodGet, "/transactions", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())

		seen := map[int64]bool{}
		for i := 0; i < 5; i++ {
			rec := do(t, srv, http.MethodPost, "/transactions", `{"type":"income","amount":1,"date":"2024-01-01"}`)
			require.Equal(t, http.StatusCreated, rec.Code)
			id := decode[core.Transaction](t, rec).ID
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}

		list := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/transactions", ""))
		require.Len(t, list, 5)
		for i := 1; i < len(list); i++ {
			assert.Less(t, list[i-1].ID, list[i].ID)
		}
	})
}

func TestUpdateReplacesAllFields(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		created := decode[core.Transaction](t, do(t, srv, http.MethodPost, "/transactions",
			`{"type":"expense","category":5,"amount":40,"date":"2024-02-01","description":"groceries"}`))
		path := "/transactions/" + itoa(created.ID)

		rec := do(t, srv, http.MethodPut, path, `{"type":"income","amount":70,"date":"2024-02-02"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		updated := decode[core.Transaction](t, rec)
		assert.Equal(t, core.Transaction{ID: created.ID, Type: core.Income, Amount: 70, Date: "2024-02-02"}, updated)

		assert.Equal(t, updated, decode[core.Transaction](t, do(t, srv, http.MethodGet, path, "")))
	})
}

func TestUpdateInvalidLeavesRowUntouched(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		created := decode[core.Transaction](t, do(t, srv, http.MethodPost, "/transactions",
			`{"type":"expense","amount":40,"date":"2024-02-01"}`))
		path := "/transactions/" + itoa(created.ID)

		assertErrorBody(t, do(t, srv, http.MethodPut, path, `{"type":"savings","amount":1,"date":"x"}`), http.StatusBadRequest)
		assert.Equal(t, created, decode[core.Transaction](t, do(t, srv, http.MethodGet, path, "")))
	})
}

func TestNotFoundIsUniform(t *testing.T) {
	valid := `{"type":"income","amount":1,"date":"2024-01-01"}`

	servers(t, func(t *testing.T, srv *Server) {
		for _, id := range []string{"999", "abc", "1.5"} {
			path := "/transactions/" + id
			assertErrorBody(t, do(t, srv, http.MethodGet, path, ""), http.StatusNotFound)
			assertErrorBody(t, do(t, srv, http.MethodPut, path, valid), http.StatusNotFound)
			assertErrorBody(t, do(t, srv, http.MethodDelete, path, ""), http.StatusNotFound)
		}
	})
}

func TestDeleteTwice(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		created := decode[core.Transaction](t, do(t, srv, http.MethodPost, "/transactions",
			`{"type":"income","amount":1,"date":"2024-01-01"}`))
		path := "/transactions/" + itoa(created.ID)

		rec := do(t, srv, http.MethodDelete, path, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())

		assertErrorBody(t, do(t, srv, http.MethodDelete, path, ""), http.StatusNotFound)
		assertErrorBody(t, do(t, srv, http.MethodGet, path, ""), http.StatusNotFound)
	})
}

func TestSummary(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		rec := do(t, srv, http.MethodGet, "/summary", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"totalIncome":0,"totalExpenses":0,"balance":0}`, rec.Body.String())

		for _, body := range []string{
			`{"type":"income","amount":100,"date":"2024-01-01"}`,
			`{"type":"expense","amount":30,"date":"2024-01-02"}`,
			`{"type":"income","amount":50,"date":"2024-01-03"}`,
		} {
			require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/transactions", body).Code)
		}

		rec = do(t, srv, http.MethodGet, "/summary", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"totalIncome":150,"totalExpenses":30,"balance":120}`, rec.Body.String())
	})
}

func TestCategories(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		rec := do(t, srv, http.MethodGet, "/categories", "")
		require.Equal(t, http.StatusOK, rec.Code)

		cats := decode[[]core.Category](t, rec)
		require.Len(t, cats, 10)
		assert.Equal(t, core.Category{ID: 1, Name: "Salary", Type: core.Income}, cats[0])

		assertErrorBody(t, do(t, srv, http.MethodPost, "/categories", `{"name":"x"}`), http.StatusMethodNotAllowed)
	})
}

func TestUnknownRoutesAreJSON(t *testing.T) {
	srv := newMemoryServer(t, Options{})

	assertErrorBody(t, do(t, srv, http.MethodGet, "/nope", ""), http.StatusNotFound)

	rec := do(t, srv, http.MethodPatch, "/transactions", `{}`)
	assertErrorBody(t, rec, http.StatusMethodNotAllowed)
	assert.Contains(t, rec.Header().Get("Allow"), http.MethodPost)
}

func TestMiddlewareHeaders(t *testing.T) {
	srv := newMemoryServer(t, Options{})

	rec := do(t, srv, http.MethodGet, "/summary", "")
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "default-src 'none'; frame-ancestors 'none'", rec.Header().Get("Content-Security-Policy"))
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	srv := newMemoryServer(t, Options{RateLimitRPM: 1})
	body := `{"type":"income","amount":1,"date":"2024-01-01"}`

	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/transactions", body).Code)

	rec := do(t, srv, http.MethodPost, "/transactions", body)
	assertErrorBody(t, rec, http.StatusTooManyRequests)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/transactions", "").Code)
	}

	metrics := decode[map[string]float64](t, do(t, srv, http.MethodGet, "/metrics", ""))
	assert.Equal(t, float64(1), metrics["rate_limit_hits_total"])
}

func TestRateLimitKeysOnForwardedClientBehindTrustedProxy(t *testing.T) {
	body := `{"type":"income","amount":1,"date":"2024-01-01"}`
	post := func(srv *Server, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, "/transactions", strings.NewReader(body))
		req.RemoteAddr = "203.0.113.5:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		return rec.Code
	}

	trusted := newMemoryServer(t, Options{RateLimitRPM: 1, TrustedProxies: []string{"203.0.113.0/24"}})
	assert.Equal(t, http.StatusCreated, post(trusted, "198.51.100.1"))
	assert.Equal(t, http.StatusCreated, post(trusted, "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, post(trusted, "198.51.100.1"))

	untrusted := newMemoryServer(t, Options{RateLimitRPM: 1, TrustedProxies: []string{"not-a-cidr"}})
	assert.Equal(t, http.StatusCreated, post(untrusted, "198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, post(untrusted, "198.51.100.2"))
}

func TestUpdateMissingWithInvalidBodyIsBadRequest(t *testing.T) {
	servers(t, func(t *testing.T, srv *Server) {
		rec := do(t, srv, http.MethodPut, "/transactions/999", `{"type":"savings","amount":1,"date":"2024-01-01"}`)
		assertErrorBody(t, rec, http.StatusBadRequest)
	})
}

func TestStorageFailureIsLoggedAsError(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})
	srv := NewServer(":0", failingLedger{err: errors.New("disk I/O error")}, Options{Logger: logger})

	do(t, srv, http.MethodGet, "/summary", "")

	var found map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Storage failure" {
			found = entry
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "ERROR", found["level"])
	assert.Equal(t, "disk I/O error", found[log.FieldError])
	assert.Equal(t, log.OpSummary, found[log.FieldOperation])
	assert.Equal(t, float64(http.StatusBadRequest), found[log.FieldStatusCode])
	assert.NotEmpty(t, found[log.FieldRequestID])
}

func TestHealthAndReady(t *testing.T) {
	srv := newSQLiteServer(t)

	rec := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rec)["status"])
}

// failingLedger fails every call the way a broken database would.
type failingLedger struct{ err error }

func (f failingLedger) CreateTransaction(context.Context, core.TransactionInput) (core.Transaction, error) {
	return core.Transaction{}, f.err
}
func (f failingLedger) ListTransactions(context.Context) ([]core.Transaction, error) { return nil, f.err }
func (f failingLedger) GetTransaction(context.Context, int64) (core.Transaction, error) {
	return core.Transaction{}, f.err
}
func (f failingLedger) UpdateTransaction(context.Context, int64, core.TransactionInput) (core.Transaction, error) {
	return core.Transaction{}, f.err
}
func (f failingLedger) DeleteTransaction(context.Context, int64) error { return f.err }
func (f failingLedger) Summary(context.Context) (core.Summary, error) { return core.Summary{}, f.err }
func (f failingLedger) ListCategories(context.Context) ([]core.Category, error) { return nil, f.err }
func (f failingLedger) Ping(context.Context) error { return f.err }

func TestStorageFailuresAreBadRequest(t *testing.T) {
	srv := NewServer(":0", failingLedger{err: errors.New("disk I/O error")}, Options{Logger: quietLogger()})
	valid := `{"type":"income","amount":1,"date":"2024-01-01"}`

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/transactions", valid},
		{http.MethodGet, "/transactions", ""},
		{http.MethodGet, "/transactions/1", ""},
		{http.MethodPut, "/transactions/1", valid},
		{http.MethodDelete, "/transactions/1", ""},
		{http.MethodGet, "/summary", ""},
		{http.MethodGet, "/categories", ""},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := do(t, srv, tc.method, tc.path, tc.body)
			assertErrorBody(t, rec, http.StatusBadRequest)
			assert.Equal(t, "disk I/O error", decode[map[string]string](t, rec)["error"])
		})
	}

	rec := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", decode[map[string]any](t, rec)["status"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(core.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(core.ErrMissingDate))
	assert.Equal(t, http.StatusBadRequest, statusFor(core.ErrConstraint))
	assert.Equal(t, http.StatusBadRequest, statusFor(errors.New("database is locked")))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
