package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vinitharameshchand/akai-itoo/internal/ratelimit"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "waitlist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func post(t *testing.T, h *Handler, body string) (int, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/waitlist", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Join(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestStoreDedupesEmail(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Entry{Name: "Alice", Email: "alice@example.com"}))
	assert.ErrorIs(t, s.Add(ctx, Entry{Name: "Alice again", Email: "ALICE@example.com"}), ErrAlreadyJoined)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alice", entries[0].Name)
	assert.Equal(t, DefaultRole, entries[0].Role)
	assert.WithinDuration(t, time.Now(), entries[0].Timestamp, time.Minute)
}

func TestStoreListsInSignupOrder(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Entry{Name: "B", Email: "b@example.com", Role: "partner"}))
	require.NoError(t, s.Add(ctx, Entry{Name: "A", Email: "a@example.com"}))

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b@example.com", entries[0].Email)
	assert.Equal(t, "partner", entries[0].Role)
	assert.Equal(t, "a@example.com", entries[1].Email)
}

func TestEmptyStoreListsEmptyArray(t *testing.T) {
	h := NewHandler(openStore(t), nil)
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/waitlist", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestJoinFlow(t *testing.T) {
	h := NewHandler(openStore(t), nil)

	code, resp := post(t, h, `{"name":"Alice","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, Response{Success: true, Message: MsgJoined}, resp)

	code, resp = post(t, h, `{"name":"Alice","email":"alice@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, Response{Success: false, Message: MsgAlreadyJoined}, resp)

	code, resp = post(t, h, `{"name":"NoMail"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, MsgEmailRequired, resp.Message)

	code, resp = post(t, h, `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, MsgEmailInvalid, resp.Message)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/waitlist", nil))
	var entries []Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "user", entries[0].Role)
}

func TestJoinIsRateLimited(t *testing.T) {
	limiter := ratelimit.NewKeyed(ratelimit.Policy{Enabled: true, EventsPerSecond: 0.001, Burst: 1}, time.Minute)
	defer limiter.Close()
	h := NewHandler(openStore(t), limiter)

	code, _ := post(t, h, `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusOK, code)

	code, resp := post(t, h, `{"email":"b@example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, MsgTooManyRequest, resp.Message)
}

type failingStore struct{}

func (failingStore) Add(context.Context, Entry) error      { return errors.New("disk full") }
func (failingStore) List(context.Context) ([]Entry, error) { return nil, errors.New("disk full") }

func TestStoreFailuresBecomeServerErrors(t *testing.T) {
	h := NewHandler(failingStore{}, nil)

	code, resp := post(t, h, `{"email":"a@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, MsgServerError, resp.Message)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/waitlist", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
