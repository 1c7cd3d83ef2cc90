package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volk7/alerting/alarm"
	"github.com/volk7/alerting/scheduler"
	"github.com/volk7/alerting/store"
)

type fakeStore struct {
	mu     sync.Mutex
	alarms map[string]*alarm.Alarm
}

func newFakeStore() *fakeStore {
	return &fakeStore{alarms: make(map[string]*alarm.Alarm)}
}

func (f *fakeStore) Create(_ context.Context, a *alarm.Alarm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.alarms[a.CodeID]; ok {
		return store.ErrConflict
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	f.alarms[a.CodeID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, codeID string) (*alarm.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alarms[codeID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) Cancel(_ context.Context, codeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alarms[codeID]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = alarm.StatusCanceled
	return nil
}

func (f *fakeStore) ListScheduled(_ context.Context, filter store.ListFilter) ([]*alarm.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*alarm.Alarm
	for _, a := range f.alarms {
		if filter.Email != "" && a.Email != filter.Email {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

type fakeTicker struct{ stats scheduler.TickerStats }

func (f fakeTicker) Stats() scheduler.TickerStats { return f.stats }

func newTestServer() (*Server, *fakeStore) {
	st := newFakeStore()
	srv := New(Config{
		Store:           st,
		Index:           scheduler.NewIndex(),
		Ticker:          fakeTicker{stats: scheduler.TickerStats{LastTickAt: time.Now().UTC()}},
		DefaultTimezone: "UTC",
	})
	return srv, st
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestCreateAlarmSuccess(t *testing.T) {
	srv, _ := newTestServer()

	w := postJSON(t, srv, "/alarms", createAlarmRequest{
		CodeID:   "a1",
		Email:    "u@example.com",
		Time:     "09:00:00",
		Timezone: "America/Los_Angeles",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	var resp alarmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "a1", resp.CodeID)
	assert.Equal(t, "scheduled", resp.Status)
	assert.Equal(t, "16:00:00", resp.UTCTime)
}

func TestCreateAlarmGeneratesCodeIDWhenOmitted(t *testing.T) {
	srv, _ := newTestServer()

	w := postJSON(t, srv, "/alarms", createAlarmRequest{Email: "u@example.com", Time: "09:00:00", Timezone: "UTC"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp alarmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CodeID)
}

func TestCreateAlarmRejectsBadTimezone(t *testing.T) {
	srv, _ := newTestServer()

	w := postJSON(t, srv, "/alarms", createAlarmRequest{CodeID: "a1", Email: "u@example.com", Time: "09:00:00", Timezone: "Not/AZone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAlarmRejectsRecurringWithoutDays(t *testing.T) {
	srv, _ := newTestServer()

	w := postJSON(t, srv, "/alarms", createAlarmRequest{
		CodeID: "a1", Email: "u@example.com", Time: "09:00:00", Timezone: "UTC", IsRecurring: true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAlarmDuplicateConflict(t *testing.T) {
	srv, st := newTestServer()
	st.Create(context.Background(), &alarm.Alarm{CodeID: "a1", Email: "u@example.com", Timezone: "UTC", Status: alarm.StatusScheduled})

	w := postJSON(t, srv, "/alarms", createAlarmRequest{CodeID: "a1", Email: "u@example.com", Time: "09:00:00", Timezone: "UTC"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetAlarmNotFound(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/alarms/missing", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAlarmFound(t *testing.T) {
	srv, st := newTestServer()
	st.Create(context.Background(), &alarm.Alarm{CodeID: "a1", Email: "u@example.com", Timezone: "UTC", Status: alarm.StatusScheduled})

	req := httptest.NewRequest(http.MethodGet, "/alarms/a1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp alarmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "a1", resp.CodeID)
}

func TestDeleteAlarm(t *testing.T) {
	srv, st := newTestServer()
	st.Create(context.Background(), &alarm.Alarm{CodeID: "a1", Email: "u@example.com", Timezone: "UTC", Status: alarm.StatusScheduled})

	req := httptest.NewRequest(http.MethodDelete, "/alarms/a1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)

	got, err := st.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, alarm.StatusCanceled, got.Status)
}

func TestListAlarmsFiltersByEmail(t *testing.T) {
	srv, st := newTestServer()
	st.Create(context.Background(), &alarm.Alarm{CodeID: "a1", Email: "x@example.com", Timezone: "UTC", Status: alarm.StatusScheduled})
	st.Create(context.Background(), &alarm.Alarm{CodeID: "a2", Email: "y@example.com", Timezone: "UTC", Status: alarm.StatusScheduled})

	req := httptest.NewRequest(http.MethodGet, "/alarms?email=x@example.com", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp []alarmResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "a1", resp[0].CodeID)
}

func TestHealthOK(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHealthDegradedOnStaleTick(t *testing.T) {
	st := newFakeStore()
	srv := New(Config{
		Store:  st,
		Index:  scheduler.NewIndex(),
		Ticker: fakeTicker{stats: scheduler.TickerStats{LastTickAt: time.Now().UTC().Add(-10 * time.Second)}},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
