package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/volk7/alerting/alarm"
	"github.com/volk7/alerting/errors"
	"github.com/volk7/alerting/store"
	"github.com/volk7/alerting/temporal"
)

// createAlarmRequest is the POST /alarms body.
type createAlarmRequest struct {
	CodeID      string   `json:"code_id"`
	Email       string   `json:"email"`
	Time        string   `json:"time"`
	Timezone    string   `json:"timezone"`
	IsRecurring bool     `json:"is_recurring"`
	DaysOfWeek  []string `json:"days_of_week"`
}

// alarmResponse mirrors the AlarmResponse shape: time/utc_time as
// HH:MM:SS wall-clock strings, utc_time for today's date.
type alarmResponse struct {
	CodeID      string   `json:"code_id"`
	Email       string   `json:"email"`
	Time        string   `json:"time"`
	UTCTime     string   `json:"utc_time"`
	Timezone    string   `json:"timezone"`
	IsRecurring bool     `json:"is_recurring"`
	DaysOfWeek  []string `json:"days_of_week"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

func toAlarmResponse(a *alarm.Alarm) alarmResponse {
	days := make([]string, len(a.DaysOfWeek))
	for i, d := range a.DaysOfWeek {
		days[i] = string(d)
	}
	return alarmResponse{
		CodeID:      a.CodeID,
		Email:       a.Email,
		Time:        temporal.FormatClockTime(a.LocalTime),
		UTCTime:     temporal.FormatClockTime(a.UTCTime),
		Timezone:    a.Timezone,
		IsRecurring: a.IsRecurring,
		DaysOfWeek:  days,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   a.UpdatedAt.Format(time.RFC3339),
	}
}

// validateCreate converts and checks req, filling in s.defaultTimezone when
// the caller omits one. Returns a *ValidationError (never a bare error)
// on any rejected field.
func (s *Server) validateCreate(req createAlarmRequest) (*alarm.Alarm, error) {
	if req.CodeID == "" {
		req.CodeID = uuid.New().String()
	}
	if req.Email == "" {
		return nil, newValidationError("email", "must not be empty")
	}

	zone := req.Timezone
	if zone == "" {
		zone = s.defaultTimezone
	}
	zone, err := temporal.NormalizeZone(zone)
	if err != nil {
		return nil, newValidationError("timezone", err.Error())
	}

	clock, err := temporal.ParseClockTime(req.Time)
	if err != nil {
		return nil, newValidationError("time", err.Error())
	}

	days := make(alarm.DaysOfWeek, 0, len(req.DaysOfWeek))
	for _, d := range req.DaysOfWeek {
		wd := alarm.Weekday(d)
		switch wd {
		case alarm.Monday, alarm.Tuesday, alarm.Wednesday, alarm.Thursday, alarm.Friday, alarm.Saturday, alarm.Sunday:
			days = append(days, wd)
		default:
			return nil, newValidationError("days_of_week", "unrecognized weekday: "+d)
		}
	}
	if req.IsRecurring && len(days) == 0 {
		return nil, newValidationError("days_of_week", "recurring alarms require at least one weekday")
	}

	utc, _, err := temporal.LocalToUTC(clock, zone, time.Now().UTC())
	if err != nil {
		return nil, newValidationError("time", err.Error())
	}

	return &alarm.Alarm{
		CodeID:      req.CodeID,
		Email:       req.Email,
		LocalTime:   clock,
		Timezone:    zone,
		UTCTime:     utc,
		IsRecurring: req.IsRecurring,
		DaysOfWeek:  days,
		Status:      alarm.StatusScheduled,
	}, nil
}

func (s *Server) handleCreateAlarm(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req createAlarmRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}

	a, err := s.validateCreate(req)
	if err != nil {
		if ve, ok := asValidationError(err); ok {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.Create(r.Context(), a); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "alarm already exists")
			return
		}
		s.logStoreError("create_alarm", err)
		writeError(w, http.StatusInternalServerError, "failed to create alarm")
		return
	}

	if s.onAlarmChanged != nil {
		s.onAlarmChanged(a)
	}

	writeJSON(w, http.StatusCreated, toAlarmResponse(a))
}

func (s *Server) handleGetAlarm(w http.ResponseWriter, r *http.Request, codeID string) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	a, err := s.store.Get(r.Context(), codeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alarm not found")
			return
		}
		s.logStoreError("get_alarm", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch alarm")
		return
	}
	writeJSON(w, http.StatusOK, toAlarmResponse(a))
}

func (s *Server) handleDeleteAlarm(w http.ResponseWriter, r *http.Request, codeID string) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	if err := s.store.Cancel(r.Context(), codeID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alarm not found")
			return
		}
		s.logStoreError("cancel_alarm", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel alarm")
		return
	}

	if s.onAlarmCanceled != nil {
		s.onAlarmCanceled(codeID)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAlarms(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	filter := store.ListFilter{
		Email: r.URL.Query().Get("email"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = alarm.Status(status)
	}

	alarms, err := s.store.ListScheduled(r.Context(), filter)
	if err != nil {
		s.logStoreError("list_alarms", err)
		writeError(w, http.StatusInternalServerError, "failed to list alarms")
		return
	}

	out := make([]alarmResponse, len(alarms))
	for i, a := range alarms {
		out[i] = toAlarmResponse(a)
	}
	writeJSON(w, http.StatusOK, out)
}
