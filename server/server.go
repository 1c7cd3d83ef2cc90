package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/volk7/alerting/alarm"
	"github.com/volk7/alerting/scheduler"
	"github.com/volk7/alerting/store"
)

// AlarmStore is the subset of *store.Store the HTTP façade depends on.
type AlarmStore interface {
	Create(ctx context.Context, a *alarm.Alarm) error
	Get(ctx context.Context, codeID string) (*alarm.Alarm, error)
	Cancel(ctx context.Context, codeID string) error
	ListScheduled(ctx context.Context, filter store.ListFilter) ([]*alarm.Alarm, error)
}

var _ AlarmStore = (*store.Store)(nil)

// Ticker is the subset of *scheduler.Ticker the health handler reads.
type Ticker interface {
	Stats() scheduler.TickerStats
}

// Server is the HTTP façade over the alarm core: it validates ingress,
// calls the Store, and mirrors every mutation into the Scheduler index
// via the onAlarmChanged/onAlarmCanceled hooks so REST writes take
// effect on the next tick without waiting for reconciliation.
type Server struct {
	store           AlarmStore
	index           *scheduler.Index
	ticker          Ticker
	defaultTimezone string
	log             *zap.SugaredLogger
	mux             *http.ServeMux

	onAlarmChanged  func(*alarm.Alarm)
	onAlarmCanceled func(codeID string)
}

// Config configures a new Server.
type Config struct {
	Store           AlarmStore
	Index           *scheduler.Index
	Ticker          Ticker
	DefaultTimezone string
	Logger          *zap.SugaredLogger
	OnAlarmChanged  func(*alarm.Alarm)
	OnAlarmCanceled func(codeID string)
}

// New builds a Server and wires its routes.
func New(cfg Config) *Server {
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	s := &Server{
		store:           cfg.Store,
		index:           cfg.Index,
		ticker:          cfg.Ticker,
		defaultTimezone: cfg.DefaultTimezone,
		log:             cfg.Logger,
		onAlarmChanged:  cfg.OnAlarmChanged,
		onAlarmCanceled: cfg.OnAlarmCanceled,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) logStoreError(op string, err error) {
	if s.log == nil {
		return
	}
	s.log.Errorw("store operation failed", "op", op, "error", err)
}
