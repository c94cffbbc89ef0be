// Package api exposes the relayer's HTTP surface: deposit reveal ingress,
// deposit status lookup, audit log queries, and a process status endpoint.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/keep-network/tbtc-relayer/relayer/chains"
	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared"
)

var log = logrus.WithField("prefix", "api")

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	defaultAuditLimit = 500
)

// Config groups the API service dependencies.
type Config struct {
	Host            string
	Port            string
	LifecycleAPI    *lifecycle.API
	Registry        *chains.Registry
	DB              iface.Database
	ServiceRegistry *shared.ServiceRegistry
}

// Service serves the relayer HTTP API.
type Service struct {
	cfg    *Config
	server *http.Server
	failure error
}

// NewService constructs the HTTP API service and its routes.
func NewService(cfg *Config) *Service {
	s := &Service{cfg: cfg}
	router := mux.NewRouter()
	router.HandleFunc("/api/{chainName}/reveal", s.handleReveal).Methods(http.MethodPost)
	router.HandleFunc("/api/{chainName}/deposit/{depositId}", s.handleDepositStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/{chainName}/audit-logs", s.handleAuditLogs).Methods(http.MethodGet)
	router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.server = &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Start begins serving requests.
func (s *Service) Start() {
	go func() {
		log.WithField("address", s.server.Addr).Info("Starting relayer API")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.failure = err
			log.WithError(err).Error("Relayer API failed")
		}
	}()
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status returns a serving error, if any.
func (s *Service) Status() error {
	return s.failure
}

// Router exposes the handler for tests.
func (s *Service) Router() http.Handler {
	return s.server.Handler
}

type errorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Fields  interface{} `json:"fields,omitempty"`
}

func (s *Service) handleReveal(w http.ResponseWriter, r *http.Request) {
	chainName := mux.Vars(r)["chainName"]
	var req lifecycle.RevealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	s.auditRequest(r.Context(), chainName, "reveal")
	result, err := s.cfg.LifecycleAPI.RevealDeposit(r.Context(), chainName, &req)
	if err != nil {
		var validationErr *lifecycle.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error(), Fields: validationErr.FieldErrors})
		case errors.Is(err, chains.ErrUnknownChain):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success   bool                      `json:"success"`
		DepositID string                    `json:"depositId"`
		Receipt   *chains.InitializeReceipt `json:"receipt"`
	}{true, result.DepositID, result.Receipt})
}

func (s *Service) handleDepositStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	status, err := s.cfg.LifecycleAPI.GetDepositStatus(r.Context(), vars["chainName"], vars["depositId"])
	if err != nil {
		if errors.Is(err, lifecycle.ErrDepositUnknown) || errors.Is(err, chains.ErrUnknownChain) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success   bool   `json:"success"`
		DepositID string `json:"depositId"`
		Status    string `json:"status"`
	}{true, vars["depositId"], status.String()})
}

// handleAuditLogs returns the journal filtered by chain, and optionally by
// the depositId and eventType query parameters. The literal chain name "all"
// lifts the chain filter.
func (s *Service) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	chainName := mux.Vars(r)["chainName"]
	if chainName != "all" {
		if _, err := s.cfg.Registry.Get(chainName); err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
	}
	filter := &types.AuditFilter{Limit: defaultAuditLimit}
	if chainName != "all" {
		filter.ChainName = chainName
	}
	if depositID := r.URL.Query().Get("depositId"); depositID != "" {
		filter.DepositID = depositID
	}
	if eventType := r.URL.Query().Get("eventType"); eventType != "" {
		filter.EventType = types.AuditEventType(eventType)
	}
	events, err := s.cfg.DB.AuditEvents(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool                `json:"success"`
		Events  []*types.AuditEvent `json:"events"`
	}{true, events})
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	chainNames := make([]string, 0)
	for _, handler := range s.cfg.Registry.All() {
		chainNames = append(chainNames, handler.Name())
	}
	services := make(map[string]string)
	if s.cfg.ServiceRegistry != nil {
		for kind, err := range s.cfg.ServiceRegistry.Statuses() {
			if err != nil {
				services[kind.String()] = err.Error()
				continue
			}
			services[kind.String()] = "ok"
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool              `json:"success"`
		Chains   []string          `json:"chains"`
		Services map[string]string `json:"services"`
	}{true, chainNames, services})
}

func (s *Service) auditRequest(ctx context.Context, chainName, operation string) {
	if err := s.cfg.DB.SaveAuditEvent(ctx, &types.AuditEvent{
		EventType: types.AuditAPIRequest,
		ChainName: chainName,
		Data:      map[string]interface{}{"operation": operation},
	}); err != nil {
		log.WithError(err).Error("Could not save API audit event")
	}
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Could not encode response")
	}
}
