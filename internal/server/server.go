package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/iwvelando/otica-forecast/internal/config"
	"github.com/iwvelando/otica-forecast/internal/forecast"
	"github.com/iwvelando/otica-forecast/pkg/adapters"
	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/labor"
	"github.com/iwvelando/otica-forecast/pkg/pricing"
	"github.com/iwvelando/otica-forecast/pkg/tax"
	jsoniter "github.com/json-iterator/go"
	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	version       string
	engine        *forecast.Engine
	tax           *tax.Calculator
}

// NewHandler constructs the HTTP handler that serves the evaluation API.
func NewHandler(logger *zap.Logger, maxUploadSize int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		version:       trimmedVersion,
		engine:        forecast.NewEngine(logger),
		tax:           tax.NewCalculator(logger),
	}

	router := httprouter.New()
	router.HandlerFunc(http.MethodPost, "/api/evaluate", h.handleEvaluate)
	router.HandlerFunc(http.MethodPost, "/api/export", h.handleExport)
	router.HandlerFunc(http.MethodPost, "/api/tax/calculate", h.handleTaxCalculate)
	router.HandlerFunc(http.MethodPost, "/api/tax/compare", h.handleTaxCompare)
	router.HandlerFunc(http.MethodPost, "/api/pricing/unit-cost", h.handleUnitCost)
	router.HandlerFunc(http.MethodPost, "/api/pricing/allocation", h.handleAllocation)
	router.HandlerFunc(http.MethodPost, "/api/labor/cost", h.handleLaborCost)
	router.HandlerFunc(http.MethodGet, "/api/version", h.handleVersion)
	router.HandlerFunc(http.MethodGet, "/healthz", h.handleHealth)

	return alice.New(h.recoverPanics, h.logRequests, h.limitBody).Then(router)
}

type evaluateResponse struct {
	Plan       forecast.FinancialPlan `json:"plan"`
	Duration   string                 `json:"duration"`
	ConfigYAML string                 `json:"configYaml,omitempty"`
}

func (h *handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEvaluate"
	start := time.Now()

	body, ok := h.readBody(w, r, op)
	if !ok {
		return
	}

	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(body), requestFormat(r))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	plan := h.engine.Evaluate(cfg.AssumptionBundle)

	response := evaluateResponse{Plan: plan}
	if configBytes, err := yaml.Marshal(plan.Bundle); err != nil {
		h.logger.Warn("failed to marshal sanitised plan",
			zap.String("op", op),
			zap.Error(err),
		)
	} else {
		response.ConfigYAML = string(configBytes)
	}
	elapsed := time.Since(start)
	response.Duration = elapsed.String()

	h.logger.Info("plan evaluated",
		zap.String("op", op),
		zap.String("plan", plan.ID),
		zap.String("status", string(plan.Viability.Status)),
		zap.Int("findings", len(plan.Viability.Findings)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

// handleExport returns the sanitised plan as YAML so the workbench can offer it
// for download.
func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleExport"

	body, ok := h.readBody(w, r, op)
	if !ok {
		return
	}
	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(body), requestFormat(r))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	clean, found := cfg.AssumptionBundle.Sanitize(h.logger)
	cfg.AssumptionBundle = clean
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode configuration: %v", err), op)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"configYaml": string(yamlBytes),
		"findings":   found.Sorted(),
	})
}

type taxRequest struct {
	Regime        string  `json:"regime"`
	Annex         string  `json:"annex"`
	AnnualRevenue float64 `json:"annual_revenue"`
}

func (h *handler) handleTaxCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTaxCalculate"

	var req taxRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	regime, err := tax.ParseRegime(req.Regime)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	annex, err := tax.ParseAnnex(req.Annex)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	res, err := h.tax.Calculate(regime, annex, req.AnnualRevenue)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) handleTaxCompare(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTaxCompare"

	var req taxRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	annex, err := tax.ParseAnnex(req.Annex)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	cmp, err := h.tax.CompareRegimes(req.AnnualRevenue, annex)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, cmp)
}

type unitCostRequest struct {
	Lens       string          `json:"lens"`
	Frame      string          `json:"frame"`
	Treatments []string        `json:"treatments"`
	Catalog    pricing.Catalog `json:"catalog"`
}

func (h *handler) handleUnitCost(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleUnitCost"

	var req unitCostRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}

	model := adapters.NewPricingModel(h.logger, config.AssumptionBundle{Catalog: req.Catalog})
	uc, err := model.UnitCost(req.Lens, req.Frame, req.Treatments)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, uc)
}

type allocationRequest struct {
	FixedCosts map[string]float64 `json:"fixed_costs"`
	UnitTarget int                `json:"unit_target"`
}

func (h *handler) handleAllocation(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAllocation"

	var req allocationRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	model := pricing.NewModel(h.logger, pricing.DefaultCatalog())
	h.writeJSON(w, http.StatusOK, model.AllocationPerUnit(req.FixedCosts, req.UnitTarget))
}

type laborRequest struct {
	Employees      []labor.Employee `json:"employees"`
	FlatLoadingPct float64          `json:"flat_loading_pct"`
}

func (h *handler) handleLaborCost(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleLaborCost"

	var req laborRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}
	for i := range req.Employees {
		kind, err := labor.ParseContractKind(string(req.Employees[i].ContractKind))
		if err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("employee %d: %v", i+1, err), op)
			return
		}
		req.Employees[i].ContractKind = kind
	}

	calc := adapters.NewLaborCalculator(h.logger, config.AssumptionBundle{FlatLoadingPct: req.FlatLoadingPct})
	h.writeJSON(w, http.StatusOK, calc.Aggregate(req.Employees))
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestFormat picks the plan decoder from the Content-Type header, falling
// back to the "format" query parameter and then to JSON.
func requestFormat(r *http.Request) string {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		if strings.Contains(mediaType, "yaml") || strings.Contains(mediaType, "yml") {
			return "yaml"
		}
		if strings.Contains(mediaType, "json") {
			return "json"
		}
	}
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "yaml", "yml":
		return "yaml"
	}
	return "json"
}

func (h *handler) readBody(w http.ResponseWriter, r *http.Request, op string) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxUploadSize), op)
			return nil, false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to read request: %v", err), op)
		return nil, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		h.respondErrorWithOp(w, http.StatusBadRequest, "empty request body", op)
		return nil, false
	}
	return body, true
}

func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	body, ok := h.readBody(w, r, op)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

func (h *handler) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug(fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			zap.String("op", "server.logRequests"),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error(fmt.Sprintf("panic serving %s %s: %v", r.Method, r.URL.Path, rec),
					zap.String("op", "server.recoverPanics"),
					zap.ByteString("stack", debug.Stack()),
				)
				h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
