package server

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"go.uber.org/zap"
)

func serve(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeMap(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v (%s)", err, rr.Body.String())
	}
	return resp
}

func TestHandleEvaluateYAML(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, "")

	data, err := os.ReadFile(filepath.Join("..", "..", "test", "test_plan.yaml"))
	if err != nil {
		t.Fatalf("failed to read test plan: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/x-yaml")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp evaluateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Plan.ID == "" {
		t.Fatal("expected a plan id")
	}
	if resp.Plan.Name != "Ótica Centro" {
		t.Fatalf("expected plan name from the file, got %q", resp.Plan.Name)
	}
	if len(resp.Plan.DRE.Months) != 12 || len(resp.Plan.CashFlow.Months) != 12 {
		t.Fatalf("expected 12 months, got %d DRE and %d cash flow", len(resp.Plan.DRE.Months), len(resp.Plan.CashFlow.Months))
	}
	if resp.Plan.Viability.Status == "" {
		t.Fatal("expected a viability status")
	}
	if resp.Duration == "" {
		t.Fatal("expected duration in response")
	}
	if !strings.Contains(resp.ConfigYAML, "sales_month_1: 30000") {
		t.Fatalf("expected sanitised plan YAML, got %q", resp.ConfigYAML)
	}
}

func TestHandleEvaluateJSON(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, "")

	body := `{
		"name": "json plan",
		"sales_month_1": 30000,
		"monthly_growth_rate": 2,
		"average_ticket": 500,
		"avista_share": 70,
		"acquirer_fee_rate": 3.79,
		"cmv_pct": 45,
		"commission_pct": 3,
		"rent": 3500,
		"regime": "simples",
		"simples_annex": "I",
		"payment_profile": "custom(20,50,30)",
		"employees": [{"name": "Ana", "base_salary": 2000, "contract_kind": "clt"}]
	}`
	rr := serve(t, handler, http.MethodPost, "/api/evaluate", "application/json", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp evaluateResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got := resp.Plan.DRE.Months[0].Taxes; math.Abs(got-1695) > 1e-6 {
		t.Fatalf("expected month 1 tax 1695, got %v", got)
	}
	if got := resp.Plan.Bundle.PaymentProfile.Shares; len(got) != 3 || got[0] != 20 {
		t.Fatalf("expected custom payment profile, got %v", got)
	}
	if got := resp.Plan.CashFlow.Months[0].OutflowSuppliers; math.Abs(got-2700) > 1e-6 {
		t.Fatalf("expected month 1 supplier outflow 2700, got %v", got)
	}
}

func TestHandleEvaluateFindingsInBody(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, "")

	body := `{"sales_month_1": 10000, "average_ticket": 500, "cmv_pct": 45, "rent": 2000, "regime": "MEI"}`
	rr := serve(t, handler, http.MethodPost, "/api/evaluate", "application/json", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"rule_id":"mei_limit_exceeded"`) {
		t.Fatalf("expected mei_limit_exceeded in response, got %s", rr.Body.String())
	}
}

func TestHandleEvaluateErrors(t *testing.T) {
	tests := []struct {
		name        string
		limit       int64
		method      string
		contentType string
		body        string
		status      int
		message     string
	}{
		{
			name:        "Malformed JSON",
			method:      http.MethodPost,
			contentType: "application/json",
			body:        `{"sales_month_1": `,
			status:      http.StatusBadRequest,
			message:     "error reading config",
		},
		{
			name:        "Malformed YAML",
			method:      http.MethodPost,
			contentType: "application/yaml",
			body:        "sales_month_1: [\n",
			status:      http.StatusBadRequest,
			message:     "error reading config",
		},
		{
			name:        "Empty body",
			method:      http.MethodPost,
			contentType: "application/json",
			status:      http.StatusBadRequest,
			message:     "empty request body",
		},
		{
			name:        "Too large",
			limit:       64,
			method:      http.MethodPost,
			contentType: "application/json",
			body:        `{"name": "` + strings.Repeat("a", 128) + `"}`,
			status:      http.StatusRequestEntityTooLarge,
			message:     "exceeds limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit := tt.limit
			if limit == 0 {
				limit = constants.DefaultMaxUploadSizeBytes
			}
			handler := NewHandler(zap.NewNop(), limit, "")
			rr := serve(t, handler, tt.method, "/api/evaluate", tt.contentType, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			resp := decodeMap(t, rr)
			if msg, _ := resp["error"].(string); !strings.Contains(msg, tt.message) {
				t.Fatalf("expected error containing %q, got %q", tt.message, msg)
			}
		})
	}
}

func TestHandleEvaluateMethodNotAllowed(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, "")

	rr := serve(t, handler, http.MethodGet, "/api/evaluate", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleExport(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, "")

	body := "sales_month_1: 30000\nregime: presumido\npayment_profile: \"custom(50,20)\"\n"
	rr := serve(t, handler, http.MethodPost, "/api/export?format=yaml", "", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeMap(t, rr)
	yamlText, _ := resp["configYaml"].(string)
	if !strings.Contains(yamlText, "regime: LucroPresumido") {
		t.Fatalf("expected canonical regime in export, got %q", yamlText)
	}
	if !strings.Contains(yamlText, "payment_profile: cash") {
		t.Fatalf("expected invalid profile replaced by cash, got %q", yamlText)
	}
	found, _ := resp["findings"].([]interface{})
	if len(found) == 0 {
		t.Fatal("expected the invalid payment profile to be reported")
	}
}

func TestHandleTax(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, "")

	rr := serve(t, handler, http.MethodPost, "/api/tax/compare", "application/json", `{"annual_revenue": 600000, "annex": "I"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeMap(t, rr)
	if resp["better"] != "SimplesNacional" {
		t.Fatalf("expected Simples Nacional to be better, got %v", resp["better"])
	}
	if saving, _ := resp["saving"].(float64); math.Abs(saving-648) > 1e-6 {
		t.Fatalf("expected saving 648, got %v", resp["saving"])
	}

	rr = serve(t, handler, http.MethodPost, "/api/tax/calculate", "application/json", `{"regime": "mei", "annual_revenue": 60000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "76.9") {
		t.Fatalf("expected the MEI DAS in response, got %s", rr.Body.String())
	}

	rr = serve(t, handler, http.MethodPost, "/api/tax/calculate", "application/json", `{"regime": "lucro real", "annual_revenue": 60000}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown regime, got %d", rr.Code)
	}

	rr = serve(t, handler, http.MethodPost, "/api/tax/compare", "application/json", `{"annual_revenue": 600000, "annex": "V"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown annex, got %d", rr.Code)
	}
}

func TestHandlePricing(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, "")

	rr := serve(t, handler, http.MethodPost, "/api/pricing/unit-cost", "application/json",
		`{"lens": "multifocal", "frame": "premium", "treatments": ["antirreflexo"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeMap(t, rr)
	if direct, _ := resp["direct"].(float64); math.Abs(direct-493) > 1e-9 {
		t.Fatalf("expected direct cost 493, got %v", resp["direct"])
	}

	rr = serve(t, handler, http.MethodPost, "/api/pricing/unit-cost", "application/json",
		`{"lens": "cristal", "frame": "premium", "catalog": {"lenses": {"cristal": 500}}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected catalog extension to price cristal, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serve(t, handler, http.MethodPost, "/api/pricing/unit-cost", "application/json", `{"lens": "cristal", "frame": "premium"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown lens, got %d", rr.Code)
	}

	rr = serve(t, handler, http.MethodPost, "/api/pricing/allocation", "application/json",
		`{"fixed_costs": {"rent": 3000, "energia": 1000}, "unit_target": 0}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp = decodeMap(t, rr)
	if perUnit, _ := resp["per_unit"].(float64); perUnit != 4000 {
		t.Fatalf("expected fallback allocation of 4000 per unit, got %v", resp["per_unit"])
	}
	if !strings.Contains(rr.Body.String(), "allocation_fallback") {
		t.Fatalf("expected allocation_fallback flag, got %s", rr.Body.String())
	}
}

func TestHandleLaborCost(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, "")

	rr := serve(t, handler, http.MethodPost, "/api/labor/cost", "application/json",
		`{"employees": [{"name": "Ana", "base_salary": 2000, "contract_kind": "clt"}, {"name": "Otto", "base_salary": 3000, "contract_kind": "pj"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeMap(t, rr)
	clt, _ := resp["clt_total"].(float64)
	if clt < 2000*1.55 || clt > 2000*1.75 {
		t.Fatalf("expected CLT cost within the loading band, got %v", clt)
	}
	if provider, _ := resp["provider_total"].(float64); provider != 3000 {
		t.Fatalf("expected provider cost 3000, got %v", resp["provider_total"])
	}

	rr = serve(t, handler, http.MethodPost, "/api/labor/cost", "application/json",
		`{"employees": [{"name": "Caio", "base_salary": 2000, "contract_kind": "temporario"}]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown contract kind, got %d", rr.Code)
	}
}

func TestHandleVersionAndHealth(t *testing.T) {
	handler := NewHandler(zap.NewNop(), constants.DefaultMaxUploadSizeBytes, " v1.2.3 ")

	rr := serve(t, handler, http.MethodGet, "/api/version", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if resp := decodeMap(t, rr); resp["version"] != "v1.2.3" {
		t.Fatalf("expected trimmed version, got %v", resp["version"])
	}

	rr = serve(t, NewHandler(nil, 0, ""), http.MethodGet, "/api/version", "", "")
	if resp := decodeMap(t, rr); resp["version"] != "dev" {
		t.Fatalf("expected dev version, got %v", resp["version"])
	}

	rr = serve(t, handler, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Fatalf("expected healthy response, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRecoverPanics(t *testing.T) {
	h := &handler{logger: zap.NewNop(), maxUploadSize: constants.DefaultMaxUploadSizeBytes}
	wrapped := h.recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := serve(t, wrapped, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
