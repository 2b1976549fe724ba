package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kpitracker/access"
	"kpitracker/config"
	middleware "kpitracker/middlewares"
	"kpitracker/models"
	service "kpitracker/services"
	"kpitracker/utils"

	"github.com/sirupsen/logrus"
)

const (
	csvContentType  = "text/csv; charset=utf-8"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type KPIHandler struct {
	service service.KPIService
	timeout time.Duration
	logger  *logrus.Logger
}

func NewKPIHandler(service service.KPIService, timeout time.Duration, logger *logrus.Logger) *KPIHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &KPIHandler{
		service: service,
		timeout: timeout,
		logger:  logger,
	}
}

// handleError writes the error envelope. Internal errors are logged with
// their cause first since the response only carries a generic message.
func (h *KPIHandler) handleError(w http.ResponseWriter, r *http.Request, funcName string, err error) {
	if utils.KindOf(err) == utils.KindInternal {
		config.LogError(h.logger, "handlers", funcName, r.Method+" "+r.URL.Path, nil, err)
	}
	utils.HandleError(w, err)
}

// scope resolves the caller's authorization context; on failure the response is written.
func (h *KPIHandler) scope(w http.ResponseWriter, r *http.Request) (access.Scope, bool) {
	scope, err := access.ResolveScope(middleware.GetClaimsFromContext(r.Context()))
	if err != nil {
		h.handleError(w, r, "scope", err)
		return access.Scope{}, false
	}
	return scope, true
}

func (h *KPIHandler) CreateKPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req models.CreateKPIRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpiID, err := h.service.CreateKPI(ctx, scope, req)
	if err != nil {
		h.handleError(w, r, "CreateKPI", err)
		return
	}

	utils.HandleDataResponse(w, "KPI created successfully", map[string]string{"kpiId": kpiID}, http.StatusCreated)
}

func (h *KPIHandler) GetKPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpi, err := h.service.GetKPI(ctx, scope, r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, "GetKPI", err)
		return
	}

	utils.HandleDataResponse(w, "KPI retrieved successfully", kpi, http.StatusOK)
}

func (h *KPIHandler) UpdateKPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req models.UpdateKPIRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	kpi, err := h.service.UpdateKPI(ctx, scope, r.PathValue("id"), req)
	if err != nil {
		h.handleError(w, r, "UpdateKPI", err)
		return
	}

	utils.HandleDataResponse(w, "KPI updated successfully", kpi, http.StatusOK)
}

func (h *KPIHandler) PunchKPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req models.PunchRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.service.Punch(ctx, scope, r.PathValue("id"), req.Remark)
	if err != nil {
		h.handleError(w, r, "PunchKPI", err)
		return
	}

	utils.HandleDataResponse(w, "Punch recorded successfully", result, http.StatusOK)
}

func (h *KPIHandler) SetQualityPoint(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req models.QualityPointRequest
	if err := utils.DecodeAndValidate(w, r, &req); err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	value, err := h.service.SetQualityPoint(ctx, scope, r.PathValue("id"), req.Value())
	if err != nil {
		h.handleError(w, r, "SetQualityPoint", err)
		return
	}

	utils.HandleDataResponse(w, "Quality point updated successfully", map[string]int{"qualityPoints": value}, http.StatusOK)
}

func (h *KPIHandler) DeleteKPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.service.DeleteKPI(ctx, scope, r.PathValue("id")); err != nil {
		h.handleError(w, r, "DeleteKPI", err)
		return
	}

	utils.HandleMessageResponse(w, "KPI deleted successfully", http.StatusOK)
}

func (h *KPIHandler) ListKPIs(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req models.KPIListRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.service.ListKPIs(ctx, scope, req)
	if err != nil {
		h.handleError(w, r, "ListKPIs", err)
		return
	}

	utils.HandleDataResponse(w, "KPIs retrieved successfully", page, http.StatusOK)
}

func (h *KPIHandler) ListEmployeeKPIs(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req models.KPIListRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.service.ListKPIsForEmployee(ctx, scope, r.PathValue("employeeId"), req)
	if err != nil {
		h.handleError(w, r, "ListEmployeeKPIs", err)
		return
	}

	utils.HandleDataResponse(w, "KPIs retrieved successfully", page, http.StatusOK)
}

func (h *KPIHandler) GetKPISummary(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req models.KPIListRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.service.SummarizeKPIs(ctx, scope, req)
	if err != nil {
		h.handleError(w, r, "GetKPISummary", err)
		return
	}

	utils.HandleDataResponse(w, "KPI summary retrieved successfully", summary, http.StatusOK)
}

func (h *KPIHandler) ExportKPIsCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", csvContentType, h.service.ExportKPIsCSV)
}

func (h *KPIHandler) ExportKPIsXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", xlsxContentType, h.service.ExportKPIsXLSX)
}

type exportFunc func(ctx context.Context, scope access.Scope, req models.KPIListRequest, w io.Writer) error

// export renders the whole file before writing headers so that failures
// still produce a JSON error envelope.
func (h *KPIHandler) export(w http.ResponseWriter, r *http.Request, ext, contentType string, run exportFunc) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req models.KPIListRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var buf bytes.Buffer
	if err := run(ctx, scope, req, &buf); err != nil {
		h.handleError(w, r, "export", err)
		return
	}

	filename := fmt.Sprintf("kpis-%s.%s", time.Now().UTC().Format("20060102-150405"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// decodeOptional accepts an empty body as the zero request.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		utils.HandleMessageResponse(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		utils.HandleError(w, err)
		return false
	}
	return true
}

// HealthHandler reports whether the document store answers.
type HealthHandler struct {
	ping func(ctx context.Context) error
}

func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		utils.HandleMessageResponse(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	utils.HandleMessageResponse(w, "ok", http.StatusOK)
}
