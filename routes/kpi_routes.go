package routes

import (
	"net/http"

	"kpitracker/handlers"
	"kpitracker/middlewares"

	"github.com/sirupsen/logrus"
)

func SetupKPIRoutes(kpiHandler *handlers.KPIHandler, healthHandler *handlers.HealthHandler, jwtSecret string, logger *logrus.Logger) http.Handler {
	mux := http.NewServeMux()

	jwtMiddleware := middlewares.JWTMiddleware(jwtSecret)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)

	mux.Handle("POST /api/kpi", jwtMiddleware(http.HandlerFunc(kpiHandler.CreateKPI)))
	mux.Handle("GET /api/kpi/{id}", jwtMiddleware(http.HandlerFunc(kpiHandler.GetKPI)))
	mux.Handle("PUT /api/kpi/{id}", jwtMiddleware(http.HandlerFunc(kpiHandler.UpdateKPI)))
	mux.Handle("DELETE /api/kpi/{id}", jwtMiddleware(http.HandlerFunc(kpiHandler.DeleteKPI)))
	mux.Handle("POST /api/kpi/{id}/punch", jwtMiddleware(http.HandlerFunc(kpiHandler.PunchKPI)))
	mux.Handle("PUT /api/kpi/{id}/quality", jwtMiddleware(http.HandlerFunc(kpiHandler.SetQualityPoint)))

	// Queries take their filters in the body.
	mux.Handle("POST /api/kpi/list", jwtMiddleware(http.HandlerFunc(kpiHandler.ListKPIs)))
	mux.Handle("POST /api/employees/{employeeId}/kpi", jwtMiddleware(http.HandlerFunc(kpiHandler.ListEmployeeKPIs)))
	mux.Handle("POST /api/kpi/summary", jwtMiddleware(http.HandlerFunc(kpiHandler.GetKPISummary)))
	mux.Handle("POST /api/kpi/export/csv", jwtMiddleware(http.HandlerFunc(kpiHandler.ExportKPIsCSV)))
	mux.Handle("POST /api/kpi/export/xlsx", jwtMiddleware(http.HandlerFunc(kpiHandler.ExportKPIsXLSX)))

	return middlewares.RequestLogger(logger)(mux)
}
