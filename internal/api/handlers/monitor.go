package handlers

import (
	"net/http"
	"strconv"

	"github.com/airewrite/antigravity-gateway/internal/monitor"
)

// MonitorLogsHandler handles GET /api/monitor/logs?limit=&since=
func MonitorLogsHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		since, _ := strconv.Atoi(r.URL.Query().Get("since"))
		writeJSON(w, http.StatusOK, map[string]any{
			"logs": mon.Logs(limit, since),
		})
	}
}

// MonitorStatsHandler handles GET /api/monitor/stats
func MonitorStatsHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, mon.Stats())
	}
}

// MonitorClearHandler handles POST /api/monitor/clear
func MonitorClearHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := mon.Clear(); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}
