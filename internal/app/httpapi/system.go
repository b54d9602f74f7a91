package httpapi

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	apperrors "github.com/walla-walla-travel/tourops/internal/errors"
)

// systemStatus reports process and host statistics plus component
// readiness. Admin only; stat collection is best-effort so a probe
// failure never fails the endpoint.
func (h *handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"service":        "tourops",
		"version":        h.version,
		"started_at":     h.started,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"workers":        h.app.Workers(),
		"subscribers":    h.app.Hub.Subscribers(),
	}

	database := "not configured"
	if h.db != nil {
		database = "ok"
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.db.PingContext(ctx); err != nil {
			database = "unreachable"
		}
		cancel()
	}
	status["database"] = database

	hostStats := map[string]interface{}{}
	if info, err := host.Info(); err == nil {
		hostStats["hostname"] = info.Hostname
		hostStats["os"] = info.OS
		hostStats["platform"] = info.Platform
		hostStats["uptime_seconds"] = info.Uptime
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		hostStats["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		hostStats["memory_total_bytes"] = vm.Total
		hostStats["memory_used_bytes"] = vm.Used
		hostStats["memory_used_percent"] = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		hostStats["load_1"] = avg.Load1
		hostStats["load_5"] = avg.Load5
		hostStats["load_15"] = avg.Load15
	}
	status["host"] = hostStats

	procStats := map[string]interface{}{"pid": os.Getpid()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil {
			procStats["rss_bytes"] = mi.RSS
		}
		if pct, err := proc.CPUPercent(); err == nil {
			procStats["cpu_percent"] = pct
		}
		if threads, err := proc.NumThreads(); err == nil {
			procStats["threads"] = threads
		}
	}
	status["process"] = procStats

	writeJSON(w, http.StatusOK, status)
}

// systemAudit returns the most recent audit entries, newest last.
func (h *handler) systemAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, apperrors.Validationf("limit must be a non-negative integer, got %q", raw))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}
