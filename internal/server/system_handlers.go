package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/aristath/statements/internal/database"
	"github.com/aristath/statements/internal/modules/analytics"
	"github.com/aristath/statements/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SnapshotInfoProvider describes the served snapshot.
type SnapshotInfoProvider interface {
	Snapshot() (*analytics.SnapshotInfo, error)
}

// JobRunner lists and runs the registered background jobs.
type JobRunner interface {
	Jobs() []scheduler.Status
	Run(name string) error
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	db          *database.DB
	snapshots   SnapshotInfoProvider
	jobs        JobRunner
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger, dataDir string, db *database.DB, snapshots SnapshotInfoProvider) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		db:          db,
		snapshots:   snapshots,
	}
}

// SetJobs attaches the job registry for manual triggering via API
func (h *SystemHandlers) SetJobs(jobs JobRunner) {
	h.jobs = jobs
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string                  `json:"status"`
	StartedAt     time.Time               `json:"started_at"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	GoVersion     string                  `json:"go_version"`
	Goroutines    int                     `json:"goroutines"`
	CPUPercent    float64                 `json:"cpu_percent"`
	MemoryPercent float64                 `json:"memory_percent"`
	Statements    int64                   `json:"statements"`
	Snapshot      *analytics.SnapshotInfo `json:"snapshot,omitempty"`
	SnapshotError string                  `json:"snapshot_error,omitempty"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	SizeMB      float64         `json:"size_mb"`
	WALSizeMB   float64         `json:"wal_size_mb"`
	FreeMB      float64         `json:"free_mb"`
	Stats       *database.Stats `json:"stats"`
	LastChecked string          `json:"last_checked"`
}

// DiskUsageResponse represents disk usage statistics
type DiskUsageResponse struct {
	DataDirMB   float64 `json:"data_dir_mb"`
	BackupsMB   float64 `json:"backups_mb"`
	TotalMB     float64 `json:"total_mb,omitempty"`
	AvailableMB float64 `json:"available_mb,omitempty"`
	UsedPercent float64 `json:"used_percent,omitempty"`
}

// JobResponse is the result of a manual job run
type JobResponse struct {
	Status  string `json:"status"`
	Job     string `json:"job"`
	Message string `json:"message,omitempty"`
}

// HandleSystemStatus returns comprehensive system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()
	response := SystemStatusResponse{
		Status:        "healthy",
		StartedAt:     h.startupTime.UTC(),
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
	}

	if h.db != nil {
		if err := h.db.Conn().QueryRowContext(r.Context(), "SELECT COUNT(*) FROM statements").Scan(&response.Statements); err != nil {
			h.log.Warn().Err(err).Msg("Failed to count statements")
			response.Status = "degraded"
		}
	}

	info, err := h.snapshots.Snapshot()
	if err != nil {
		response.Status = "degraded"
		response.SnapshotError = err.Error()
	} else {
		response.Snapshot = info
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats returns database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "database not initialized"})
		return
	}

	stats, err := h.db.GetStats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Name:        h.db.Name(),
		Path:        h.db.Path(),
		SizeMB:      float64(stats.SizeBytes) / 1024 / 1024,
		WALSizeMB:   float64(stats.WALSizeBytes) / 1024 / 1024,
		FreeMB:      float64(stats.FreeBytes()) / 1024 / 1024,
		Stats:       stats,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// HandleDiskUsage returns disk usage statistics
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	response := DiskUsageResponse{
		DataDirMB: h.getDirSize(h.dataDir),
		BackupsMB: h.getDirSize(filepath.Join(h.dataDir, "backups")),
	}

	if usage, err := disk.Usage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to get filesystem usage")
	} else {
		response.TotalMB = float64(usage.Total) / 1024 / 1024
		response.AvailableMB = float64(usage.Free) / 1024 / 1024
		response.UsedPercent = usage.UsedPercent
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleJobsList lists the registered jobs with their last run
func (h *SystemHandlers) HandleJobsList(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.Status{}
	if h.jobs != nil {
		jobs = h.jobs.Jobs()
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// HandleTriggerJob runs the named job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		h.writeJSON(w, http.StatusNotFound, JobResponse{Status: "error", Job: name, Message: scheduler.ErrUnknownJob.Error()})
		return
	}

	h.log.Info().Str("job", name).Msg("Running job on request")
	err := h.jobs.Run(name)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, JobResponse{Status: "success", Job: name})
	case errors.Is(err, scheduler.ErrUnknownJob):
		h.writeJSON(w, http.StatusNotFound, JobResponse{Status: "error", Job: name, Message: scheduler.ErrUnknownJob.Error()})
	case errors.Is(err, scheduler.ErrJobRunning):
		h.writeJSON(w, http.StatusConflict, JobResponse{Status: "error", Job: name, Message: err.Error()})
	default:
		h.writeJSON(w, http.StatusInternalServerError, JobResponse{Status: "error", Job: name, Message: err.Error()})
	}
}

// checkDatabase pings the database for the health endpoint
func (h *SystemHandlers) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.db.QuickCheck(ctx)
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages
// A short CPU sampling interval keeps the endpoint responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
