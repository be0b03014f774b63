package controllers

import (
	"fmt"
	"freedomwall/internal/docstore"
	"freedomwall/internal/structures"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

type HealthController struct {
	store      docstore.Backend
	collection string
	startTime  time.Time
}

type healthResponse struct {
	Status        string  `json:"status"`
	Uptime        string  `json:"uptime"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Backend       string  `json:"backend"`
	Subscriptions int     `json:"subscriptions"`
	Revision      uint64  `json:"revision"`
}

func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
		Backend:       hc.store.Name(),
		Subscriptions: hc.store.Subscriptions(),
		Revision:      hc.store.Revision(hc.collection),
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(store docstore.Backend, conf *structures.Config) *HealthController {
	return &HealthController{
		store:      store,
		collection: conf.Store.Collection,
		startTime:  time.Now(),
	}
}
