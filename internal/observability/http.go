package observability

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Handler serves the JSON snapshot. A dependency query parameter narrows the
// dependency section to the named peers, comma separated.
func Handler(metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		snap := metrics.Snapshot()
		if raw := strings.TrimSpace(r.URL.Query().Get("dependency")); raw != "" {
			filtered := make(map[string]DependencySnapshot)
			for _, name := range strings.Split(raw, ",") {
				if dep, ok := snap.Dependencies[strings.TrimSpace(name)]; ok {
					filtered[strings.TrimSpace(name)] = dep
				}
			}
			snap.Dependencies = filtered
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
}
