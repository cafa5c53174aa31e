package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/consentgate/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Count  *int64 `json:"count,omitempty"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	ConsentMode string                     `json:"consent_mode"`
	Components  map[string]componentStatus `json:"components"`
}

// Infra summarizes the store, the open sessions and the active policy.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		sessions := int64(d.Sessions.Count())
		pol := d.Sessions.Policy()

		components := map[string]componentStatus{
			"store": checkStore(ctx, d),
			"sessions": {
				OK:    true,
				Count: &sessions,
			},
			"policy": {
				OK:     true,
				Mode:   pol.Analytics.PropertyID,
				Detail: "banner_delay=" + pol.Banner.Delay.String(),
			},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			ConsentMode: determineConsentMode(d.StoreBackend, components["store"]),
			Components:  components,
		})
	}
}

// determineConsentMode tells whether decisions outlive the process.
func determineConsentMode(backend string, store componentStatus) string {
	switch {
	case !store.OK:
		return "degraded" // every visitor sees the banner again
	case backend == "memory":
		return "ephemeral"
	default:
		return "persistent"
	}
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	status := componentStatus{OK: true, Mode: d.StoreBackend}

	if d.RedisClient != nil {
		if err := d.RedisClient.Ping(ctx).Err(); err != nil {
			return componentStatus{
				OK:     false,
				Mode:   d.StoreBackend,
				Impact: "decisions-not-remembered",
				Error:  err.Error(),
			}
		}
	}

	if d.Visitors != nil {
		n, err := d.Visitors.CountVisitors(ctx)
		if err != nil {
			status.Error = err.Error()
		} else {
			status.Count = &n
		}
	}
	return status
}
