package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LiveCounter reports in-progress work, typically the coordinator's live
// task count.
type LiveCounter interface {
	LiveCount() int
}

type Status struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
	Database  bool   `json:"database,omitempty"`
	LiveTasks int    `json:"live_tasks"`
}

// HTTPHandler reports process health: database reachability and the size of
// the live delivery set. Pass nil for collaborators a process does not have.
func HTTPHandler(pool *pgxpool.Pool, live LiveCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := Status{OK: true, Message: "ok", Database: true}

		if live != nil {
			st.LiveTasks = live.LiveCount()
		}
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				st.OK = false
				st.Message = "db ping failed"
				st.Database = false
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	}
}
