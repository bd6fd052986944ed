package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/plexlist/internal/progress"
)

const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressStream streams job snapshots over a websocket until the job finishes.
//
// Clients connect to /ws?job_id={id}. The current snapshot is sent first; the connection
// closes after the terminal snapshot, or after {"state":"unknown"} for unknown jobs.
type ProgressStream struct {
	tracker *progress.Tracker
	logger  *log.Logger
}

// NewProgressStream creates the websocket handler over tracker.
func NewProgressStream(tracker *progress.Tracker, logger *log.Logger) *ProgressStream {
	return &ProgressStream{tracker: tracker, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *ProgressStream) Routes() []string {
	return []string{"GET /ws"}
}

// ServeHTTP upgrades the connection and relays tracker updates.
func (h *ProgressStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		http.Error(w, "job_id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates := h.tracker.Subscribe(jobID)
	defer h.tracker.Unsubscribe(jobID, updates)

	// Subscribed before the first snapshot, so no transition is lost in between.
	if done := h.sendSnapshot(conn, jobID); done {
		return
	}

	// Drain client frames so pings and close messages are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(JobResponse{SyncJob: job, Percent: job.Percent()}); err != nil {
				h.logger.Debug("websocket write failed", "job", jobID, "error", err)
				return
			}
			if job.State.Terminal() {
				h.close(conn)
				return
			}

		case <-ticker.C:
			// Slow readers miss updates; resync so a missed terminal snapshot still ends the stream.
			if done := h.sendSnapshot(conn, jobID); done {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}

// sendSnapshot writes the current snapshot and reports whether the stream should end.
func (h *ProgressStream) sendSnapshot(conn *websocket.Conn, jobID string) bool {
	job, err := h.tracker.Snapshot(jobID)
	if err != nil {
		conn.WriteJSON(map[string]string{"state": "unknown"})
		h.close(conn)
		return true
	}
	if err := conn.WriteJSON(JobResponse{SyncJob: job, Percent: job.Percent()}); err != nil {
		return true
	}
	if job.State.Terminal() {
		h.close(conn)
		return true
	}
	return false
}

func (h *ProgressStream) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

var _ Handler = (*ProgressStream)(nil)
