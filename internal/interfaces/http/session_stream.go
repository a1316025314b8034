package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	sessiondomain "github.com/promptgate/gateway/internal/domain/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// pollInterval is how often the status stream re-checks the session for
// a state change before pushing an update.
const pollInterval = 500 * time.Millisecond

// SessionLookup is the subset of chainsession.Registry the status stream
// depends on.
type SessionLookup interface {
	Get(runID string) (*sessiondomain.Session, bool)
}

// SessionStatusHandler streams a chain session's step/state over
// `/ws/sessions/{chain_id}`, pushing one frame whenever CurrentStep or the
// current step's State changes, and closing once the run completes; a
// failed step is pushed as a frame but does not close the stream (spec §9 Glossary "Pause envelope" reflected continuously rather
// than only on request/response).
type SessionStatusHandler struct {
	sessions SessionLookup
	logger   *zap.Logger
}

// NewSessionStatusHandler creates a SessionStatusHandler.
func NewSessionStatusHandler(sessions SessionLookup, logger *zap.Logger) *SessionStatusHandler {
	return &SessionStatusHandler{sessions: sessions, logger: logger}
}

type statusFrame struct {
	ChainID     string `json:"chain_id"`
	CurrentStep int    `json:"current_step"`
	TotalSteps  int    `json:"total_steps"`
	State       string `json:"state"`
	Completed   bool   `json:"completed"`
}

// Serve upgrades the connection and streams status frames until the
// client disconnects, the run completes, or the chain id is not found.
func (h *SessionStatusHandler) Serve(c *gin.Context) {
	chainID := c.Param("chain_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade session status connection", zap.Error(err))
		return
	}
	defer conn.Close()

	var lastSent statusFrame
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		sess, ok := h.sessions.Get(chainID)
		if !ok {
			conn.WriteJSON(gin.H{"error": "no session found for chain_id", "chain_id": chainID})
			return
		}

		frame := statusFrameFor(sess)
		if frame != lastSent {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
			lastSent = frame
		}
		if frame.Completed {
			return
		}

		select {
		case <-ticker.C:
		case <-c.Request.Context().Done():
			return
		}

		// Drain any client message (e.g. a close frame) without blocking.
		conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return
			}
		}
	}
}

func statusFrameFor(sess *sessiondomain.Session) statusFrame {
	completed := sess.CurrentStep > sess.TotalSteps
	state := "completed"
	if !completed {
		if meta := sess.CurrentStepMeta(); meta != nil {
			state = string(meta.State)
		}
	}
	return statusFrame{
		ChainID:     sess.RunID,
		CurrentStep: sess.CurrentStep,
		TotalSteps:  sess.TotalSteps,
		State:       state,
		Completed:   completed,
	}
}
