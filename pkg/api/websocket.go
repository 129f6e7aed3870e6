// pkg/api/websocket.go
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lumix-ai/hopfield/internal/core"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// Frame types streamed by /v1/ws/recall
const (
	FrameSweep = "sweep"
	FrameDone  = "done"
	FrameError = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamFrame - one message of a streamed recall
type StreamFrame struct {
	Type      string       `json:"type"`
	Sweep     int          `json:"sweep"`
	Pattern   core.Pattern `json:"pattern,omitempty"`
	Energy    float64      `json:"energy"`
	Converged bool         `json:"converged,omitempty"`
	Error     string       `json:"error,omitempty"`
	Code      string       `json:"code,omitempty"`
}

// handleRecallStream answers each recall request on the socket with one frame
// per history snapshot followed by a done frame.
func (s *Server) handleRecallStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	for {
		var req recallRequest
		if err := conn.ReadJSON(&req); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Debug().Err(err).Msg("Recall stream closed")
			}
			return
		}
		if err := s.streamRecall(conn, req); err != nil {
			log.Debug().Err(err).Msg("Recall stream write failed")
			return
		}
	}
}

func (s *Server) streamRecall(conn *websocket.Conn, req recallRequest) error {
	res, err := s.deps.Trainer.Recall(req.Pattern, s.iterations(req.MaxIterations))
	if err != nil {
		_, code := classify(err)
		return writeFrame(conn, StreamFrame{Type: FrameError, Error: err.Error(), Code: code})
	}

	for i, snapshot := range res.History {
		energy, err := s.deps.Trainer.Energy(snapshot)
		if err != nil {
			return err
		}
		if err := writeFrame(conn, StreamFrame{Type: FrameSweep, Sweep: i, Pattern: snapshot, Energy: energy}); err != nil {
			return err
		}
	}

	energy, err := s.deps.Trainer.Energy(res.Pattern)
	if err != nil {
		return err
	}
	return writeFrame(conn, StreamFrame{
		Type:      FrameDone,
		Sweep:     res.Sweeps,
		Pattern:   res.Pattern,
		Energy:    energy,
		Converged: res.Converged,
	})
}

func writeFrame(conn *websocket.Conn, f StreamFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(f)
}
