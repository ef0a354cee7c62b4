package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/vitalink/teleconsult/internal/services"
	"github.com/vitalink/teleconsult/internal/utils"
)

// WSHandler is the live consult socket: the doctor's client streams audio
// chunks in; transcript, insight, phase, and worker status events stream
// out. Audio is enqueued on a Redis stream for the worker pool; events come
// back over Redis pub/sub.
type WSHandler struct {
	consults services.ConsultService
	redis    *redis.Client
	upgrader websocket.Upgrader

	AudioStream string
}

func NewWSHandler(consults services.ConsultService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		consults: consults,
		redis:    rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
		AudioStream: "consult:audio",
	}
}

type wsClientMsg struct {
	Type        string `json:"type"` // audio_chunk|pause|resume|stop|note
	Seq         int64  `json:"seq"`
	AudioBase64 string `json:"audio_base64"`
	AudioURL    string `json:"audio_url"`
	Language    string `json:"language"`
	Text        string `json:"text"` // for note
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (h *WSHandler) ConsultWS(c *gin.Context) {
	doctorID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.ConsultWS", "missing session_id", nil))
		return
	}

	// authorize session ownership before upgrading
	if _, err := h.consults.Snapshot(c.Request.Context(), sessionID, doctorID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote a response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	eventsCh := services.EventChannel(sessionID)
	statusCh := "consult:" + sessionID + ":status"

	pubsub := h.redis.Subscribe(ctx, eventsCh, statusCh)
	defer pubsub.Close()

	// reader: WS -> Redis stream / session transitions
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
				continue
			}

			switch msg.Type {
			case "audio_chunk":
				if msg.Seq <= 0 {
					_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"seq must be > 0"}`))
					continue
				}
				if msg.AudioBase64 == "" && msg.AudioURL == "" {
					_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"audio_base64 or audio_url required"}`))
					continue
				}

				fields := map[string]any{
					"session_id": sessionID,
					"seq":        strconv.FormatInt(msg.Seq, 10),
					"language":   msg.Language,
					"ts_unix":    strconv.FormatInt(time.Now().UTC().Unix(), 10),
				}
				if msg.AudioBase64 != "" {
					fields["audio_base64"] = msg.AudioBase64
				}
				if msg.AudioURL != "" {
					fields["audio_url"] = msg.AudioURL
				}

				if err := h.redis.XAdd(ctx, &redis.XAddArgs{
					Stream: h.AudioStream,
					Values: fields,
				}).Err(); err != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"UNAVAILABLE","message":"failed to enqueue audio"}`))
					continue
				}

			case "pause":
				if err := h.consults.Pause(ctx, sessionID, doctorID); err != nil {
					_ = wc.writeText(errJSON(err))
				}

			case "resume":
				if err := h.consults.Resume(ctx, sessionID, doctorID); err != nil {
					_ = wc.writeText(errJSON(err))
				}

			case "stop":
				if err := h.consults.Stop(ctx, sessionID, doctorID); err != nil {
					_ = wc.writeText(errJSON(err))
				}
				return

			case "note":
				if err := h.consults.AddNote(ctx, sessionID, doctorID, msg.Text); err != nil {
					_ = wc.writeText(errJSON(err))
				}

			default:
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
			}
		}
	}()

	// writer: Redis pub/sub -> WS
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			// payloads are already JSON
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}

func errJSON(err error) []byte {
	code := utils.CodeInternal
	msg := "internal error"
	if ae, ok := utils.AsAppError(err); ok {
		code = ae.Code
		msg = ae.Message
	}
	b, _ := json.Marshal(map[string]any{"type": "error", "code": code, "message": msg})
	return b
}
