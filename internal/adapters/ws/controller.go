package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pbazhin/studyhub/internal/app"
	"github.com/pbazhin/studyhub/internal/core"
	"github.com/pbazhin/studyhub/internal/sessions"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handlerFunc handles one inbound client event. Handlers never see the
// socket, only the core.Conn-backed *Conn, so they run fine against fakes.
type handlerFunc func(ctx context.Context, conn *Conn, data json.RawMessage)

// Controller accepts client connections and routes their events.
// Each event handler is registered exactly once per connection, at
// connection-accept time, through a dispatch table built at construction.
type Controller struct {
	Hub      *app.Hub
	Sessions *sessions.Service

	limiter    *MessageRateLimiter
	readLimit  int64
	pingPeriod time.Duration
	handlers   map[string]handlerFunc
}

func NewController(hub *app.Hub, svc *sessions.Service, readLimit int64, pingPeriod time.Duration, limiter *MessageRateLimiter) *Controller {
	ctl := &Controller{
		Hub:        hub,
		Sessions:   svc,
		limiter:    limiter,
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
	ctl.handlers = map[string]handlerFunc{
		core.EvtJoinGroup:     ctl.handleJoinGroup,
		core.EvtLeaveGroup:    ctl.handleLeaveGroup,
		core.EvtMicToggle:     ctl.handleMicToggle,
		core.EvtGroupMessage:  ctl.handleGroupMessage,
		core.EvtUpdateSession: ctl.handleUpdateSession,
		core.EvtPing:          ctl.handlePing,
	}
	return ctl
}

// HandleWS upgrades the request and starts the connection's pumps. The
// identity was already verified by the auth gate on the route.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	connID := uuid.NewString()
	log.Info().Str("module", "ws").Str("conn", connID).Str("user", c.GetString("user_id")).Msg("new WS connection")

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("ws upgrade")
		return
	}

	conn := NewConn(connID, sock)
	if ctl.readLimit > 0 {
		sock.SetReadLimit(ctl.readLimit)
	}

	ctl.Hub.Register(conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}

func (ctl *Controller) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "ws").Str("conn", c.id).Msg("ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn", c.id).Msg("writePump set deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn", c.id).Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, c *Conn) {
	defer func() {
		log.Info().Str("module", "ws").Str("conn", c.id).Msg("readPump closing")
		cancel()
		ctl.Hub.Disconnect(c)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "ws").Str("conn", c.id).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, c, data)
		}
	}
}

// dispatch routes one raw inbound frame. Malformed payloads are dropped
// without affecting the connection or the room's broadcast channel.
func (ctl *Controller) dispatch(ctx context.Context, c *Conn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", c.id).Msg("bad frame")
		return
	}
	h, ok := ctl.handlers[env.Event]
	if !ok {
		log.Warn().Str("module", "ws").Str("event", env.Event).Msg("unknown event")
		return
	}
	h(ctx, c, env.Data)
}

func (ctl *Controller) sendError(c *Conn, message string) {
	ctl.Hub.EmitTo(c, core.EvtError, core.ErrorPayload{Message: message})
}
