package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dicebet-backend/internal/feed"
)

const (
	MessagePing   = "PING"
	MessagePong   = "PONG"
	MessagePause  = "PAUSE"
	MessageResume = "RESUME"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Control frames from feed clients are tiny.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is a control frame sent by a feed client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type WebSocketHandler struct {
	distributor *feed.Distributor
	logger      zerolog.Logger
}

func NewWebSocketHandler(distributor *feed.Distributor, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		distributor: distributor,
		logger:      logger,
	}
}

// Client serializes writes from the event pump and the control loop onto a
// single connection.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *Client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *Client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// HandleWatchBets streams the public bet feed. The first frame is always a
// snapshot; a client may PAUSE and RESUME, and gets a fresh snapshot on
// resume.
func (h *WebSocketHandler) HandleWatchBets(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade to websocket")
		return
	}

	client := &Client{conn: conn}
	sub := h.distributor.Subscribe()
	h.logger.Debug().Int("subscribers", h.distributor.Subscribers()).Msg("feed client connected")

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		// closing the connection unblocks the read loop below
		defer conn.Close()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		events := sub.Events()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := client.write(ev); err != nil {
					return
				}
			case <-ticker.C:
				if err := client.ping(); err != nil {
					return
				}
			}
		}
	}()

	defer func() {
		sub.Close()
		<-done
		h.logger.Debug().Msg("feed client disconnected")
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("websocket error")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := h.handleMessage(client, sub, &msg); err != nil {
			h.logger.Debug().Err(err).Msg("feed client write failed")
			return
		}
	}
}

func (h *WebSocketHandler) handleMessage(client *Client, sub *feed.Subscription, msg *Message) error {
	switch msg.Type {
	case MessagePing:
		return client.write(Message{
			Type: MessagePong,
			Data: gin.H{"timestamp": time.Now().Unix()},
		})
	case MessagePause:
		sub.Pause()
	case MessageResume:
		sub.Resume()
	default:
		h.logger.Debug().Str("type", msg.Type).Msg("ignoring unknown feed message")
	}
	return nil
}
