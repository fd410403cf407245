package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 256
	actionTimeout  = 10 * time.Second
)

// Socket message types.
const (
	MsgAuth        = "auth"
	MsgAuthOK      = "auth:ok"
	MsgAuthError   = "auth:error"
	MsgRoomJoin    = "room:join"
	MsgRoomStart   = "room:start"
	MsgRoomAnswer  = "room:answer"
	MsgRoomRematch = "room:rematch"
	MsgRoomLeave   = "room:leave"
	MsgRoomUpdate  = "room:update"
	MsgRoomError   = "room:error"
	MsgPing        = "ping"
	MsgPong        = "pong"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type authPayload struct {
	Token string `json:"token"`
}

type roomPayload struct {
	Code        string `json:"code"`
	QuestionID  string `json:"questionId"`
	AnswerIndex *int   `json:"answerIndex"`
}

type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Room  string `json:"room,omitempty"`
}

// TokenVerifier binds a bearer credential to an identity.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// Hub is the connection gateway: it binds sockets to identities, keeps one
// broadcast group per room code and relays room actions to the RoomService.
type Hub struct {
	rooms  *RoomService
	tokens TokenVerifier

	clients    map[*Client]bool
	groups     map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex

	messageRate  rate.Limit
	messageBurst int
}

type Client struct {
	hub      *Hub
	id       string
	socket   *websocket.Conn
	send     chan []byte
	identity atomic.Pointer[Identity]
	limiter  *rate.Limiter
	// rooms is guarded by hub.mutex.
	rooms map[string]bool
}

type clientKey struct{}

func withClient(ctx context.Context, c *Client) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

func clientFrom(ctx context.Context) (*Client, bool) {
	c, ok := ctx.Value(clientKey{}).(*Client)
	return c, ok
}

func NewHub(rooms *RoomService, tokens TokenVerifier, messagesPerSecond float64, burst int) *Hub {
	return &Hub{
		rooms:        rooms,
		tokens:       tokens,
		clients:      make(map[*Client]bool),
		groups:       make(map[string]map[*Client]bool),
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		done:         make(chan struct{}),
		messageRate:  rate.Limit(messagesPerSecond),
		messageBurst: burst,
	}
}

// Run owns client registration until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			log.Debug().Str("client", client.id).Int("clients", total).Msg("client registered")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			log.Debug().Str("client", client.id).Int("clients", total).Msg("client unregistered")
		}
	}
}

// dropLocked forgets client and closes its send channel. Room membership is
// untouched: a disconnect is only a transport event.
func (h *Hub) dropLocked(client *Client) {
	for code := range client.rooms {
		h.unsubscribeLocked(client, code)
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) subscribeLocked(client *Client, code string) {
	group, ok := h.groups[code]
	if !ok {
		group = make(map[*Client]bool)
		h.groups[code] = group
	}
	group[client] = true
	client.rooms[code] = true
}

func (h *Hub) unsubscribeLocked(client *Client, code string) {
	if group, ok := h.groups[code]; ok {
		delete(group, client)
		if len(group) == 0 {
			delete(h.groups, code)
		}
	}
	delete(client.rooms, code)
}

// OnRoomUpdate fans the snapshot out to the room's group. A socket join
// subscribes the joining client first so it sees its own join.
func (h *Hub) OnRoomUpdate(ctx context.Context, update RoomUpdate) {
	data, err := json.Marshal(Message{Type: MsgRoomUpdate, Payload: update.State})
	if err != nil {
		log.Error().Err(err).Str("room", update.State.Code).Msg("failed to marshal room update")
		return
	}

	code := update.State.Code
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if update.Action == ActionJoin {
		if client, ok := clientFrom(ctx); ok && h.clients[client] {
			h.subscribeLocked(client, code)
		}
	}

	sent := 0
	for client := range h.groups[code] {
		select {
		case client.send <- data:
			sent++
		default:
			log.Warn().Str("client", client.id).Str("room", code).Msg("send buffer full, dropping client")
			h.dropLocked(client)
		}
	}
	log.Debug().Str("room", code).Str("action", update.Action).Int("recipients", sent).Msg("room update broadcast")
}

// IsSubscribed reports whether userID has a live connection in the room's group.
func (h *Hub) IsSubscribed(code string, userID uint) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.groups[code] {
		if identity := client.identity.Load(); identity != nil && identity.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) isSubscribed(client *Client, code string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return client.rooms[code]
}

func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn) *Client {
	client := &Client{
		hub:     h,
		id:      uuid.NewString(),
		socket:  conn,
		send:    make(chan []byte, sendBufferSize),
		limiter: rate.NewLimiter(h.messageRate, h.messageBurst),
		rooms:   make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return client
	}

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (c *Client) sendMessage(msgType string, payload interface{}) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("failed to marshal message")
		return
	}

	c.hub.mutex.Lock()
	defer c.hub.mutex.Unlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("client", c.id).Msg("send buffer full, dropping client")
		c.hub.dropLocked(c)
	}
}

func (c *Client) sendError(err error, code string) {
	c.sendMessage(MsgRoomError, ErrorPayload{Error: PublicMessage(err), Code: ErrorCode(err), Room: code})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	c.socket.SetReadLimit(maxMessageSize)
	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client", c.id).Msg("websocket read error")
			}
			break
		}

		var msg inboundMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Str("client", c.id).Msg("malformed message")
			continue
		}

		if !c.limiter.Allow() {
			c.sendError(ErrRateLimited, "")
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg inboundMessage) {
	switch msg.Type {
	case MsgPing:
		c.sendMessage(MsgPong, nil)

	case MsgAuth:
		c.authenticate(msg.Payload)

	case MsgRoomJoin, MsgRoomStart, MsgRoomAnswer, MsgRoomRematch, MsgRoomLeave:
		c.handleRoomAction(msg)

	default:
		log.Debug().Str("client", c.id).Str("type", msg.Type).Msg("unknown message type")
	}
}

func (c *Client) authenticate(raw json.RawMessage) {
	var payload authPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			c.sendMessage(MsgAuthError, ErrorPayload{Error: "malformed auth payload", Code: CodeUnauthorized})
			return
		}
	}

	identity, err := c.hub.tokens.Verify(payload.Token)
	if err != nil {
		log.Debug().Err(err).Str("client", c.id).Msg("socket authentication failed")
		c.sendMessage(MsgAuthError, ErrorPayload{Error: ErrUnauthorized.Error(), Code: CodeUnauthorized})
		return
	}

	c.identity.Store(&identity)
	log.Info().Str("client", c.id).Uint("user", identity.UserID).Msg("socket authenticated")
	c.sendMessage(MsgAuthOK, map[string]interface{}{"userId": identity.UserID, "displayName": identity.DisplayName})
}

func (c *Client) handleRoomAction(msg inboundMessage) {
	var payload roomPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError(ErrInvalidAnswer, "")
			return
		}
	}
	code := NormalizeCode(payload.Code)

	identity := c.identity.Load()
	if identity == nil {
		c.sendError(ErrUnauthorized, code)
		return
	}

	if msg.Type == MsgRoomLeave {
		c.hub.mutex.Lock()
		c.hub.unsubscribeLocked(c, code)
		c.hub.mutex.Unlock()
		log.Debug().Str("client", c.id).Str("room", code).Msg("left room group")
		return
	}

	ctx, cancel := context.WithTimeout(withClient(context.Background(), c), actionTimeout)
	defer cancel()

	var (
		state *RoomState
		err   error
	)
	switch msg.Type {
	case MsgRoomJoin:
		state, err = c.hub.rooms.Join(ctx, *identity, code)
	case MsgRoomStart:
		state, err = c.hub.rooms.Start(ctx, *identity, code)
	case MsgRoomRematch:
		state, err = c.hub.rooms.RequestRematch(ctx, *identity, code)
	case MsgRoomAnswer:
		if payload.AnswerIndex == nil || payload.QuestionID == "" {
			err = ErrInvalidAnswer
			break
		}
		state, err = c.hub.rooms.SubmitAnswer(ctx, *identity, code, payload.QuestionID, *payload.AnswerIndex)
	}

	if err != nil {
		if ErrorCode(err) == CodeInternal {
			log.Error().Err(err).Str("client", c.id).Str("room", code).Str("type", msg.Type).Msg("room action failed")
		}
		c.sendError(err, code)
		return
	}

	// Subscribers already got the broadcast.
	if !c.hub.isSubscribed(c, code) {
		c.sendMessage(MsgRoomUpdate, state)
	}
}

func (c *Client) ID() string {
	return c.id
}
