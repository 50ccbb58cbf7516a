package preview

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/colonyops/kiln/internal/core/eventbus"
	"github.com/colonyops/kiln/internal/core/sandbox"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	maxReadSize  = 1 << 20
)

// role says what a socket carries. A surface socket speaks the sandbox
// protocol; an observer socket receives workspace events.
type role string

const (
	roleSurface  role = "surface"
	roleObserver role = "observer"
)

type client struct {
	workspace string
	role      role
	conn      *websocket.Conn
	send      chan []byte
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// hub tracks open sockets per workspace.
type hub struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
	log     zerolog.Logger
}

func newHub(logger zerolog.Logger) *hub {
	return &hub{
		clients: make(map[string]map[*client]struct{}),
		log:     logger,
	}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.workspace]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.workspace] = set
	}
	set[c] = struct{}{}
}

// remove unregisters c and closes its send queue. Safe to call twice.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.workspace]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.workspace)
	}
	close(c.send)
}

// closeAll closes every connection. Read loops then unwind on their own.
func (h *hub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for c := range set {
			_ = c.conn.Close()
		}
	}
}

// count reports the open sockets of one role for a workspace.
func (h *hub) count(workspace string, r role) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients[workspace] {
		if c.role == r {
			n++
		}
	}
	return n
}

// broadcast queues data for every socket of role r in workspace. A client
// whose queue is full misses the message.
func (h *hub) broadcast(workspace string, r role, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[workspace] {
		if c.role != r {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("workspace", workspace).Str("role", string(r)).Msg("socket queue full, message dropped")
		}
	}
}

// event is the envelope written to observer sockets.
type event struct {
	Type        eventbus.Event `json:"type"`
	WorkspaceID string         `json:"workspaceId"`
	Data        any            `json:"data"`
}

func (h *hub) emit(e event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error().Err(err).Str("event", string(e.Type)).Msg("encode event")
		return
	}
	h.broadcast(e.WorkspaceID, roleObserver, data)
}

func (s *Server) subscribe(bus *eventbus.EventBus) {
	bus.SubscribeSandboxCommand(func(p eventbus.SandboxCommandPayload) {
		data, err := sandbox.Encode(p.Message)
		if err != nil {
			s.log.Error().Err(err).Msg("encode sandbox command")
			return
		}
		s.hub.broadcast(p.WorkspaceID, roleSurface, data)
	})
	bus.SubscribeTaskCreated(func(p eventbus.TaskCreatedPayload) {
		s.hub.emit(event{Type: eventbus.EventTaskCreated, WorkspaceID: p.WorkspaceID, Data: p.Task})
	})
	bus.SubscribeTaskUpdated(func(p eventbus.TaskUpdatedPayload) {
		s.hub.emit(event{Type: eventbus.EventTaskUpdated, WorkspaceID: p.WorkspaceID, Data: p.Task})
	})
	bus.SubscribeTreePublished(func(p eventbus.TreePublishedPayload) {
		s.hub.emit(event{Type: eventbus.EventTreePublished, WorkspaceID: p.WorkspaceID, Data: treeView{
			Version:  p.Version,
			Tree:     p.Tree,
			Failures: failureViews(p.Failures),
		}})
	})
	bus.SubscribeConsoleLogged(func(p eventbus.ConsoleLoggedPayload) {
		s.hub.emit(event{Type: eventbus.EventConsoleLogged, WorkspaceID: p.WorkspaceID, Data: map[string]any{
			"entry":  p.Entry,
			"raised": p.Raised,
		}})
	})
	bus.SubscribeElementSelected(func(p eventbus.ElementSelectedPayload) {
		s.hub.emit(event{Type: eventbus.EventElementSelected, WorkspaceID: p.WorkspaceID, Data: p.Selection})
	})
}

// handleSocket upgrades the request. With ?role=observer the socket receives
// workspace events; otherwise it is the preview surface and its messages are
// fed to the workspace's sandbox host.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}

	rl := roleSurface
	if r.URL.Query().Get("role") == string(roleObserver) {
		rl = roleObserver
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade")
		return
	}
	conn.SetReadLimit(maxReadSize)

	c := &client{workspace: ws.ID, role: rl, conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.add(c)
	defer s.hub.remove(c)
	go c.writeLoop()

	ctx := s.ctx
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				s.log.Debug().Err(err).Str("workspace", ws.ID).Msg("socket closed")
			}
			return
		}
		if rl != roleSurface {
			continue
		}

		m, err := sandbox.Decode(data)
		if err != nil {
			s.log.Warn().Err(err).Str("workspace", ws.ID).Msg("bad sandbox message")
			continue
		}
		if err := s.studio.Receive(ctx, ws.ID, m); err != nil {
			s.log.Warn().Err(err).Str("workspace", ws.ID).Msg("sandbox message rejected")
		}
	}
}
