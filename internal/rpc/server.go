package rpc

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one connected RPC client: a websocket connection plus its
// topic subscriptions (every client gets every topic by default; the
// field exists so a future client-scoped filter has somewhere to live).
type Client struct {
	ID            string
	Conn          *websocket.Conn
	Subscriptions map[string]bool
	Send          chan []byte

	mu sync.Mutex
}

// Server is the RPC Service: a websocket request/reply endpoint plus a
// fan-out publisher for EventBus-sourced pushes, grounded in the
// existing hub/client split used elsewhere in the tree.
type Server struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	clientsMux sync.RWMutex
	clients    map[string]*Client

	handlers map[string]Handler
}

// Handler resolves one RPC method call into a result (marshaled as
// Response.Result) or an error (wrapped into Response.Error).
type Handler func(client *Client, params []byte) (interface{}, error)

// NewServer constructs a Server with no registered handlers; call
// Register for each method before serving traffic.
func NewServer(logger *zap.Logger) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*Client),
		handlers: make(map[string]Handler),
	}
}

// Register binds a Handler to an RPC method name (send_order_intent,
// cancel_order, sync, harmony, subscribe_bars, unsubscribe_bars,
// broker_list per §6).
func (s *Server) Register(method string, h Handler) {
	s.handlers[method] = h
}

// HandleWebSocket upgrades the connection and starts its read/write pumps.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("rpc: failed to upgrade connection", zap.Error(err))
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = r.RemoteAddr
	}

	client := &Client{
		ID:            clientID,
		Conn:          conn,
		Subscriptions: make(map[string]bool),
		Send:          make(chan []byte, 1024),
	}

	s.clientsMux.Lock()
	s.clients[client.ID] = client
	s.clientsMux.Unlock()

	s.logger.Info("rpc: client connected", zap.String("client_id", client.ID), zap.String("remote_addr", r.RemoteAddr))

	go s.writePump(client)
	go s.readPump(client)
}

func (s *Server) readPump(client *Client) {
	defer func() {
		s.clientsMux.Lock()
		delete(s.clients, client.ID)
		s.clientsMux.Unlock()
		client.Conn.Close()
		close(client.Send)
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("rpc: read error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		s.dispatch(client, message)
	}
}

func (s *Server) writePump(client *Client) {
	defer client.Conn.Close()
	for message := range client.Send {
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			s.logger.Warn("rpc: write error", zap.String("client_id", client.ID), zap.Error(err))
			return
		}
	}
	client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Broadcast pushes an EventMessage to every connected client. A client
// whose send buffer is full is skipped rather than blocking the
// publisher — a slow client must not stall the whole fan-out.
func (s *Server) Broadcast(msg EventMessage) {
	payload, err := marshal(msg)
	if err != nil {
		s.logger.Error("rpc: failed to marshal event", zap.Error(err))
		return
	}

	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	for _, client := range s.clients {
		select {
		case client.Send <- payload:
		default:
			s.logger.Warn("rpc: client send buffer full, dropping event",
				zap.String("client_id", client.ID), zap.String("topic", msg.Topic))
		}
	}
}

// ClientCount reports the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	return len(s.clients)
}
