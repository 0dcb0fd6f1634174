// Package rpctest provides a scripted websocket JSON-RPC node for tests.
package rpctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Error is returned by handlers to answer with a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Drop, used as a subscription notification, closes the connection instead.
var Drop = dropConnection{}

type dropConnection struct{}

// Handler answers a plain method call.
type Handler func(params []json.RawMessage) (interface{}, error)

// SubscriptionHandler answers a subscription request with the notifications
// to push after the subscription id.
type SubscriptionHandler func(params []json.RawMessage) ([]interface{}, error)

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// Server is a fake node. Register handlers before the client dials.
type Server struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	methods map[string]Handler
	subs    map[string]SubscriptionHandler
	calls   []string
	params  map[string][][]json.RawMessage
	conns   []*websocket.Conn
	nextSub int
}

// NewServer starts a fake node.
func NewServer() *Server {
	s := &Server{
		methods: make(map[string]Handler),
		subs:    make(map[string]SubscriptionHandler),
		params:  make(map[string][][]json.RawMessage),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// URL returns the ws:// endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Close drops every connection and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	s.srv.Close()
}

// Handle registers a method handler.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = h
}

// HandleResult registers a method that always returns result.
func (s *Server) HandleResult(method string, result interface{}) {
	s.Handle(method, func([]json.RawMessage) (interface{}, error) { return result, nil })
}

// HandleSubscription registers a subscription method.
func (s *Server) HandleSubscription(method string, h SubscriptionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[method] = h
}

// Calls returns the received method names in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns how often method was called.
func (s *Server) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.params[method])
}

// Params returns the parameters of every call to method.
func (s *Server) Params(method string) [][]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]json.RawMessage(nil), s.params[method]...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()
	defer conn.Close()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if !s.answer(conn, req) {
			return
		}
	}
}

// answer replies to one request and reports whether the connection stays open.
func (s *Server) answer(conn *websocket.Conn, req request) bool {
	s.mu.Lock()
	s.calls = append(s.calls, req.Method)
	s.params[req.Method] = append(s.params[req.Method], req.Params)
	h, isMethod := s.methods[req.Method]
	sh, isSub := s.subs[req.Method]
	s.mu.Unlock()

	switch {
	case isMethod:
		result, err := h(req.Params)
		return reply(conn, req.ID, result, err) == nil

	case isSub:
		notifications, err := sh(req.Params)
		if err != nil {
			return reply(conn, req.ID, nil, err) == nil
		}
		s.mu.Lock()
		s.nextSub++
		id := "sub-" + itoa(s.nextSub)
		s.mu.Unlock()
		if reply(conn, req.ID, id, nil) != nil {
			return false
		}
		for _, n := range notifications {
			if _, ok := n.(dropConnection); ok {
				return false
			}
			msg := map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  req.Method,
				"params":  map[string]interface{}{"subscription": id, "result": n},
			}
			if conn.WriteJSON(msg) != nil {
				return false
			}
		}
		return true

	default:
		return reply(conn, req.ID, nil, &Error{Code: -32601, Message: "Method not found"}) == nil
	}
}

func reply(conn *websocket.Conn, id json.RawMessage, result interface{}, err error) error {
	msg := map[string]interface{}{"jsonrpc": "2.0", "id": id}
	if err != nil {
		rpcErr, ok := err.(*Error)
		if !ok {
			rpcErr = &Error{Code: -32000, Message: err.Error()}
		}
		msg["error"] = rpcErr
	} else {
		msg["result"] = result
	}
	return conn.WriteJSON(msg)
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
