// Package rpc is a JSON-RPC 2.0 client over a single websocket connection
// with support for Substrate-style subscriptions.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	readLimit          = 64 << 20
	unsubscribeTimeout = 5 * time.Second
	maxOrphans         = 32
)

var (
	// ErrClosed is returned for calls on a closed client.
	ErrClosed = errors.New("rpc client closed")

	// ErrUnsubscribed is returned by Next after Unsubscribe.
	ErrUnsubscribed = errors.New("subscription closed")
)

// Error is an error object returned by the node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, strings.Trim(string(e.Data), `"`))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type notification struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params *notification   `json:"params,omitempty"`
}

type pendingCall struct {
	resp chan *message
	sub  *Subscription
}

// Client multiplexes requests and subscriptions over one websocket.
type Client struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*pendingCall
	subs    map[string]*Subscription
	orphans map[string][]json.RawMessage
	err     error

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to a websocket endpoint and starts the read loop.
func Dial(ctx context.Context, endpoint string, logger zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", endpoint)
	}
	conn.SetReadLimit(readLimit)

	c := &Client{
		conn:    conn,
		logger:  logger.With().Str("component", "rpc").Logger(),
		pending: make(map[uint64]*pendingCall),
		subs:    make(map[string]*Subscription),
		orphans: make(map[string][]json.RawMessage),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Call sends a request and decodes its result into result (if non-nil).
func (c *Client) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	msg, err := c.roundTrip(ctx, method, params, nil)
	if err != nil {
		return err
	}
	if result == nil || len(msg.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Result, result); err != nil {
		return errors.Wrapf(err, "decode %s result", method)
	}
	return nil
}

// Subscribe opens a subscription. Notifications are read with Next; the
// subscription must be released with Unsubscribe.
func (c *Client) Subscribe(ctx context.Context, method, unsubscribeMethod string, params ...interface{}) (*Subscription, error) {
	sub := &Subscription{
		client:            c,
		unsubscribeMethod: unsubscribeMethod,
		signal:            make(chan struct{}, 1),
	}
	if _, err := c.roundTrip(ctx, method, params, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, params []interface{}, sub *Subscription) (*message, error) {
	if params == nil {
		params = []interface{}{}
	}
	id := c.nextID.Add(1)
	p := &pendingCall{resp: make(chan *message, 1), sub: sub}

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = p
	c.mu.Unlock()

	c.logger.Debug().Uint64("id", id).Str("method", method).Msg("rpc request")
	if err := c.write(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		c.dropPending(id)
		return nil, errors.Wrapf(err, "send %s", method)
	}

	select {
	case msg := <-p.resp:
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg, nil
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.terminalErr()
	}
}

func (c *Client) write(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Client) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) terminalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(errors.Wrap(err, "connection lost"))
			return
		}
		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("dropping malformed message")
			continue
		}
		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *message) {
	if msg.ID != nil {
		c.mu.Lock()
		p, ok := c.pending[*msg.ID]
		delete(c.pending, *msg.ID)
		if ok && p.sub != nil && msg.Error == nil {
			id := subscriptionID(msg.Result)
			p.sub.id = id
			c.subs[id] = p.sub
			for _, early := range c.orphans[id] {
				p.sub.push(early)
			}
			delete(c.orphans, id)
		}
		c.mu.Unlock()
		if ok {
			p.resp <- msg
		}
		return
	}

	if msg.Params == nil {
		return
	}
	id := subscriptionID(msg.Params.Subscription)
	c.mu.Lock()
	sub, ok := c.subs[id]
	if !ok && len(c.orphans[id]) < maxOrphans {
		c.orphans[id] = append(c.orphans[id], msg.Params.Result)
	}
	c.mu.Unlock()
	if ok {
		sub.push(msg.Params.Result)
	}
}

// subscriptionID normalises string and numeric subscription ids.
func subscriptionID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	subs := c.subs
	c.subs = make(map[string]*Subscription)
	c.mu.Unlock()

	for _, s := range subs {
		s.fail(err)
	}
	c.closeOnce.Do(func() { close(c.closed) })
}

// Close closes the connection. Pending calls and open subscriptions fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.shutdown(ErrClosed)
	return err
}

// Subscription receives notifications for one subscription id.
type Subscription struct {
	client            *Client
	id                string
	unsubscribeMethod string

	mu     sync.Mutex
	queue  []json.RawMessage
	err    error
	signal chan struct{}
	once   sync.Once
}

// ID returns the node-assigned subscription id.
func (s *Subscription) ID() string { return s.id }

// Next blocks until a notification arrives, the subscription ends or ctx is done.
func (s *Subscription) Next(ctx context.Context) (json.RawMessage, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return msg, nil
		}
		err := s.err
		s.mu.Unlock()
		if err != nil {
			return nil, err
		}

		select {
		case <-s.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Subscription) push(msg json.RawMessage) {
	s.mu.Lock()
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Unsubscribe stops delivery and tells the node to drop the subscription.
// It is safe to call more than once.
func (s *Subscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		c := s.client
		c.mu.Lock()
		delete(c.subs, s.id)
		alive := c.err == nil
		c.mu.Unlock()
		s.fail(ErrUnsubscribed)

		if !alive || s.unsubscribeMethod == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), unsubscribeTimeout)
		defer cancel()
		err = c.Call(ctx, nil, s.unsubscribeMethod, s.id)
	})
	return err
}
