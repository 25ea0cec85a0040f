// Package peerjs is a client of PeerJS signaling brokers.
package peerjs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/call"
)

// Message types
const (
	MsgOpen      = "OPEN"
	MsgIDTaken   = "ID-TAKEN"
	MsgError     = "ERROR"
	MsgOffer     = "OFFER"
	MsgAnswer    = "ANSWER"
	MsgCandidate = "CANDIDATE"
	MsgLeave     = "LEAVE"
	MsgExpire    = "EXPIRE"
	MsgHeartbeat = "HEARTBEAT"

	DefaultKey = "peerjs"
)

var (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	heartbeatInterval = 5 * time.Second
	openTimeout       = 10 * time.Second
	maxMessageSize    = int64(64 * 1024)

	ErrIDTaken   = errors.New("peer id is already taken")
	ErrPeerGone  = errors.New("peer is destroyed")
	ErrNotCaller = errors.New("only incoming calls can be answered")
)

type (
	Message struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
		Src     string          `json:"src,omitempty"`
		Dst     string          `json:"dst,omitempty"`
	}

	sessionDescription struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}

	mediaPayload struct {
		SDP          sessionDescription `json:"sdp"`
		Type         string             `json:"type"`
		ConnectionID string             `json:"connectionId"`
	}

	errorPayload struct {
		Msg string `json:"msg"`
	}
)

// Connector opens peers on a PeerJS broker.
type Connector struct {
	brokerURL string
	key       string
	dialer    *websocket.Dialer
	logger    core.Logger
}

var _ call.Connector = (*Connector)(nil)

func NewConnector(conf *core.Config, logger core.Logger) *Connector {
	key := conf.Peer.Key
	if key == "" {
		key = DefaultKey
	}
	return &Connector{
		brokerURL: conf.Peer.BrokerURL,
		key:       key,
		dialer:    websocket.DefaultDialer,
		logger:    logger,
	}
}

func (c *Connector) endpoint(id string) (string, error) {
	u, err := url.Parse(c.brokerURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing broker url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("key", c.key)
	q.Set("id", id)
	q.Set("token", strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open registers id with the broker and waits for it to be accepted.
func (c *Connector) Open(ctx context.Context, id string) (call.Peer, error) {
	endpoint, err := c.endpoint(id)
	if err != nil {
		return nil, err
	}
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to broker")
	}
	conn.SetReadLimit(maxMessageSize)

	deadline := time.Now().Add(openTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var msg Message
	if err = conn.ReadJSON(&msg); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "waiting for broker")
	}
	switch msg.Type {
	case MsgOpen:
	case MsgIDTaken:
		_ = conn.Close()
		return nil, errors.Wrap(ErrIDTaken, id)
	default:
		_ = conn.Close()
		return nil, errors.Errorf("broker refused peer %s: %s %s", id, msg.Type, errorMessage(msg))
	}

	p := &Peer{
		id:     id,
		conn:   conn,
		logger: c.logger,
		send:   make(chan Message, 16),
		done:   make(chan struct{}),
		conns:  make(map[string]*mediaConn),
	}
	go p.writePump()
	go p.readPump()
	return p, nil
}

// Peer is an identity registered with the broker.
type Peer struct {
	id     string
	conn   *websocket.Conn
	logger core.Logger

	send      chan Message
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	onCall  func(call.IncomingCall)
	pending []*mediaConn          // offers received before OnCall
	conns   map[string]*mediaConn // by connection id
}

var _ call.Peer = (*Peer)(nil)

func (p *Peer) ID() string { return p.id }

// OnCall registers fn and hands it the offers that arrived before registration.
func (p *Peer) OnCall(fn func(call.IncomingCall)) {
	p.mu.Lock()
	p.onCall = fn
	var pending []*mediaConn
	if fn != nil {
		pending, p.pending = p.pending, nil
	}
	p.mu.Unlock()

	for _, mc := range pending {
		go fn(mc)
	}
}

// Call sends an offer to remoteKey. The remote stream is delivered once the callee answers.
func (p *Peer) Call(ctx context.Context, remoteKey string, local call.Stream) (call.MediaConnection, error) {
	mc := &mediaConn{
		peer:   p,
		id:     "mc_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
		remote: remoteKey,
	}
	p.mu.Lock()
	p.conns[mc.id] = mc
	p.mu.Unlock()

	err := p.post(ctx, MsgOffer, remoteKey, mediaPayload{
		SDP:          sessionDescription{Type: "offer", SDP: describe(local)},
		Type:         "media",
		ConnectionID: mc.id,
	})
	if err != nil {
		p.forget(mc.id)
		return nil, err
	}
	return mc, nil
}

// Destroy closes the broker connection and every media connection.
func (p *Peer) Destroy() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		err = p.conn.Close()

		p.mu.Lock()
		conns := p.conns
		p.conns = make(map[string]*mediaConn)
		p.pending = nil
		p.mu.Unlock()
		for _, mc := range conns {
			mc.markClosed()
		}
	})
	return err
}

func (p *Peer) post(ctx context.Context, typ, dst string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}
	msg := Message{Type: typ, Dst: dst, Payload: raw}
	select {
	case <-p.done:
		return ErrPeerGone
	default:
	}
	select {
	case p.send <- msg:
		return nil
	case <-p.done:
		return ErrPeerGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Peer) forget(connID string) {
	p.mu.Lock()
	delete(p.conns, connID)
	p.mu.Unlock()
}

func (p *Peer) writePump() {
	pings := time.NewTicker(pingPeriod)
	heartbeats := time.NewTicker(heartbeatInterval)
	defer func() {
		pings.Stop()
		heartbeats.Stop()
	}()

	for {
		select {
		case msg := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(msg); err != nil {
				p.logger.Error(fmt.Sprintf("peer %s: writing %s: %v", p.id, msg.Type, err), err)
				_ = p.Destroy()
				return
			}
		case <-heartbeats.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(Message{Type: MsgHeartbeat}); err != nil {
				_ = p.Destroy()
				return
			}
		case <-pings.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = p.Destroy()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *Peer) readPump() {
	defer func() { _ = p.Destroy() }()

	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			select {
			case <-p.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					p.logger.Error(fmt.Sprintf("peer %s: reading: %v", p.id, err), err)
				}
			}
			return
		}
		_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
		p.dispatch(msg)
	}
}

func (p *Peer) dispatch(msg Message) {
	switch msg.Type {
	case MsgOffer:
		var payload mediaPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Type != "media" {
			p.logger.Debug(fmt.Sprintf("peer %s: ignoring offer from %s", p.id, msg.Src))
			return
		}
		mc := &mediaConn{
			peer:     p,
			id:       payload.ConnectionID,
			remote:   msg.Src,
			incoming: true,
			offer:    payload.SDP.SDP,
		}
		p.mu.Lock()
		p.conns[mc.id] = mc
		fn := p.onCall
		if fn == nil {
			p.pending = append(p.pending, mc)
		}
		p.mu.Unlock()

		if fn != nil {
			go fn(mc)
		}

	case MsgAnswer:
		var payload mediaPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			p.logger.Warn(fmt.Sprintf("peer %s: malformed answer from %s", p.id, msg.Src), err)
			return
		}
		p.mu.Lock()
		mc, ok := p.conns[payload.ConnectionID]
		p.mu.Unlock()
		if ok && !mc.incoming {
			mc.deliver(parseStream(payload.SDP.SDP))
		}

	case MsgLeave, MsgExpire:
		p.mu.Lock()
		var gone []*mediaConn
		for id, mc := range p.conns {
			if mc.remote == msg.Src {
				gone = append(gone, mc)
				delete(p.conns, id)
			}
		}
		kept := p.pending[:0]
		for _, mc := range p.pending {
			if mc.remote != msg.Src {
				kept = append(kept, mc)
			}
		}
		p.pending = kept
		p.mu.Unlock()
		for _, mc := range gone {
			mc.markClosed()
		}

	case MsgError:
		p.logger.Error(fmt.Sprintf("peer %s: broker error: %s", p.id, errorMessage(msg)))

	case MsgCandidate, MsgHeartbeat, MsgOpen:
		// nothing to negotiate: media is described in offers and answers
	}
}

func errorMessage(msg Message) string {
	var payload errorPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return string(msg.Payload)
	}
	return payload.Msg
}

// mediaConn is a call.MediaConnection (and call.IncomingCall when incoming).
type mediaConn struct {
	peer     *Peer
	id       string
	remote   string
	incoming bool
	offer    string // remote description of incoming calls

	mu        sync.Mutex
	onStream  func(call.Stream)
	stream    call.Stream
	delivered bool
	closed    bool
}

var _ call.IncomingCall = (*mediaConn)(nil)

func (mc *mediaConn) RemoteKey() string { return mc.remote }

func (mc *mediaConn) OnStream(fn func(call.Stream)) {
	mc.mu.Lock()
	mc.onStream = fn
	fire := mc.stream != nil && !mc.delivered && fn != nil
	if fire {
		mc.delivered = true
	}
	s := mc.stream
	mc.mu.Unlock()

	if fire {
		fn(s)
	}
}

func (mc *mediaConn) Answer(local call.Stream) error {
	if !mc.incoming {
		return ErrNotCaller
	}
	err := mc.peer.post(context.Background(), MsgAnswer, mc.remote, mediaPayload{
		SDP:          sessionDescription{Type: "answer", SDP: describe(local)},
		Type:         "media",
		ConnectionID: mc.id,
	})
	if err != nil {
		return err
	}
	mc.deliver(parseStream(mc.offer))
	return nil
}

func (mc *mediaConn) deliver(s call.Stream) {
	mc.mu.Lock()
	if mc.closed || mc.stream != nil {
		mc.mu.Unlock()
		return
	}
	mc.stream = s
	fn := mc.onStream
	fire := fn != nil
	if fire {
		mc.delivered = true
	}
	mc.mu.Unlock()

	if fire {
		fn(s)
	}
}

func (mc *mediaConn) markClosed() {
	mc.mu.Lock()
	mc.closed = true
	mc.mu.Unlock()
}

func (mc *mediaConn) Close() error {
	mc.markClosed()
	mc.peer.forget(mc.id)
	return nil
}
