// Package call drives one side of a two-party video call over a peer-to-peer signaling broker.
package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
)

type State string

// Call states
const (
	StateIdle          State = "idle"
	StateMediaAcquired State = "media-acquired"
	StateCalling       State = "calling"
	StateAnswering     State = "answering"
	StateConnected     State = "connected"
	StateEnded         State = "ended"
)

var ErrInvalidState = errors.New("invalid call state")

type (
	// MediaConnection is an established (or pending) media session with a remote peer.
	MediaConnection interface {
		RemoteKey() string
		// OnStream registers the callback receiving the remote stream.
		OnStream(fn func(Stream))
		Close() error
	}

	// IncomingCall is a MediaConnection offered by a remote peer.
	IncomingCall interface {
		MediaConnection
		Answer(local Stream) error
	}

	// Peer is a local identity registered with the signaling broker.
	Peer interface {
		ID() string
		// OnCall registers the callback receiving incoming calls.
		OnCall(fn func(IncomingCall))
		Call(ctx context.Context, remoteKey string, local Stream) (MediaConnection, error)
		Destroy() error
	}

	// Connector registers local identities with a signaling broker.
	Connector interface {
		Open(ctx context.Context, key string) (Peer, error)
	}

	Options struct {
		Key            string // rendezvous key of the local participant
		Devices        MediaDevices
		Connector      Connector
		Logger         core.Logger
		OnRemoteStream func(Stream)
		OnStateChange  func(State)
	}
)

// Call is the state machine of one participant.
// It is safe for concurrent use; callbacks are never invoked with the lock held.
type Call struct {
	key            string
	devices        MediaDevices
	connector      Connector
	logger         core.Logger
	onRemoteStream func(Stream)
	onStateChange  func(State)

	mu     sync.Mutex
	state  State
	local  Stream
	remote Stream
	peer   Peer
	conns  []MediaConnection
}

func New(opts Options) *Call {
	// devices may be plain structs, which vala.IsNotNil cannot inspect
	vala.BeginValidation().Validate(
		vala.StringNotEmpty(opts.Key, "Key"),
		vala.Not(vala.Equals(opts.Devices, nil, "Devices")),
		vala.Not(vala.Equals(opts.Connector, nil, "Connector")),
		vala.Not(vala.Equals(opts.Logger, nil, "Logger")),
	).CheckAndPanic()

	return &Call{
		key:            opts.Key,
		devices:        opts.Devices,
		connector:      opts.Connector,
		logger:         opts.Logger,
		onRemoteStream: opts.OnRemoteStream,
		onStateChange:  opts.OnStateChange,
		state:          StateIdle,
	}
}

func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Call) LocalStream() Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.local
}

func (c *Call) RemoteStream() Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// setState must be called with c.mu held; it returns the notification to run once unlocked.
func (c *Call) setState(s State) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	if c.onStateChange == nil {
		return func() {}
	}
	fn := c.onStateChange
	return func() { fn(s) }
}

// Start acquires the local audio and video and registers the rendezvous key with the broker.
// Incoming calls are answered automatically from then on.
func (c *Call) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return errors.Wrapf(ErrInvalidState, "cannot start a call in state %s", c.state)
	}
	c.mu.Unlock()

	stream, err := c.devices.UserMedia(ctx, Constraints{Audio: true, Video: true})
	if err != nil {
		c.logger.Error(fmt.Sprintf("failed to get media devices: %v", err), err)
		return &core.MediaAcquisitionError{Err: err}
	}

	peer, err := c.connector.Open(ctx, c.key)
	if err != nil {
		stopTracks(stream)
		return errors.Wrap(err, "opening peer")
	}

	c.mu.Lock()
	if c.state != StateIdle { // ended meanwhile
		c.mu.Unlock()
		stopTracks(stream)
		_ = peer.Destroy()
		return errors.Wrap(ErrInvalidState, "call ended while starting")
	}
	c.local = stream
	c.peer = peer
	notify := c.setState(StateMediaAcquired)
	c.mu.Unlock()
	notify()

	peer.OnCall(c.handleIncoming)
	return nil
}

func (c *Call) handleIncoming(ic IncomingCall) {
	c.mu.Lock()
	if state := c.state; state != StateMediaAcquired {
		c.mu.Unlock()
		c.logger.Info(fmt.Sprintf("rejecting call from %s: call is %s", ic.RemoteKey(), state))
		_ = ic.Close()
		return
	}
	c.conns = append(c.conns, ic)
	local := c.local
	notify := c.setState(StateAnswering)
	c.mu.Unlock()
	notify()

	ic.OnStream(c.handleRemoteStream)
	if err := ic.Answer(local); err != nil {
		c.logger.Error(fmt.Sprintf("answering call from %s: %v", ic.RemoteKey(), err), err)
		c.dropConn(ic)
	}
}

// Dial calls the participant registered under remoteKey.
func (c *Call) Dial(ctx context.Context, remoteKey string) error {
	c.mu.Lock()
	if c.state != StateMediaAcquired {
		c.mu.Unlock()
		return errors.Wrapf(ErrInvalidState, "cannot dial in state %s", c.state)
	}
	peer, local := c.peer, c.local
	notify := c.setState(StateCalling)
	c.mu.Unlock()
	notify()

	conn, err := peer.Call(ctx, remoteKey, local)
	if err != nil {
		c.mu.Lock()
		notify = func() {}
		if c.state == StateCalling {
			notify = c.setState(StateMediaAcquired)
		}
		c.mu.Unlock()
		notify()
		return errors.Wrapf(err, "calling %s", remoteKey)
	}

	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		_ = conn.Close()
		return errors.Wrap(ErrInvalidState, "call ended while dialing")
	}
	c.conns = append(c.conns, conn)
	c.mu.Unlock()

	conn.OnStream(c.handleRemoteStream)
	return nil
}

// handleRemoteStream connects the call on the first remote stream; later ones are ignored.
func (c *Call) handleRemoteStream(s Stream) {
	c.mu.Lock()
	if c.remote != nil || c.state == StateEnded {
		c.mu.Unlock()
		return
	}
	c.remote = s
	notify := c.setState(StateConnected)
	cb := c.onRemoteStream
	c.mu.Unlock()
	notify()

	if cb != nil {
		cb(s)
	}
}

func (c *Call) dropConn(conn MediaConnection) {
	_ = conn.Close()

	c.mu.Lock()
	for i, cn := range c.conns {
		if cn == conn {
			c.conns = append(c.conns[:i], c.conns[i+1:]...)
			break
		}
	}
	notify := func() {}
	if c.state == StateAnswering || c.state == StateCalling {
		notify = c.setState(StateMediaAcquired)
	}
	c.mu.Unlock()
	notify()
}

// ToggleAudio flips every local audio track and reports whether audio is now enabled.
func (c *Call) ToggleAudio() bool {
	return c.toggle(KindAudio)
}

// ToggleVideo flips every local video track and reports whether video is now enabled.
func (c *Call) ToggleVideo() bool {
	return c.toggle(KindVideo)
}

func (c *Call) toggle(kind string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil {
		return false
	}
	var enabled bool
	for _, t := range TracksOf(c.local, kind) {
		t.SetEnabled(!t.Enabled())
		enabled = enabled || t.Enabled()
	}
	return enabled
}

// End stops the local tracks, closes the media connections and releases the peer.
// Calling End more than once is a no-op.
func (c *Call) End() error {
	c.mu.Lock()
	if c.state == StateEnded {
		c.mu.Unlock()
		return nil
	}
	local, peer, conns := c.local, c.peer, c.conns
	c.conns = nil
	c.peer = nil
	notify := c.setState(StateEnded)
	c.mu.Unlock()

	if local != nil {
		stopTracks(local)
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
	var err error
	if peer != nil {
		err = errors.Wrap(peer.Destroy(), "destroying peer")
	}
	notify()
	return err
}

func stopTracks(s Stream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
