package call_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorly/core"
	. "github.com/trezcool/tutorly/core/call"
	"github.com/trezcool/tutorly/tests"
)

type fakeConn struct {
	remote   string
	onStream func(Stream)
	answered Stream
	closed   bool
}

func (c *fakeConn) RemoteKey() string         { return c.remote }
func (c *fakeConn) OnStream(fn func(Stream))  { c.onStream = fn }
func (c *fakeConn) Close() error              { c.closed = true; return nil }
func (c *fakeConn) Answer(local Stream) error { c.answered = local; return nil }
func (c *fakeConn) deliver(s Stream)          { c.onStream(s) }

type fakePeer struct {
	id        string
	onCall    func(IncomingCall)
	dialed    []string
	conns     []*fakeConn
	destroyed bool
}

func (p *fakePeer) ID() string                   { return p.id }
func (p *fakePeer) OnCall(fn func(IncomingCall)) { p.onCall = fn }
func (p *fakePeer) Destroy() error               { p.destroyed = true; return nil }

func (p *fakePeer) Call(_ context.Context, remoteKey string, _ Stream) (MediaConnection, error) {
	if remoteKey == "offline" {
		return nil, errors.New("peer unavailable")
	}
	p.dialed = append(p.dialed, remoteKey)
	conn := &fakeConn{remote: remoteKey}
	p.conns = append(p.conns, conn)
	return conn, nil
}

type fakeConnector struct {
	peer *fakePeer
	err  error
}

func (c *fakeConnector) Open(_ context.Context, key string) (Peer, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.peer = &fakePeer{id: key}
	return c.peer, nil
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newCall(t *testing.T, connector Connector, devices MediaDevices, onRemote func(Stream)) (*Call, *stateRecorder) {
	t.Helper()
	conf := testutil.NewConfig()
	rec := new(stateRecorder)
	return New(Options{
		Key:            "student-key",
		Devices:        devices,
		Connector:      connector,
		Logger:         testutil.NewLogger(conf),
		OnRemoteStream: onRemote,
		OnStateChange:  rec.record,
	}), rec
}

func remoteStream() Stream {
	return NewLocalStream(NewLocalTrack(KindAudio), NewLocalTrack(KindVideo))
}

func TestNew(t *testing.T) {
	assert.Panics(t, func() { New(Options{}) })

	logger := testutil.NewLogger(testutil.NewConfig())
	assert.NotPanics(t, func() {
		New(Options{Key: "k", Devices: SyntheticDevices{}, Connector: new(fakeConnector), Logger: logger})
	})
	assert.Panics(t, func() {
		New(Options{Key: "k", Connector: new(fakeConnector), Logger: logger})
	}, "missing devices")
	assert.Panics(t, func() {
		New(Options{Key: "k", Devices: SyntheticDevices{}, Logger: logger})
	}, "missing connector")
}

func TestCall_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("media acquired", func(t *testing.T) {
		connector := new(fakeConnector)
		c, rec := newCall(t, connector, SyntheticDevices{}, nil)

		require.NoError(t, c.Start(ctx))
		assert.Equal(t, StateMediaAcquired, c.State())
		assert.Equal(t, []State{StateMediaAcquired}, rec.all())
		assert.Equal(t, "student-key", connector.peer.ID())
		assert.Len(t, TracksOf(c.LocalStream(), KindAudio), 1)
		assert.Len(t, TracksOf(c.LocalStream(), KindVideo), 1)

		err := c.Start(ctx)
		assert.True(t, errors.Is(err, ErrInvalidState), "Start() error = %v", err)
	})

	t.Run("no media devices", func(t *testing.T) {
		denied := errors.New("permission denied")
		c, _ := newCall(t, new(fakeConnector), SyntheticDevices{Err: denied}, nil)

		err := c.Start(ctx)
		var merr *core.MediaAcquisitionError
		require.True(t, errors.As(err, &merr), "Start() error = %v", err)
		assert.True(t, errors.Is(err, denied))
		assert.Equal(t, StateIdle, c.State())
	})

	t.Run("broker unavailable", func(t *testing.T) {
		c, _ := newCall(t, &fakeConnector{err: errors.New("broker down")}, SyntheticDevices{}, nil)

		err := c.Start(ctx)
		require.Error(t, err)
		assert.Equal(t, "opening peer: broker down", err.Error())
		assert.Equal(t, StateIdle, c.State())
		assert.Nil(t, c.LocalStream())
	})
}

func TestCall_Dial(t *testing.T) {
	ctx := context.Background()

	t.Run("not started", func(t *testing.T) {
		c, _ := newCall(t, new(fakeConnector), SyntheticDevices{}, nil)
		err := c.Dial(ctx, "tutor-key")
		assert.True(t, errors.Is(err, ErrInvalidState), "Dial() error = %v", err)
	})

	t.Run("remote unavailable", func(t *testing.T) {
		c, rec := newCall(t, new(fakeConnector), SyntheticDevices{}, nil)
		require.NoError(t, c.Start(ctx))

		err := c.Dial(ctx, "offline")
		require.Error(t, err)
		assert.Equal(t, "calling offline: peer unavailable", err.Error())
		assert.Equal(t, StateMediaAcquired, c.State())
		assert.Equal(t, []State{StateMediaAcquired, StateCalling, StateMediaAcquired}, rec.all())
	})

	t.Run("connected", func(t *testing.T) {
		connector := new(fakeConnector)
		var got []Stream
		c, rec := newCall(t, connector, SyntheticDevices{}, func(s Stream) { got = append(got, s) })
		require.NoError(t, c.Start(ctx))

		require.NoError(t, c.Dial(ctx, "tutor-key"))
		assert.Equal(t, StateCalling, c.State())
		assert.Equal(t, []string{"tutor-key"}, connector.peer.dialed)

		remote := remoteStream()
		conn := connector.peer.conns[0]
		conn.deliver(remote)
		conn.deliver(remoteStream()) // ignored

		assert.Equal(t, StateConnected, c.State())
		assert.Equal(t, remote, c.RemoteStream())
		assert.Equal(t, []Stream{remote}, got)
		assert.Equal(t, []State{StateMediaAcquired, StateCalling, StateConnected}, rec.all())

		// already in a call
		err := c.Dial(ctx, "other-key")
		assert.True(t, errors.Is(err, ErrInvalidState), "Dial() error = %v", err)
	})
}

func TestCall_incoming(t *testing.T) {
	ctx := context.Background()
	connector := new(fakeConnector)
	c, rec := newCall(t, connector, SyntheticDevices{}, nil)
	require.NoError(t, c.Start(ctx))
	require.NotNil(t, connector.peer.onCall)

	incoming := &fakeConn{remote: "tutor-key"}
	connector.peer.onCall(incoming)
	assert.Equal(t, StateAnswering, c.State())
	assert.Equal(t, c.LocalStream(), incoming.answered)

	// a second caller is turned away
	intruder := &fakeConn{remote: "intruder"}
	connector.peer.onCall(intruder)
	assert.True(t, intruder.closed)
	assert.Nil(t, intruder.answered)

	incoming.deliver(remoteStream())
	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, []State{StateMediaAcquired, StateAnswering, StateConnected}, rec.all())
}

func TestCall_toggle(t *testing.T) {
	c, _ := newCall(t, new(fakeConnector), SyntheticDevices{}, nil)
	assert.False(t, c.ToggleAudio(), "toggling before start")

	require.NoError(t, c.Start(context.Background()))
	audio := TracksOf(c.LocalStream(), KindAudio)[0]
	video := TracksOf(c.LocalStream(), KindVideo)[0]

	assert.False(t, c.ToggleAudio())
	assert.False(t, audio.Enabled())
	assert.True(t, video.Enabled())

	assert.True(t, c.ToggleAudio())
	assert.True(t, audio.Enabled())

	assert.False(t, c.ToggleVideo())
	assert.False(t, video.Enabled())
	assert.True(t, c.ToggleVideo())
	assert.True(t, video.Enabled())
}

func TestCall_End(t *testing.T) {
	ctx := context.Background()
	connector := new(fakeConnector)
	c, rec := newCall(t, connector, SyntheticDevices{}, nil)
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Dial(ctx, "tutor-key"))
	local := c.LocalStream()
	conn := connector.peer.conns[0]

	require.NoError(t, c.End())
	assert.Equal(t, StateEnded, c.State())
	for _, tr := range local.Tracks() {
		assert.True(t, tr.Stopped(), "%s track not stopped", tr.Kind())
	}
	assert.True(t, conn.closed)
	assert.True(t, connector.peer.destroyed)

	// idempotent
	require.NoError(t, c.End())
	assert.Equal(t, []State{StateMediaAcquired, StateCalling, StateEnded}, rec.all())

	// a late remote stream does not revive the call
	conn.deliver(remoteStream())
	assert.Equal(t, StateEnded, c.State())
	assert.Nil(t, c.RemoteStream())

	err := c.Start(ctx)
	assert.True(t, errors.Is(err, ErrInvalidState), "Start() error = %v", err)
}

func TestRendezvousKey(t *testing.T) {
	valid := regexp.MustCompile(`^[a-z2-7]{26}$`)

	key := RendezvousKey("secret", "session-1", "student-1")
	assert.Regexp(t, valid, key)
	assert.Equal(t, key, RendezvousKey("secret", "session-1", "student-1"))

	for _, other := range []string{
		RendezvousKey("secret", "session-2", "student-1"),
		RendezvousKey("secret", "session-1", "tutor-1"),
		RendezvousKey("another-secret", "session-1", "student-1"),
	} {
		assert.Regexp(t, valid, other)
		assert.NotEqual(t, key, other)
	}
}
