package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core/call"
)

var errNoRemoteStream = errors.New("no remote stream received")

// callCheck registers key with the broker, dials remote with synthetic media and waits
// for the remote stream. It returns the last state reached.
func (cli *commandLine) callCheck(key, remote string, timeout time.Duration) (call.State, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	connected := make(chan struct{})
	c := call.New(call.Options{
		Key:       key,
		Devices:   call.SyntheticDevices{},
		Connector: cli.connector,
		Logger:    cli.logger,
		OnRemoteStream: func(s call.Stream) {
			cli.logger.Info(fmt.Sprintf("remote stream %s: %d tracks", s.ID(), len(s.Tracks())))
			close(connected)
		},
		OnStateChange: func(s call.State) {
			cli.logger.Info(fmt.Sprintf("call is %s", s))
		},
	})
	defer func() { _ = c.End() }()

	if err := c.Start(ctx); err != nil {
		return c.State(), err
	}
	if err := c.Dial(ctx, remote); err != nil {
		return c.State(), err
	}

	select {
	case <-connected:
		return c.State(), nil
	case <-ctx.Done():
		return c.State(), errors.Wrapf(errNoRemoteStream, "after %s", timeout)
	}
}
