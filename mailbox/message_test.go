package mailbox

import (
	"testing"
	"time"

	"github.com/concurrence/concurrence/tasklet"
)

const tagPing Tag = "ping"

func newTestScheduler(t *testing.T) *tasklet.Scheduler {
	t.Helper()
	s, err := tasklet.NewScheduler(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestSendIsAsync(t *testing.T) {
	s := newTestScheduler(t)
	var received Message
	var targetTask *tasklet.Task

	targetTask = tasklet.New(s, func() (any, error) {
		v, err := targetTask.Mailbox().PopLeft(-1)
		if err != nil {
			return nil, err
		}
		received = v.(Envelope).Message
		return nil, nil
	}, tasklet.WithName("target"))

	tasklet.New(s, func() (any, error) {
		Send(targetTask, New(tagPing, 1, 2, 3))
		return nil, nil
	}, tasklet.WithName("sender"))

	s.Run()

	if !received.Match(tagPing) {
		t.Fatalf("received tag = %q, want %q", received.Tag, tagPing)
	}
	if len(received.Args) != 3 {
		t.Fatalf("received args = %v, want 3 elements", received.Args)
	}
}

func TestCallBlocksForReply(t *testing.T) {
	s := newTestScheduler(t)
	var callResult any
	var callErr error
	var server *tasklet.Task

	server = tasklet.New(s, func() (any, error) {
		err := Receive(server, -1, func(env Envelope) bool {
			_ = env.Reply("pong")
			return false
		})
		return nil, err
	}, tasklet.WithName("server"))

	tasklet.New(s, func() (any, error) {
		callResult, callErr = Call(s, server, New(tagPing), -1)
		return nil, nil
	}, tasklet.WithName("caller"))

	s.Run()

	if callErr != nil {
		t.Fatalf("Call error: %v", callErr)
	}
	if callResult != "pong" {
		t.Fatalf("Call result = %v, want pong", callResult)
	}
}
