package tasklet

import (
	"errors"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := NewScheduler(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestRoundRobinFairness(t *testing.T) {
	s := newTestScheduler(t)
	var order []string

	New(s, func() (any, error) {
		order = append(order, "a1")
		if err := s.Schedule(); err != nil {
			return nil, err
		}
		order = append(order, "a2")
		return nil, nil
	}, WithName("a"))

	New(s, func() (any, error) {
		order = append(order, "b1")
		if err := s.Schedule(); err != nil {
			return nil, err
		}
		order = append(order, "b2")
		return nil, nil
	}, WithName("b"))

	s.Run()

	want := []string{"a1", "b1", "a2", "b2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestJoinReturnsValue(t *testing.T) {
	s := newTestScheduler(t)
	var got any
	var joinErr error

	child := New(s, func() (any, error) {
		return 42, nil
	}, WithName("child"))

	New(s, func() (any, error) {
		got, joinErr = Join(child, -1)
		return nil, nil
	}, WithName("joiner"))

	s.Run()

	if joinErr != nil {
		t.Fatalf("Join error: %v", joinErr)
	}
	if got != 42 {
		t.Fatalf("Join value = %v, want 42", got)
	}
}

func TestJoinPropagatesFailure(t *testing.T) {
	s := newTestScheduler(t)
	wantErr := errors.New("boom")
	var joinErr error

	child := New(s, func() (any, error) {
		return nil, wantErr
	}, WithName("child"))

	New(s, func() (any, error) {
		_, joinErr = Join(child, -1)
		return nil, nil
	}, WithName("joiner"))

	s.Run()

	var je *JoinError
	if !errors.As(joinErr, &je) {
		t.Fatalf("Join error = %v, want *JoinError", joinErr)
	}
	if !errors.Is(je, wantErr) {
		t.Fatalf("Join error does not wrap %v: %v", wantErr, je)
	}
}

func TestChannelSendReceiveHandoff(t *testing.T) {
	s := newTestScheduler(t)
	ch := NewChannel(s)
	var received any
	var recvErr error

	New(s, func() (any, error) {
		received, recvErr = ch.Receive(-1)
		return nil, nil
	}, WithName("receiver"))

	New(s, func() (any, error) {
		if err := ch.Send("hello", -1); err != nil {
			return nil, err
		}
		return nil, nil
	}, WithName("sender"))

	s.Run()

	if recvErr != nil {
		t.Fatalf("Receive error: %v", recvErr)
	}
	if received != "hello" {
		t.Fatalf("received = %v, want hello", received)
	}
}

func TestChannelSendException(t *testing.T) {
	s := newTestScheduler(t)
	ch := NewChannel(s)
	boom := errors.New("boom")
	var recvErr error

	New(s, func() (any, error) {
		_, recvErr = ch.Receive(-1)
		return nil, nil
	}, WithName("receiver"))

	New(s, func() (any, error) {
		return nil, ch.SendException(boom, -1)
	}, WithName("sender"))

	s.Run()

	if !errors.Is(recvErr, boom) {
		t.Fatalf("recvErr = %v, want %v", recvErr, boom)
	}
}

func TestKillBlockedReceiver(t *testing.T) {
	s := newTestScheduler(t)
	ch := NewChannel(s)
	var recvErr error
	var victim *Task

	victim = New(s, func() (any, error) {
		_, recvErr = ch.Receive(-1)
		return nil, recvErr
	}, WithName("victim"))

	New(s, func() (any, error) {
		if err := s.Schedule(); err != nil {
			return nil, err
		}
		Kill(victim)
		return nil, nil
	}, WithName("killer"))

	s.Run()

	if !errors.Is(recvErr, ErrTaskletExit) {
		t.Fatalf("recvErr = %v, want ErrTaskletExit", recvErr)
	}
}

func TestTimeoutStackBoundsChannelWait(t *testing.T) {
	s := newTestScheduler(t)
	ch := NewChannel(s)
	var recvErr error

	New(s, func() (any, error) {
		pop := PushTimeout(s, 0.01)
		defer pop()
		_, recvErr = ch.Receive(-1)
		return nil, nil
	}, WithName("waiter"))

	s.Run()

	var te *TimeoutError
	if !errors.As(recvErr, &te) {
		t.Fatalf("recvErr = %v, want *TimeoutError", recvErr)
	}
}

func TestDeadlockDetected(t *testing.T) {
	s := newTestScheduler(t)
	ch := NewChannel(s)
	var err error

	New(s, func() (any, error) {
		_, err = ch.Receive(-1)
		return nil, err
	}, WithName("stuck"))

	s.Run()

	if !errors.Is(err, ErrDeadlock) {
		t.Fatalf("err = %v, want ErrDeadlock", err)
	}
}

func TestDumpListsTaskTree(t *testing.T) {
	s := newTestScheduler(t)
	var root *Task

	root = New(s, func() (any, error) {
		New(s, func() (any, error) {
			return nil, nil
		}, WithName("child"))
		return nil, s.Schedule()
	}, WithName("root"))

	// Run drives both tasks to completion; the finished child has already
	// been detached from root, so Dump renders root's own line.
	s.Run()

	out := Dump(root)
	if out == "" {
		t.Fatalf("Dump returned empty string")
	}
}
