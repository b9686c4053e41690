// Package mailbox provides the Message envelope and send/call/reply sugar
// layered over a tasklet.Task's mailbox, per spec.md §4.5. It depends only
// on tasklet's exported API, so tasklet itself stays free of any notion of
// "message tags" or reply channels — those are this package's concern.
package mailbox

import (
	"fmt"

	"github.com/concurrence/concurrence/tasklet"
)

// Tag identifies the kind of a Message, analogous to a message's dynamic
// type in the source library — spec.md §4.5's `env.match(X)` tests a
// message's tag against a candidate.
type Tag string

// Message is a request shape: a tag plus positional args and keyword
// (named) args, matching spec.md's `M.send`/`M.call` call convention.
type Message struct {
	Tag  Tag
	Args []any
	Kwargs map[string]any
}

// New constructs a Message with the given tag and arguments.
func New(tag Tag, args ...any) Message {
	return Message{Tag: tag, Args: args}
}

// WithKwargs attaches keyword arguments to m, returning the updated value.
func (m Message) WithKwargs(kwargs map[string]any) Message {
	m.Kwargs = kwargs
	return m
}

// Match reports whether the message's tag equals candidate — spec.md
// §4.5's `env.match(X)`, a subtype test collapsed to tag equality since Go
// has no open class hierarchy to subtype against.
func (m Message) Match(candidate Tag) bool {
	return m.Tag == candidate
}

// Envelope is what actually travels through a mailbox: the message plus an
// optional reply channel, installed only by Call.
type Envelope struct {
	Message
	reply *tasklet.Channel
}

// Reply sends v back to whichever task is blocked in Call waiting for this
// envelope's response. Fails if the envelope was sent asynchronously (no
// reply channel attached). A no-op if the caller already abandoned the call
// (e.g. its own timeout expired) — spec.md §8 scenario 5 requires replying
// to an unattended call to be tolerated, not to hang the handler forever.
func (e Envelope) Reply(v any) error {
	if e.reply == nil {
		return fmt.Errorf("mailbox: reply on an asynchronous envelope (tag %q)", e.Tag)
	}
	if !e.reply.HasReceiver() {
		return nil
	}
	return e.reply.Send(v, -1)
}

// ReplyError is like Reply, but delivers err to the caller's Call in place
// of a value.
func (e Envelope) ReplyError(err error) error {
	if e.reply == nil {
		return fmt.Errorf("mailbox: reply on an asynchronous envelope (tag %q)", e.Tag)
	}
	if !e.reply.HasReceiver() {
		return nil
	}
	return e.reply.SendException(err, -1)
}

// Send appends m to target's mailbox as a fire-and-forget envelope and
// returns immediately — spec.md's `M.send(target)(*args, **kwargs)`.
func Send(target *tasklet.Task, m Message) {
	target.Mailbox().Append(Envelope{Message: m})
}

// Call attaches a fresh reply channel to m and blocks (up to timeoutSeconds,
// negative for unbounded) for the target's Reply — spec.md's
// `M.call(target, timeout)(*args, **kwargs)`. The envelope is appended to
// target's mailbox by a short-lived daemon task that runs only once the
// caller is already waiting on the reply channel, so a target woken by the
// append always finds the caller there when it replies.
func Call(s *tasklet.Scheduler, target *tasklet.Task, m Message, timeoutSeconds float64) (any, error) {
	reply := tasklet.NewChannel(s)
	tasklet.New(s, func() (any, error) {
		target.Mailbox().Append(Envelope{Message: m, reply: reply})
		return nil, nil
	}, tasklet.WithDaemon(true))
	return reply.Receive(timeoutSeconds)
}
