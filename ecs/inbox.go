package ecs

import "context"

// Inbox is a bounded hand-off from other goroutines to the goroutine that owns a
// Storage. Commands are applied by the Scheduler at the start of a tick; senders
// never touch components directly.
type Inbox struct {
	ch chan func(*UpdateFrame)
}

// NewInbox creates an inbox holding at most size pending commands.
func NewInbox(size int) *Inbox {
	if size < 1 {
		size = 1
	}
	return &Inbox{ch: make(chan func(*UpdateFrame), size)}
}

// TryPost queues cmd without blocking. It returns ErrInboxFull if the buffer is full.
func (in *Inbox) TryPost(cmd func(*UpdateFrame)) error {
	select {
	case in.ch <- cmd:
		return nil
	default:
		return ErrInboxFull
	}
}

// Post queues cmd, waiting for room until ctx is done.
func (in *Inbox) Post(ctx context.Context, cmd func(*UpdateFrame)) error {
	select {
	case in.ch <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of pending commands.
func (in *Inbox) Len() int {
	return len(in.ch)
}

// drain applies every command pending at call time.
func (in *Inbox) drain(frame *UpdateFrame) int {
	n := len(in.ch)
	for i := 0; i < n; i++ {
		cmd := <-in.ch
		cmd(frame)
	}
	return n
}
