package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// actor is a single mailbox-driven unit of execution. The mailbox is
// allocated before the reference is handed out, so a message sent
// immediately after spawn is never lost to initialization.
type actor struct {
	id   ActorID
	name string

	handler Handler

	// Channel for receiving messages
	mailbox chan *Message

	// Parent reference for failure notifications, nil for root actors
	parent *Ref

	// Context controlling the actor lifecycle
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for the message loop
	wg sync.WaitGroup

	// Atomic counters for state and statistics
	state             int32 // ActorState
	messagesProcessed uint64
	createdAt         time.Time
	lastMessageAt     int64 // Unix timestamp

	// Pending asks awaiting a correlated response
	pendingCalls   sync.Map // map[uint32]chan *Message
	sessionCounter uint32

	opts Options
}

// newActor creates an actor instance under the given parent context.
func newActor(parentCtx context.Context, id ActorID, name string, handler Handler, parent *Ref, opts Options) *actor {
	ctx, cancel := context.WithCancel(parentCtx)

	a := &actor{
		id:        id,
		name:      name,
		handler:   handler,
		mailbox:   make(chan *Message, opts.MailboxSize),
		parent:    parent,
		ctx:       ctx,
		cancel:    cancel,
		createdAt: time.Now(),
		opts:      opts,
	}

	atomic.StoreInt32(&a.state, int32(ActorStateIdle))

	return a
}

// start launches the actor's message loop. onExit runs when the loop
// returns, after the optional Stopper hook has completed, and before
// stop observes the exit. That ordering lets a supervisor respawn a
// stopped child's name without racing the bookkeeping.
func (a *actor) start(onExit func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer onExit()
		a.messageLoop()
	}()
}

// stop gracefully shuts the actor down: no further messages are
// accepted, the loop drains, and the Stopper hook (if any) runs.
func (a *actor) stop() error {
	if !atomic.CompareAndSwapInt32(&a.state, int32(ActorStateIdle), int32(ActorStateStopping)) &&
		!atomic.CompareAndSwapInt32(&a.state, int32(ActorStateRunning), int32(ActorStateStopping)) {
		return fmt.Errorf("actor %s cannot be stopped from state %s",
			a.name, ActorState(atomic.LoadInt32(&a.state)))
	}

	a.cancel()
	a.wg.Wait()

	atomic.StoreInt32(&a.state, int32(ActorStateStopped))

	return nil
}

// send delivers a message to the mailbox. Delivery is best effort once
// shutdown has begun; a full mailbox is an error, never a block.
func (a *actor) send(msg *Message) error {
	currentState := ActorState(atomic.LoadInt32(&a.state))
	if currentState == ActorStateStopped || currentState == ActorStateStopping {
		return fmt.Errorf("%w: actor %s (state: %s)", ErrActorStopped, a.name, currentState)
	}

	select {
	case a.mailbox <- msg:
		return nil
	case <-a.ctx.Done():
		return fmt.Errorf("%w: actor %s", ErrActorStopped, a.name)
	default:
		recordMailboxDrop(a.name)
		return fmt.Errorf("%w: actor %s", ErrMailboxFull, a.name)
	}
}

// ask sends a request and blocks until the correlated response arrives,
// the caller's context expires, or the actor shuts down. This is the
// bounded synchronous wait layered over the asynchronous mailbox.
func (a *actor) ask(ctx context.Context, msg *Message) (*Message, error) {
	session := atomic.AddUint32(&a.sessionCounter, 1)
	msg.Session = session
	msg.Type = MessageTypeRequest

	respChan := make(chan *Message, 1)
	a.pendingCalls.Store(session, respChan)
	defer a.pendingCalls.Delete(session)

	if err := a.send(msg); err != nil {
		return nil, err
	}

	select {
	case resp := <-respChan:
		if resp.Type == MessageTypeError {
			err, _ := resp.Payload.(error)
			if err == nil {
				err = fmt.Errorf("actor %s rejected request", a.name)
			}
			return nil, err
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.ctx.Done():
		return nil, fmt.Errorf("%w: actor %s", ErrActorStopped, a.name)
	}
}

// stats returns current runtime statistics for this actor.
func (a *actor) stats() Stats {
	lastMsg := atomic.LoadInt64(&a.lastMessageAt)
	var lastMessageAt time.Time
	if lastMsg > 0 {
		lastMessageAt = time.Unix(lastMsg, 0)
	}

	return Stats{
		ID:                a.id,
		Name:              a.name,
		State:             ActorState(atomic.LoadInt32(&a.state)),
		MessagesProcessed: atomic.LoadUint64(&a.messagesProcessed),
		MailboxDepth:      len(a.mailbox),
		CreatedAt:         a.createdAt,
		LastMessageAt:     lastMessageAt,
	}
}

// messageLoop is the main processing loop for the actor.
func (a *actor) messageLoop() {
	defer a.runStopHook()

	for {
		select {
		case msg := <-a.mailbox:
			if msg == nil {
				continue
			}
			a.processMessage(msg)

		case <-a.ctx.Done():
			a.drainMailbox()
			return
		}
	}
}

// runStopHook gives the handler a bounded opportunity to release
// resources before the actor is destroyed.
func (a *actor) runStopHook() {
	stopper, ok := a.handler.(Stopper)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.opts.StopTimeout)
	defer cancel()

	// Errors here are deliberate no-ops: the actor is going away either way.
	_ = stopper.OnStop(ctx)
}

// processMessage handles a single message, recovering handler panics so
// a failing child never takes its runtime down.
func (a *actor) processMessage(msg *Message) {
	atomic.StoreInt32(&a.state, int32(ActorStateRunning))
	defer func() {
		atomic.CompareAndSwapInt32(&a.state, int32(ActorStateRunning), int32(ActorStateIdle))
	}()

	atomic.AddUint64(&a.messagesProcessed, 1)
	atomic.StoreInt64(&a.lastMessageAt, time.Now().Unix())
	recordMessageProcessed(a.name)

	ctx, cancel := context.WithTimeout(a.ctx, a.opts.ProcessTimeout)
	defer cancel()

	reply, err := a.invokeHandler(ctx, msg)

	if msg.Session != 0 {
		a.sendResponse(msg, reply, err)
	}
}

// invokeHandler calls the handler, converting a panic into an error and
// notifying the parent of the failure.
func (a *actor) invokeHandler(ctx context.Context, msg *Message) (reply interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actor %s panicked: %v", a.name, r)
			a.notifyParentFailure(err)
		}
	}()

	return a.handler.Receive(ctx, msg)
}

// notifyParentFailure sends a fire-and-forget system message to the
// parent. A missing or unreachable parent drops the notification.
func (a *actor) notifyParentFailure(failure error) {
	if a.parent == nil {
		return
	}

	_ = a.parent.deliver(&Message{
		Type:      MessageTypeSystem,
		Source:    a.id,
		Payload:   ChildFailed{ID: a.id, Name: a.name, Err: failure},
		Timestamp: time.Now(),
	})
}

// sendResponse resolves a pending ask with the handler's reply.
func (a *actor) sendResponse(originalMsg *Message, reply interface{}, err error) {
	respChan, ok := a.pendingCalls.Load(originalMsg.Session)
	if !ok {
		return
	}
	ch := respChan.(chan *Message)

	resp := &Message{
		Type:      MessageTypeResponse,
		Source:    a.id,
		Target:    originalMsg.Source,
		Session:   originalMsg.Session,
		Payload:   reply,
		Timestamp: time.Now(),
	}

	if err != nil {
		resp.Type = MessageTypeError
		resp.Payload = err
	}

	select {
	case ch <- resp:
	default:
		// Response channel already satisfied or abandoned.
	}
}

// drainMailbox fails any pending asks left in the mailbox at shutdown.
// Plain sends still queued are dropped, best effort by contract.
func (a *actor) drainMailbox() {
	for {
		select {
		case msg := <-a.mailbox:
			if msg == nil {
				return
			}
			if msg.Session != 0 {
				a.sendResponse(msg, nil, fmt.Errorf("%w: actor %s", ErrActorStopped, a.name))
			}
		default:
			return
		}
	}
}
