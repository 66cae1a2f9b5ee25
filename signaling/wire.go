package signaling

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sobhagya/callcore/internal/errors"
	"github.com/sobhagya/callcore/internal/log"
)

const (
	ErrClosed  errors.Code = "connection closed"
	ErrNack    errors.Code = "server rejected event"
	ErrMarshal errors.Code = "marshal error"
)

// frame is the wire envelope shared by events and acks. Client events that
// want an acknowledgment carry an id; the matching ack echoes it back with
// ok/error/data filled in.
type frame struct {
	ID    string           `json:"id,omitempty"`
	Event string           `json:"event,omitempty"`
	OK    *bool            `json:"ok,omitempty"`
	Error string           `json:"error,omitempty"`
	Data  *json.RawMessage `json:"data,omitempty"`
}

func (f *frame) isAck() bool {
	return f.Event == "" && f.ID != "" && f.OK != nil
}

// Ack is the server's response to an acknowledged emit.
type Ack struct {
	Data json.RawMessage
}

type eventFunc func(event string, data json.RawMessage)
type closedFunc func(err error)

// stream is the transport beneath a wireConn.
type stream interface {
	Open(ctx context.Context) error
	Read(ctx context.Context, v any) error
	Write(ctx context.Context, obj any) error
	Close() error
}

// wireConn owns one stream: it matches acks to pending emits, fans events
// out to the dispatcher, and closes exactly once. Every pending emit is
// failed on close so callers never block on a dead connection.
type wireConn struct {
	stream   stream
	onEvent  eventFunc
	onClosed closedFunc

	sendLock sync.Mutex
	closed   atomic.Bool
	pendings sync.Map // id -> ackChan
	logger   *log.Logger
}

type ackChan chan *frame

func newWireConn(s stream, onEvent eventFunc, onClosed closedFunc, logger *log.Logger) *wireConn {
	return &wireConn{
		stream:   s,
		onEvent:  onEvent,
		onClosed: onClosed,
		logger:   logger,
	}
}

func (c *wireConn) Open(ctx context.Context) error {
	if err := c.stream.Open(ctx); err != nil {
		return err
	}
	go c.readLoop(ctx)
	return nil
}

// Emit sends event and waits for the server ack, honoring ctx for timeout.
func (c *wireConn) Emit(ctx context.Context, event string, payload any) (*Ack, error) {
	f, err := newEventFrame(event, payload, true)
	if err != nil {
		return nil, err
	}

	done, err := c.send(ctx, f)
	if err != nil {
		return nil, err
	}
	return c.wait(ctx, f.ID, done)
}

// Notify sends event without waiting for an ack.
func (c *wireConn) Notify(ctx context.Context, event string, payload any) error {
	f, err := newEventFrame(event, payload, false)
	if err != nil {
		return err
	}
	_, err = c.send(ctx, f)
	return err
}

func (c *wireConn) Close() error {
	return c.close(nil)
}

func (c *wireConn) close(err error) error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	// collect first, then fail each pending emit
	keys := make([]string, 0)
	c.pendings.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	for _, key := range keys {
		if done := c.popPending(key); done != nil {
			close(done)
		}
	}

	streamErr := c.stream.Close()

	if c.onClosed != nil {
		c.onClosed(err)
	}
	return streamErr
}

func (c *wireConn) readLoop(ctx context.Context) {
	for {
		var f frame
		if err := c.stream.Read(ctx, &f); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				c.logger.Debug("signaling read loop ended", log.Error(err))
			}
			c.close(err)
			return
		}

		switch {
		case f.isAck():
			done := c.popPending(f.ID)
			if done == nil {
				c.logger.Debug("ack with no pending emit", log.String("id", f.ID))
				continue
			}
			done <- &f
			close(done)

		case f.Event != "":
			var data json.RawMessage
			if f.Data != nil {
				data = *f.Data
			}
			c.onEvent(f.Event, data)

		default:
			c.logger.Warn("ignoring frame with neither event nor ack")
		}
	}
}

func (c *wireConn) send(ctx context.Context, f *frame) (ackChan, error) {
	c.sendLock.Lock()
	defer c.sendLock.Unlock()

	if c.closed.Load() {
		return nil, ErrClosed
	}

	var done ackChan
	if f.ID != "" {
		done = make(ackChan, 1)
		c.pendings.Store(f.ID, done)
	}

	if err := c.stream.Write(ctx, f); err != nil {
		if f.ID != "" {
			c.pendings.Delete(f.ID)
		}
		return nil, err
	}
	return done, nil
}

func (c *wireConn) wait(ctx context.Context, id string, done ackChan) (*Ack, error) {
	select {
	case <-ctx.Done():
		c.pendings.Delete(id)
		return nil, ctx.Err()

	case resp, ok := <-done:
		if !ok {
			c.pendings.Delete(id)
			return nil, ErrClosed
		}
		if resp.OK == nil || !*resp.OK {
			return nil, errors.Newf(ErrNack, "event rejected: %s", resp.Error)
		}
		ack := &Ack{}
		if resp.Data != nil {
			ack.Data = *resp.Data
		}
		return ack, nil
	}
}

func (c *wireConn) popPending(id string) ackChan {
	v, ok := c.pendings.LoadAndDelete(id)
	if !ok {
		return nil
	}
	return v.(ackChan)
}

func newEventFrame(event string, payload any, wantAck bool) (*frame, error) {
	var data *json.RawMessage
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(ErrMarshal, err, "marshal event payload")
		}
		raw := json.RawMessage(bs)
		data = &raw
	}

	f := &frame{
		Event: event,
		Data:  data,
	}
	if wantAck {
		f.ID = uuid.New().String()
	}
	return f, nil
}
