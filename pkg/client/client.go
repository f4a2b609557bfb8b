// Package client implements the master-side mirror of the request
// dispatcher (spec.md §4.G): a typed request method per operation, a
// monotonically increasing per-connection message_id, and a future-style
// pending-request table resolved by the connection's read loop.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/fmitcpd/fmitcpd/internal/logger"
	"github.com/fmitcpd/fmitcpd/internal/protocol/fmitcp"
)

// Client is one connection to a remote protocol server. message_id space is
// per-connection (spec.md §4.G). Call writes each request frame without
// holding a lock, so concurrent Calls on one Client can interleave their
// frames on the wire; distinct Clients (distinct FMUs) are fully
// independent.
type Client struct {
	conn   net.Conn
	logger logger.Logger

	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]chan callResult
	closed  bool
	closeCh chan struct{}
}

type callResult struct {
	resp *fmitcp.Response
	err  error
}

// Dial connects to addr and starts the client's read loop.
func Dial(addr string, log logger.Logger) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	c := &Client{
		conn:    conn,
		logger:  log,
		pending: make(map[uint32]chan callResult),
		closeCh: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close closes the underlying connection. Any calls still awaiting a
// response receive an error.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		payload, err := fmitcp.ReadFrame(c.conn)
		if err != nil {
			c.failAllPending(err)
			return
		}
		if fmitcp.IsKeepalive(payload) {
			continue
		}
		resp, err := fmitcp.DecodeResponse(payload)
		if err != nil {
			c.logger.Error("client: decode response failed", "error", err)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.MessageID]
		if ok {
			delete(c.pending, resp.MessageID)
		}
		c.mu.Unlock()

		if !ok {
			// Response for an unknown id: logged and dropped, never
			// crashes (spec.md §4.G).
			c.logger.Error("client: response for unknown message_id", "message_id", resp.MessageID)
			continue
		}
		ch <- callResult{resp: resp}
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- callResult{err: err}
		delete(c.pending, id)
	}
}

// Call sends req (with a freshly assigned MessageID) and blocks until its
// response arrives, ctx is cancelled, or the connection fails.
func (c *Client) Call(ctx context.Context, req *fmitcp.Request) (*fmitcp.Response, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("client: connection closed")
	}
	c.nextID++
	req.MessageID = c.nextID
	ch := make(chan callResult, 1)
	c.pending[req.MessageID] = ch
	c.mu.Unlock()

	payload, err := fmitcp.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("client: encode: %w", err)
	}
	if err := fmitcp.WriteFrame(c.conn, payload); err != nil {
		return nil, fmt.Errorf("client: write: %w", err)
	}

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeCh:
		return nil, fmt.Errorf("client: connection closed")
	}
}

func (c *Client) Instantiate(ctx context.Context, name string, visible bool) (*fmitcp.Response, error) {
	return c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpInstantiate, Name: name, Visible: visible})
}

func (c *Client) InitializeSlave(ctx context.Context, toleranceDefined bool, tolerance, startTime float64, stopTimeDefined bool, stopTime float64) (*fmitcp.Response, error) {
	return c.Call(ctx, &fmitcp.Request{
		Op: fmitcp.OpInitializeSlave,
		ToleranceDefined: toleranceDefined, Tolerance: tolerance, StartTime: startTime,
		StopTimeDefined: stopTimeDefined, StopTime: stopTime,
	})
}

func (c *Client) DoStep(ctx context.Context, currentCommPoint, stepSize float64, newStep bool) (*fmitcp.Response, error) {
	return c.Call(ctx, &fmitcp.Request{
		Op: fmitcp.OpDoStep, CurrentCommPoint: currentCommPoint, StepSize: stepSize, NewStep: newStep,
	})
}

func (c *Client) CancelStep(ctx context.Context) (*fmitcp.Response, error) {
	return c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpCancelStep})
}

func (c *Client) TerminateSlave(ctx context.Context) (*fmitcp.Response, error) {
	return c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpTerminateSlave})
}

func (c *Client) ResetSlave(ctx context.Context) (*fmitcp.Response, error) {
	return c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpResetSlave})
}

func (c *Client) FreeSlaveInstance(ctx context.Context) (*fmitcp.Response, error) {
	return c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpFreeSlaveInstance})
}

func (c *Client) GetReal(ctx context.Context, refs []uint32) ([]float64, error) {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpGetReal, ValueRefs: refs})
	if err != nil {
		return nil, err
	}
	return resp.RealValues, statusErr(resp)
}

func (c *Client) SetReal(ctx context.Context, refs []uint32, values []float64) error {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpSetReal, ValueRefs: refs, RealValues: values})
	if err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *Client) GetInteger(ctx context.Context, refs []uint32) ([]int32, error) {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpGetInteger, ValueRefs: refs})
	if err != nil {
		return nil, err
	}
	return resp.IntValues, statusErr(resp)
}

func (c *Client) SetInteger(ctx context.Context, refs []uint32, values []int32) error {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpSetInteger, ValueRefs: refs, IntValues: values})
	if err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *Client) GetBoolean(ctx context.Context, refs []uint32) ([]bool, error) {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpGetBoolean, ValueRefs: refs})
	if err != nil {
		return nil, err
	}
	return resp.BoolValues, statusErr(resp)
}

func (c *Client) SetBoolean(ctx context.Context, refs []uint32, values []bool) error {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpSetBoolean, ValueRefs: refs, BoolValues: values})
	if err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *Client) GetString(ctx context.Context, refs []uint32) ([]string, error) {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpGetString, ValueRefs: refs})
	if err != nil {
		return nil, err
	}
	return resp.StrValues, statusErr(resp)
}

func (c *Client) SetString(ctx context.Context, refs []uint32, values []string) error {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpSetString, ValueRefs: refs, StrValues: values})
	if err != nil {
		return err
	}
	return statusErr(resp)
}

func (c *Client) GetVersion(ctx context.Context) (string, error) {
	resp, err := c.Call(ctx, &fmitcp.Request{Op: fmitcp.OpGetVersion})
	if err != nil {
		return "", err
	}
	return resp.Version, statusErr(resp)
}

// StatusError wraps a non-ok response status returned by the remote
// component, so callers can distinguish a transport failure from an
// in-band simulation error (spec.md §7 RuntimeError/IllegalState/ArgumentError).
type StatusError struct {
	Op     fmitcp.Op
	Status fmitcp.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: %s returned status %s", e.Op, e.Status)
}

func statusErr(resp *fmitcp.Response) error {
	if resp.Status == fmitcp.StatusOK || resp.Status == fmitcp.StatusWarning {
		return nil
	}
	return &StatusError{Op: resp.Op, Status: resp.Status}
}
