package cancomm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultClientPollInterval is the wait between transport polls of a Client.
const DefaultClientPollInterval = time.Millisecond

// ErrUnexpectedReply indicates the reply doesn't match the request.
var ErrUnexpectedReply = errors.New("unexpected reply")

// Client is the host side of the protocol. It issues one request at a
// time to a board and waits for the reply.
type Client struct {
	Board        uint8
	Transport    Transport
	PollInterval time.Duration

	lock  sync.Mutex
	reqID uint8
	reasm Reassembler
}

// NewClient creates a Client talking to board over t.
func NewClient(board uint8, t Transport) *Client {
	return &Client{Board: board, Transport: t, PollInterval: DefaultClientPollInterval}
}

func (c *Client) wait(ctx context.Context) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultClientPollInterval
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(interval):
		return nil
	}
}

// Do sends a request and waits for its reply payload. An ERROR reply
// is returned as *ProtocolError.
func (c *Client) Do(ctx context.Context, cmd CmdCode, payload []byte) ([]byte, error) {
	if len(payload) > MaxTransferLimit {
		return nil, protoErr(ErrCodeOverflow, CmdByte(cmd, 0))
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.reqID = (c.reqID + 1) & uint8(IDReqIDMask)
	id := RequestID(c.Board, c.reqID)
	for _, f := range EncodeFrames(id, cmd, payload) {
		if err := c.send(ctx, f); err != nil {
			return nil, err
		}
	}
	c.reasm.Reset()
	accept := RepliesTo(id)
	for {
		f, err := c.Transport.TryReceive()
		if errors.Is(err, ErrNoMessage) {
			if err = c.wait(ctx); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if !accept(f) {
			glog.V(2).Infof("client: ignore %s", f)
			continue
		}
		msg, _, err := c.reasm.Feed(f)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		switch msg.Cmd {
		case cmd:
			return msg.Payload, nil
		case CmdError:
			return nil, ParseProtocolError(msg.Payload)
		default:
			return nil, fmt.Errorf("%w: %s for %s", ErrUnexpectedReply, msg.Cmd, cmd)
		}
	}
}

func (c *Client) send(ctx context.Context, f Frame) error {
	for {
		err := c.Transport.TrySend(f)
		if !errors.Is(err, ErrNoResource) {
			return err
		}
		if err = c.wait(ctx); err != nil {
			return err
		}
	}
}

func decodeWords(payload []byte) ([]uint16, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("%w: odd payload length %d", ErrUnexpectedReply, len(payload))
	}
	vals := make([]uint16, len(payload)/2)
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint16(payload[i*2:])
	}
	return vals, nil
}

func encodeWrite(addr uint8, vals []uint16) []byte {
	payload := make([]byte, 1+2*len(vals))
	payload[0] = addr
	for i, v := range vals {
		binary.LittleEndian.PutUint16(payload[1+i*2:], v)
	}
	return payload
}

func (c *Client) doWords(ctx context.Context, cmd CmdCode, payload []byte) ([]uint16, error) {
	reply, err := c.Do(ctx, cmd, payload)
	if err != nil {
		return nil, err
	}
	return decodeWords(reply)
}

// ReadList reads each address in order.
func (c *Client) ReadList(ctx context.Context, addrs ...uint8) ([]uint16, error) {
	return c.doWords(ctx, CmdReadList, addrs)
}

// ReadInc reads count consecutive addresses from addr.
func (c *Client) ReadInc(ctx context.Context, count, addr uint8) ([]uint16, error) {
	return c.doWords(ctx, CmdReadInc, []byte{count, addr})
}

// ReadNoInc reads addr count times.
func (c *Client) ReadNoInc(ctx context.Context, count, addr uint8) ([]uint16, error) {
	return c.doWords(ctx, CmdReadNoInc, []byte{count, addr})
}

// ReadCountNoInc reads the available count at countAddr, then drains
// up to maxCount words from addr. The board sizes the reply for
// maxCount words before reading the count, so 2+2*maxCount must fit
// its max transfer (maxCount <= 126 at the default of 255) or the
// request fails with OVERFLOW however few words are queued.
func (c *Client) ReadCountNoInc(ctx context.Context, maxCount, countAddr, addr uint8) ([]uint16, error) {
	vals, err := c.doWords(ctx, CmdReadCountNoInc, []byte{maxCount, countAddr, addr})
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 || int(vals[0]) != len(vals)-1 {
		return nil, fmt.Errorf("%w: count mismatch", ErrUnexpectedReply)
	}
	return vals[1:], nil
}

// WriteInc writes vals to consecutive addresses from addr.
func (c *Client) WriteInc(ctx context.Context, addr uint8, vals ...uint16) error {
	_, err := c.Do(ctx, CmdWriteInc, encodeWrite(addr, vals))
	return err
}

// WriteNoInc writes vals to addr in order.
func (c *Client) WriteNoInc(ctx context.Context, addr uint8, vals ...uint16) error {
	_, err := c.Do(ctx, CmdWriteNoInc, encodeWrite(addr, vals))
	return err
}
