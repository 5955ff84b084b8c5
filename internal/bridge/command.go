// Package bridge adapts the drive core to the outside world: it accepts
// velocity commands into the vehicle's twist holder and periodically
// republishes chassis and sensor transforms in the robotics convention.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rover-sim/internal/drive"
	"github.com/banshee-data/rover-sim/internal/monitoring"
)

// ErrInvalidCommand is returned for absent or non-finite commands. The
// previously accepted twist is kept.
var ErrInvalidCommand = errors.New("invalid twist command")

// CommandBridge writes validated velocity commands into a TwistHolder.
type CommandBridge struct {
	twist    *drive.TwistHolder
	accepted atomic.Int64
	rejected atomic.Int64
}

// NewCommandBridge creates a bridge writing to twist.
func NewCommandBridge(twist *drive.TwistHolder) *CommandBridge {
	return &CommandBridge{twist: twist}
}

// Accepted returns the number of commands applied.
func (b *CommandBridge) Accepted() int64 { return b.accepted.Load() }

// Rejected returns the number of commands discarded.
func (b *CommandBridge) Rejected() int64 { return b.rejected.Load() }

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Receive applies msg. A nil or non-finite message is logged and rejected
// and the last accepted twist stays in effect.
func (b *CommandBridge) Receive(msg *TwistMessage) error {
	if msg == nil {
		b.rejected.Add(1)
		monitoring.Logf("[Bridge] received null twist message, keeping last command")
		return fmt.Errorf("%w: nil message", ErrInvalidCommand)
	}
	if !finite(msg.Linear.X, msg.Linear.Y, msg.Linear.Z, msg.Angular.X, msg.Angular.Y, msg.Angular.Z) {
		b.rejected.Add(1)
		monitoring.Logf("[Bridge] received non-finite twist %+v, keeping last command", *msg)
		return fmt.Errorf("%w: non-finite component", ErrInvalidCommand)
	}
	b.twist.Set(drive.Twist{LinearZ: msg.Linear.Z, AngularY: msg.Angular.Y})
	b.accepted.Add(1)
	return nil
}

// ReceiveJSON decodes one JSON message and applies it. The JSON literal
// null is treated as an absent message.
func (b *CommandBridge) ReceiveJSON(data []byte) error {
	var msg *TwistMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		b.rejected.Add(1)
		return fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return b.Receive(msg)
}

// ServeLines applies one JSON message per line from r until EOF or ctx is
// cancelled. Bad lines are logged and skipped.
func (b *CommandBridge) ServeLines(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := b.ReceiveJSON(line); err != nil {
			monitoring.Logf("[Bridge] %v", err)
		}
	}
	return sc.Err()
}

// ListenUDP receives one JSON twist per datagram on address until ctx is
// cancelled.
func (b *CommandBridge) ListenUDP(ctx context.Context, address string) error {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()
	monitoring.Logf("[Bridge] command listener started on %s", conn.LocalAddr())
	return b.Serve(ctx, conn)
}

// Serve reads datagrams from conn until ctx is cancelled.
func (b *CommandBridge) Serve(ctx context.Context, conn net.PacketConn) error {
	buffer := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[Bridge] command listener stopping due to context cancellation")
			return ctx.Err()
		default:
		}

		// Set read deadline to allow checking context cancellation
		_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			monitoring.Logf("[Bridge] UDP read error: %v", err)
			continue
		}
		if err := b.ReceiveJSON(buffer[:n]); err != nil {
			monitoring.Logf("[Bridge] bad command from %v: %v", from, err)
		}
	}
}
