package bridge

import (
	"context"
	"fmt"
	"log"
	"math"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover-sim/internal/drive"
	"github.com/banshee-data/rover-sim/internal/monitoring"
)

type captured struct {
	mu    sync.Mutex
	lines []string
}

func (c *captured) logf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func (c *captured) contains(s string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if strings.Contains(l, s) {
			return true
		}
	}
	return false
}

func captureLogs(t *testing.T) *captured {
	t.Helper()
	c := &captured{}
	monitoring.SetLogger(c.logf)
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
	return c
}

func TestReceive_MapsComponents(t *testing.T) {
	captureLogs(t)
	var h drive.TwistHolder
	b := NewCommandBridge(&h)

	err := b.Receive(&TwistMessage{
		Linear:  Vector3{X: 9, Y: 9, Z: 0.4},
		Angular: Vector3{X: 9, Y: -0.3, Z: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, drive.Twist{LinearZ: 0.4, AngularY: -0.3}, h.Get())
	assert.Equal(t, int64(1), b.Accepted())
	assert.Equal(t, int64(0), b.Rejected())
}

func TestReceive_RejectsAndKeepsLastGood(t *testing.T) {
	tests := []struct {
		name string
		msg  *TwistMessage
	}{
		{"nil", nil},
		{"nan linear", &TwistMessage{Linear: Vector3{Z: math.NaN()}}},
		{"inf angular", &TwistMessage{Angular: Vector3{Y: math.Inf(1)}}},
		{"nan unused component", &TwistMessage{Linear: Vector3{X: math.NaN(), Z: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			var h drive.TwistHolder
			b := NewCommandBridge(&h)
			require.NoError(t, b.Receive(&TwistMessage{Linear: Vector3{Z: 0.5}, Angular: Vector3{Y: 0.2}}))

			err := b.Receive(tt.msg)
			assert.ErrorIs(t, err, ErrInvalidCommand)
			assert.Equal(t, drive.Twist{LinearZ: 0.5, AngularY: 0.2}, h.Get())
			assert.Equal(t, int64(1), b.Rejected())
			assert.True(t, logs.contains("[Bridge]"))
		})
	}
}

func TestReceiveJSON(t *testing.T) {
	captureLogs(t)
	var h drive.TwistHolder
	b := NewCommandBridge(&h)

	require.NoError(t, b.ReceiveJSON([]byte(`{"linear":{"z":0.7},"angular":{"y":0.1}}`)))
	assert.Equal(t, drive.Twist{LinearZ: 0.7, AngularY: 0.1}, h.Get())

	assert.ErrorIs(t, b.ReceiveJSON([]byte(`null`)), ErrInvalidCommand)
	assert.ErrorIs(t, b.ReceiveJSON([]byte(`{not json`)), ErrInvalidCommand)
	assert.Equal(t, drive.Twist{LinearZ: 0.7, AngularY: 0.1}, h.Get())
	assert.Equal(t, int64(2), b.Rejected())
}

func TestServeLines(t *testing.T) {
	captureLogs(t)
	var h drive.TwistHolder
	b := NewCommandBridge(&h)

	input := strings.Join([]string{
		`{"linear":{"z":0.2}}`,
		``,
		`garbage`,
		`{"linear":{"z":0.3},"angular":{"y":-0.5}}`,
	}, "\n")
	require.NoError(t, b.ServeLines(context.Background(), strings.NewReader(input)))
	assert.Equal(t, drive.Twist{LinearZ: 0.3, AngularY: -0.5}, h.Get())
	assert.Equal(t, int64(2), b.Accepted())
	assert.Equal(t, int64(1), b.Rejected())
}

func TestServeLines_Cancelled(t *testing.T) {
	captureLogs(t)
	var h drive.TwistHolder
	b := NewCommandBridge(&h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.ServeLines(ctx, strings.NewReader(`{"linear":{"z":0.2}}`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, drive.Twist{}, h.Get())
}

func TestServe_UDP(t *testing.T) {
	captureLogs(t)
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	var h drive.TwistHolder
	b := NewCommandBridge(&h)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, conn) }()

	client, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte(`{"linear":{"z":0.6},"angular":{"y":0.25}}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return b.Accepted() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, drive.Twist{LinearZ: 0.6, AngularY: 0.25}, h.Get())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestListenUDP_BadAddress(t *testing.T) {
	captureLogs(t)
	var h drive.TwistHolder
	b := NewCommandBridge(&h)
	err := b.ListenUDP(context.Background(), "not-an-address:xyz")
	assert.Error(t, err)
}
