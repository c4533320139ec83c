package modem

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort 按命令回放预设响应的串口
type fakePort struct {
	mu       sync.Mutex
	replies  map[string]string
	writes   [][]byte
	pending  bytes.Buffer
	writeErr error
	readErr  error
	timeouts []time.Duration
}

func newFakePort(replies map[string]string) *fakePort {
	return &fakePort{replies: replies}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	cmd, _, _ := strings.Cut(string(p), "\r\n")
	if reply, ok := f.replies[cmd]; ok {
		f.pending.WriteString(reply)
	}
	return len(p), nil
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.pending.Len() == 0 {
		return 0, nil
	}
	return f.pending.Read(p)
}

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeouts = append(f.timeouts, t)
	return nil
}

func (f *fakePort) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.writes))
	for _, w := range f.writes {
		cmd, _, _ := strings.Cut(string(w), "\r\n")
		out = append(out, cmd)
	}
	return out
}

func newTestPort(fp *fakePort) *ATPort {
	p := NewATPort(fp, 10*time.Millisecond, false)
	p.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func TestExchangeSettled(t *testing.T) {
	fp := newFakePort(map[string]string{"AT$NVM 0": "+OK=92\r\n"})
	p := newTestPort(fp)

	resp, err := p.Exchange(context.Background(), Request{Command: "AT$NVM 0", Settle: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "+OK=92\r\n", resp)
	assert.Equal(t, []time.Duration{constants.DrainReadTimeout, 10 * time.Millisecond}, fp.timeouts)
}

func TestExchangeDiscardsStaleInput(t *testing.T) {
	fp := newFakePort(map[string]string{
		"AT$NVM 0": "+OK=92\r\n",
		"AT+CTX 2": "+OK\r\n+ACK\r\n",
	})
	fp.pending.WriteString("+ACK\r\n+EVENT=1,1\r\n") // 上一次交互迟到的事件
	p := newTestPort(fp)

	resp, err := p.Exchange(context.Background(), Request{Command: "AT$NVM 0", Settle: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "+OK=92\r\n", resp)

	fp.pending.WriteString("+NOACK\r\n")
	resp, err = p.Exchange(context.Background(), Request{
		Command: "AT+CTX 2",
		Payload: []byte{1, 2},
		Until:   []string{"+ACK", "+NOACK"},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Contains(t, resp, "+ACK")
	assert.NotContains(t, resp, "+NOACK")
}

func TestExchangeNoReplyIsTimeout(t *testing.T) {
	p := newTestPort(newFakePort(nil))

	_, err := p.Exchange(context.Background(), Request{Command: "AT$NVM 1", Settle: time.Millisecond})
	assert.True(t, errors.IsErrCode(err, errors.ErrModemTimeout))
}

func TestExchangeWriteFailure(t *testing.T) {
	fp := newFakePort(nil)
	fp.writeErr = stderrors.New("device unplugged")
	p := newTestPort(fp)

	_, err := p.Exchange(context.Background(), Request{Command: "AT"})
	assert.True(t, errors.IsErrCode(err, errors.ErrModemIO))
	assert.True(t, errors.IsCommunicationFailure(err))
}

func TestExchangeReadFailure(t *testing.T) {
	fp := newFakePort(nil)
	fp.readErr = stderrors.New("broken pipe")
	p := newTestPort(fp)

	_, err := p.Exchange(context.Background(), Request{Command: "AT", Until: []string{"+OK"}})
	assert.True(t, errors.IsErrCode(err, errors.ErrModemIO))
}

func TestExchangeUntilMarker(t *testing.T) {
	fp := newFakePort(map[string]string{"AT+JOIN": "+OK\r\n+EVENT=1,1\r\n"})
	p := newTestPort(fp)

	resp, err := p.Exchange(context.Background(), Request{
		Command: "AT+JOIN",
		Until:   []string{"+EVENT=1,1", "+EVENT=1,0"},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Contains(t, resp, "+EVENT=1,1")
}

func TestExchangeUntilTimeout(t *testing.T) {
	fp := newFakePort(map[string]string{"AT+JOIN": "+OK\r\n"})
	p := newTestPort(fp)

	resp, err := p.Exchange(context.Background(), Request{
		Command: "AT+JOIN",
		Until:   []string{"+EVENT=1,1"},
		Timeout: 20 * time.Millisecond,
	})
	assert.True(t, errors.IsErrCode(err, errors.ErrModemTimeout))
	assert.Equal(t, "+OK\r\n", resp)
}

func TestExchangeHonoursCancellation(t *testing.T) {
	p := newTestPort(newFakePort(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Exchange(ctx, Request{Command: "AT", Until: []string{"+OK"}, Timeout: time.Minute})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExchangeAppendsPayload(t *testing.T) {
	fp := newFakePort(map[string]string{"AT+CTX 3": "+OK\r\n+ACK\r\n"})
	p := newTestPort(fp)

	_, err := p.Exchange(context.Background(), Request{
		Command: "AT+CTX 3",
		Payload: []byte{1, 2, 3},
		Until:   []string{"+ACK"},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	require.Len(t, fp.writes, 1)
	assert.Equal(t, append([]byte("AT+CTX 3\r\n"), 1, 2, 3), fp.writes[0])
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
