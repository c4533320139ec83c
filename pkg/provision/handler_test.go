package provision

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/credentials"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDevEUI = "70B3D57ED0000001"
	testAppEUI = "0000000000000000"
	testAppKey = "2B7E151628AED2A6ABF7158809CF4F3C"
)

// scriptedConsole 按块返回预设输入，耗尽后返回EOF（或在idle模式下返回(0,nil)）
type scriptedConsole struct {
	chunks []string
	idle   bool
	out    bytes.Buffer
	reads  int
}

func (c *scriptedConsole) Read(p []byte) (int, error) {
	c.reads++
	if len(c.chunks) == 0 {
		if c.idle {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	if n < len(c.chunks[0]) {
		c.chunks[0] = c.chunks[0][n:]
	} else {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func (c *scriptedConsole) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

func newTestHandler(guard string) (*Handler, *credentials.Store) {
	store := credentials.NewStore()
	h := NewHandler(store, guard, time.Millisecond)
	h.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return h, store
}

func TestDispatch(t *testing.T) {
	testCases := []struct {
		name string
		line string
		want string
	}{
		{"帮助", "AT?\n", strings.Join(constants.MsgHelp, "\r\n")},
		{"DevEUI正确", "AT+D=" + testDevEUI + "\n", constants.MsgDevEUIOK},
		{"DevEUI非十六进制", "AT+D=" + strings.Repeat("g", 16) + "\n", constants.MsgDevEUIIncorrect},
		{"DevEUI过短", "AT+D=70B3\n", constants.MsgDevEUIIncorrect},
		{"AppEUI正确", "AT+A=" + testAppEUI + "\n", constants.MsgAppEUIOK},
		{"AppEUI不检查第5个字符", "AT+A:" + testAppEUI + "\n", constants.MsgAppEUIOK},
		{"AppEUI错误", "AT+A=" + testAppEUI + "00\n", constants.MsgAppEUIIncorrect},
		{"AppKey正确", "AT+K=" + testAppKey + "\n", constants.MsgAppKeyOK},
		{"AppKey错误", "AT+K=" + testAppKey[:31] + "\n", constants.MsgAppKeyIncorrect},
		{"无效命令", "HELLO\n", constants.MsgInvalidCommand},
		{"帮助带多余字符", "AT? \n", constants.MsgInvalidCommand},
		{"终端CRLF", "AT?\r\n", strings.Join(constants.MsgHelp, "\r\n")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler(constants.SaveGuardAll)
			assert.Equal(t, tc.want, h.Dispatch(tc.line))
			assert.False(t, h.Done())
		})
	}
}

func TestDispatchStoresValuesWithoutTerminator(t *testing.T) {
	h, store := newTestHandler(constants.SaveGuardAll)

	h.Dispatch("AT+D=" + testDevEUI + "\n")
	h.Dispatch("AT+A=" + testAppEUI + "\n")
	h.Dispatch("AT+K=" + testAppKey + "\n")

	assert.Equal(t, testDevEUI, store.DevEUI())
	assert.Equal(t, testAppEUI, store.AppEUI())
	assert.Equal(t, testAppKey, store.AppKey())
}

func TestRejectedValueKeepsPrevious(t *testing.T) {
	h, store := newTestHandler(constants.SaveGuardAll)

	h.Dispatch("AT+D=" + testDevEUI + "\n")
	assert.Equal(t, constants.MsgDevEUIIncorrect, h.Dispatch("AT+D=zz\n"))
	assert.Equal(t, testDevEUI, store.DevEUI())
}

func TestSaveGuard(t *testing.T) {
	testCases := []struct {
		name  string
		guard string
		lines []string
		saved bool
	}{
		{"全部配置", constants.SaveGuardAll, []string{"AT+D=" + testDevEUI + "\n", "AT+A=" + testAppEUI + "\n", "AT+K=" + testAppKey + "\n"}, true},
		{"缺少DevEUI", constants.SaveGuardAll, []string{"AT+A=" + testAppEUI + "\n", "AT+K=" + testAppKey + "\n"}, false},
		{"缺少AppKey", constants.SaveGuardAll, []string{"AT+D=" + testDevEUI + "\n", "AT+A=" + testAppEUI + "\n"}, false},
		{"未配置", constants.SaveGuardAll, nil, false},
		{"旧策略缺少DevEUI仍可保存", constants.SaveGuardLegacy, []string{"AT+A=" + testAppEUI + "\n", "AT+K=" + testAppKey + "\n"}, true},
		{"旧策略缺少AppEUI", constants.SaveGuardLegacy, []string{"AT+D=" + testDevEUI + "\n", "AT+K=" + testAppKey + "\n"}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, store := newTestHandler(tc.guard)
			for _, line := range tc.lines {
				h.Dispatch(line)
			}

			out := h.Dispatch("AT+S\n")
			if tc.saved {
				assert.Equal(t, constants.MsgSaved, out)
				assert.Equal(t, StateDone, h.State())
				assert.True(t, store.Complete())
			} else {
				assert.Equal(t, constants.MsgMissingCreds, out)
				assert.Equal(t, StateAwaitingCompletion, h.State())
				assert.False(t, store.Complete())
			}
		})
	}
}

func TestUnknownGuardFallsBackToAll(t *testing.T) {
	h, _ := newTestHandler("whatever")
	h.Dispatch("AT+A=" + testAppEUI + "\n")
	h.Dispatch("AT+K=" + testAppKey + "\n")
	assert.Equal(t, constants.MsgMissingCreds, h.Dispatch("AT+S\n"))
}

func TestRunAssemblesLinesAcrossReads(t *testing.T) {
	h, store := newTestHandler(constants.SaveGuardAll)
	console := &scriptedConsole{chunks: []string{
		"AT+D=70B3D5",
		"7ED0000001\nAT+A=" + testAppEUI + "\n",
		"AT+K=" + testAppKey + "\r\n",
		"AT+S\n",
		"AT?\n", // 完成后不再处理
	}}

	require.NoError(t, h.Run(context.Background(), console))
	assert.True(t, h.Done())
	assert.Equal(t, testDevEUI, store.DevEUI())
	assert.Equal(t, testAppKey, store.AppKey())

	out := console.out.String()
	assert.True(t, strings.HasPrefix(out, constants.MsgBanner+"\r\n"))
	assert.Contains(t, out, constants.MsgDevEUIOK)
	assert.Contains(t, out, constants.MsgAppEUIOK)
	assert.Contains(t, out, constants.MsgAppKeyOK)
	assert.True(t, strings.HasSuffix(out, constants.MsgSaved+"\r\n"))
	assert.NotContains(t, out, "Commands available")
}

func TestRunConsoleClosed(t *testing.T) {
	h, _ := newTestHandler(constants.SaveGuardAll)
	console := &scriptedConsole{chunks: []string{"AT+S\n"}}

	err := h.Run(context.Background(), console)
	assert.True(t, errors.IsErrCode(err, errors.ErrConsoleClosed))
	assert.Contains(t, console.out.String(), constants.MsgMissingCreds)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	h, _ := newTestHandler(constants.SaveGuardAll)
	ctx, cancel := context.WithCancel(context.Background())
	polls := 0
	h.sleep = func(ctx context.Context, d time.Duration) error {
		polls++
		if polls == 3 {
			cancel()
		}
		return ctx.Err()
	}

	err := h.Run(ctx, &scriptedConsole{idle: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, polls)
}

func TestApplyTypedErrors(t *testing.T) {
	testCases := []struct {
		name string
		line string
		code errors.ErrorCode
	}{
		{"DevEUI格式错误", "AT+D=70B3\n", errors.ErrCredentialFormat},
		{"AppEUI格式错误", "AT+A=xyz\n", errors.ErrCredentialFormat},
		{"AppKey格式错误", "AT+K=" + testAppKey[:30] + "\n", errors.ErrCredentialFormat},
		{"未配置即保存", "AT+S\n", errors.ErrSavePrecondition},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, store := newTestHandler(constants.SaveGuardAll)
			_, err := h.apply(protocol.ParseConsoleCommand(protocol.NormalizeLine(tc.line)))
			assert.True(t, errors.IsErrCode(err, tc.code))
			assert.True(t, store.Snapshot().Empty())
		})
	}

	h, _ := newTestHandler(constants.SaveGuardAll)
	_, err := h.apply(protocol.ParseConsoleCommand(protocol.NormalizeLine("HELLO\n")))
	assert.NoError(t, err)
}

func TestRunDiscardsOverlongLine(t *testing.T) {
	h, store := newTestHandler(constants.SaveGuardAll)
	noise := strings.Repeat("x", constants.ConsoleLineMax+50)
	console := &scriptedConsole{chunks: []string{
		noise[:100],
		noise[100:] + "AT+D=" + testDevEUI + "\n",
		"AT+D=" + testDevEUI + "\n",
	}}

	err := h.Run(context.Background(), console)
	assert.True(t, errors.IsErrCode(err, errors.ErrConsoleClosed))
	assert.Equal(t, testDevEUI, store.DevEUI())

	lines := strings.Split(strings.TrimSuffix(console.out.String(), "\r\n"), "\r\n")
	assert.Equal(t, []string{constants.MsgBanner, constants.MsgInvalidCommand, constants.MsgDevEUIOK}, lines)
}

func TestRunAcceptsLineAtLimit(t *testing.T) {
	h, _ := newTestHandler(constants.SaveGuardAll)
	line := "AT+D=" + testDevEUI + strings.Repeat(" ", constants.ConsoleLineMax-5-len(testDevEUI)) + "\n"
	console := &scriptedConsole{chunks: []string{line}}

	_ = h.Run(context.Background(), console)
	assert.Contains(t, console.out.String(), constants.MsgDevEUIIncorrect)
	assert.NotContains(t, console.out.String(), constants.MsgInvalidCommand)
}
