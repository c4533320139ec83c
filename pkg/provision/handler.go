// Package provision 实现首次启动时的凭据配置流程：
// 检查存储中的配置记录，必要时通过操作员控制台收集凭据，完成后写回记录并锁定密钥读取。
package provision

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/credentials"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/modem"
	"github.com/bujia-iot/sensor-node/pkg/protocol"
	"github.com/sirupsen/logrus"
)

// State 配置流程状态
type State int

const (
	StateAwaitingCompletion State = iota
	StateDone
)

func (s State) String() string {
	if s == StateDone {
		return "done"
	}
	return "awaitingCompletion"
}

const consoleLineEnding = "\r\n"

// Handler 操作员命令解释器
type Handler struct {
	store     *credentials.Store
	saveGuard string
	pollDelay time.Duration
	state     State
	log       *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

// NewHandler 创建命令解释器，saveGuard为all或legacy
func NewHandler(store *credentials.Store, saveGuard string, pollDelay time.Duration) *Handler {
	if saveGuard != constants.SaveGuardLegacy {
		saveGuard = constants.SaveGuardAll
	}
	if pollDelay <= 0 {
		pollDelay = constants.DefaultConsolePollDelay
	}
	return &Handler{
		store:     store,
		saveGuard: saveGuard,
		pollDelay: pollDelay,
		log:       logger.Component("provision"),
		sleep:     modem.Sleep,
	}
}

// State 当前状态
func (h *Handler) State() State {
	return h.state
}

// Done 是否已完成配置
func (h *Handler) Done() bool {
	return h.state == StateDone
}

// Dispatch 处理一行完整输入（包含行结束符），返回要回显给操作员的文本
func (h *Handler) Dispatch(line string) string {
	cmd := protocol.ParseConsoleCommand(protocol.NormalizeLine(line))
	h.log.WithField("command", cmd.Kind.String()).Debug("收到操作员命令")

	reply, err := h.apply(cmd)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"command": cmd.Kind.String(),
			"code":    errors.CodeOf(err),
		}).Warn(err.Error())
	}
	return reply
}

// apply 执行一条命令。值格式错误返回ErrCredentialFormat，
// 保存条件不满足返回ErrSavePrecondition，两种情况下存储内容都不变。
func (h *Handler) apply(cmd protocol.ConsoleCommand) (string, error) {
	switch cmd.Kind {
	case protocol.CommandHelp:
		return strings.Join(constants.MsgHelp, consoleLineEnding), nil

	case protocol.CommandSetDevEUI:
		if !credentials.IsDevEUI(cmd.Value) {
			return constants.MsgDevEUIIncorrect, errors.New(errors.ErrCredentialFormat, "DevEUI must be 16 hex digits")
		}
		h.store.SetDevEUI(cmd.Value)
		return constants.MsgDevEUIOK, nil

	case protocol.CommandSetAppEUI:
		if !credentials.IsAppEUI(cmd.Value) {
			return constants.MsgAppEUIIncorrect, errors.New(errors.ErrCredentialFormat, "AppEUI must be 16 hex digits")
		}
		h.store.SetAppEUI(cmd.Value)
		return constants.MsgAppEUIOK, nil

	case protocol.CommandSetAppKey:
		if !credentials.IsAppKey(cmd.Value) {
			return constants.MsgAppKeyIncorrect, errors.New(errors.ErrCredentialFormat, "AppKey must be 32 hex digits")
		}
		h.store.SetAppKey(cmd.Value)
		return constants.MsgAppKeyOK, nil

	case protocol.CommandSave:
		if !h.saveAllowed() {
			return constants.MsgMissingCreds, errors.New(errors.ErrSavePrecondition, "save requested before all credentials were entered")
		}
		h.store.MarkComplete()
		h.state = StateDone
		h.log.Info("凭据配置完成")
		return constants.MsgSaved, nil

	default:
		return constants.MsgInvalidCommand, nil
	}
}

func (h *Handler) saveAllowed() bool {
	snap := h.store.Snapshot()
	if h.saveGuard == constants.SaveGuardLegacy {
		// 旧固件的检查：DevEUI不参与
		return snap.AppEUI != "" && snap.AppKey != ""
	}
	return snap.DevEUI != "" && snap.AppEUI != "" && snap.AppKey != ""
}

// Run 在控制台上运行命令循环直到配置完成。
// 单行最多缓存ConsoleLineMax个字符，超长行回复无效命令。
// 没有数据时按固定间隔轮询；控制台关闭返回ErrConsoleClosed，ctx取消返回ctx.Err()。
func (h *Handler) Run(ctx context.Context, console io.ReadWriter) error {
	if err := h.reply(console, constants.MsgBanner); err != nil {
		return err
	}

	var (
		line      strings.Builder
		buf       [64]byte
		overflown bool
	)
	for !h.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := console.Read(buf[:])
		for _, c := range buf[:n] {
			if c != constants.ConsoleLineTerminator {
				if line.Len() >= constants.ConsoleLineMax {
					// 超长行整行丢弃，直到下一个行结束符
					if !overflown {
						h.log.WithField("limit", constants.ConsoleLineMax).Warn("控制台输入行过长，已丢弃")
					}
					overflown = true
					line.Reset()
				}
				if !overflown {
					line.WriteByte(c)
				}
				continue
			}

			out := constants.MsgInvalidCommand
			if !overflown {
				line.WriteByte(c)
				out = h.Dispatch(line.String())
			}
			line.Reset()
			overflown = false
			if err := h.reply(console, out); err != nil {
				return err
			}
			if h.Done() {
				return nil
			}
		}

		if readErr == io.EOF {
			return errors.New(errors.ErrConsoleClosed, "operator console closed before provisioning finished")
		}
		if readErr != nil {
			return errors.Wrap(errors.ErrConsoleClosed, "read operator console", readErr)
		}
		if n == 0 {
			if err := h.sleep(ctx, h.pollDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) reply(console io.Writer, text string) error {
	if _, err := io.WriteString(console, text+consoleLineEnding); err != nil {
		return errors.Wrap(errors.ErrConsoleClosed, "write operator console", err)
	}
	return nil
}
