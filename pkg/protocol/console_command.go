package protocol

import (
	"strings"

	"github.com/bujia-iot/sensor-node/pkg/constants"
)

// CommandKind 操作员命令类型
type CommandKind int

const (
	CommandInvalid CommandKind = iota
	CommandHelp
	CommandSetDevEUI
	CommandSetAppEUI
	CommandSetAppKey
	CommandSave
)

// String 返回命令类型名称
func (k CommandKind) String() string {
	switch k {
	case CommandHelp:
		return "help"
	case CommandSetDevEUI:
		return "devEUI"
	case CommandSetAppEUI:
		return "appEUI"
	case CommandSetAppKey:
		return "appKey"
	case CommandSave:
		return "save"
	default:
		return "invalid"
	}
}

// ConsoleCommand 一行操作员输入的解析结果
type ConsoleCommand struct {
	Kind  CommandKind
	Value string // 凭据命令的取值，包含行结束符
}

// NormalizeLine 将终端常见的"\r\n"结尾统一为"\n"
func NormalizeLine(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2] + "\n"
	}
	return line
}

// ParseConsoleCommand 按照固定顺序匹配命令：
// AT?\n 完全匹配，AT+D= 前缀，AT+A 前缀，AT+K 前缀，AT+S\n 完全匹配。
// AT+A与AT+K只匹配4个字符，取值一律从第6个字符开始。
func ParseConsoleCommand(line string) ConsoleCommand {
	switch {
	case line == constants.OpCmdHelp:
		return ConsoleCommand{Kind: CommandHelp}
	case strings.HasPrefix(line, constants.OpCmdDevEUI):
		return ConsoleCommand{Kind: CommandSetDevEUI, Value: valueOf(line)}
	case strings.HasPrefix(line, constants.OpCmdAppEUI):
		return ConsoleCommand{Kind: CommandSetAppEUI, Value: valueOf(line)}
	case strings.HasPrefix(line, constants.OpCmdAppKey):
		return ConsoleCommand{Kind: CommandSetAppKey, Value: valueOf(line)}
	case line == constants.OpCmdSave:
		return ConsoleCommand{Kind: CommandSave}
	default:
		return ConsoleCommand{Kind: CommandInvalid}
	}
}

func valueOf(line string) string {
	if len(line) <= constants.OpCmdValueOffset {
		return ""
	}
	return line[constants.OpCmdValueOffset:]
}
