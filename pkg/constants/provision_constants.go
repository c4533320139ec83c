package constants

import "time"

// ============================================================================
// 配置记录（非易失存储中的三个字节）
// ============================================================================

const (
	MagicNumber byte = 92 // 配置记录魔数

	AddrMagic    byte = 0 // 魔数地址
	AddrState    byte = 1 // 状态地址
	AddrChecksum byte = 2 // 校验地址

	StateUnconfigured byte = 0
	StateConfigured   byte = 1

	// NVMSentinel 读取失败时的哨兵值，与合法的255无法区分
	NVMSentinel byte = 255
)

// 凭据长度（十六进制字符数，不含行结束符）
const (
	DevEUILength = 16
	AppEUILength = 16
	AppKeyLength = 32
)

// 操作员命令
const (
	ConsoleLineTerminator = '\n'
	ConsoleLineMax        = 200 // 控制台单行缓存上限（字符）

	OpCmdHelp   = "AT?\n"
	OpCmdDevEUI = "AT+D="
	OpCmdAppEUI = "AT+A"
	OpCmdAppKey = "AT+K"
	OpCmdSave   = "AT+S\n"

	// 命令前缀长度，取值从第6个字符开始
	OpCmdValueOffset = 5

	DefaultConsolePollDelay = 100 * time.Millisecond
)

// 操作员控制台输出
const (
	MsgBanner          = "Ready to receive AT commands. Type AT? for assistance"
	MsgDevEUIOK        = "DevEUI OK"
	MsgDevEUIIncorrect = "DevEUI incorrect, please try again"
	MsgAppEUIOK        = "AppEUI OK"
	MsgAppEUIIncorrect = "AppEUI incorrect, please try again"
	MsgAppKeyOK        = "AppKey OK"
	MsgAppKeyIncorrect = "AppKey incorrect, please try again"
	MsgSaved           = "Configuration of the credentials finished"
	MsgMissingCreds    = "You have to configure all the credentials"
	MsgInvalidCommand  = "Invalid command, type AT? for assistance"
)

// MsgHelp AT?命令的帮助文本
var MsgHelp = []string{
	"",
	"Commands available : ",
	"AT+D=<devEUI> : Configure the devEUI",
	"AT+A=<appEUI> : Configure the appEUI",
	"AT+K=<appKey> : Configure the appKey",
	"AT+S : Save and protect credentials",
}

// 保存命令的检查策略
const (
	SaveGuardAll    = "all"    // 三个凭据都必须已配置
	SaveGuardLegacy = "legacy" // 与旧固件一致：AppEUI检查两次，DevEUI不检查
)

// 配置记录重写策略
const (
	RestampAlways  = "always"  // 每次进入配置流程前都写入基线
	RestampGuarded = "guarded" // 记录已是基线时跳过
)

// ============================================================================
// 链路
// ============================================================================

const (
	DefaultFrequencyPlan   = "EU868"
	DefaultMinPollInterval = 60 // 秒
	DefaultDataRate        = 5
	DefaultErrorThreshold  = 50 // 连续失败超过该值后强制重新入网
	DefaultFailurePause    = time.Second
	DefaultJoinSettle      = 100 * time.Millisecond
	DefaultWriteAttempts   = 3

	DefaultDutyCycle = 10 * time.Second

	TimeFormatDefault = "2006-01-02 15:04:05"
)
