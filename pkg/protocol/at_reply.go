package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/errors"
)

// ============================================================================
// 无线模块响应解析
// ============================================================================

// HasOK 响应中是否包含成功标记
func HasOK(response string) bool {
	return strings.Contains(response, constants.RespOK)
}

// PeerError 从响应中提取+ERR标记。code为-1表示模块没有给出错误码。
func PeerError(response string) (code int, found bool) {
	idx := strings.Index(response, constants.RespErr)
	if idx == -1 {
		return 0, false
	}

	rest := response[idx+len(constants.RespErr):]
	if codeStr, ok := strings.CutPrefix(rest, "="); ok {
		if end := strings.IndexAny(codeStr, "\r\n"); end != -1 {
			codeStr = codeStr[:end]
		}
		if c, err := strconv.Atoi(strings.TrimSpace(codeStr)); err == nil {
			return c, true
		}
	}
	return -1, true
}

// CheckReply 将响应归类为成功或对端错误
func CheckReply(command, response string) error {
	if code, found := PeerError(response); found {
		return errors.New(errors.ErrPeerError, fmt.Sprintf("%q rejected by modem (code %d)", command, code))
	}
	if !HasOK(response) {
		return errors.New(errors.ErrMalformedResponse, fmt.Sprintf("%q: no %s in reply %q", command, constants.RespOK, strings.TrimSpace(response)))
	}
	return nil
}

// FormatNVMRead AT$NVM <addr>
func FormatNVMRead(address byte) string {
	return fmt.Sprintf("%s %d", constants.CmdNVM, address)
}

// FormatNVMWrite AT$NVM <addr>,<value>
func FormatNVMWrite(address, value byte) string {
	return fmt.Sprintf("%s %d,%d", constants.CmdNVM, address, value)
}

// ParseNVMValue 解析读存储的响应，取第一个'='到随后'\n'之间的十进制值
func ParseNVMValue(response string) (byte, error) {
	if code, found := PeerError(response); found {
		return constants.NVMSentinel, errors.New(errors.ErrPeerError, fmt.Sprintf("nvm read rejected by modem (code %d)", code))
	}

	start := strings.Index(response, "=")
	if start == -1 {
		return constants.NVMSentinel, errors.New(errors.ErrMalformedResponse, fmt.Sprintf("nvm reply without '=': %q", response))
	}

	value := response[start+1:]
	if end := strings.IndexByte(value, '\n'); end != -1 {
		value = value[:end]
	}
	value = strings.TrimSpace(value)

	n, err := strconv.ParseUint(value, 10, 8)
	if err != nil {
		return constants.NVMSentinel, errors.Wrap(errors.ErrMalformedResponse, fmt.Sprintf("nvm value %q", value), err)
	}
	return byte(n), nil
}

// FormatSetting <cmd>=<value>
func FormatSetting(command string, value interface{}) string {
	return fmt.Sprintf("%s=%v", command, value)
}

// FormatUplink AT+CTX <len> / AT+UTX <len>
func FormatUplink(confirmed bool, length int) string {
	if confirmed {
		return fmt.Sprintf("%s %d", constants.CmdConfirmTx, length)
	}
	return fmt.Sprintf("%s %d", constants.CmdUnconfTx, length)
}
