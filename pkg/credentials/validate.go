package credentials

import "github.com/bujia-iot/sensor-node/pkg/constants"

// IsCredential 检查s是否为n个十六进制字符加一个行结束符。
// 只检查长度和前n个字符，结束符本身不做校验。
func IsCredential(s string, n int) bool {
	if len(s) != n+1 {
		return false
	}
	for i := 0; i < n; i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

// IsDevEUI 16个十六进制字符
func IsDevEUI(s string) bool { return IsCredential(s, constants.DevEUILength) }

// IsAppEUI 16个十六进制字符
func IsAppEUI(s string) bool { return IsCredential(s, constants.AppEUILength) }

// IsAppKey 32个十六进制字符
func IsAppKey(s string) bool { return IsCredential(s, constants.AppKeyLength) }

func isHexDigit(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	}
	return false
}
