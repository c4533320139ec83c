// Package nvmtest 提供模拟无线模块存储命令的Transceiver，供测试使用。
package nvmtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/modem"
)

// Fault 对某个地址注入的故障
type Fault int

const (
	FaultNone      Fault = iota
	FaultSilent          // 无响应
	FaultPeerError       // 返回+ERR
	FaultGarbage         // 返回无法解析的内容
)

// FakeModem 在内存中模拟AT$NVM与AT$APKACCESS
type FakeModem struct {
	mu          sync.Mutex
	Memory      map[byte]byte
	ReadFaults  map[byte]Fault
	WriteFaults map[byte]Fault

	// WriteFailuresLeft 每个地址剩余的写入失败次数，用完后恢复正常
	WriteFailuresLeft map[byte]int

	Commands []string
	Locked   bool
}

// New 创建空存储的模拟模块
func New() *FakeModem {
	return &FakeModem{
		Memory:            map[byte]byte{},
		ReadFaults:        map[byte]Fault{},
		WriteFaults:       map[byte]Fault{},
		WriteFailuresLeft: map[byte]int{},
	}
}

// Preload 写入初始的三字节记录
func (f *FakeModem) Preload(magic, state, checksum byte) *FakeModem {
	f.Memory[constants.AddrMagic] = magic
	f.Memory[constants.AddrState] = state
	f.Memory[constants.AddrChecksum] = checksum
	return f
}

// Value 返回地址上的值，未写过的地址视为255（擦除状态）
func (f *FakeModem) Value(addr byte) byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.Memory[addr]; ok {
		return v
	}
	return 0xFF
}

// Writes 返回记录到的写命令
func (f *FakeModem) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Commands {
		if strings.HasPrefix(c, constants.CmdNVM) && strings.Contains(c, ",") {
			out = append(out, c)
		}
	}
	return out
}

// Exchange 实现modem.Transceiver
func (f *FakeModem) Exchange(ctx context.Context, req modem.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = append(f.Commands, req.Command)

	switch {
	case req.Command == constants.CmdLockKeys:
		f.Locked = true
		return "+OK\r\n", nil
	case strings.HasPrefix(req.Command, constants.CmdNVM+" "):
		return f.nvm(strings.TrimPrefix(req.Command, constants.CmdNVM+" "))
	default:
		return "+ERR=4\r\n", nil
	}
}

func (f *FakeModem) nvm(args string) (string, error) {
	addrStr, valueStr, isWrite := strings.Cut(args, ",")
	addr64, err := strconv.ParseUint(addrStr, 10, 8)
	if err != nil {
		return "+ERR=3\r\n", nil
	}
	addr := byte(addr64)

	if !isWrite {
		if reply, faulted, err := f.fault(f.ReadFaults[addr]); faulted {
			return reply, err
		}
		v, ok := f.Memory[addr]
		if !ok {
			v = 0xFF
		}
		return fmt.Sprintf("+OK=%d\r\n", v), nil
	}

	if f.WriteFailuresLeft[addr] > 0 {
		f.WriteFailuresLeft[addr]--
		return "+ERR=1\r\n", nil
	}
	if reply, faulted, err := f.fault(f.WriteFaults[addr]); faulted {
		return reply, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 8)
	if err != nil {
		return "+ERR=3\r\n", nil
	}
	f.Memory[addr] = byte(value)
	return "+OK\r\n", nil
}

func (f *FakeModem) fault(kind Fault) (string, bool, error) {
	switch kind {
	case FaultSilent:
		return "", true, errors.New(errors.ErrModemTimeout, "no reply")
	case FaultPeerError:
		return "+ERR=-1\r\n", true, nil
	case FaultGarbage:
		return "\x00\x13", true, nil
	default:
		return "", false, nil
	}
}
