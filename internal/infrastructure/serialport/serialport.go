// Package serialport 打开无线模块和操作员控制台使用的串口。
package serialport

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/config"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Open 以8N1打开串口并设置读超时，读超时到期时Read返回(0, nil)
func Open(name string, baudRate int, readTimeout time.Duration) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	logger.WithFields(logrus.Fields{
		"port":     name,
		"baudRate": baudRate,
	}).Info("串口已打开")
	return port, nil
}

// OpenRadio 打开无线模块串口
func OpenRadio(cfg config.SerialConfig) (serial.Port, error) {
	return Open(cfg.RadioPort, cfg.RadioBaudRate, cfg.ReadTimeout())
}

// OpenConsole 打开操作员控制台。未配置串口时使用标准输入输出。
func OpenConsole(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	if cfg.ConsolePort == "" {
		return NewStdio(os.Stdin, os.Stdout, cfg.ReadTimeout()), nil
	}
	return Open(cfg.ConsolePort, cfg.ConsoleBaudRate, cfg.ReadTimeout())
}

// Stdio 以标准输入输出作为控制台，读取语义与串口一致：
// 超时内无输入时Read返回(0, nil)，调用方因此能在两次读取之间检查取消。
// Close不关闭底层文件。
type Stdio struct {
	r       io.Reader
	w       io.Writer
	timeout time.Duration

	once    sync.Once
	chunks  chan []byte
	readErr error
	pending []byte
}

// NewStdio 创建标准输入输出控制台，timeout<=0时使用默认读超时
func NewStdio(r io.Reader, w io.Writer, timeout time.Duration) *Stdio {
	if timeout <= 0 {
		timeout = constants.DefaultReadTimeout
	}
	return &Stdio{r: r, w: w, timeout: timeout}
}

// pump 在后台读取底层输入，读到错误后关闭通道
func (s *Stdio) pump() {
	defer close(s.chunks)
	buf := make([]byte, 256)
	for {
		n, err := s.r.Read(buf)
		if n > 0 {
			s.chunks <- append([]byte(nil), buf[:n]...)
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

// Read 读取已到达的输入，超时返回(0, nil)，底层输入结束后返回其错误
func (s *Stdio) Read(p []byte) (int, error) {
	s.once.Do(func() {
		s.chunks = make(chan []byte, 1)
		go s.pump()
	})

	if len(s.pending) == 0 {
		timer := time.NewTimer(s.timeout)
		defer timer.Stop()
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return 0, s.readErr
			}
			s.pending = chunk
		case <-timer.C:
			return 0, nil
		}
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// Close 无操作
func (s *Stdio) Close() error { return nil }

// ListPorts 列出系统中的串口
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
