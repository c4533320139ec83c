package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/config"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 全局日志实例
var log = logrus.New()

// rotatingWriter 当前使用的滚动文件，Close时释放
var rotatingWriter *lumberjack.Logger

// Init 初始化日志系统
func Init(cfg *config.LoggerConfig) error {
	// 设置日志级别
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %s, %w", cfg.Level, err)
	}
	log.SetLevel(level)

	// 设置日志格式
	if strings.ToLower(cfg.Format) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: constants.TimeFormatDefault,
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: constants.TimeFormatDefault,
			FullTimestamp:   true,
		})
	}

	var writers []io.Writer
	if cfg.EnableConsole {
		// 操作员控制台可能占用标准输出，日志走标准错误
		writers = append(writers, os.Stderr)
	}

	if cfg.EnableFile {
		if err := os.MkdirAll(cfg.FileDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		// 按大小分割（使用lumberjack）
		rotatingWriter = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.FileDir, cfg.FilePrefix+".log"),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}
		writers = append(writers, rotatingWriter)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}
	log.SetOutput(io.MultiWriter(writers...))

	log.WithFields(logrus.Fields{
		"level":          cfg.Level,
		"format":         cfg.Format,
		"enable_console": cfg.EnableConsole,
		"enable_file":    cfg.EnableFile,
	}).Debug("日志系统初始化完成")

	return nil
}

// Close 关闭滚动日志文件
func Close() error {
	if rotatingWriter == nil {
		return nil
	}
	return rotatingWriter.Close()
}

// fieldHook 为每条日志补充固定字段
type fieldHook struct {
	fields logrus.Fields
}

func (h *fieldHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fieldHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		if _, exists := entry.Data[k]; !exists {
			entry.Data[k] = v
		}
	}
	return nil
}

// SetBootID 为之后的所有日志附加本次启动的标识
func SetBootID(bootID string) {
	log.AddHook(&fieldHook{fields: logrus.Fields{"bootID": bootID}})
}

// GetLogger 获取全局日志实例
func GetLogger() *logrus.Logger {
	return log
}

// SetOutput 替换日志输出，测试中使用
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// Component 返回带组件名的日志条目
func Component(name string) *logrus.Entry {
	return log.WithField("component", name)
}

// Debug 输出Debug级别日志
func Debug(args ...interface{}) {
	log.Debug(args...)
}

// Debugf 格式化输出Debug级别日志
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Info 输出Info级别日志
func Info(args ...interface{}) {
	log.Info(args...)
}

// Infof 格式化输出Info级别日志
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warn 输出Warn级别日志
func Warn(args ...interface{}) {
	log.Warn(args...)
}

// Warnf 格式化输出Warn级别日志
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Error 输出Error级别日志
func Error(args ...interface{}) {
	log.Error(args...)
}

// Errorf 格式化输出Error级别日志
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// WithField 添加字段到日志
func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}

// WithFields 添加多个字段到日志
func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}

// HexDump 记录二进制数据的十六进制表示（仅当logHexDump为true且日志级别为Debug时）
func HexDump(message string, data []byte, logHexDump bool) {
	if logHexDump && log.IsLevelEnabled(logrus.DebugLevel) {
		hexStr := fmt.Sprintf("%X", data)
		log.WithField("hex_data", hexStr).Debug(message)
	}
}
