package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bujia-iot/sensor-node/internal/app"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/config"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/serialport"
	"github.com/bujia-iot/sensor-node/pkg/errors"
	"github.com/bujia-iot/sensor-node/pkg/modem"
	"github.com/google/uuid"
)

var configFile = flag.String("config", "configs/sensor-node.yaml", "配置文件路径")

func main() {
	flag.Parse()

	if err := config.Load(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "加载配置文件失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.GetConfig()

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志系统失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	bootID := uuid.NewString()
	logger.SetBootID(bootID)
	logger.Infof("温湿度传感器节点 %s 启动中...", cfg.Node.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	radioPort, err := serialport.OpenRadio(cfg.Serial)
	if err != nil {
		logger.Errorf("打开无线模块串口失败: %v", err)
		os.Exit(1)
	}
	defer radioPort.Close()

	console, err := serialport.OpenConsole(cfg.Serial)
	if err != nil {
		logger.Errorf("打开操作员控制台失败: %v", err)
		os.Exit(1)
	}
	defer console.Close()

	tr := modem.NewATPort(radioPort, cfg.Serial.ReadTimeout(), cfg.Serial.LogHexDump)
	manager := app.NewServiceManager(*cfg, tr, console, bootID)
	manager.EnableCredentialCache(ctx)
	manager.StartHTTPServer()
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Errorf("关闭服务失败: %v", err)
		}
	}()

	if err := manager.Node.Boot(ctx); err != nil {
		if errors.IsErrCode(err, errors.ErrModemStart) {
			// 保持进程，状态接口可以查看到halted
			logger.Errorf("无线模块启动失败，节点停止工作: %v", err)
			<-ctx.Done()
			return
		}
		if ctx.Err() == nil {
			logger.Errorf("启动阶段失败: %v", err)
		}
		return
	}

	if err := manager.Node.Run(ctx); err != nil {
		logger.Errorf("节点主循环异常退出: %v", err)
		return
	}
	logger.Info("温湿度传感器节点已安全关闭")
}
