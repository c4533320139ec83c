package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bujia-iot/sensor-node/internal/infrastructure/config"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/logger"
	"github.com/bujia-iot/sensor-node/internal/infrastructure/serialport"
	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/bujia-iot/sensor-node/pkg/modem"
	"github.com/bujia-iot/sensor-node/pkg/nvm"
)

var (
	configFile = flag.String("config", "configs/sensor-node.yaml", "配置文件路径")
	listPorts  = flag.Bool("list", false, "列出可用串口")
)

func usage() {
	fmt.Fprintf(os.Stderr, "用法: %s [-config file] read|reset|lock\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "  read   读取配置记录")
	fmt.Fprintln(os.Stderr, "  reset  将配置记录写回基线，下次启动重新配置凭据")
	fmt.Fprintln(os.Stderr, "  lock   锁定模块内的AppKey")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *listPorts {
		ports, err := serialport.ListPorts()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	if err := config.Load(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "加载配置文件失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.GetConfig()
	logCfg := cfg.Logger
	logCfg.EnableFile = false
	if err := logger.Init(&logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志系统失败: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port, err := serialport.OpenRadio(cfg.Serial)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer port.Close()

	tr := modem.NewATPort(port, cfg.Serial.ReadTimeout(), cfg.Serial.LogHexDump)
	if err := run(ctx, flag.Arg(0), tr, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, action string, tr modem.Transceiver, cfg *config.Config) error {
	acc := nvm.NewAccessor(tr, cfg.NVM.SettleDelay())

	switch action {
	case "read":
		rec, err := acc.ReadRecord(ctx)
		fmt.Printf("%s configured=%v\n", rec, rec.Configured(constants.MagicNumber))
		return err
	case "reset":
		if err := acc.WriteRecord(ctx, nvm.Baseline(constants.MagicNumber), cfg.NVM.WriteAttempts); err != nil {
			return err
		}
		fmt.Println("配置记录已重置")
		return nil
	case "lock":
		if err := modem.New(tr, modem.DefaultTimeouts()).LockKeys(ctx); err != nil {
			return err
		}
		fmt.Println("AppKey已锁定")
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}
