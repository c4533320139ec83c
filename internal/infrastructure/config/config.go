package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/bujia-iot/sensor-node/pkg/constants"
	"github.com/spf13/viper"
)

// Config 是传感器节点配置的结构体
type Config struct {
	Node          NodeConfig          `mapstructure:"node"`
	Serial        SerialConfig        `mapstructure:"serial"`
	NVM           NVMConfig           `mapstructure:"nvm"`
	Provisioning  ProvisioningConfig  `mapstructure:"provisioning"`
	Link          LinkConfig          `mapstructure:"link"`
	DutyCycle     DutyCycleConfig     `mapstructure:"dutyCycle"`
	Sensor        SensorConfig        `mapstructure:"sensor"`
	HTTPAPIServer HTTPAPIServerConfig `mapstructure:"httpApiServer"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Logger        LoggerConfig        `mapstructure:"logger"`
}

// NodeConfig 节点标识
type NodeConfig struct {
	Name string `mapstructure:"name"`
}

// SerialConfig 串口配置
type SerialConfig struct {
	RadioPort         string `mapstructure:"radioPort"`   // 无线模块串口
	RadioBaudRate     int    `mapstructure:"radioBaudRate"`
	ConsolePort       string `mapstructure:"consolePort"` // 操作员控制台串口，为空时使用标准输入输出
	ConsoleBaudRate   int    `mapstructure:"consoleBaudRate"`
	ReadTimeoutMillis int    `mapstructure:"readTimeoutMillis"`
	LogHexDump        bool   `mapstructure:"logHexDump"`
}

// NVMConfig 非易失存储访问配置
type NVMConfig struct {
	SettleDelayMillis int `mapstructure:"settleDelayMillis"`
	WriteAttempts     int `mapstructure:"writeAttempts"`
}

// ProvisioningConfig 配置流程
type ProvisioningConfig struct {
	SaveGuard       string `mapstructure:"saveGuard"` // all | legacy
	Restamp         string `mapstructure:"restamp"`   // always | guarded
	PollDelayMillis int    `mapstructure:"pollDelayMillis"`
}

// LinkConfig LoRaWAN链路配置
type LinkConfig struct {
	FrequencyPlan         string `mapstructure:"frequencyPlan"`
	MinPollIntervalSecond int    `mapstructure:"minPollIntervalSeconds"`
	DataRate              int    `mapstructure:"dataRate"`
	ErrorThreshold        int    `mapstructure:"errorThreshold"`
	FailurePauseMillis    int    `mapstructure:"failurePauseMillis"`
	JoinTimeoutSeconds    int    `mapstructure:"joinTimeoutSeconds"`
	TxTimeoutSeconds      int    `mapstructure:"txTimeoutSeconds"`
}

// DutyCycleConfig 采集发送周期
type DutyCycleConfig struct {
	IntervalSeconds int `mapstructure:"intervalSeconds"`
}

// SensorConfig 传感器配置，mode为fixed（固定读数）或none（读数为NaN）
type SensorConfig struct {
	Mode        string  `mapstructure:"mode"`
	Temperature float32 `mapstructure:"temperature"`
	Humidity    float32 `mapstructure:"humidity"`
}

// HTTPAPIServerConfig 状态查询HTTP服务
type HTTPAPIServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// RedisConfig Redis配置，用于凭据缓存
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"poolSize"`
	MinIdleConns int    `mapstructure:"minIdleConns"`
	DialTimeout  int    `mapstructure:"dialTimeout"`
	ReadTimeout  int    `mapstructure:"readTimeout"`
	WriteTimeout int    `mapstructure:"writeTimeout"`
	KeyPrefix    string `mapstructure:"keyPrefix"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level         string `mapstructure:"level"`
	Format        string `mapstructure:"format"`
	EnableConsole bool   `mapstructure:"enableConsole"`
	EnableFile    bool   `mapstructure:"enableFile"`
	FileDir       string `mapstructure:"fileDir"`
	FilePrefix    string `mapstructure:"filePrefix"`
	MaxSizeMB     int    `mapstructure:"maxSizeMB"`
	MaxBackups    int    `mapstructure:"maxBackups"`
	MaxAgeDays    int    `mapstructure:"maxAgeDays"`
	Compress      bool   `mapstructure:"compress"`
}

// 全局配置实例
var GlobalConfig = Default()

// Default 返回内置默认配置
func Default() Config {
	return Config{
		Node: NodeConfig{Name: "th-sensor"},
		Serial: SerialConfig{
			RadioPort:         "/dev/ttyACM0",
			RadioBaudRate:     19200,
			ConsoleBaudRate:   9600,
			ReadTimeoutMillis: int(constants.DefaultReadTimeout / time.Millisecond),
		},
		NVM: NVMConfig{
			SettleDelayMillis: int(constants.DefaultNVMSettleDelay / time.Millisecond),
			WriteAttempts:     constants.DefaultWriteAttempts,
		},
		Provisioning: ProvisioningConfig{
			SaveGuard:       constants.SaveGuardAll,
			Restamp:         constants.RestampAlways,
			PollDelayMillis: int(constants.DefaultConsolePollDelay / time.Millisecond),
		},
		Link: LinkConfig{
			FrequencyPlan:         constants.DefaultFrequencyPlan,
			MinPollIntervalSecond: constants.DefaultMinPollInterval,
			DataRate:              constants.DefaultDataRate,
			ErrorThreshold:        constants.DefaultErrorThreshold,
			FailurePauseMillis:    int(constants.DefaultFailurePause / time.Millisecond),
			JoinTimeoutSeconds:    int(constants.DefaultJoinTimeout / time.Second),
			TxTimeoutSeconds:      int(constants.DefaultTxTimeout / time.Second),
		},
		DutyCycle: DutyCycleConfig{IntervalSeconds: int(constants.DefaultDutyCycle / time.Second)},
		Sensor:    SensorConfig{Mode: "fixed", Temperature: 21.0, Humidity: 50.0},
		HTTPAPIServer: HTTPAPIServerConfig{
			Host: "127.0.0.1",
			Port: 7055,
		},
		Redis: RedisConfig{
			Address:      "127.0.0.1:6379",
			PoolSize:     2,
			DialTimeout:  5,
			ReadTimeout:  3,
			WriteTimeout: 3,
			KeyPrefix:    "sensor-node:credentials:",
		},
		Logger: LoggerConfig{
			Level:         "info",
			Format:        "text",
			EnableConsole: true,
			FileDir:       "./logs",
			FilePrefix:    "sensor-node",
			MaxSizeMB:     10,
			MaxBackups:    5,
			MaxAgeDays:    30,
		},
	}
}

// Load 加载配置文件，未出现的键保持默认值
func Load(configPath string) error {
	cfg, err := Read(configPath)
	if err != nil {
		return err
	}
	GlobalConfig = cfg
	return nil
}

// Read 读取配置文件但不修改全局配置
func Read(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 检查配置是否自洽
func (c Config) Validate() error {
	if c.Serial.RadioPort == "" {
		return fmt.Errorf("invalid serial.radioPort: must not be empty")
	}
	if _, ok := constants.BandIndex[c.Link.FrequencyPlan]; !ok {
		return fmt.Errorf("invalid link.frequencyPlan: unknown plan %q", c.Link.FrequencyPlan)
	}
	switch c.Provisioning.SaveGuard {
	case constants.SaveGuardAll, constants.SaveGuardLegacy:
	default:
		return fmt.Errorf("invalid provisioning.saveGuard: must be %q or %q", constants.SaveGuardAll, constants.SaveGuardLegacy)
	}
	switch c.Provisioning.Restamp {
	case constants.RestampAlways, constants.RestampGuarded:
	default:
		return fmt.Errorf("invalid provisioning.restamp: must be %q or %q", constants.RestampAlways, constants.RestampGuarded)
	}
	switch c.Sensor.Mode {
	case "fixed", "none":
	default:
		return fmt.Errorf("invalid sensor.mode: must be \"fixed\" or \"none\"")
	}
	if c.Link.ErrorThreshold < 0 {
		return fmt.Errorf("invalid link.errorThreshold: must be >= 0")
	}
	if c.NVM.WriteAttempts < 1 {
		return fmt.Errorf("invalid nvm.writeAttempts: must be >= 1")
	}
	if c.DutyCycle.IntervalSeconds <= 0 {
		return fmt.Errorf("invalid dutyCycle.intervalSeconds: must be > 0")
	}
	if c.HTTPAPIServer.Enabled && (c.HTTPAPIServer.Port < 1 || c.HTTPAPIServer.Port > 65535) {
		return fmt.Errorf("invalid httpApiServer.port: must be in range 1..65535")
	}
	return nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return &GlobalConfig
}

// FormatHTTPAddress 格式化HTTP服务器地址为host:port格式
func (c Config) FormatHTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.HTTPAPIServer.Host, c.HTTPAPIServer.Port)
}

// 以下为毫秒/秒配置到time.Duration的换算

func (c SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMillis) * time.Millisecond
}

func (c NVMConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMillis) * time.Millisecond
}

func (c ProvisioningConfig) PollDelay() time.Duration {
	return time.Duration(c.PollDelayMillis) * time.Millisecond
}

func (c LinkConfig) FailurePause() time.Duration {
	return time.Duration(c.FailurePauseMillis) * time.Millisecond
}

func (c LinkConfig) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutSeconds) * time.Second
}

func (c LinkConfig) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutSeconds) * time.Second
}

func (c DutyCycleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
