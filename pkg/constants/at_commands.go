// Package constants 定义了传感器节点中使用的各种常量
package constants

import "time"

// ============================================================================
// 无线模块AT命令
// ============================================================================

const (
	ATLineEnding = "\r\n" // 发往无线模块的命令结束符

	CmdPing       = "AT"            // 模块存活检查
	CmdBand       = "AT+BAND"       // 频段设置 AT+BAND=<index>
	CmdAppEUI     = "AT+APPEUI"     // AT+APPEUI=<16 hex>
	CmdAppKey     = "AT+AK"         // AT+AK=<32 hex>
	CmdDevEUI     = "AT+DEVEUI"     // AT+DEVEUI=<16 hex>
	CmdJoin       = "AT+JOIN"       // OTAA入网
	CmdDataRate   = "AT+DR"         // AT+DR=<dr>
	CmdPollPeriod = "AT+MSINTERVAL" // 最小下行轮询间隔（秒）
	CmdConfirmTx  = "AT+CTX"        // 确认帧上行 AT+CTX <len>
	CmdUnconfTx   = "AT+UTX"        // 非确认帧上行 AT+UTX <len>
	CmdNVM        = "AT$NVM"        // 非易失存储读写 AT$NVM <addr>[,<value>]
	CmdLockKeys   = "AT$APKACCESS"  // 锁定AppKey读取
)

// 无线模块响应标记
const (
	RespOK         = "+OK"
	RespErr        = "+ERR"
	RespJoinOK     = "+EVENT=1,1"
	RespJoinFailed = "+EVENT=1,0"
	RespAck        = "+ACK"
	RespNoAck      = "+NOACK"
)

// 频段名称到模块频段索引
var BandIndex = map[string]int{
	"AS923": 0,
	"AU915": 1,
	"CN470": 2,
	"CN779": 3,
	"EU433": 4,
	"EU868": 5,
	"KR920": 6,
	"IN865": 7,
	"US915": 8,
}

// 默认时序
const (
	DefaultNVMSettleDelay = 100 * time.Millisecond // 存储命令发出后的固定等待
	DefaultReadTimeout    = 100 * time.Millisecond // 串口单次读取超时
	DefaultJoinTimeout    = 60 * time.Second
	DefaultTxTimeout      = 20 * time.Second
	DefaultCommandTimeout = 2 * time.Second

	DrainReadTimeout = 5 * time.Millisecond // 发送命令前清空残留输入时的读超时
	DrainMaxBytes    = 4096
)
