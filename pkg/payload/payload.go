// Package payload 上行帧负载：4字节温度 + 4字节湿度，均为本机字节序的float32。
package payload

import (
	"encoding/binary"
	"math"
)

// Size 负载长度
const Size = 8

// Encode 按本机字节序写入温度和湿度
func Encode(temperature, humidity float32) [Size]byte {
	var b [Size]byte
	binary.NativeEndian.PutUint32(b[0:4], math.Float32bits(temperature))
	binary.NativeEndian.PutUint32(b[4:8], math.Float32bits(humidity))
	return b
}

// Decode Encode的逆过程
func Decode(b [Size]byte) (temperature, humidity float32) {
	temperature = math.Float32frombits(binary.NativeEndian.Uint32(b[0:4]))
	humidity = math.Float32frombits(binary.NativeEndian.Uint32(b[4:8]))
	return temperature, humidity
}
