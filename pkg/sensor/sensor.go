// Package sensor 温湿度传感器接口。读数不做任何校验，NaN或越界值原样传递。
package sensor

import (
	"math"
	"sync"
)

// Sensor 温湿度传感器
type Sensor interface {
	ReadTemperature() float32
	ReadHumidity() float32
}

// Fixed 返回固定读数的传感器，用于模拟运行和测试
type Fixed struct {
	mu          sync.RWMutex
	temperature float32
	humidity    float32
}

// NewFixed 创建固定读数传感器
func NewFixed(temperature, humidity float32) *Fixed {
	return &Fixed{temperature: temperature, humidity: humidity}
}

// Unavailable 模拟未接入的传感器，两个读数都是NaN
func Unavailable() *Fixed {
	nan := float32(math.NaN())
	return NewFixed(nan, nan)
}

// Set 更新读数
func (f *Fixed) Set(temperature, humidity float32) {
	f.mu.Lock()
	f.temperature, f.humidity = temperature, humidity
	f.mu.Unlock()
}

func (f *Fixed) ReadTemperature() float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.temperature
}

func (f *Fixed) ReadHumidity() float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.humidity
}
