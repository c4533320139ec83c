// Package credentials 保存节点入网所需的三个凭据。
// 凭据只存在于内存中，断电后需要重新输入或从缓存恢复。
package credentials

import (
	"context"
	"strings"
	"sync"
)

// Snapshot 凭据的只读副本
type Snapshot struct {
	DevEUI   string `json:"devEui"`
	AppEUI   string `json:"appEui"`
	AppKey   string `json:"appKey"`
	Complete bool   `json:"complete"`
}

// Empty 三个凭据都没有设置
func (s Snapshot) Empty() bool {
	return s.DevEUI == "" && s.AppEUI == "" && s.AppKey == ""
}

// Cache 凭据的外部缓存，key为节点标识
type Cache interface {
	Load(ctx context.Context, deviceKey string) (Snapshot, error)
	Save(ctx context.Context, deviceKey string, snap Snapshot) error
}

// Store 线程安全的凭据存储。已设置的值在本次启动内不会被清空，只能被新的合法值覆盖。
type Store struct {
	mu       sync.RWMutex
	devEUI   string
	appEUI   string
	appKey   string
	complete bool
}

// NewStore 创建空的凭据存储
func NewStore() *Store {
	return &Store{}
}

// SetDevEUI 保存DevEUI，v可以带有行结束符
func (s *Store) SetDevEUI(v string) {
	s.mu.Lock()
	s.devEUI = trimTerminator(v)
	s.mu.Unlock()
}

// SetAppEUI 保存AppEUI
func (s *Store) SetAppEUI(v string) {
	s.mu.Lock()
	s.appEUI = trimTerminator(v)
	s.mu.Unlock()
}

// SetAppKey 保存AppKey
func (s *Store) SetAppKey(v string) {
	s.mu.Lock()
	s.appKey = trimTerminator(v)
	s.mu.Unlock()
}

// DevEUI 返回DevEUI
func (s *Store) DevEUI() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devEUI
}

// AppEUI 返回AppEUI
func (s *Store) AppEUI() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appEUI
}

// AppKey 返回AppKey
func (s *Store) AppKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appKey
}

// MarkComplete 标记配置完成
func (s *Store) MarkComplete() {
	s.mu.Lock()
	s.complete = true
	s.mu.Unlock()
}

// Complete 配置是否完成
func (s *Store) Complete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.complete
}

// Snapshot 返回当前凭据的副本
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		DevEUI:   s.devEUI,
		AppEUI:   s.appEUI,
		AppKey:   s.appKey,
		Complete: s.complete,
	}
}

// Restore 从缓存副本恢复，空值不会覆盖已有的值
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.DevEUI != "" {
		s.devEUI = snap.DevEUI
	}
	if snap.AppEUI != "" {
		s.appEUI = snap.AppEUI
	}
	if snap.AppKey != "" {
		s.appKey = snap.AppKey
	}
	s.complete = s.complete || snap.Complete
}

func trimTerminator(v string) string {
	return strings.TrimRight(v, "\r\n")
}
