// Package tokenstore はセッション中のプロバイダートークンを保持する。
// プロセス終了とともに破棄され、永続化はしない。
package tokenstore

import (
	"sync"

	"github.com/UVU-Open-Source/zybooks-auto-grader/internal/model"
)

// Memory はインメモリのトークンストア。複数goroutineから安全に使用できる。
type Memory struct {
	mu     sync.RWMutex
	tokens map[model.Provider]string
}

// NewMemory はMemoryを生成する。空でない初期トークンのみ登録する。
func NewMemory(initial map[model.Provider]string) *Memory {
	m := &Memory{tokens: make(map[model.Provider]string)}
	for p, token := range initial {
		if token != "" {
			m.tokens[p] = token
		}
	}
	return m
}

// Get は保存済みトークンを返す。
func (m *Memory) Get(provider model.Provider) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[provider]
	return token, ok
}

// Save はトークンを保存する。空文字列の場合は削除と同じ扱い。
func (m *Memory) Save(provider model.Provider, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		delete(m.tokens, provider)
		return
	}
	m.tokens[provider] = token
}

// Delete はトークンを削除する。
func (m *Memory) Delete(provider model.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, provider)
}
