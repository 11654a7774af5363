package protocol

import (
	"fmt"
	"sync"

	"github.com/dep2p/go-multiselect/pkg/interfaces"
	"github.com/dep2p/go-multiselect/pkg/lib/multistream"
	"github.com/dep2p/go-multiselect/pkg/types"
)

// StreamHandler 协商完成后的流处理器，处理器负责关闭流
type StreamHandler = interfaces.StreamHandler

// Registry 协议注册表
//
// 作为监听方支持的协议集合，Protocols 按注册顺序返回，用于应答 ls。
type Registry struct {
	mu       sync.RWMutex
	handlers map[types.ProtocolID]StreamHandler
	order    []types.ProtocolID
}

var (
	_ multistream.ProtocolSet     = (*Registry)(nil)
	_ interfaces.ProtocolRegistry = (*Registry)(nil)
)

// NewRegistry 创建协议注册表
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[types.ProtocolID]StreamHandler),
	}
}

// Register 注册协议，handler 可以为 nil（仅参与协商）
func (r *Registry) Register(protocolID types.ProtocolID, handler StreamHandler) error {
	if protocolID == multistream.ProtocolNA || protocolID == multistream.ProtocolLS {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidProtocolID, protocolID)
	}
	if err := multistream.ValidateProtocol(protocolID); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProtocolID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[protocolID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProtocol, protocolID)
	}

	r.handlers[protocolID] = handler
	r.order = append(r.order, protocolID)
	return nil
}

// Unregister 注销协议
func (r *Registry) Unregister(protocolID types.ProtocolID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[protocolID]; !exists {
		return fmt.Errorf("%w: %s", ErrProtocolNotRegistered, protocolID)
	}

	delete(r.handlers, protocolID)
	for i, p := range r.order {
		if p == protocolID {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Handler 获取协议处理器
func (r *Registry) Handler(protocolID types.ProtocolID) (StreamHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[protocolID]
	return handler, ok
}

// Supports 协议是否已注册
func (r *Registry) Supports(protocolID types.ProtocolID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.handlers[protocolID]
	return ok
}

// Protocols 按注册顺序返回所有协议
func (r *Registry) Protocols() []types.ProtocolID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	protocols := make([]types.ProtocolID, len(r.order))
	copy(protocols, r.order)
	return protocols
}

// Clear 清空所有注册（用于测试）
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = make(map[types.ProtocolID]StreamHandler)
	r.order = nil
}
