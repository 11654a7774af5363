package multistream

import (
	"io"

	"github.com/dep2p/go-multiselect/pkg/types"
)

// ProtocolSet 监听方支持的协议集合
type ProtocolSet interface {
	// Supports 协议是否受支持（按字节精确匹配）
	Supports(protocol types.ProtocolID) bool

	// Protocols 返回全部协议，用于应答 ls
	Protocols() []types.ProtocolID
}

// staticSet 基于切片的协议集合
type staticSet struct {
	list []types.ProtocolID
	set  map[types.ProtocolID]struct{}
}

// NewProtocolSet 从协议列表创建集合
func NewProtocolSet(protocols ...types.ProtocolID) ProtocolSet {
	s := &staticSet{
		list: protocols,
		set:  make(map[types.ProtocolID]struct{}, len(protocols)),
	}
	for _, p := range protocols {
		s.set[p] = struct{}{}
	}
	return s
}

func (s *staticSet) Supports(protocol types.ProtocolID) bool {
	_, ok := s.set[protocol]
	return ok
}

func (s *staticSet) Protocols() []types.ProtocolID {
	return s.list
}

// listenerState 监听方状态
type listenerState int

const (
	listenerRecvHeader listenerState = iota
	listenerSendHeader
	listenerRecvMessage
	listenerSendMessage
	listenerDone
)

type listener struct {
	io        *MessageIO
	supported ProtocolSet

	state    listenerState
	response Message
	settled  types.ProtocolID
}

// ListenerSelect 以监听方身份在 rw 上协商协议
func ListenerSelect(rw io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *Negotiated, error) {
	return ListenerNegotiate(rw, NewProtocolSet(protocols...))
}

// ListenerNegotiate 以监听方身份在 rw 上协商协议
//
// 回显拨号方的头部；对 ls 应答完整协议列表；受支持的提议原样回显并结束协商，
// 不支持的提议回复 na 并继续等待。本层不限制尝试次数也不设超时，
// 拨号方放弃时关闭流即可（返回 KindIO 错误）。
func ListenerNegotiate(rw io.ReadWriter, supported ProtocolSet) (types.ProtocolID, *Negotiated, error) {
	l := &listener{
		io:        NewMessageIO(rw),
		supported: supported,
		state:     listenerRecvHeader,
	}
	return l.run()
}

func (l *listener) run() (types.ProtocolID, *Negotiated, error) {
	for {
		switch l.state {
		case listenerRecvHeader:
			msg, err := l.io.ReadMessage()
			if err != nil {
				return "", nil, err
			}
			if _, ok := msg.(Header); !ok {
				return "", nil, stateError("expected header, got %T", msg)
			}
			l.state = listenerSendHeader

		case listenerSendHeader:
			if err := l.io.WriteMessage(Header{Line: HeaderV1}); err != nil {
				return "", nil, err
			}
			// 提议已经到达时头部回显与应答一起发出
			if l.io.r.Buffered() == 0 {
				if err := l.io.Flush(); err != nil {
					return "", nil, err
				}
			}
			l.state = listenerRecvMessage

		case listenerRecvMessage:
			msg, err := l.io.ReadMessage()
			if err != nil {
				return "", nil, err
			}

			switch m := msg.(type) {
			case Protocol:
				switch {
				case m.IsLS():
					l.response = Protocols{IDs: l.supported.Protocols()}
				case !m.IsNA() && l.supported.Supports(m.ID):
					log.Debug("监听方接受协议", "protocol", string(m.ID))
					l.response = m
					l.settled = m.ID
				default:
					log.Debug("监听方拒绝协议", "protocol", string(m.ID))
					l.response = Protocol{ID: ProtocolNA}
				}
			case Header:
				return "", nil, stateError("duplicate header")
			default:
				return "", nil, stateError("unexpected %T", msg)
			}
			l.state = listenerSendMessage

		case listenerSendMessage:
			if err := l.io.WriteMessage(l.response); err != nil {
				return "", nil, err
			}
			if err := l.io.Flush(); err != nil {
				return "", nil, err
			}
			if l.settled != "" {
				l.state = listenerDone
				return l.settled, newCompleted(l.io, l.settled), nil
			}
			l.state = listenerRecvMessage

		default:
			panic("multistream: listener used after completion")
		}
	}
}
