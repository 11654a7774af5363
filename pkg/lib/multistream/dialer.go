package multistream

import (
	"io"

	"github.com/dep2p/go-multiselect/internal/util/logger"
	"github.com/dep2p/go-multiselect/pkg/types"
)

var log = logger.Logger("multistream")

// dialerState 拨号方状态
type dialerState int

const (
	dialerSendHeader dialerState = iota
	dialerSendProtocol
	dialerFlushProtocol
	dialerAwaitProtocol
	dialerDone
)

// dialer 拨号方状态机
//
// 所有半帧状态都保存在自有的 MessageIO 中，丢弃 dialer 不会影响其他协商。
type dialer struct {
	io        *MessageIO
	version   Version
	protocols []types.ProtocolID
	next      int

	state          dialerState
	current        types.ProtocolID
	headerReceived bool
}

func newDialer(rw io.ReadWriter, protocols []types.ProtocolID, version Version) *dialer {
	return &dialer{
		io:        NewMessageIO(rw),
		version:   version,
		protocols: protocols,
		state:     dialerSendHeader,
	}
}

// DialerSelect 以拨号方身份在 rw 上协商协议
//
// protocols 按偏好顺序排列。头部与第一个提议在一次写入中发出；
// 对方回显提议即协商成功，回复 na 则尝试下一个候选，候选耗尽返回 KindExhausted 错误。
//
// 使用 V1Lazy 且只有一个候选协议时，不等待任何响应立即返回，
// 协商帧暂存于返回的 Negotiated 中，随第一次写入一起发出，确认在第一次读取时完成。
//
// 协商失败时调用方负责关闭 rw。
func DialerSelect(rw io.ReadWriter, protocols []types.ProtocolID, version Version) (types.ProtocolID, *Negotiated, error) {
	if len(protocols) == 0 {
		return "", nil, &NegotiationError{Kind: KindExhausted, Err: ErrNoProtocols}
	}
	return newDialer(rw, protocols, version).run()
}

// SelectOneOf 以 V1 协商 protocols 中的一个协议
func SelectOneOf(rw io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *Negotiated, error) {
	return DialerSelect(rw, protocols, V1)
}

// SelectProtoOrFail 以 V1 协商单个协议
func SelectProtoOrFail(rw io.ReadWriter, protocol types.ProtocolID) (*Negotiated, error) {
	_, n, err := DialerSelect(rw, []types.ProtocolID{protocol}, V1)
	return n, err
}

// DialerSelectLS 先发送 ls 获取对方支持的协议列表，再只提议双方都支持的协议
//
// 列表中没有共同协议时直接返回 KindExhausted 错误，不再发送提议。
func DialerSelectLS(rw io.ReadWriter, protocols []types.ProtocolID) (types.ProtocolID, *Negotiated, error) {
	if len(protocols) == 0 {
		return "", nil, &NegotiationError{Kind: KindExhausted, Err: ErrNoProtocols}
	}

	d := newDialer(rw, protocols, V1)
	remote, err := d.listProtocols()
	if err != nil {
		return "", nil, err
	}

	supported := make(map[types.ProtocolID]struct{}, len(remote))
	for _, p := range remote {
		supported[p] = struct{}{}
	}
	common := make([]types.ProtocolID, 0, len(protocols))
	for _, p := range protocols {
		if _, ok := supported[p]; ok {
			common = append(common, p)
		}
	}
	if len(common) == 0 {
		log.Debug("对方不支持任何候选协议", "local", protocols, "remote", remote)
		return "", nil, exhaustedError()
	}

	d.protocols = common
	d.current, _ = d.nextProtocol()
	d.state = dialerSendProtocol
	return d.run()
}

// listProtocols 发送头部与 ls，返回对方的协议列表
func (d *dialer) listProtocols() ([]types.ProtocolID, error) {
	if err := d.io.WriteMessage(Header{Line: d.version.HeaderLine()}); err != nil {
		return nil, err
	}
	if err := d.io.WriteMessage(Protocol{ID: ProtocolLS}); err != nil {
		return nil, err
	}
	if err := d.io.Flush(); err != nil {
		return nil, err
	}

	for {
		msg, err := d.io.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch m := msg.(type) {
		case Header:
			if d.headerReceived {
				return nil, stateError("duplicate header")
			}
			d.headerReceived = true
		case Protocols:
			return m.IDs, nil
		default:
			return nil, stateError("expected protocol list, got %T", msg)
		}
	}
}

func (d *dialer) nextProtocol() (types.ProtocolID, bool) {
	if d.next >= len(d.protocols) {
		return "", false
	}
	p := d.protocols[d.next]
	d.next++
	return p, true
}

func (d *dialer) hasMore() bool {
	return d.next < len(d.protocols)
}

// lazy 是否对当前提议采用乐观协商
func (d *dialer) lazy() bool {
	return d.version == V1Lazy && len(d.protocols) == 1
}

func (d *dialer) run() (types.ProtocolID, *Negotiated, error) {
	for {
		switch d.state {
		case dialerSendHeader:
			if err := d.io.WriteMessage(Header{Line: d.version.HeaderLine()}); err != nil {
				return "", nil, err
			}
			p, ok := d.nextProtocol()
			if !ok {
				return "", nil, exhaustedError()
			}
			d.current = p
			d.state = dialerSendProtocol

		case dialerSendProtocol:
			if err := d.io.WriteMessage(Protocol{ID: d.current}); err != nil {
				return "", nil, err
			}
			log.Debug("拨号方提议协议", "protocol", string(d.current))

			if d.lazy() && !d.hasMore() {
				log.Debug("拨号方乐观选定协议", "protocol", string(d.current))
				d.state = dialerDone
				return d.current, newExpecting(d.io, d.current), nil
			}
			d.state = dialerFlushProtocol

		case dialerFlushProtocol:
			if err := d.io.Flush(); err != nil {
				return "", nil, err
			}
			d.state = dialerAwaitProtocol

		case dialerAwaitProtocol:
			msg, err := d.io.ReadMessage()
			if err != nil {
				return "", nil, err
			}

			switch m := msg.(type) {
			case Header:
				if d.headerReceived {
					return "", nil, stateError("duplicate header")
				}
				d.headerReceived = true

			case Protocol:
				if m.ID == d.current {
					log.Debug("拨号方收到协议确认", "protocol", string(d.current))
					d.state = dialerDone
					return d.current, newCompleted(d.io, d.current), nil
				}
				if !m.IsNA() {
					return "", nil, stateError("expected echo of %s, got %s", d.current, m.ID)
				}
				log.Debug("拨号方提议被拒绝", "protocol", string(d.current))
				p, ok := d.nextProtocol()
				if !ok {
					return "", nil, exhaustedError()
				}
				d.current = p
				d.state = dialerSendProtocol

			default:
				return "", nil, stateError("unexpected %T", msg)
			}

		default:
			panic("multistream: dialer used after completion")
		}
	}
}
