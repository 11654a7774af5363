package multistream

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/dep2p/go-multiselect/pkg/types"
)

// Negotiated 协商完成后的流
//
// 读写直接转发到底层流。协商阶段多读入缓冲区的字节会先交付给应用。
//
// 对于 V1Lazy 的乐观路径，Negotiated 额外持有：
//   - 尚未发出的头部与协议提议帧，在第一次 Write / Flush / Close 时与应用数据一起写出；
//   - 待确认状态：第一次 Read（或 Complete）先消费并校验监听方回显的头部与协议，
//     远端回复 na 时返回 KindLazyRejected 错误而不是数据。
//
// 读与写可以分别在两个 goroutine 中并发进行。IsConfirmed 不等待进行中的 Read。
type Negotiated struct {
	protocol types.ProtocolID
	conn     io.ReadWriter

	// 远端已确认协议，不受 rmu 保护
	confirmed atomic.Bool

	rmu            sync.Mutex
	r              *bufio.Reader
	mio            *MessageIO
	expecting      bool
	headerReceived bool

	wmu     sync.Mutex
	pending []byte

	errMu sync.Mutex
	err   error
}

// newCompleted 创建已确认的协商流
func newCompleted(mio *MessageIO, protocol types.ProtocolID) *Negotiated {
	n := &Negotiated{
		protocol: protocol,
		conn:     mio.rw,
		r:        mio.r,
	}
	n.confirmed.Store(true)
	return n
}

// newExpecting 创建待确认的协商流，mio 写缓冲区中的帧尚未发出
func newExpecting(mio *MessageIO, protocol types.ProtocolID) *Negotiated {
	pending := mio.wbuf
	mio.wbuf = nil
	return &Negotiated{
		protocol:  protocol,
		conn:      mio.rw,
		r:         mio.r,
		mio:       mio,
		expecting: true,
		pending:   pending,
	}
}

// Protocol 返回协商确定的协议
func (n *Negotiated) Protocol() types.ProtocolID {
	return n.protocol
}

// Read 实现 io.Reader
func (n *Negotiated) Read(p []byte) (int, error) {
	n.rmu.Lock()
	defer n.rmu.Unlock()

	if err := n.failure(); err != nil {
		return 0, err
	}
	if n.expecting {
		if err := n.awaitConfirmation(); err != nil {
			return 0, err
		}
	}

	if n.r != nil {
		if n.r.Buffered() > 0 {
			return n.r.Read(p)
		}
		n.r = nil
	}
	return n.conn.Read(p)
}

// Write 实现 io.Writer
//
// 待发送的协商帧与 p 合并为一次底层写入。
func (n *Negotiated) Write(p []byte) (int, error) {
	n.wmu.Lock()
	defer n.wmu.Unlock()

	if err := n.failure(); err != nil {
		return 0, err
	}
	if len(n.pending) == 0 {
		return n.conn.Write(p)
	}

	pendingLen := len(n.pending)
	buf := append(n.pending, p...)
	written, err := n.conn.Write(buf)
	if err != nil {
		if written < pendingLen {
			n.pending = buf[written:pendingLen]
			return 0, err
		}
		n.pending = nil
		return written - pendingLen, err
	}
	n.pending = nil
	return len(p), nil
}

// Flush 写出待发送的协商帧，并在底层支持时刷新底层流
func (n *Negotiated) Flush() error {
	n.wmu.Lock()
	defer n.wmu.Unlock()
	return n.flushLocked()
}

func (n *Negotiated) flushLocked() error {
	if len(n.pending) > 0 {
		written, err := n.conn.Write(n.pending)
		if err != nil {
			n.pending = n.pending[written:]
			return err
		}
		n.pending = nil
	}
	if f, ok := n.conn.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close 写出待发送的协商帧后关闭底层流
//
// 不等待远端确认乐观协商的协议。
func (n *Negotiated) Close() error {
	err := n.Flush()
	if c, ok := n.conn.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// Complete 等待协商最终确认
//
// 对已确认的流立即返回；对乐观协商的流，写出待发送帧并读取远端回显。
func (n *Negotiated) Complete() error {
	n.rmu.Lock()
	defer n.rmu.Unlock()

	if err := n.failure(); err != nil {
		return err
	}
	if n.expecting {
		return n.awaitConfirmation()
	}
	return nil
}

// IsConfirmed 远端是否已确认协议
func (n *Negotiated) IsConfirmed() bool {
	return n.confirmed.Load() && n.failure() == nil
}

// awaitConfirmation 消费监听方的头部与协议回显，调用方持有 rmu
func (n *Negotiated) awaitConfirmation() error {
	if err := n.Flush(); err != nil {
		return n.fail(ioError(err))
	}

	for n.expecting {
		msg, err := n.mio.ReadMessage()
		if err != nil {
			return n.fail(err)
		}

		switch m := msg.(type) {
		case Header:
			if n.headerReceived {
				return n.fail(stateError("duplicate header"))
			}
			n.headerReceived = true

		case Protocol:
			if m.IsNA() {
				log.Debug("乐观协商被拒绝", "protocol", string(n.protocol))
				return n.fail(&NegotiationError{
					Kind: KindLazyRejected,
					Err:  fmt.Errorf("remote does not support %s", n.protocol),
				})
			}
			if m.ID != n.protocol {
				return n.fail(stateError("expected echo of %s, got %s", n.protocol, m.ID))
			}
			log.Debug("乐观协商已确认", "protocol", string(n.protocol))
			n.expecting = false
			n.mio = nil
			n.confirmed.Store(true)

		default:
			return n.fail(stateError("unexpected %T", msg))
		}
	}
	return nil
}

func (n *Negotiated) fail(err error) error {
	n.errMu.Lock()
	defer n.errMu.Unlock()
	if n.err == nil {
		n.err = err
	}
	return n.err
}

func (n *Negotiated) failure() error {
	n.errMu.Lock()
	defer n.errMu.Unlock()
	return n.err
}
