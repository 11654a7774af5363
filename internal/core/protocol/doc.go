// Package protocol 实现协议注册与协商服务
//
// # 核心功能
//
// 1. 协议注册表 (Registry)
//   - 管理协议 ID 与处理器的映射
//   - 作为监听方支持的协议集合，按注册顺序应答 ls
//
// 2. 协议协商器 (Negotiator)
//   - 拨号方：Select / SelectWithPeer，支持乐观协商与 ls 预查询
//   - 监听方：Handle / Serve，协商后分发给处理器
//   - WebRTC 数据通道：NegotiateDataChannel / SelectDataChannel
//   - 超时与取消：SetDeadline 或关闭流
//
// 3. 指标 (Metrics)
//   - mss_negotiations_total{role,result}
//   - mss_negotiation_duration_seconds{role}
//
// # 快速开始
//
//	registry := protocol.NewRegistry()
//	registry.Register("/echo/1.0.0", func(s *multistream.Negotiated) {
//	    defer s.Close()
//	    io.Copy(s, s)
//	})
//
//	negotiator, _ := protocol.NewNegotiator(protocol.DefaultConfig(), registry, nil)
//
//	// 监听方
//	go negotiator.Serve(ctx, conn)
//
//	// 拨号方
//	proto, stream, err := negotiator.Select(ctx, conn, []types.ProtocolID{"/echo/1.0.0"})
package protocol
