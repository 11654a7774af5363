// Package multistream 实现 multistream-select 1.0.0 协议协商
//
// 在一条原始双向字节流上，拨号方与监听方就随后使用的应用协议达成一致：
// https://github.com/multiformats/multistream-select
//
// # 线路格式
//
// 每条消息为 <uvarint 长度><负载>：
//
//	头部:     /multistream/1.0.0\n
//	单个协议: <协议名>\n        （包括保留值 na 与 ls）
//	协议列表: <uvarint 数量> 然后每项 <uvarint 长度><协议名>\n
//
// 单帧负载不超过 MaxFrameSize 字节，超出的长度前缀在读取负载之前即被拒绝。
//
// # 拨号方
//
//	proto, stream, err := multistream.DialerSelect(conn, []types.ProtocolID{"/a/1.0.0", "/b/1.0.0"}, multistream.V1)
//
// 使用 V1Lazy 且只有一个候选协议时 DialerSelect 立即返回，协商帧随第一次写入发出，
// 远端的确认在第一次读取时校验；远端拒绝时读取返回 ErrLazyRejected。
//
// # 监听方
//
//	proto, stream, err := multistream.ListenerSelect(conn, []types.ProtocolID{"/a/1.0.0"})
//
// # 错误
//
// 所有失败都以 *NegotiationError 返回，可用 errors.Is 判断类别：
// ErrParse、ErrProtocolsExhausted、ErrStateMismatch、ErrStreamIO、ErrLazyRejected。
//
// # 已知限制
//
// 名为 "na" 或 "ls" 的真实协议与控制值在线路上无法区分。
//
// 本包不设置任何超时，整体握手期限由调用方通过连接 deadline 控制。
package multistream
