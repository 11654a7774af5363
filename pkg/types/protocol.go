package types

import (
	"strings"
)

// ProtocolID 协议标识符
//
// 按字节比较，常见形式为 /name/version，例如 /ipfs/id/1.0.0。
type ProtocolID string

// String 返回协议 ID 的字符串表示
func (p ProtocolID) String() string {
	return string(p)
}

// IsEmpty 检查协议 ID 是否为空
func (p ProtocolID) IsEmpty() bool {
	return p == ""
}

// Version 返回最后一段路径，通常是版本号
func (p ProtocolID) Version() string {
	s := string(p)
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Name 返回去掉版本段后的协议名
func (p ProtocolID) Name() string {
	s := string(p)
	if i := strings.LastIndex(s, "/"); i > 0 {
		return s[:i]
	}
	return s
}

// ProtocolIDs 将字符串转换为协议 ID 列表
func ProtocolIDs(ids ...string) []ProtocolID {
	out := make([]ProtocolID, len(ids))
	for i, id := range ids {
		out[i] = ProtocolID(id)
	}
	return out
}

// ProtocolStrings 将协议 ID 列表转换为字符串
func ProtocolStrings(ids []ProtocolID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
