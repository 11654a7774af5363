package multistream

// Version 协商版本，仅决定拨号方策略，两种版本的线路格式完全相同
type Version int

const (
	// V1 标准 multistream-select 1.0.0：每个提议都等待确认
	V1 Version = iota

	// V1Lazy 仅有一个候选协议时，拨号方不等待确认直接视为协商完成，
	// 协商帧与第一次应用数据一起发送（0-RTT）。
	// 候选协议多于一个时退化为 V1。
	V1Lazy
)

// String 返回版本名称
func (v Version) String() string {
	switch v {
	case V1:
		return "V1"
	case V1Lazy:
		return "V1Lazy"
	default:
		return "unknown"
	}
}

// HeaderLine 返回该版本对应的头部
func (v Version) HeaderLine() HeaderLine {
	return HeaderV1
}
