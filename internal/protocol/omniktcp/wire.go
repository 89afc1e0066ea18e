package omniktcp

// Omnik TCP 私有协议帧格式：
// 0x68 | len(1) | sep(1) | type(1) | serialLE[4] | serialLE[4] | payload[len] | sum(1) | 0x16
// len 字段仅计 payload 字节数，不含帧头；sum 为起始标记之后、校验字节之前
// 所有字节的累加和（mod 256）。payload 内数值字段为大端，帧头序列号为小端。
const (
	MessageStart = 0x68 // 帧起始标记
	MessageEnd   = 0x16 // 帧结束标记

	MessageSendSep = 0x40 // 下行（请求）分隔符
	MessageRecvSep = 0x41 // 上行（应答）分隔符

	MessageTypeInformationRequest = 0x30 // 遥测查询请求（仅下行）
	MessageTypeInformationReply   = 0xB0 // 遥测应答
	MessageTypeString             = 0xF0 // 纯文本消息（设备偶发上报）

	// 帧头开销：len(1)+sep(1)+type(1) + 序列号重复两次(2*4) + 校验(1)
	messageHeaderSize = 3 + 2*4 + 1

	uint16Max = 0xFFFF // u16 字段"未填充"哨兵值

	// 逆变器离线时 temperature 字段的哨兵原始值
	temperatureOffline = 65326
)

// 应答缓冲区末尾允许出现的填充字节
const trailingPadding = 0xFF

// checksum8 累加校验（低8位），覆盖范围由调用方裁剪
func checksum8(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}
