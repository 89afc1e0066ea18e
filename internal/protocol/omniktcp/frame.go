package omniktcp

import "errors"

// Frame 一帧已通过结构校验的应答数据
type Frame struct {
	MessageType  byte
	SerialNumber uint32 // 帧内重复序列号（两份一致后取第一份）
	Payload      []byte
}

var (
	ErrInvalidStartByte  = errors.New("invalid start byte")
	ErrInvalidEndByte    = errors.New("invalid end byte")
	ErrInvalidSeparator  = errors.New("invalid receiver separator")
	ErrShortPacket       = errors.New("short packet")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrSerialMismatch    = errors.New("serial number mismatch in reply")
	ErrTrailingGarbage   = errors.New("message starts with 0xFF but remainder is not strictly 0xFF")
	ErrUnknownMessage    = errors.New("unknown Omnik message type")
	ErrInvalidFieldValue = errors.New("invalid field value")
	ErrNoInformationData = errors.New("none of the messages contained an information reply")
)

// Diagnostic 解析过程中记录的非致命异常（协议容忍但值得上报）
type Diagnostic struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}
