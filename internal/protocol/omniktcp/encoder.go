package omniktcp

import "encoding/binary"

// informationRequestCommand 遥测查询的固定子命令
var informationRequestCommand = []byte{0x01, 0x00}

// packMessage 构造一帧下行数据（与 unpackFrame 对应）。
// body = len | sendSep | type | serialLE*2 | message，随后包上起始标记、校验与结束标记。
func packMessage(messageType byte, serialNumber uint32, message []byte) []byte {
	body := make([]byte, 0, messageHeaderSize+len(message))
	body = append(body, byte(len(message)), MessageSendSep, messageType)

	serial := make([]byte, 4)
	binary.LittleEndian.PutUint32(serial, serialNumber)
	body = append(body, serial...)
	body = append(body, serial...)
	body = append(body, message...)

	sum := checksum8(body)

	frame := make([]byte, 0, len(body)+3)
	frame = append(frame, MessageStart)
	frame = append(frame, body...)
	frame = append(frame, sum, MessageEnd)
	return frame
}

// BuildInformationRequest 构造遥测查询帧，设备以 INFORMATION_REPLY 应答
func BuildInformationRequest(serialNumber uint32) []byte {
	return packMessage(MessageTypeInformationRequest, serialNumber, informationRequestCommand)
}
