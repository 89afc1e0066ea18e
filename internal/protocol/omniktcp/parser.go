package omniktcp

import (
	"encoding/binary"
	"fmt"
)

// unpackFrame 校验并拆解单帧。frame 为起始标记之后、结束标记之前的完整切片
// （len 字段起，校验字节止），长度恰为 len+messageHeaderSize。
// 校验顺序：校验和 → 分隔符 → 双序列号一致性，任一失败立即返回。
func unpackFrame(frame []byte) (Frame, error) {
	sumPos := len(frame) - 1
	got := frame[sumPos]
	want := checksum8(frame[:sumPos])
	if got != want {
		return Frame{}, fmt.Errorf("%w: calculated %d got %d", ErrChecksumMismatch, want, got)
	}

	// frame[0] 为 len 字段，校验和覆盖后不再需要
	if frame[1] != MessageRecvSep {
		return Frame{}, fmt.Errorf("%w: 0x%02X", ErrInvalidSeparator, frame[1])
	}
	messageType := frame[2]

	serial0 := binary.LittleEndian.Uint32(frame[3:7])
	serial1 := binary.LittleEndian.Uint32(frame[7:11])
	if serial0 != serial1 {
		return Frame{}, fmt.Errorf("%w: %d != %d", ErrSerialMismatch, serial0, serial1)
	}

	return Frame{
		MessageType:  messageType,
		SerialNumber: serial0,
		Payload:      frame[11:sumPos],
	}, nil
}

// unpackFrames 以读游标遍历应答缓冲区并逐帧回调。
// 缓冲区可能背靠背包含多帧；末尾允许一段纯 0xFF 填充（设备在
// INFORMATION_REPLY 后追加 STRING 消息时观测到的垃圾尾巴）。
func unpackFrames(data []byte, fn func(Frame) error) error {
	off := 0
	for off < len(data) {
		start := data[off]
		off++

		if start == trailingPadding {
			for _, b := range data[off:] {
				if b != trailingPadding {
					return fmt.Errorf("%w: % X", ErrTrailingGarbage, data[off:])
				}
			}
			return nil
		}
		if start != MessageStart {
			return fmt.Errorf("%w: %d", ErrInvalidStartByte, start)
		}

		avail := len(data) - off
		if avail < 1 {
			return fmt.Errorf("%w: could only read 0 out of at least %d expected bytes from TCP stream",
				ErrShortPacket, messageHeaderSize)
		}
		need := int(data[off]) + messageHeaderSize
		if avail < need {
			return fmt.Errorf("%w: could only read %d out of %d expected bytes from TCP stream",
				ErrShortPacket, avail, need)
		}

		frame, err := unpackFrame(data[off : off+need])
		if err != nil {
			return err
		}
		if err := fn(frame); err != nil {
			return err
		}
		off += need

		if off >= len(data) {
			return fmt.Errorf("%w: missing end marker", ErrInvalidEndByte)
		}
		if data[off] != MessageEnd {
			return fmt.Errorf("%w: 0x%02X", ErrInvalidEndByte, data[off])
		}
		off++
	}
	return nil
}

// UnpackFrames 拆解缓冲区内的全部帧（无副作用，可重复调用）
func UnpackFrames(data []byte) ([]Frame, error) {
	var frames []Frame
	err := unpackFrames(data, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	return frames, err
}

// ParseInformationReply 解析一次完整应答，提取遥测数据。
// 协议不保证设备回显请求序列号，帧序列号与 serialNumber 不一致仅作为
// 诊断记录；帧内双序列号不一致则在 unpackFrame 中判为致命错误。
func ParseInformationReply(serialNumber uint32, data []byte) (*InformationReply, error) {
	var (
		info  *InformationReply
		diags []Diagnostic
	)

	err := unpackFrames(data, func(f Frame) error {
		if f.SerialNumber != serialNumber {
			diags = append(diags, Diagnostic{
				Field:  "serial_number",
				Detail: fmt.Sprintf("replied serial number %d not equal to request %d", f.SerialNumber, serialNumber),
			})
		}

		switch f.MessageType {
		case MessageTypeInformationReply:
			if info != nil {
				diags = append(diags, Diagnostic{
					Field:  "message",
					Detail: "device sent multiple INFORMATION_REPLY messages",
				})
				return nil
			}
			reply, err := decodeInformationReply(f.Payload)
			if err != nil {
				return err
			}
			info = reply
		case MessageTypeString:
			// 设备偶发的纯文本消息，记录后忽略
			diags = append(diags, Diagnostic{
				Field:  "message",
				Detail: fmt.Sprintf("device sent text message %q", string(f.Payload)),
			})
		default:
			return fmt.Errorf("%w: 0x%02X with contents % X", ErrUnknownMessage, f.MessageType, f.Payload)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if info == nil {
		return nil, ErrNoInformationData
	}
	info.Diagnostics = append(info.Diagnostics, diags...)
	return info, nil
}
