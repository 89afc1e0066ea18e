package omniktcp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// 遥测负载为定长大端布局（字段顺序与宽度由协议固定）：
// pad[3] | serial[16] | temp u16 | dcV u16*3 | dcC u16*3 | acC u16*3 | acV u16*3 |
// (freq u16 + power u16)*3 | todayE u16 | totalE u32 | hours u32 | active u16 |
// pad[4] | unknown u16 | pad[10] [| firmware[16] | pad[4] | firmwareSlave[16] | pad[4]]
const (
	tcpDataSize         = 3 + 16 + 2 + 6 + 6 + 6 + 6 + 12 + 2 + 4 + 4 + 2 + 4 + 2 + 10
	tcpFirmwareSize     = 16 + 4 + 16 + 4
	acOutputChannels    = 3
	serialNumberBytes   = 16
	firmwareStringBytes = 16
)

// 老固件缺失 padding0 之外的期望值，仅此一段有已知固定内容
var expectedPadding0 = []byte{0x81, 0x02, 0x01}

// InformationReply 一次遥测应答解码后的全部字段。
// 指针字段为 nil 表示该通道/读数未填充（原始值为哨兵）。
type InformationReply struct {
	SerialNumber      string     `json:"serial_number"`
	Temperature       *float64   `json:"temperature"`
	DCInputVoltage    []*float64 `json:"dc_input_voltage"`
	DCInputCurrent    []*float64 `json:"dc_input_current"`
	ACOutputCurrent   []*float64 `json:"ac_output_current"`
	ACOutputVoltage   []*float64 `json:"ac_output_voltage"`
	ACOutputFrequency []*float64 `json:"ac_output_frequency"`
	ACOutputPower     []*float64 `json:"ac_output_power"`
	SolarEnergyToday  float64    `json:"solar_energy_today"`
	SolarEnergyTotal  float64    `json:"solar_energy_total"`
	SolarHoursTotal   uint32     `json:"solar_hours_total"`
	InverterActive    bool       `json:"inverter_active"`
	Firmware          *string    `json:"firmware"`
	FirmwareSlave     *string    `json:"firmware_slave"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// payloadReader 在不可变切片上维护读游标，所有字段按声明顺序读出
type payloadReader struct {
	data  []byte
	off   int
	diags []Diagnostic
}

func (r *payloadReader) bytes(n int) []byte {
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *payloadReader) u16() uint16 {
	return binary.BigEndian.Uint16(r.bytes(2))
}

func (r *payloadReader) u32() uint32 {
	return binary.BigEndian.Uint32(r.bytes(4))
}

// stringField 定宽字节串字段，去除尾部 NUL 后按 UTF-8 解码
func (r *payloadReader) stringField(name string, n int) (string, error) {
	raw := bytes.TrimRight(r.bytes(n), "\x00")
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8: % X", ErrInvalidFieldValue, name, raw)
	}
	return string(raw), nil
}

// padding 预期全零的填充段；非零内容可能是其他固件变体的未知字段，记录不报错
func (r *payloadReader) padding(name string, n int) {
	p := r.bytes(n)
	for _, b := range p {
		if b != 0 {
			r.diags = append(r.diags, Diagnostic{
				Field:  name,
				Detail: fmt.Sprintf("unexpected content % X", p),
			})
			return
		}
	}
}

// 哨兵与定标映射集中于此，固件变体若引入新哨兵只需改这里

// scaledU16 u16 字段通用解码：65535 表示未填充
func scaledU16(raw uint16, scale float64) *float64 {
	if raw == uint16Max {
		return nil
	}
	v := float64(raw) * scale
	return &v
}

// scaledU16Slice 连续 n 个同规格 u16 字段
func (r *payloadReader) scaledU16Slice(n int, scale float64) []*float64 {
	out := make([]*float64, n)
	for i := range out {
		out[i] = scaledU16(r.u16(), scale)
	}
	return out
}

// temperatureField 温度专用哨兵：设备离线时返回 65326
func temperatureField(raw uint16) *float64 {
	if raw == temperatureOffline {
		return nil
	}
	v := float64(raw) * 0.1
	return &v
}

// decodeInformationReply 解码 INFORMATION_REPLY 负载。
// 负载应为定长主体，或主体加固件串尾部；其余长度视为可疑但尽力解析
// （部分固件变体会追加未知尾部字节）。
func decodeInformationReply(data []byte) (*InformationReply, error) {
	if len(data) < tcpDataSize {
		return nil, fmt.Errorf("%w: information reply payload is %d bytes, need at least %d",
			ErrShortPacket, len(data), tcpDataSize)
	}

	r := &payloadReader{data: data}

	if len(data) != tcpDataSize && len(data) != tcpDataSize+tcpFirmwareSize {
		r.diags = append(r.diags, Diagnostic{
			Field:  "payload",
			Detail: fmt.Sprintf("unrecognized INFORMATION_REPLY size %d, are there extra bytes?", len(data)),
		})
	}

	if pad0 := r.bytes(3); !bytes.Equal(pad0, expectedPadding0) {
		r.diags = append(r.diags, Diagnostic{
			Field:  "padding0",
			Detail: fmt.Sprintf("unexpected content % X", pad0),
		})
	}

	serial, err := r.stringField("serial_number", serialNumberBytes)
	if err != nil {
		return nil, err
	}

	reply := &InformationReply{
		SerialNumber:    serial,
		Temperature:     temperatureField(r.u16()),
		DCInputVoltage:  r.scaledU16Slice(3, 0.1),
		DCInputCurrent:  r.scaledU16Slice(3, 0.1),
		ACOutputCurrent: r.scaledU16Slice(3, 0.1),
		ACOutputVoltage: r.scaledU16Slice(3, 0.1),
	}

	// AC 输出为 (frequency, power) 对，展开成两个并行数组
	reply.ACOutputFrequency = make([]*float64, acOutputChannels)
	reply.ACOutputPower = make([]*float64, acOutputChannels)
	for i := 0; i < acOutputChannels; i++ {
		reply.ACOutputFrequency[i] = scaledU16(r.u16(), 0.01)
		reply.ACOutputPower[i] = scaledU16(r.u16(), 1)
	}

	reply.SolarEnergyToday = float64(r.u16()) * 0.01
	reply.SolarEnergyTotal = float64(r.u32()) * 0.1
	reply.SolarHoursTotal = r.u32()

	switch active := r.u16(); active {
	case 0:
		reply.InverterActive = false
	case 1:
		reply.InverterActive = true
	default:
		return nil, fmt.Errorf("%w: inverter_active is %d, want 0 or 1", ErrInvalidFieldValue, active)
	}

	r.padding("padding1", 4)
	// 未知字段，已观测到 0 与 65535 两种取值，其余值可能藏着新信息
	if unknown0 := r.u16(); unknown0 != 0 && unknown0 != uint16Max {
		r.diags = append(r.diags, Diagnostic{
			Field:  "unknown0",
			Detail: fmt.Sprintf("unexpected value %d", unknown0),
		})
	}
	r.padding("padding2", 10)

	// 固件串仅在负载足够长时存在（老固件不带）
	if len(data)-r.off >= tcpFirmwareSize {
		firmware, err := r.stringField("firmware", firmwareStringBytes)
		if err != nil {
			return nil, err
		}
		r.padding("padding3", 4)
		slave, err := r.stringField("firmware_slave", firmwareStringBytes)
		if err != nil {
			return nil, err
		}
		r.padding("padding4", 4)
		reply.Firmware = &firmware
		reply.FirmwareSlave = &slave
	}

	reply.Diagnostics = r.diags
	return reply, nil
}
