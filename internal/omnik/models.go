package omnik

import "github.com/taoyao-code/omnik-bridge/internal/protocol/omniktcp"

// Inverter 归一化后的逆变器遥测记录。
// 指针字段为 nil 表示该数据源不提供或设备未填充该读数；
// http 类数据源只填充前一组字段，tcp 源额外携带逐通道明细。
type Inverter struct {
	SerialNumber      *string  `json:"serial_number"`
	Model             *string  `json:"model"`
	Firmware          *string  `json:"firmware"`
	FirmwareSlave     *string  `json:"firmware_slave"`
	SolarRatedPower   *float64 `json:"solar_rated_power"`
	SolarCurrentPower *float64 `json:"solar_current_power"`
	SolarEnergyToday  *float64 `json:"solar_energy_today"`
	SolarEnergyTotal  *float64 `json:"solar_energy_total"`

	Temperature       *float64   `json:"temperature,omitempty"`
	DCInputVoltage    []*float64 `json:"dc_input_voltage,omitempty"`
	DCInputCurrent    []*float64 `json:"dc_input_current,omitempty"`
	ACOutputCurrent   []*float64 `json:"ac_output_current,omitempty"`
	ACOutputVoltage   []*float64 `json:"ac_output_voltage,omitempty"`
	ACOutputFrequency []*float64 `json:"ac_output_frequency,omitempty"`
	ACOutputPower     []*float64 `json:"ac_output_power,omitempty"`
	SolarHoursTotal   *uint32    `json:"solar_hours_total,omitempty"`
	InverterActive    *bool      `json:"inverter_active,omitempty"`
}

// Device Wi-Fi 模块状态记录（tcp 源不携带，三个字段均为 nil）
type Device struct {
	SignalQuality *int    `json:"signal_quality"`
	Firmware      *string `json:"firmware"`
	IPAddress     *string `json:"ip_address"`
}

// inverterFromTCP 把编解码层的应答摊平成公共记录
func inverterFromTCP(reply *omniktcp.InformationReply) *Inverter {
	inv := &Inverter{
		SerialNumber:      strPtr(reply.SerialNumber),
		Firmware:          reply.Firmware,
		FirmwareSlave:     reply.FirmwareSlave,
		SolarEnergyToday:  &reply.SolarEnergyToday,
		SolarEnergyTotal:  &reply.SolarEnergyTotal,
		Temperature:       reply.Temperature,
		DCInputVoltage:    reply.DCInputVoltage,
		DCInputCurrent:    reply.DCInputCurrent,
		ACOutputCurrent:   reply.ACOutputCurrent,
		ACOutputVoltage:   reply.ACOutputVoltage,
		ACOutputFrequency: reply.ACOutputFrequency,
		ACOutputPower:     reply.ACOutputPower,
		SolarHoursTotal:   &reply.SolarHoursTotal,
		InverterActive:    &reply.InverterActive,
	}
	// 当前功率取首个在用交流通道
	for _, p := range reply.ACOutputPower {
		if p != nil {
			inv.SolarCurrentPower = p
			break
		}
	}
	return inv
}

func strPtr(s string) *string    { return &s }
func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int          { return &v }
