package omnik

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// 三种 http 数据源返回的都是文本，这里负责把各自的字段布局
// 映射到公共记录。字段名与设备固件一致，不做美化。

// js 源：老固件暴露 webData="..."，新固件暴露 myDeviceArray[0]="..."，
// 均为逗号分隔的字段数组
var (
	webDataRe       = regexp.MustCompile(`webData="(.*?)";`)
	myDeviceArrayRe = regexp.MustCompile(`myDeviceArray\[0\]="(.*?)";`)

	// js 源中 Wi-Fi 模块自身的状态变量
	jsDeviceSerialRe = regexp.MustCompile(`m2mMid="(.*?)";`)
	jsDeviceRssiRe   = regexp.MustCompile(`m2mRssi="(.*?)";`)
	jsDeviceVerRe    = regexp.MustCompile(`version="(.*?)";`)
	jsDeviceIPRe     = regexp.MustCompile(`wanIp="(.*?)";`)
)

// html 源：status.html 内联的 var webdata_* / cover_* 赋值
func htmlVar(name string) *regexp.Regexp {
	return regexp.MustCompile(`var ` + name + ` = "(.*?)";`)
}

var (
	htmlSerialRe     = htmlVar("webdata_sn")
	htmlFirmwareRe   = htmlVar("webdata_msvn")
	htmlModelRe      = htmlVar("webdata_pv_type")
	htmlRatedPowerRe = htmlVar("webdata_rate_p")
	htmlNowPowerRe   = htmlVar("webdata_now_p")
	htmlTodayRe      = htmlVar("webdata_today_e")
	htmlTotalRe      = htmlVar("webdata_total_e")
	htmlCoverVerRe   = htmlVar("cover_ver")
	htmlCoverRssiRe  = htmlVar("cover_sta_rssi")
	htmlCoverIPRe    = htmlVar("cover_sta_ip")
)

// inverterFromJSON status.json?CMD=inv_query 的字段映射。
// 数值字段的类型随固件版本漂移（有的带引号有的不带），统一宽松转换。
func inverterFromJSON(raw []byte) (*Inverter, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: device did not return JSON: %v", ErrWrongSource, err)
	}

	today, err := jsonFloat(data, "i_eday")
	if err != nil {
		return nil, err
	}
	total, err := jsonFloat(data, "i_eall")
	if err != nil {
		return nil, err
	}
	// 当日发电量等于累计发电量是已知的固件故障征兆
	if *today == *total && *today != 0 {
		return nil, fmt.Errorf("%w: solar_energy_today equals solar_energy_total (%v)", ErrWrongValues, *today)
	}
	power, err := jsonFloat(data, "i_pow_n")
	if err != nil {
		return nil, err
	}

	return &Inverter{
		SerialNumber:      jsonString(data, "g_sn"),
		Model:             jsonString(data, "i_modle"),
		Firmware:          jsonString(data, "i_ver_m"),
		SolarCurrentPower: power,
		SolarEnergyToday:  today,
		SolarEnergyTotal:  total,
	}, nil
}

// deviceFromJSON Wi-Fi 模块字段（g_ver 带 "VER:" 前缀）
func deviceFromJSON(raw []byte) (*Device, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: device did not return JSON: %v", ErrWrongSource, err)
	}
	dev := &Device{IPAddress: jsonString(data, "ip")}
	if v := jsonString(data, "g_ver"); v != nil {
		dev.Firmware = strPtr(strings.TrimPrefix(*v, "VER:"))
	}
	return dev, nil
}

// inverterFromJS js/status.js 的数组映射：
// 0=序列号 2=固件 3=型号 4=额定功率 5=当前功率 6=当日发电量 7=累计发电量，
// 6/7 两项的单位是 0.01 kWh。
func inverterFromJS(raw []byte) (*Inverter, error) {
	fields, err := jsDataFields(raw)
	if err != nil {
		return nil, err
	}
	if len(fields) < 8 {
		return nil, fmt.Errorf("%w: device array has %d fields, need 8", ErrWrongSource, len(fields))
	}

	rated, err := jsFloat(fields[4], "rated power")
	if err != nil {
		return nil, err
	}
	power, err := jsFloat(fields[5], "current power")
	if err != nil {
		return nil, err
	}
	today, err := jsFloat(fields[6], "energy today")
	if err != nil {
		return nil, err
	}
	total, err := jsFloat(fields[7], "energy total")
	if err != nil {
		return nil, err
	}

	return &Inverter{
		SerialNumber:      strPtr(fields[0]),
		Firmware:          strPtr(fields[2]),
		Model:             strPtr(fields[3]),
		SolarRatedPower:   rated,
		SolarCurrentPower: power,
		SolarEnergyToday:  floatPtr(*today / 100),
		SolarEnergyTotal:  floatPtr(*total / 100),
	}, nil
}

// deviceFromJS Wi-Fi 模块状态变量（m2mRssi 形如 "96%"）
func deviceFromJS(raw []byte) (*Device, error) {
	dev := &Device{}
	if m := jsDeviceVerRe.FindSubmatch(raw); m != nil {
		dev.Firmware = strPtr(string(m[1]))
	}
	if m := jsDeviceIPRe.FindSubmatch(raw); m != nil {
		dev.IPAddress = strPtr(string(m[1]))
	}
	if m := jsDeviceRssiRe.FindSubmatch(raw); m != nil {
		pct := strings.TrimSuffix(string(m[1]), "%")
		if v, err := strconv.Atoi(pct); err == nil {
			dev.SignalQuality = intPtr(v)
		}
	}
	return dev, nil
}

// inverterFromHTML status.html 内联变量映射（需要 basic auth 才能拿到该页面）
func inverterFromHTML(raw []byte) (*Inverter, error) {
	serial := htmlString(raw, htmlSerialRe)
	if serial == nil {
		return nil, fmt.Errorf("%w: webdata_sn not found in HTML response", ErrWrongSource)
	}

	inv := &Inverter{
		SerialNumber: serial,
		Firmware:     htmlString(raw, htmlFirmwareRe),
		Model:        htmlString(raw, htmlModelRe),
	}
	var err error
	if inv.SolarRatedPower, err = htmlFloat(raw, htmlRatedPowerRe, "webdata_rate_p"); err != nil {
		return nil, err
	}
	if inv.SolarCurrentPower, err = htmlFloat(raw, htmlNowPowerRe, "webdata_now_p"); err != nil {
		return nil, err
	}
	if inv.SolarEnergyToday, err = htmlFloat(raw, htmlTodayRe, "webdata_today_e"); err != nil {
		return nil, err
	}
	if inv.SolarEnergyTotal, err = htmlFloat(raw, htmlTotalRe, "webdata_total_e"); err != nil {
		return nil, err
	}
	return inv, nil
}

// deviceFromHTML cover_* 变量映射
func deviceFromHTML(raw []byte) (*Device, error) {
	dev := &Device{
		Firmware:  htmlString(raw, htmlCoverVerRe),
		IPAddress: htmlString(raw, htmlCoverIPRe),
	}
	if v := htmlString(raw, htmlCoverRssiRe); v != nil {
		pct := strings.TrimSuffix(*v, "%")
		if q, err := strconv.Atoi(pct); err == nil {
			dev.SignalQuality = intPtr(q)
		}
	}
	return dev, nil
}

// jsDataFields 提取 js 源的逗号分隔字段数组
func jsDataFields(raw []byte) ([]string, error) {
	m := webDataRe.FindSubmatch(raw)
	if m == nil {
		m = myDeviceArrayRe.FindSubmatch(raw)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: neither webData nor myDeviceArray found in JS response", ErrWrongSource)
	}
	return strings.Split(string(m[1]), ","), nil
}

func jsonString(data map[string]any, key string) *string {
	switch v := data[key].(type) {
	case string:
		return &v
	case float64:
		return strPtr(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return nil
	}
}

func jsonFloat(data map[string]any, key string) (*float64, error) {
	switch v := data[key].(type) {
	case float64:
		return &v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s is not numeric: %q", ErrWrongSource, key, v)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("%w: field %s missing from JSON response", ErrWrongSource, key)
	}
}

func jsFloat(field, name string) (*float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not numeric: %q", ErrWrongSource, name, field)
	}
	return &f, nil
}

func htmlString(raw []byte, re *regexp.Regexp) *string {
	m := re.FindSubmatch(raw)
	if m == nil {
		return nil
	}
	return strPtr(string(m[1]))
}

func htmlFloat(raw []byte, re *regexp.Regexp, name string) (*float64, error) {
	v := htmlString(raw, re)
	if v == nil || *v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not numeric: %q", ErrWrongSource, name, *v)
	}
	return &f, nil
}
