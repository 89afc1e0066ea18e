package omnik

import "errors"

// 客户端错误分类：传输失败与协议/数据失败分开，调用方可据此区分
// "设备不可达"与"设备返回了垃圾"。编解码细节错误见 protocol/omniktcp。
var (
	// ErrConnection 连接、读写或超时失败（设备不可达）
	ErrConnection = errors.New("failed to communicate with the Omnik Inverter device")
	// ErrAuth 请求缺少必要凭证（html 源的用户名口令、tcp 源的序列号）
	ErrAuth = errors.New("authentication parameters missing from the request")
	// ErrWrongSource 响应内容与配置的数据源不匹配（抓取不到期望字段）
	ErrWrongSource = errors.New("response does not match the configured data source")
	// ErrWrongValues 设备返回明显自相矛盾的数值（当日发电量等于累计发电量）
	ErrWrongValues = errors.New("device returned inconsistent values")
	// ErrUnexpectedResponse 设备返回了无法识别的响应类型
	ErrUnexpectedResponse = errors.New("unexpected response from the Omnik Inverter device")
)
