package health

import (
	"context"
	"net"
	"strconv"
	"time"

	cfgpkg "github.com/taoyao-code/omnik-bridge/internal/config"
)

// InverterChecker 逆变器可达性检查器。
// 只做 TCP 连通性探测，不发业务报文，避免探活流量打扰设备。
type InverterChecker struct {
	addr string
}

// NewInverterChecker 根据数据源推导探测端口：
// tcp 源探 Wi-Fi 模块的遥测端口，http 类源探 80
func NewInverterChecker(cfg cfgpkg.InverterConfig) *InverterChecker {
	port := 80
	if cfg.Source == "tcp" {
		port = cfg.TCPPort
	}
	return &InverterChecker{addr: net.JoinHostPort(cfg.Host, strconv.Itoa(port))}
}

// Name 返回检查器名称
func (c *InverterChecker) Name() string {
	return "inverter"
}

// Check 执行健康检查
func (c *InverterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	dialer := &net.Dialer{Timeout: 3 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		// 设备离线不影响本服务的存活，只报降级
		return CheckResult{
			Status:  StatusDegraded,
			Message: "inverter unreachable: " + err.Error(),
			Details: map[string]interface{}{"addr": c.addr},
			Latency: time.Since(start),
		}
	}
	_ = conn.Close()

	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]interface{}{"addr": c.addr},
		Latency: time.Since(start),
	}
}
