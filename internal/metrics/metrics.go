package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	FetchTotal       *prometheus.CounterVec // labels: source, result=ok|error
	FetchDuration    prometheus.Histogram
	TCPBytesReceived prometheus.Counter
	FrameTotal       *prometheus.CounterVec // labels: type（按消息类型计数）
	DiagnosticsTotal prometheus.Counter     // 解码成功但带异常记录的次数
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnik_fetch_total",
			Help: "Telemetry fetch attempts against the inverter.",
		}, []string{"source", "result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "omnik_fetch_duration_seconds",
			Help:    "Duration of one telemetry fetch.",
			Buckets: prometheus.DefBuckets,
		}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnik_tcp_bytes_received_total",
			Help: "Total bytes received over the TCP source.",
		}),
		FrameTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "omnik_frame_total",
			Help: "Frames unpacked from TCP replies by message type.",
		}, []string{"type"}),
		DiagnosticsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "omnik_reply_diagnostics_total",
			Help: "Replies that decoded successfully but carried anomalies.",
		}),
	}
	reg.MustRegister(m.FetchTotal, m.FetchDuration, m.TCPBytesReceived, m.FrameTotal, m.DiagnosticsTotal)
	return m
}
