package omnik

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	cfgpkg "github.com/taoyao-code/omnik-bridge/internal/config"
	"github.com/taoyao-code/omnik-bridge/internal/metrics"
	"github.com/taoyao-code/omnik-bridge/internal/protocol/omniktcp"
)

// Client 面向单台 Omnik 逆变器的取数客户端。
// 无跨请求状态，方法可并发调用；内部限速器保证不会并发轰炸设备。
type Client struct {
	host         string
	source       string
	username     string
	password     string
	serialNumber uint32
	tcpPort      int
	timeout      time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	metrics    *metrics.AppMetrics
}

// New 根据配置构建客户端。配置合法性已由 config.Validate 保证，
// 这里只做构造。
func New(cfg cfgpkg.InverterConfig, logger *zap.Logger, m *metrics.AppMetrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		host:         cfg.Host,
		source:       cfg.Source,
		username:     cfg.Username,
		password:     cfg.Password,
		serialNumber: cfg.SerialNumber,
		tcpPort:      cfg.TCPPort,
		timeout:      cfg.Timeout,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:       logger.Named("omnik"),
		metrics:      m,
	}
}

// Source 当前配置的数据源
func (c *Client) Source() string { return c.source }

// Inverter 取一次逆变器遥测
func (c *Client) Inverter(ctx context.Context) (*Inverter, error) {
	var inv *Inverter
	err := c.fetch(ctx, func(raw []byte) error {
		var err error
		switch c.source {
		case "tcp":
			inv, err = c.inverterFromTCPReply(raw)
		case "json":
			inv, err = inverterFromJSON(raw)
		case "html":
			inv, err = inverterFromHTML(raw)
		default:
			inv, err = inverterFromJS(raw)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Device 取一次 Wi-Fi 模块状态。tcp 报文不携带模块信息，返回空记录。
func (c *Client) Device(ctx context.Context) (*Device, error) {
	if c.source == "tcp" {
		return &Device{}, nil
	}
	var dev *Device
	err := c.fetch(ctx, func(raw []byte) error {
		var err error
		switch c.source {
		case "json":
			dev, err = deviceFromJSON(raw)
		case "html":
			dev, err = deviceFromHTML(raw)
		default:
			dev, err = deviceFromJS(raw)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// fetch 一次完整的取数：限速 → 传输 → 映射，统一打点
func (c *Client) fetch(ctx context.Context, decode func(raw []byte) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.transport(ctx)
	if err == nil {
		err = decode(raw)
	}
	c.observe(start, err)
	if err != nil {
		c.logger.Warn("fetch failed",
			zap.String("source", c.source),
			zap.String("host", c.host),
			zap.Error(err))
		return err
	}
	return nil
}

// transport 按数据源选择传输方式并返回原始响应
func (c *Client) transport(ctx context.Context) ([]byte, error) {
	switch c.source {
	case "tcp":
		raw, err := c.fetchTCP(ctx)
		if err == nil && c.metrics != nil {
			c.metrics.TCPBytesReceived.Add(float64(len(raw)))
		}
		return raw, err
	case "json":
		return c.fetchHTTP(ctx, "status.json", url.Values{"CMD": []string{"inv_query"}})
	case "html":
		return c.fetchHTTP(ctx, "status.html", nil)
	default:
		return c.fetchHTTP(ctx, "js/status.js", nil)
	}
}

// inverterFromTCPReply 编解码层入口：拆帧、解码、上报诊断
func (c *Client) inverterFromTCPReply(raw []byte) (*Inverter, error) {
	reply, err := omniktcp.ParseInformationReply(c.serialNumber, raw)
	if err != nil {
		return nil, err
	}

	if c.metrics != nil {
		if frames, err := omniktcp.UnpackFrames(raw); err == nil {
			for _, f := range frames {
				c.metrics.FrameTotal.WithLabelValues(fmt.Sprintf("0x%02X", f.MessageType)).Inc()
			}
		}
		if len(reply.Diagnostics) > 0 {
			c.metrics.DiagnosticsTotal.Inc()
		}
	}
	for _, d := range reply.Diagnostics {
		c.logger.Warn("reply anomaly",
			zap.String("field", d.Field),
			zap.String("detail", d.Detail))
	}
	return inverterFromTCP(reply), nil
}

func (c *Client) observe(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.FetchTotal.WithLabelValues(c.source, result).Inc()
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
}
