package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/omnik-bridge/internal/omnik"
	"github.com/taoyao-code/omnik-bridge/internal/protocol/omniktcp"
)

// Handler 遥测查询API处理器：每个请求现场向逆变器取一次数
type Handler struct {
	client *omnik.Client
	logger *zap.Logger
}

// NewHandler 创建API处理器
func NewHandler(client *omnik.Client, logger *zap.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// GetInverter 查询逆变器遥测
func (h *Handler) GetInverter(c *gin.Context) {
	inv, err := h.client.Inverter(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": h.client.Source(), "inverter": inv})
}

// GetDevice 查询 Wi-Fi 模块状态
func (h *Handler) GetDevice(c *gin.Context) {
	dev, err := h.client.Device(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"source": h.client.Source(), "device": dev})
}

// fail 错误到HTTP状态的映射。
// 设备不可达与设备应答异常都以 502 暴露，但 error 字段不同，
// 调用方可以据此决定是否重试。
func (h *Handler) fail(c *gin.Context, err error) {
	h.logger.Warn("api request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))

	switch {
	case errors.Is(err, omnik.ErrConnection):
		c.JSON(http.StatusBadGateway, gin.H{"error": "device_unreachable", "detail": err.Error()})
	case errors.Is(err, omnik.ErrAuth):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "misconfigured", "detail": err.Error()})
	case errors.Is(err, omnik.ErrWrongSource),
		errors.Is(err, omnik.ErrWrongValues),
		errors.Is(err, omnik.ErrUnexpectedResponse),
		isProtocolError(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "bad_device_response", "detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "detail": err.Error()})
	}
}

// isProtocolError TCP 编解码层的任何校验失败
func isProtocolError(err error) bool {
	for _, target := range []error{
		omniktcp.ErrInvalidStartByte,
		omniktcp.ErrInvalidEndByte,
		omniktcp.ErrInvalidSeparator,
		omniktcp.ErrShortPacket,
		omniktcp.ErrChecksumMismatch,
		omniktcp.ErrSerialMismatch,
		omniktcp.ErrTrailingGarbage,
		omniktcp.ErrUnknownMessage,
		omniktcp.ErrInvalidFieldValue,
		omniktcp.ErrNoInformationData,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
