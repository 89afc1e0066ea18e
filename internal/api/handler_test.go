package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/omnik-bridge/internal/config"
	"github.com/taoyao-code/omnik-bridge/internal/omnik"
)

const deviceStatusJSON = `{
	"g_sn": "1608000000",
	"g_ver": "VER:3.11.45.9",
	"ip": "192.168.0.10",
	"i_modle": "omnik2000tl2",
	"i_ver_m": "V1.25Build23261",
	"i_pow_n": 1225,
	"i_eday": 10.90,
	"i_eall": 1433.0
}`

// fakeInverterServer 模拟设备侧的 json 数据源
func fakeInverterServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(deviceStatusJSON))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, host string, authCfg cfgpkg.AuthConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client := omnik.New(cfgpkg.InverterConfig{
		Host:      host,
		Source:    "json",
		Timeout:   5 * time.Second,
		RateLimit: 100,
		RateBurst: 10,
	}, zap.NewNop(), nil)

	r := gin.New()
	RegisterRoutes(r, client, authCfg, zap.NewNop())
	return r
}

func doRequest(r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(rr, req)
	return rr
}

func TestGetInverter(t *testing.T) {
	srv := fakeInverterServer(t)
	r := newTestRouter(t, strings.TrimPrefix(srv.URL, "http://"), cfgpkg.AuthConfig{})

	rr := doRequest(r, "/api/v1/inverter", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	var body struct {
		Source   string         `json:"source"`
		Inverter omnik.Inverter `json:"inverter"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "json", body.Source)
	require.NotNil(t, body.Inverter.SerialNumber)
	assert.Equal(t, "1608000000", *body.Inverter.SerialNumber)
	require.NotNil(t, body.Inverter.SolarCurrentPower)
	assert.InDelta(t, 1225.0, *body.Inverter.SolarCurrentPower, 1e-9)
}

func TestGetDevice(t *testing.T) {
	srv := fakeInverterServer(t)
	r := newTestRouter(t, strings.TrimPrefix(srv.URL, "http://"), cfgpkg.AuthConfig{})

	rr := doRequest(r, "/api/v1/device", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Device omnik.Device `json:"device"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotNil(t, body.Device.Firmware)
	assert.Equal(t, "3.11.45.9", *body.Device.Firmware)
}

func TestGetInverterDeviceUnreachable(t *testing.T) {
	// 指向一个未监听的地址
	r := newTestRouter(t, "127.0.0.1:1", cfgpkg.AuthConfig{})

	rr := doRequest(r, "/api/v1/inverter", nil)
	require.Equal(t, http.StatusBadGateway, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "device_unreachable", body["error"])
}

func TestGetInverterBadDeviceResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("<html>definitely not json</html>"))
	}))
	t.Cleanup(srv.Close)
	r := newTestRouter(t, strings.TrimPrefix(srv.URL, "http://"), cfgpkg.AuthConfig{})

	rr := doRequest(r, "/api/v1/inverter", nil)
	require.Equal(t, http.StatusBadGateway, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "bad_device_response", body["error"])
}

func TestAPIKeyAuth(t *testing.T) {
	srv := fakeInverterServer(t)
	authCfg := cfgpkg.AuthConfig{Enabled: true, APIKeys: []string{"secret-key-123"}}
	r := newTestRouter(t, strings.TrimPrefix(srv.URL, "http://"), authCfg)

	t.Run("missing key", func(t *testing.T) {
		rr := doRequest(r, "/api/v1/inverter", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rr := doRequest(r, "/api/v1/inverter", map[string]string{"X-API-Key": "nope"})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("x-api-key header", func(t *testing.T) {
		rr := doRequest(r, "/api/v1/inverter", map[string]string{"X-API-Key": "secret-key-123"})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		rr := doRequest(r, "/api/v1/inverter", map[string]string{"Authorization": "Bearer secret-key-123"})
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRequestIDPassthrough(t *testing.T) {
	srv := fakeInverterServer(t)
	r := newTestRouter(t, strings.TrimPrefix(srv.URL, "http://"), cfgpkg.AuthConfig{})

	rr := doRequest(r, "/api/v1/device", map[string]string{"X-Request-Id": "req-42"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "req-42", rr.Header().Get("X-Request-Id"))
}
