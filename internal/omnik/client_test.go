package omnik

import (
	"context"
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/omnik-bridge/internal/config"
	"github.com/taoyao-code/omnik-bridge/internal/protocol/omniktcp"
)

func testConfig(host, source string) cfgpkg.InverterConfig {
	return cfgpkg.InverterConfig{
		Host:      host,
		Source:    source,
		Timeout:   5 * time.Second,
		RateLimit: 100,
		RateBurst: 10,
	}
}

func newTestClient(t *testing.T, cfg cfgpkg.InverterConfig) *Client {
	t.Helper()
	return New(cfg, zap.NewNop(), nil)
}

func hostOf(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestClientInverterJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/status.json", r.URL.Path)
		require.Equal(t, "inv_query", r.URL.Query().Get("CMD"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statusJSON))
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(hostOf(t, srv), "json"))
	inv, err := c.Inverter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1608000000", *inv.SerialNumber)
	assert.InDelta(t, 1225.0, *inv.SolarCurrentPower, 1e-9)
}

func TestClientDeviceJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(statusJSON))
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(hostOf(t, srv), "json"))
	dev, err := c.Device(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.11.45.9", *dev.Firmware)
	assert.Equal(t, "192.168.0.10", *dev.IPAddress)
}

func TestClientInverterJS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/js/status.js", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-javascript")
		_, _ = w.Write([]byte(statusWebData))
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(hostOf(t, srv), "js"))
	inv, err := c.Inverter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345678910111", *inv.SerialNumber)
	assert.InDelta(t, 109.05, *inv.SolarEnergyToday, 1e-9)
}

func TestClientInverterHTMLSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "klaas", user)
		require.Equal(t, "supercool", pass)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(statusHTML))
	}))
	defer srv.Close()

	cfg := testConfig(hostOf(t, srv), "html")
	cfg.Username = "klaas"
	cfg.Password = "supercool"
	c := newTestClient(t, cfg)

	inv, err := c.Inverter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345678910111", *inv.SerialNumber)
}

func TestClientAuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(hostOf(t, srv), "html"))
	_, err := c.Inverter(context.Background())
	require.ErrorIs(t, err, ErrAuth)
}

func TestClientUnexpectedContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("binary"))
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(hostOf(t, srv), "json"))
	_, err := c.Inverter(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestClientConnectionRefused(t *testing.T) {
	// 占一个端口再立刻释放，确保无人监听
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := newTestClient(t, testConfig(addr, "json"))
	_, err = c.Inverter(context.Background())
	require.ErrorIs(t, err, ErrConnection)
}

// fakeDevice 起一个只应答一次的模拟逆变器
func fakeDevice(t *testing.T, serial uint32, reply []byte) (host string, port int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		expected := omniktcp.BuildInformationRequest(serial)
		if n != len(expected) || string(buf[:n]) != string(expected) {
			return
		}
		_, _ = conn.Write(reply)
	}()

	tcpAddr := l.Addr().(*net.TCPAddr)
	return tcpAddr.IP.String(), tcpAddr.Port
}

// replyFrame 按协议布局拼一帧完整的遥测应答
func replyFrame(serial uint32) []byte {
	payload := make([]byte, 0, 125)
	payload = append(payload, 0x81, 0x02, 0x01)
	payload = append(payload, []byte("NLDN012345CS4321")...)
	for _, v := range []uint16{
		431,
		1873, 1889, 0xFFFF,
		81, 78, 0xFFFF,
		108, 0xFFFF, 0xFFFF,
		2396, 0xFFFF, 0xFFFF,
		5006, 2615, 0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF,
		740,
	} {
		payload = binary.BigEndian.AppendUint16(payload, v)
	}
	payload = binary.BigEndian.AppendUint32(payload, 654321)
	payload = binary.BigEndian.AppendUint32(payload, 54321)
	payload = binary.BigEndian.AppendUint16(payload, 1)
	payload = append(payload, make([]byte, 4)...)
	payload = binary.BigEndian.AppendUint16(payload, 0xFFFF)
	payload = append(payload, make([]byte, 10)...)
	fw := make([]byte, 16)
	copy(fw, "NL1-V1.0-0077-4")
	payload = append(payload, fw...)
	payload = append(payload, make([]byte, 4)...)
	slave := make([]byte, 16)
	copy(slave, "V2.0-0024")
	payload = append(payload, slave...)
	payload = append(payload, make([]byte, 4)...)

	body := []byte{byte(len(payload)), omniktcp.MessageRecvSep, omniktcp.MessageTypeInformationReply}
	sn := make([]byte, 4)
	binary.LittleEndian.PutUint32(sn, serial)
	body = append(body, sn...)
	body = append(body, sn...)
	body = append(body, payload...)

	var sum byte
	for _, b := range body {
		sum += b
	}

	frame := []byte{omniktcp.MessageStart}
	frame = append(frame, body...)
	frame = append(frame, sum, omniktcp.MessageEnd)
	return frame
}

func TestClientInverterTCP(t *testing.T) {
	const serial = uint32(987654321)
	host, port := fakeDevice(t, serial, replyFrame(serial))

	cfg := testConfig(host, "tcp")
	cfg.SerialNumber = serial
	cfg.TCPPort = port
	c := newTestClient(t, cfg)

	inv, err := c.Inverter(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "NLDN012345CS4321", *inv.SerialNumber)
	assert.InDelta(t, 43.1, *inv.Temperature, 1e-9)
	assert.InDelta(t, 7.4, *inv.SolarEnergyToday, 1e-9)
	assert.InDelta(t, 65432.1, *inv.SolarEnergyTotal, 1e-9)
	assert.Equal(t, uint32(54321), *inv.SolarHoursTotal)
	assert.True(t, *inv.InverterActive)
	assert.Equal(t, "NL1-V1.0-0077-4", *inv.Firmware)
	assert.Equal(t, "V2.0-0024", *inv.FirmwareSlave)

	require.Len(t, inv.DCInputVoltage, 3)
	assert.InDelta(t, 187.3, *inv.DCInputVoltage[0], 1e-9)
	assert.InDelta(t, 188.9, *inv.DCInputVoltage[1], 1e-9)
	assert.Nil(t, inv.DCInputVoltage[2])

	require.Len(t, inv.ACOutputPower, 3)
	assert.InDelta(t, 2615.0, *inv.ACOutputPower[0], 1e-9)
	assert.Nil(t, inv.ACOutputPower[1])
	assert.InDelta(t, 2615.0, *inv.SolarCurrentPower, 1e-9)

	require.Len(t, inv.ACOutputFrequency, 3)
	assert.InDelta(t, 50.06, *inv.ACOutputFrequency[0], 1e-9)
}

func TestClientInverterTCPBadReply(t *testing.T) {
	const serial = uint32(987654321)
	frame := replyFrame(serial)
	frame[len(frame)-2]++ // 破坏校验和
	host, port := fakeDevice(t, serial, frame)

	cfg := testConfig(host, "tcp")
	cfg.SerialNumber = serial
	cfg.TCPPort = port
	c := newTestClient(t, cfg)

	_, err := c.Inverter(context.Background())
	require.ErrorIs(t, err, omniktcp.ErrChecksumMismatch)
}

func TestClientInverterTCPDeviceSilent(t *testing.T) {
	const serial = uint32(1)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		conn.Close() // 不应答直接断开
	}()

	tcpAddr := l.Addr().(*net.TCPAddr)
	cfg := testConfig(tcpAddr.IP.String(), "tcp")
	cfg.SerialNumber = serial
	cfg.TCPPort = tcpAddr.Port
	c := newTestClient(t, cfg)

	_, err = c.Inverter(context.Background())
	require.ErrorIs(t, err, ErrConnection)
}

func TestClientDeviceTCPIsEmpty(t *testing.T) {
	cfg := testConfig("127.0.0.1", "tcp")
	cfg.SerialNumber = 1
	cfg.TCPPort = 1 // 不会被连接
	c := newTestClient(t, cfg)

	dev, err := c.Device(context.Background())
	require.NoError(t, err)
	assert.Nil(t, dev.SignalQuality)
	assert.Nil(t, dev.Firmware)
	assert.Nil(t, dev.IPAddress)
}

func TestClientSourceAccessor(t *testing.T) {
	c := newTestClient(t, testConfig("example.com", "js"))
	assert.Equal(t, "js", c.Source())
}
