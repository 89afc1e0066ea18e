package omnik

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/taoyao-code/omnik-bridge/internal/protocol/omniktcp"
)

// 一次读取的缓冲上限：一帧遥测应答加可选的文本消息远小于此
const tcpReadBufferSize = 1024

// fetchTCP 传输适配层：拨号、写入查询帧、单次有界读取。
// 连接类失败一律归入 ErrConnection，与编解码层的协议错误分开；
// 编解码本身不做任何 I/O。
func (c *Client) fetchTCP(ctx context.Context) ([]byte, error) {
	dialer := &net.Dialer{}
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.tcpPort))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open a TCP connection to %s: %v", ErrConnection, addr, err)
	}
	defer conn.Close()

	// connect+write+read 共用同一个总超时
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnection, err)
		}
	}

	request := omniktcp.BuildInformationRequest(c.serialNumber)
	if _, err := conn.Write(request); err != nil {
		return nil, fmt.Errorf("%w: writing information request: %v", ErrConnection, err)
	}

	buf := make([]byte, tcpReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: reading reply: %v", ErrConnection, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: device closed the connection without replying", ErrConnection)
	}
	return buf[:n], nil
}
