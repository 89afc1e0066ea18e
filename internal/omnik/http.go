package omnik

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// http 源可接受的响应类型；设备固件对 Content-Type 的取值并不严谨
var acceptedContentTypes = []string{
	"application/json",
	"application/x-javascript",
	"text/html",
}

// fetchHTTP 对设备执行一次 GET 并返回原始响应体。
// html 源的页面受 basic auth 保护；超时经由 ctx 统一控制。
func (c *Client) fetchHTTP(ctx context.Context, uri string, params url.Values) ([]byte, error) {
	u := url.URL{Scheme: "http", Host: c.host, Path: "/" + uri}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml")
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			return nil, fmt.Errorf("%w: timeout occurred while connecting: %v", ErrConnection, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: device rejected the credentials (HTTP %d)", ErrAuth, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrConnection, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	accepted := false
	for _, t := range acceptedContentTypes {
		if strings.Contains(contentType, t) {
			accepted = true
			break
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrConnection, err)
	}
	if !accepted {
		return nil, fmt.Errorf("%w: Content-Type %q", ErrUnexpectedResponse, contentType)
	}
	return body, nil
}
