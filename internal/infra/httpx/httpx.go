package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2

	// UserAgent 固定；远程工作簿多来自内网文件服务，不需要 UA 轮换。
	UserAgent = "reqmatch/1 (+workbook fetch)"
)

// Transport 把“固定 UA + 代理 + 有界重试”固化为统一策略。
type Transport struct {
	Base http.RoundTripper

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int

	// Backoff 是两次尝试之间的等待；0 表示立即重试。
	Backoff time.Duration
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		if attempt > 0 && t.Backoff > 0 {
			select {
			case <-req.Context().Done():
				return nil, lastErr
			case <-time.After(t.Backoff):
			}
		}

		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", UserAgent)
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			// 5xx 视为暂时性故障；最后一次尝试仍把响应原样交给调用方。
			if resp.StatusCode >= 500 && attempt < max {
				_ = drainClose(resp.Body)
				lastErr = fmt.Errorf("http status %d", resp.StatusCode)
				continue
			}
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// NewClient 构造下载远程工作簿用的 HTTP client。
//
// proxyURL 非空：所有请求走该代理。
func NewClient(proxyURL string) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	if proxyURL = strings.TrimSpace(proxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("代理地址无效：%q", proxyURL)
		}
		base.Proxy = http.ProxyURL(u)
	}

	return &http.Client{
		Transport: &Transport{
			Base:     base,
			RetryMax: defaultRetryMax,
			Backoff:  200 * time.Millisecond,
		},
		Timeout: defaultTimeout,
	}, nil
}

// StatusError 表示远端返回了非 2xx。
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("下载失败：%s 返回 HTTP %d", e.URL, e.Status)
}

// ErrTooLarge 表示响应体超过上限。
var ErrTooLarge = errors.New("响应体超过大小上限")

// IsURL 判断参数是否为 http(s) 地址（CLI 用它区分本地路径与远程工作簿）。
func IsURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch 下载 rawURL，返回响应体与推断出的文件名（取 URL 路径最后一段）。
// maxBytes<=0 表示不限制。
func Fetch(ctx context.Context, c *http.Client, rawURL string, maxBytes int64) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("nil http client")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &StatusError{URL: rawURL, Status: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && int64(len(b)) > maxBytes {
		return nil, "", ErrTooLarge
	}
	return b, fileName(req.URL), nil
}

func fileName(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "download.xlsx"
	}
	return name
}

func drainClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64<<10))
	return rc.Close()
}
