package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"

	"caption-server-go/internal/domain/safety"
	"caption-server-go/internal/platform/logging"
	"caption-server-go/internal/platform/observability"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxBytes  = 5 * 1024 * 1024
	DefaultUserAgent = "caption-server-go/1.0"
)

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	// Guard 非空时在建立连接前再次校验实际 IP
	Guard  *safety.Policy
	Logger *logging.Logger
}

// Payload is a fully read response body.
type Payload struct {
	Data        []byte
	ContentType string
}

// Fetcher performs single bounded GET requests. It never follows redirects.
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	logger    *logging.Logger
}

// New builds a Fetcher with its own transport.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	dialer := &net.Dialer{
		Timeout:   opts.Timeout,
		KeepAlive: 30 * time.Second,
	}
	if opts.Guard != nil {
		policy := *opts.Guard
		dialer.Control = func(_, address string, _ syscall.RawConn) error {
			addrPort, err := netip.ParseAddrPort(address)
			if err != nil {
				return err
			}
			return policy.AllowsAddr(addrPort.Addr())
		}
	}

	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.Timeout,
		ResponseHeaderTimeout: opts.Timeout,
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
}

// MaxBytes reports the payload limit.
func (f *Fetcher) MaxBytes() int64 {
	return f.maxBytes
}

// Fetch downloads rawURL. Only a 200 response with at most MaxBytes of body succeeds.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (payload *Payload, err error) {
	ctx, finish := observability.StartSpan(ctx, "fetch", "get")
	defer func() { finish(err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.WarnTag("抓取", "上游状态异常: url=%s status=%d", rawURL, resp.StatusCode)
		return nil, &Error{Kind: KindUpstreamStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > f.maxBytes {
		f.logger.WarnTag("抓取", "声明长度超限: url=%s content_length=%d max=%d", rawURL, resp.ContentLength, f.maxBytes)
		return nil, &Error{Kind: KindPayloadTooLarge, URL: rawURL, Limit: f.maxBytes}
	}

	limited := &io.LimitedReader{R: resp.Body, N: f.maxBytes + 1}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, f.classify(rawURL, err)
	}
	if int64(len(data)) > f.maxBytes {
		f.logger.WarnTag("抓取", "图片超过大小限制: url=%s max=%d", rawURL, f.maxBytes)
		return nil, &Error{Kind: KindPayloadTooLarge, URL: rawURL, Limit: f.maxBytes}
	}

	observability.ObserveFetchedBytes(len(data))
	f.logger.DebugTag("抓取", "下载完成: url=%s bytes=%d content_type=%s", rawURL, len(data), resp.Header.Get("Content-Type"))
	return &Payload{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (f *Fetcher) classify(rawURL string, err error) error {
	var blocked *safety.BlockedError
	if errors.As(err, &blocked) {
		f.logger.WarnTag("抓取", "连接目标被拒绝: url=%s %v", rawURL, blocked)
		return &Error{Kind: KindForbidden, URL: rawURL, Err: blocked}
	}
	f.logger.WarnTag("抓取", "网络错误: url=%s err=%v", rawURL, err)
	return &Error{Kind: KindNetwork, URL: rawURL, Err: err}
}
