package origin

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/audio-hub/audio-hub/internal/config"
	"github.com/audio-hub/audio-hub/internal/storage"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
}

// Fetcher 负责把源地址的内容下载进存储写句柄，并实施超时与代理策略。
// 任何传输失败都会丢弃已写入的部分数据，保证规范路径上不会出现半成品。
type Fetcher struct {
	cfg    config.FetchConfig
	logger *logrus.Logger
}

// NewFetcher 构造回源下载器。
func NewFetcher(cfg config.FetchConfig, logger *logrus.Logger) *Fetcher {
	return &Fetcher{cfg: cfg, logger: logger}
}

// httpClient 按本次请求的代理策略构建客户端。连接超时作用于拨号阶段，
// 执行超时约束整个请求生命周期。
func (f *Fetcher) httpClient(useProxy bool) *http.Client {
	transport := defaultTransport.Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   f.cfg.ConnectTimeout.DurationValue(),
		KeepAlive: 30 * time.Second,
	}).DialContext

	if useProxy {
		if proxyURL := f.cfg.ProxyURL(); proxyURL != nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	return &http.Client{
		Timeout:   f.cfg.ExecTimeout.DurationValue(),
		Transport: transport,
	}
}

// Download 把 rawURL 的正文写入 dst。成功时提交（Close），失败时放弃写入
// 并返回错误；调用方只需要关心成败，诊断细节在这里就地记录。
func (f *Fetcher) Download(ctx context.Context, rawURL string, dst io.WriteCloser, useProxy bool) error {
	err := f.download(ctx, rawURL, dst, useProxy)
	if err != nil {
		f.abort(dst)
		f.logger.WithFields(logrus.Fields{
			"action": "origin_fetch",
			"proxy":  useProxy,
		}).WithError(err).Warn("下载源文件失败")
		return err
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string, dst io.WriteCloser, useProxy bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := f.httpClient(useProxy).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("origin fetch status %d", resp.StatusCode)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return err
	}
	return dst.Close()
}

// Probe 发起仅含元数据的请求（HEAD），返回正文字节数，不下载内容。
func (f *Fetcher) Probe(ctx context.Context, rawURL string, useProxy bool) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.httpClient(useProxy).Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("origin probe status %d", resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("origin probe missing content length")
	}
	return resp.ContentLength, nil
}

// abort 优先走 Aborter 丢弃半成品；句柄不支持时退化为 Close。
func (f *Fetcher) abort(dst io.WriteCloser) {
	if aborter, ok := dst.(storage.Aborter); ok {
		if err := aborter.Abort(); err != nil {
			f.logger.WithField("action", "origin_fetch").WithError(err).Warn("清理残留写入失败")
		}
		return
	}
	dst.Close()
}
