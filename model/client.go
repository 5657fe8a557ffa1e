package model

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"time"
)

// NewClient returns the HTTP client used for model downloads. Response
// headers must arrive within a minute; the body itself is unbounded since
// large models take a while on slow links.
func NewClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   15 * time.Second,
			ResponseHeaderTimeout: time.Minute,
			ForceAttemptHTTP2:     true,
		},
	}
}

// FetchMetrics times the phases of one download.
type FetchMetrics struct {
	DNS        time.Duration
	TCP        time.Duration
	TLS        time.Duration
	TTFB       time.Duration
	Body       time.Duration
	Total      time.Duration
	Bytes      int64
	ConnReused bool
}

// traceFetch attaches an httptrace that fills m. Redirects run the hooks
// again, so the values describe the last hop.
func traceFetch(ctx context.Context, m *FetchMetrics) context.Context {
	var dnsStart, tcpStart, tlsStart, wrote time.Time
	return httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn:           func(info httptrace.GotConnInfo) { m.ConnReused = info.Reused },
		DNSStart:          func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone:           func(httptrace.DNSDoneInfo) { m.DNS = time.Since(dnsStart) },
		ConnectStart:      func(_, _ string) { tcpStart = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { m.TCP = time.Since(tcpStart) },
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(tls.ConnectionState, error) { m.TLS = time.Since(tlsStart) },
		WroteRequest:      func(httptrace.WroteRequestInfo) { wrote = time.Now() },
		GotFirstResponseByte: func() {
			m.TTFB = time.Since(wrote)
		},
	})
}
