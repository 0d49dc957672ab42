// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package feed

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/klauspost/compress/gzip"
	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"google.golang.org/protobuf/proto"
)

// DefaultTimeout is the default connect and socket timeout.
const DefaultTimeout = 30 * time.Second

const (
	schemeHTTP   = "http"
	schemeHTTPS  = "https"
	gzipEncoding = "gzip"
	acceptTypes  = "application/x-protobuf,application/octet-stream,*/*"
)

// Decoder converts the (already decompressed) response body into a feed
// message. It must either return a complete message or an error.
type Decoder func(data []byte) (*gtfs.FeedMessage, error)

// DecodeFeedMessage is the default Decoder for the GTFS-realtime protobuf
// encoding. Missing required fields are reported as errors.
func DecodeFeedMessage(data []byte) (*gtfs.FeedMessage, error) {
	var m gtfs.FeedMessage
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Fetcher downloads and decodes a feed from a fixed endpoint. Configure it
// with the Set* methods before calling Fetch.
type Fetcher struct {
	endpoint       *url.URL
	username       string
	password       string
	connectTimeout time.Duration
	socketTimeout  time.Duration
	insecureTLS    bool
	rootCAsFile    string // PEM bundle; empty = system roots
	diagnostics    bool   // dump request and response headers
	decode         Decoder
	message        *gtfs.FeedMessage // last successfully decoded message
}

// NewFetcher creates a Fetcher for an absolute http or https URL.
func NewFetcher(endpoint string) (*Fetcher, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Annotate(err, "invalid feed URL '%s'", endpoint)
	}
	if u.Scheme != schemeHTTP && u.Scheme != schemeHTTPS {
		return nil, errors.Reason("feed URL must use http or https: '%s'", endpoint)
	}
	if u.Host == "" {
		return nil, errors.Reason("feed URL has no host: '%s'", endpoint)
	}
	return &Fetcher{
		endpoint:       u,
		connectTimeout: DefaultTimeout,
		socketTimeout:  DefaultTimeout,
		decode:         DecodeFeedMessage,
	}, nil
}

// Endpoint URL of the feed.
func (f *Fetcher) Endpoint() string {
	return f.endpoint.String()
}

// SetCredentials for HTTP basic authentication. The Authorization header is
// sent only when both username and password are non-empty.
func (f *Fetcher) SetCredentials(username, password string) {
	f.username = username
	f.password = password
}

// SetDiagnostics enables logging of request and response headers.
func (f *Fetcher) SetDiagnostics(enabled bool) {
	f.diagnostics = enabled
}

// SetTimeouts sets the connect timeout (dial and TLS handshake) and the socket
// timeout (maximum inactivity between reads). Zero disables a timeout.
func (f *Fetcher) SetTimeouts(connect, socket time.Duration) {
	f.connectTimeout = connect
	f.socketTimeout = socket
}

// SetInsecureTLS enables relaxed TLS trust: any server certificate is
// accepted without chain or host name validation. Off by default.
func (f *Fetcher) SetInsecureTLS(insecure bool) {
	f.insecureTLS = insecure
}

// SetRootCAs pins the server certificate authorities to the PEM bundle in
// pemFile. The file is read at Fetch time.
func (f *Fetcher) SetRootCAs(pemFile string) {
	f.rootCAsFile = pemFile
}

// SetDecoder overrides the default DecodeFeedMessage.
func (f *Fetcher) SetDecoder(d Decoder) {
	f.decode = d
}

// FeedMessage returns the result of the last successful Fetch, or nil.
func (f *Fetcher) FeedMessage() *gtfs.FeedMessage {
	return f.message
}

func (f *Fetcher) hasCredentials() bool {
	return f.username != "" && f.password != ""
}

// tlsConfig builds the client TLS configuration for https endpoints.
func (f *Fetcher) tlsConfig() (*tls.Config, error) {
	c := &tls.Config{}
	if f.insecureTLS {
		c.InsecureSkipVerify = true
	}
	if f.rootCAsFile != "" {
		pem, err := os.ReadFile(f.rootCAsFile)
		if err != nil {
			return nil, &TLSConfigError{
				Err: errors.Annotate(err, "failed to read CA file '%s'", f.rootCAsFile)}
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, &TLSConfigError{
				Err: errors.Reason("no certificates in CA file '%s'", f.rootCAsFile)}
		}
		c.RootCAs = pool
	}
	return c, nil
}

// newClient creates a single-use client. Keep-alives are off, so closing the
// response body releases the connection.
func (f *Fetcher) newClient(tlsConfig *tls.Config) *http.Client {
	dialer := &net.Dialer{Timeout: f.connectTimeout}
	socketTimeout := f.socketTimeout
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &deadlineConn{Conn: conn, timeout: socketTimeout}, nil
		},
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   f.connectTimeout,
		ResponseHeaderTimeout: socketTimeout,
		DisableCompression:    true,
		DisableKeepAlives:     true,
	}
	return &http.Client{Transport: transport}
}

// newRequest creates the GET request with all the feed headers.
func (f *Fetcher) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint.String(), nil)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create request")
	}
	req.Header.Set("Accept-Encoding", gzipEncoding)
	req.Header.Set("Accept", acceptTypes)
	if f.hasCredentials() {
		req.SetBasicAuth(f.username, f.password)
	}
	return req, nil
}

// Fetch downloads and decodes the feed. On success the message is also saved
// for FeedMessage(). On failure the previously saved message is not changed.
func (f *Fetcher) Fetch(ctx context.Context) (*gtfs.FeedMessage, error) {
	uri := f.endpoint.String()
	logging.Infof(ctx, "loading %s ...", uri)

	var tlsConfig *tls.Config
	if f.endpoint.Scheme == schemeHTTPS {
		var err error
		if tlsConfig, err = f.tlsConfig(); err != nil {
			return nil, err
		}
	}
	client := f.newClient(tlsConfig)
	defer client.CloseIdleConnections()

	req, err := f.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	var connected atomic.Bool
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	if f.diagnostics {
		h := req.Header.Clone()
		h.Set("Host", req.URL.Host)
		logging.Infof(ctx, "request headers:")
		logging.Infof(ctx, "%s", FormatHeaders(h))
	}
	resp, err := client.Do(req)
	if err != nil {
		phase := ConnectPhase
		if connected.Load() {
			phase = ReadPhase
		}
		return nil, newTransportError(phase, err)
	}
	defer resp.Body.Close()

	if f.diagnostics {
		logging.Infof(ctx, "response headers:")
		logging.Infof(ctx, "%s", FormatHeaders(resp.Header))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{
			Code:       resp.StatusCode,
			StatusLine: resp.Proto + " " + resp.Status,
		}
	}
	data, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	m, err := f.decode(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	f.message = m
	logging.Infof(ctx, "finished loading %s", uri)
	return m, nil
}

// readBody reads the entire body and gunzips it if the server declared gzip
// content encoding. A body that ends before its declared length is
// malformed input, not a transport failure.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if !isTimeout(err) && errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &DecodeError{Err: errors.Annotate(err, "truncated body")}
		}
		return nil, newTransportError(ReadPhase, err)
	}
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), gzipEncoding) {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, &DecodeError{Err: errors.Annotate(err, "failed to open gzip stream")}
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, &DecodeError{Err: errors.Annotate(err, "failed to gunzip body")}
	}
	return data, nil
}

// FormatHeaders renders headers as "Name: value" lines sorted by name and
// joined with "\n". A multi-valued header yields one line per value.
func FormatHeaders(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := []string{}
	for _, name := range names {
		for _, v := range h[name] {
			lines = append(lines, name+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}
