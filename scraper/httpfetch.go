package scraper

import (
	"compress/gzip"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	tls2 "github.com/refraction-networking/utls"
	"github.com/use-agent/gamedeck/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxDocumentSize caps static documents read from disk or network.
const maxDocumentSize = 64 << 20

// DocumentLoader reads pre-fetched catalog markup from a local file or an
// http(s) URL. Remote documents are fetched with a Chrome TLS fingerprint.
type DocumentLoader struct {
	fetcher *httpFetcher
	timeout time.Duration
}

// NewDocumentLoader creates a loader that fetches through proxy (if set)
// and gives up on remote documents after timeout. An unusable proxy URL is
// an INVALID_INPUT error.
func NewDocumentLoader(proxy, acceptLanguage string, timeout time.Duration) (*DocumentLoader, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	fetcher, err := newHTTPFetcher(proxy, acceptLanguage)
	if err != nil {
		return nil, err
	}
	return &DocumentLoader{fetcher: fetcher, timeout: timeout}, nil
}

// Load returns the markup at source.
func (l *DocumentLoader) Load(ctx context.Context, source string) (string, error) {
	if isRemote(source) {
		ctx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()
		body, err := l.fetcher.fetch(ctx, source)
		if err != nil {
			return "", categorizeError(err, "failed to fetch static document")
		}
		return string(body), nil
	}

	f, err := os.Open(source)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeViewInit, "failed to open static document", err)
	}
	defer f.Close()
	body, err := io.ReadAll(io.LimitReader(f, maxDocumentSize))
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeViewInit, "failed to read static document", err)
	}
	return string(body), nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// httpFetcher performs HTTP requests with a Chrome TLS fingerprint (utls).
type httpFetcher struct {
	dial           dialFunc
	acceptLanguage string

	// rootCAs overrides the system roots; nil uses the host's.
	rootCAs *x509.CertPool
}

func newHTTPFetcher(proxy, acceptLanguage string) (*httpFetcher, error) {
	dial, err := newProxyDialer(proxy)
	if err != nil {
		return nil, err
	}
	return &httpFetcher{dial: dial, acceptLanguage: acceptLanguage}, nil
}

// fetch retrieves targetURL over HTTP/1.1 with a Chrome TLS fingerprint.
func (f *httpFetcher) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	transport := &http.Transport{
		DialContext:       f.dial,
		DialTLSContext:    f.dialTLSChrome,
		ForceAttemptHTTP2: false,
	}
	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if f.acceptLanguage != "" {
		req.Header.Set("Accept-Language", f.acceptLanguage)
	}
	req.Header.Set("Accept-Encoding", "gzip, br")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("httpfetch: HTTP %d for %s", resp.StatusCode, targetURL)
	}

	reader, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("httpfetch: decode body: %w", err)
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("httpfetch: read body: %w", err)
	}
	return body, nil
}

// decodeBody undoes the Content-Encoding we asked for. Setting
// Accept-Encoding by hand turns off net/http's transparent gzip.
func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "br":
		return brotli.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

// chromeHTTP1Spec is the Chrome ClientHello with ALPN narrowed to
// http/1.1; http.Transport cannot speak h2 over a utls connection.
// Build one per connection.
func chromeHTTP1Spec() (*tls2.ClientHelloSpec, error) {
	spec, err := tls2.UTLSIdToSpec(tls2.HelloChrome_Auto)
	if err != nil {
		return nil, err
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls2.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return &spec, nil
}

// dialTLSChrome reaches addr (through the proxy, if any) and completes a
// TLS handshake using the Chrome fingerprint.
func (f *httpFetcher) dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	spec, err := chromeHTTP1Spec()
	if err != nil {
		return nil, fmt.Errorf("httpfetch: build tls spec: %w", err)
	}

	rawConn, err := f.dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host, RootCAs: f.rootCAs}, tls2.HelloCustom)
	if err := tlsConn.ApplyPreset(spec); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("httpfetch: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
