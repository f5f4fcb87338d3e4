package tagbot

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Remote paste handling
const (
	RemoteContentPrefix = "http"
	HastebinPrefix      = "https://hasteb.in"
	HastebinRawPrefix   = "https://hasteb.in/raw/"
	HastebinRawMarker   = "raw"
)

// ContentFetcher retrieves tag content from a remote paste.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// IsRemoteContent reports whether create content is a link to fetch.
func IsRemoteContent(content string) bool {
	return strings.HasPrefix(content, RemoteContentPrefix)
}

// RawPasteURL rewrites a hastebin page link to its raw-text endpoint.
// Other URLs are returned unchanged.
func RawPasteURL(url string) string {
	if strings.HasPrefix(url, HastebinPrefix) && !strings.Contains(url, HastebinRawMarker) && len(url) > len(HastebinPrefix)+1 {
		return HastebinRawPrefix + url[len(HastebinPrefix)+1:]
	}
	return url
}

// HTTPFetcher fetches paste content over HTTP with a hard deadline and a
// response size cap. Connections to loopback, private, link-local,
// multicast and unspecified addresses are refused at dial time unless
// AllowPrivateNetworks is called.
type HTTPFetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxSize      int64
	allowPrivate bool
}

var errBlockedAddress = errors.New(ErrMsgFetchBlockedAddress)

// NewHTTPFetcher creates a fetcher. Zero values fall back to the defaults.
func NewHTTPFetcher(timeout time.Duration, maxSize int64) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if maxSize <= 0 {
		maxSize = DefaultFetchMaxSize
	}
	f := &HTTPFetcher{
		timeout: timeout,
		maxSize: maxSize,
	}

	dialer := &net.Dialer{Timeout: timeout, Control: f.checkDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	// A proxy would be dialed instead of the target and hide its address.
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	f.client = &http.Client{Timeout: timeout, Transport: transport}
	return f
}

// AllowPrivateNetworks lifts the dial-time address check. Intended for
// trusted deployments and local testing.
func (f *HTTPFetcher) AllowPrivateNetworks() *HTTPFetcher {
	f.allowPrivate = true
	return f
}

// checkDial runs after DNS resolution, so address is always an IP.
func (f *HTTPFetcher) checkDial(_, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if IsBlockedFetchAddr(addr) {
		return errBlockedAddress
	}
	return nil
}

// IsBlockedFetchAddr reports whether addr is outside the public unicast range.
func IsBlockedFetchAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified()
}

// Fetch GETs url (after RawPasteURL) and returns the body as text.
// A deadline yields ErrFetchTimeout; anything else ErrFetchFailure.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	url = RawPasteURL(url)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", NewFetchFailureError(url, err.Error())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", f.classify(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", NewFetchFailureError(url, ErrMsgFetchStatus+": "+strconv.Itoa(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return "", f.classify(url, err)
	}
	if int64(len(body)) > f.maxSize {
		return "", NewFetchFailureError(url, ErrMsgFetchTooLarge)
	}
	return string(body), nil
}

func (f *HTTPFetcher) classify(url string, err error) error {
	if errors.Is(err, errBlockedAddress) {
		return NewFetchFailureError(url, ErrMsgFetchBlockedAddress)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewFetchTimeoutError(url)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewFetchTimeoutError(url)
	}
	return NewFetchFailureError(url, err.Error())
}
