package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/secure-deps/depowners/internal/utils/retry"
)

// FetchResult is one completed dump download. NotModified is set when
// the registry confirmed via ETag that the cached bytes are still
// current, in which case Data is empty.
type FetchResult struct {
	Data        []byte
	ETag        string
	NotModified bool
}

// Fetcher streams the registry's bulk dump over HTTPS with bounded
// retries. Progress enables a byte-progress bar on stderr for
// interactive runs.
type Fetcher struct {
	HTTP     *http.Client
	URL      string
	Progress bool
}

// NewFetcher returns a dump fetcher for the given URL.
func NewFetcher(httpClient *http.Client, url string) *Fetcher {
	return &Fetcher{HTTP: httpClient, URL: url}
}

// Fetch downloads the dump. A non-empty etag is sent as If-None-Match so
// the registry can answer 304 instead of shipping hundreds of megabytes
// again. Transient failures are retried with backoff; a 4xx fails
// immediately. A failed fetch has no side effects, so the previously
// cached snapshot stays exactly as fresh as its metadata says.
func (f *Fetcher) Fetch(ctx context.Context, etag string) (*FetchResult, error) {
	log := zap.L().Sugar()

	var result *FetchResult
	err := retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := f.HTTP.Do(req)
		if err != nil {
			return fmt.Errorf("GET %s: %w", f.URL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotModified {
			result = &FetchResult{ETag: etag, NotModified: true}
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return retry.StatusError(resp)
		}

		var buf bytes.Buffer
		if resp.ContentLength > 0 {
			buf.Grow(int(resp.ContentLength))
		}

		body := io.Reader(resp.Body)
		if f.Progress {
			bar := progressbar.NewOptions64(resp.ContentLength,
				progressbar.OptionSetDescription("downloading snapshot"),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionThrottle(100*time.Millisecond),
			)
			body = io.TeeReader(resp.Body, bar)
			defer bar.Finish()
		}

		n, err := io.Copy(&buf, body)
		if err != nil {
			return fmt.Errorf("reading snapshot body: %w", err)
		}
		log.Debugf("downloaded snapshot: %s", humanize.Bytes(uint64(n)))

		result = &FetchResult{
			Data: buf.Bytes(),
			ETag: resp.Header.Get("ETag"),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot from %s: %w", f.URL, err)
	}
	return result, nil
}
