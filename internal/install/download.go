package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultResponseHeaderTimeout is the default timeout for receiving
// response headers.
const DefaultResponseHeaderTimeout = 30 * time.Second

// userAgent identifies this client to the release servers.
const userAgent = "openboard-enginebridge"

// Downloader fetches release archives with resume support.
type Downloader struct {
	client *http.Client
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadClient sets a custom HTTP client.
func WithDownloadClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.client = client
	}
}

// NewDownloader creates a Downloader with sensible defaults. There is no
// overall client timeout; cancellation is per-request via context.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// open starts the transfer, resuming from destPath's current size when the
// server supports range requests. Returns the body and the total size.
func (d *Downloader) open(ctx context.Context, url, destPath string) (io.ReadCloser, int64, int64, error) {
	var existingSize int64
	if info, err := os.Stat(destPath); err == nil {
		existingSize = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("downloading: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, 0, 0, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var totalSize int64
	if resp.StatusCode == http.StatusPartialContent {
		// Content-Range: bytes 100-999/1000
		var start, end int64
		if _, err := fmt.Sscanf(resp.Header.Get("Content-Range"), "bytes %d-%d/%d", &start, &end, &totalSize); err != nil {
			totalSize = existingSize + resp.ContentLength
		}
	} else {
		totalSize = resp.ContentLength
		existingSize = 0 // Server ignored the range, start over.
	}

	return resp.Body, totalSize, existingSize, nil
}

// DownloadToFile downloads url to destPath, appending to a partial file
// when the server honors range requests.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string, progress ProgressFunc) error {
	body, totalSize, existingSize, err := d.open(ctx, url, destPath)
	if err != nil {
		return err
	}
	defer body.Close()

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if existingSize > 0 {
		flags = os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(destPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	buf := make([]byte, 32*1024)
	downloaded := existingSize
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("writing file: %w", writeErr)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(Progress{
					Phase:           "download",
					BytesDownloaded: downloaded,
					BytesTotal:      totalSize,
				})
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
	}
}
