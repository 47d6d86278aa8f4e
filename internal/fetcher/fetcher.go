// Package fetcher stages remote document collections locally. It speaks HTTP
// (rate-limited, retrying, ETag-aware) and FTP, and unpacks zip bulk exports
// so a staged collection is ready for ingest.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// StatusError reports a request that completed with an unexpected HTTP
// status. Callers can tell per-file statuses (404, 410) apart from
// host-level trouble (429, 5xx) without parsing error text.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}

// Fetcher is the transport contract for hosts that publish change validators.
// HTTPFetcher satisfies it.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// HeadETag returns the current ETag for the URL, or empty when the server
	// does not publish one.
	HeadETag(ctx context.Context, url string) (string, error)

	// DownloadIfChanged fetches the URL only if its ETag differs from the given
	// one. Returns (body, newETag, changed, error); body is nil when the remote
	// copy is unchanged.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// FileDownloader is the narrower contract for transports without validators.
// FTPFetcher satisfies it.
type FileDownloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// saveStream writes r to path through a .part staging file so an interrupted
// transfer never leaves a truncated file at the final name.
func saveStream(r io.Reader, path string) (int64, error) {
	tmp := path + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}

	n, err := io.Copy(out, r)
	if err != nil {
		out.Close()    //nolint:errcheck
		os.Remove(tmp) //nolint:errcheck
		return n, eris.Wrap(err, "write file")
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return n, eris.Wrap(err, "close file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return n, eris.Wrap(err, "finalize file")
	}

	return n, nil
}
