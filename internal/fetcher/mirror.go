package fetcher

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/bobmatnyc/dedup-cli/internal/resilience"
)

// stateFile records change validators between runs, one file per staging
// directory.
const stateFile = ".mirror-state.yaml"

// A host that keeps failing is dropped for the rest of the run instead of
// burning the retry budget on every remaining file.
const (
	hostFailureLimit = 4
	hostResetTimeout = time.Minute
)

// Request names one remote file to stage. FileName is optional; when empty
// the name is derived from the URL path.
type Request struct {
	URL      string
	FileName string
}

// FetchResult describes the outcome of staging a single URL.
type FetchResult struct {
	URL       string
	Path      string
	Bytes     int64
	Unchanged bool     // remote copy matched the stored validator
	Unpacked  []string // extracted paths when the download was a zip export
}

// Failure records one URL that could not be staged.
type Failure struct {
	URL   string
	Error string
}

// Report summarizes a mirroring run.
type Report struct {
	Total      int
	Downloaded int
	Unchanged  int
	Unpacked   int // files extracted from bulk exports
	Failed     int
	Failures   []Failure
	Elapsed    time.Duration
}

// Mirror stages remote collection files into a local directory. HTTP
// downloads skip files whose stored ETag still matches; zip bulk exports are
// unpacked next to the archive.
type Mirror struct {
	http     Fetcher
	ftp      FileDownloader
	breakers *resilience.HostBreakers
}

// NewMirror creates a Mirror over the given transports.
func NewMirror(httpFetcher Fetcher, ftpFetcher FileDownloader) *Mirror {
	return &Mirror{
		http: httpFetcher,
		ftp:  ftpFetcher,
		breakers: resilience.NewHostBreakers(resilience.CircuitBreakerConfig{
			FailureThreshold: hostFailureLimit,
			ResetTimeout:     hostResetTimeout,
			ShouldTrip:       hostFault,
		}),
	}
}

// hostFault reports whether a fetch error says something about the host
// rather than the requested file. A missing file never opens the circuit.
func hostFault(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.Status)
	}
	return true
}

// Fetch stages one URL into destDir.
func (m *Mirror) Fetch(ctx context.Context, rawURL, destDir string) (*FetchResult, error) {
	st := loadState(destDir)

	res, err := m.fetchOne(ctx, Request{URL: rawURL}, destDir, st)
	if err != nil {
		return nil, err
	}

	if err := saveState(destDir, st); err != nil {
		zap.L().Warn("persist mirror state", zap.Error(err))
	}
	return res, nil
}

// FetchAll stages every requested URL, continuing past per-file failures.
// The returned error is non-nil only when the context is cancelled.
func (m *Mirror) FetchAll(ctx context.Context, reqs []Request, destDir string) (*Report, error) {
	log := zap.L().With(zap.String("component", "fetcher.mirror"))
	start := time.Now()

	report := &Report{Total: len(reqs)}
	st := loadState(destDir)

	for _, req := range reqs {
		select {
		case <-ctx.Done():
			report.Elapsed = time.Since(start)
			if err := saveState(destDir, st); err != nil {
				log.Warn("persist mirror state", zap.Error(err))
			}
			return report, eris.Wrap(ctx.Err(), "fetch: mirror aborted")
		default:
		}

		res, err := m.fetchOne(ctx, req, destDir, st)
		if err != nil {
			log.Warn("fetch failed", zap.String("url", req.URL), zap.Error(err))
			report.Failed++
			report.Failures = append(report.Failures, Failure{URL: req.URL, Error: err.Error()})
			continue
		}

		if res.Unchanged {
			log.Debug("unchanged, skipping", zap.String("url", req.URL))
			report.Unchanged++
			continue
		}

		report.Downloaded++
		report.Unpacked += len(res.Unpacked)
		log.Info("staged",
			zap.String("url", req.URL),
			zap.String("path", res.Path),
			zap.Int64("bytes", res.Bytes),
			zap.Int("unpacked", len(res.Unpacked)),
		)
	}

	if err := saveState(destDir, st); err != nil {
		log.Warn("persist mirror state", zap.Error(err))
	}

	report.Elapsed = time.Since(start)
	log.Info("mirror complete",
		zap.Int("total", report.Total),
		zap.Int("downloaded", report.Downloaded),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("unpacked", report.Unpacked),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Elapsed),
	)

	return report, nil
}

func (m *Mirror) fetchOne(ctx context.Context, req Request, destDir string, st *mirrorState) (*FetchResult, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", req.URL)
	}

	name := req.FileName
	if name == "" {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return nil, eris.Errorf("fetch: cannot derive a file name from %s", req.URL)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "fetch: create staging dir")
	}

	dest := filepath.Join(destDir, name)
	result := &FetchResult{URL: req.URL, Path: dest}

	cb := m.breakers.Get(u.Host)
	switch u.Scheme {
	case "http", "https":
		if err := cb.Execute(ctx, func(ctx context.Context) error {
			return m.fetchHTTP(ctx, req.URL, dest, st, result)
		}); err != nil {
			return nil, err
		}
	case "ftp":
		n, err := resilience.ExecuteVal(ctx, cb, func(ctx context.Context) (int64, error) {
			return m.ftp.DownloadToFile(ctx, req.URL, dest)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: %s", req.URL)
		}
		result.Bytes = n
	default:
		return nil, eris.Errorf("fetch: unsupported scheme %q in %s", u.Scheme, req.URL)
	}

	if result.Unchanged {
		return result, nil
	}

	if IsZIPFile(dest) {
		unpackDir := strings.TrimSuffix(dest, filepath.Ext(dest))
		if unpackDir == dest {
			unpackDir = dest + ".unpacked"
		}
		files, err := UnpackZIP(dest, unpackDir)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: unpack %s", name)
		}
		result.Unpacked = files
	}

	return result, nil
}

// fetchHTTP downloads rawURL to dest, skipping the transfer when the stored
// validator still matches. The validator is only offered when the staged file
// is actually present; a 304 against a deleted file would leave nothing.
func (m *Mirror) fetchHTTP(ctx context.Context, rawURL, dest string, st *mirrorState, result *FetchResult) error {
	etag := ""
	if _, err := os.Stat(dest); err == nil {
		etag = st.ETags[rawURL]
	}

	body, newETag, changed, err := m.http.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return eris.Wrapf(err, "fetch: %s", rawURL)
	}
	if !changed {
		result.Unchanged = true
		return nil
	}
	defer body.Close() //nolint:errcheck

	n, err := saveStream(body, dest)
	if err != nil {
		return eris.Wrapf(err, "fetch: stage %s", rawURL)
	}
	result.Bytes = n

	if newETag != "" {
		st.ETags[rawURL] = newETag
	} else {
		delete(st.ETags, rawURL)
	}
	return nil
}

// mirrorState is the on-disk validator cache.
type mirrorState struct {
	ETags map[string]string `yaml:"etags"`
}

// loadState reads the validator cache from destDir. A missing or unreadable
// cache only costs a re-download, so it is never an error.
func loadState(destDir string) *mirrorState {
	st := &mirrorState{ETags: make(map[string]string)}

	data, err := os.ReadFile(filepath.Join(destDir, stateFile))
	if err != nil {
		return st
	}
	if err := yaml.Unmarshal(data, st); err != nil {
		zap.L().Warn("unreadable mirror state, refetching everything", zap.Error(err))
		return &mirrorState{ETags: make(map[string]string)}
	}
	if st.ETags == nil {
		st.ETags = make(map[string]string)
	}
	return st
}

func saveState(destDir string, st *mirrorState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return eris.Wrap(err, "fetch: encode mirror state")
	}
	if err := os.WriteFile(filepath.Join(destDir, stateFile), data, 0o644); err != nil {
		return eris.Wrap(err, "fetch: write mirror state")
	}
	return nil
}
