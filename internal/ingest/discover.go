package ingest

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// supportedExts are the formats the extraction boundary can read.
var supportedExts = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".text": true,
	".md":   true,
}

// DiscoverDir walks root and seeds one Document per ingestible file. The
// registered FilePath is archive-relative, prefixed with the archive
// directory name, so the same file mirrored at a different mount point keeps
// its identity and source attachment stays idempotent; ID keeps the on-disk
// location for reading. DownloadDate falls back to file modification time
// until a manifest overrides it.
func DiscoverDir(root, collection string) ([]model.Document, error) {
	cleanRoot := filepath.Clean(root)
	archive := filepath.Base(cleanRoot)

	var docs []model.Document
	err := filepath.WalkDir(cleanRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if !supportedExts[ext] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(cleanRoot, p)
		if err != nil {
			return err
		}

		docs = append(docs, model.Document{
			ID:           p,
			SourceName:   archive,
			Collection:   collection,
			FilePath:     path.Join(archive, filepath.ToSlash(rel)),
			Format:       strings.TrimPrefix(ext, "."),
			FileSize:     info.Size(),
			DownloadDate: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: discover %s", root)
	}
	return docs, nil
}
