package index

import (
	"log/slog"
	"time"

	"github.com/starford/pile/internal/checksum"
	"github.com/starford/pile/internal/codec"
	"github.com/starford/pile/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed documents are parsed and upserted
//   - documents removed from disk are deleted from the index
func Sync(db DocumentIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data as a document and upserts it into the index.
func IndexFile(db DocumentIndex, path string, data []byte) error {
	doc := codec.Parse(string(data))
	sum := codec.Inspect(doc)

	row := DocumentRow{
		Path:      path,
		Title:     sum.Title,
		Checksum:  checksum.Sum(data),
		Tags:      sum.Tags,
		Fields:    doc.Data,
		UpdatedAt: time.Now().UTC(),
	}
	return db.UpsertDocument(row, doc.Content, sum.Media)
}
