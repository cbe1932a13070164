package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	v1 "github.com/fpsframework/firearm/internal/storage/memory/export/v1"
	"github.com/fpsframework/firearm/internal/util"
	"github.com/fpsframework/firearm/pkg/core"
)

// exportJSON writes the session data to a JSON file. Callers hold mu.
func (b *Backend) exportJSON() error {
	export := v1.Build(b.sessionData())

	name := util.SanitizeFileName(b.session.Name)
	timestamp := b.session.StartTime.Format("20060102_150405")

	ext := ".json"
	if b.cfg.CompressOutput {
		ext += ".gz"
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, name+"_"+timestamp+ext)
	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) sessionData() *v1.SessionData {
	data := &v1.SessionData{
		Session:     b.session,
		Firearms:    make([]*v1.FirearmRecord, 0, len(b.firearmOrder)),
		Hits:        b.hits,
		Projectiles: b.projectiles,
		EndSimTime:  b.endSimTime,
	}
	for _, id := range b.firearmOrder {
		data.Firearms = append(data.Firearms, b.firearms[id])
	}
	return data
}

// GetExportedFilePath returns the path of the last export, empty before the
// first EndSession.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata summarizes the current session.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	meta := core.UploadMetadata{
		Duration: b.endSimTime,
		Hits:     len(b.hits),
	}
	if b.session != nil {
		meta.SessionName = b.session.Name
		meta.Tag = b.session.Tag
	}
	for _, r := range b.firearms {
		meta.Shots += len(r.Shots)
	}
	return meta
}

// writeExport encodes data to path, gzip-compressed when compress is set.
// A file that fails to encode or flush is removed.
func writeExport(path string, data v1.Export, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close export: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}
	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(data); err != nil {
		_ = gz.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}
