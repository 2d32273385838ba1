// Package backup archives the analysis history database, and optionally the
// config file, into a tar.gz and restores it again.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/HerbHall/faceanalyzer/internal/version"
)

const manifestName = "manifest.json"

// ErrExists is returned by Restore when a target file exists and force is off.
var ErrExists = errors.New("file already exists")

// Manifest describes the archive contents.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Files     []string  `json:"files"`
}

// Backup writes a tar.gz archive at outputPath holding a consistent snapshot
// of the database at dbPath plus configPath when it is set and present.
func Backup(ctx context.Context, dbPath, configPath, outputPath string) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("database file not found: %w", err)
	}

	// VACUUM INTO produces a self-contained copy that includes WAL content.
	tmpDir, err := os.MkdirTemp("", "faceanalyzer-backup-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)
	snapshot := filepath.Join(tmpDir, filepath.Base(dbPath))
	if err := snapshotDB(ctx, dbPath, snapshot); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	files := map[string]string{filepath.Base(dbPath): snapshot}
	order := []string{filepath.Base(dbPath)}
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			files[filepath.Base(configPath)] = configPath
			order = append(order, filepath.Base(configPath))
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := writeArchive(out, order, files); err != nil {
		out.Close()
		os.Remove(outputPath)
		return err
	}
	return out.Close()
}

func writeArchive(w io.Writer, order []string, files map[string]string) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	manifest, err := json.MarshalIndent(Manifest{
		Version:   version.Version,
		CreatedAt: time.Now().UTC(),
		Files:     order,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	hdr := &tar.Header{Name: manifestName, Mode: 0o644, Size: int64(len(manifest)), ModTime: time.Now()}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	for _, name := range order {
		if err := addFileToTar(tw, files[name], name); err != nil {
			return fmt.Errorf("add %s to archive: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	return gw.Close()
}

func snapshotDB(ctx context.Context, dbPath, target string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, "VACUUM INTO ?", target)
	return err
}

func addFileToTar(tw *tar.Writer, filePath, archiveName string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = archiveName
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Restore extracts the archive at input into dataDir. Existing files are
// only overwritten when force is set. It returns the archive manifest.
func Restore(ctx context.Context, input, dataDir string, force bool) (*Manifest, error) {
	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read gzip: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var manifest *Manifest
	tr := tar.NewReader(gr)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(hdr.Name)
		if name != hdr.Name || strings.HasPrefix(name, ".") {
			return nil, fmt.Errorf("archive entry %q: unexpected path", hdr.Name)
		}

		if name == manifestName {
			var m Manifest
			if err := json.NewDecoder(tr).Decode(&m); err != nil {
				return nil, fmt.Errorf("decode manifest: %w", err)
			}
			manifest = &m
			continue
		}
		if err := extractFile(tr, filepath.Join(dataDir, name), force); err != nil {
			return nil, err
		}
	}
	if manifest == nil {
		return nil, errors.New("archive has no manifest")
	}
	return manifest, nil
}

func extractFile(r io.Reader, target string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	out, err := os.OpenFile(target, flags, 0o640)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s: %w (use force to overwrite)", target, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return out.Close()
}
