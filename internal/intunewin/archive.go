package intunewin

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
)

// archiveEntry is a file written into a zip archive.
type archiveEntry struct {
	name string
	data []byte
}

// writeArchive produces a deflate zip holding entries in order.
func writeArchive(modified time.Time, entries ...archiveEntry) ([]byte, error) {
	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, entry := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", entry.name, err)
		}

		if _, err = w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", entry.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}

	return buf.Bytes(), nil
}

// readArchive returns every regular file of a zip archive keyed by name.
func readArchive(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	files := make(map[string][]byte, len(zr.File))

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		contents, err := readArchiveFile(f)
		if err != nil {
			return nil, err
		}

		files[f.Name] = contents
	}

	return files, nil
}

func readArchiveFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrMalformed, f.Name, err)
	}

	defer func() {
		_ = rc.Close()
	}()

	contents, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrMalformed, f.Name, err)
	}

	return contents, nil
}
