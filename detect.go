package dfr

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dfrcore/dfr/internal/engerr"
	"github.com/dfrcore/dfr/source"
)

// detectFormat determines path's source.Format first from its extension,
// then confirms (or corrects) that guess against the file's magic bytes
// for the binary formats, so a mislabeled extension doesn't silently
// misparse.
func detectFormat(path string) (source.Format, error) {
	byExt := formatByExtension(path)

	f, err := os.Open(path)
	if err != nil {
		return "", engerr.New(engerr.KindIoError, "open %s: %v", path, err)
	}
	defer f.Close()

	var header [8]byte
	n, _ := f.Read(header[:])
	magic := header[:n]

	switch {
	case hasPrefix(magic, "PAR1"):
		return source.FormatParquet, nil
	case hasPrefix(magic, "ARROW1"):
		return source.FormatIPC, nil
	case hasPrefix(magic, "PK\x03\x04"):
		return source.FormatXLSX, nil
	}

	if byExt == "" {
		return "", engerr.New(engerr.KindUnsupportedFormat, "cannot determine format for %s", path)
	}
	return byExt, nil
}

func hasPrefix(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == prefix
}

func formatByExtension(path string) source.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return source.FormatCSV
	case ".tsv":
		return source.FormatTSV
	case ".ndjson", ".jsonl":
		return source.FormatNDJSON
	case ".parquet", ".pq":
		return source.FormatParquet
	case ".arrow", ".ipc", ".feather":
		return source.FormatIPC
	case ".xlsx":
		return source.FormatXLSX
	default:
		return ""
	}
}
