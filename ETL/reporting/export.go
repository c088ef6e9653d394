package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/snappy"
)

const (
	csvExt        = ".csv"
	compressedExt = ".csv.sz"
)

// WriteCSV writes a result with a header row. NULL cells are empty.
func WriteCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Columns); err != nil {
		return err
	}
	record := make([]string, len(r.Columns))
	for _, row := range r.Rows {
		for i, v := range row {
			record[i] = formatCell(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes a result to dir under the definition's file name. With
// compress set the CSV is wrapped in the snappy framing format.
func ExportCSV(dir, file string, r *Result, compress bool) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	ext := csvExt
	if compress {
		ext = compressedExt
	}
	path = filepath.Join(dir, file+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	var w io.Writer = f
	var sw *snappy.Writer
	if compress {
		sw = snappy.NewBufferedWriter(f)
		w = sw
	}
	if err := WriteCSV(w, r); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if sw != nil {
		if err := sw.Close(); err != nil {
			return "", fmt.Errorf("compress %s: %w", path, err)
		}
	}
	return path, nil
}

// OpenExtract opens a CSV extract written by ExportCSV, decompressing
// snappy-framed files.
func OpenExtract(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) != ".sz" {
		return f, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{snappy.NewReader(f), f}, nil
}

func formatCell(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(n)
	}
}
