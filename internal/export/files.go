package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// File popisuje jeden vytvořený archiv.
type File struct {
	Path string
	Rows int
}

// FileName vrací např. "levellog-2024-06-01.csv.gz".
func FileName(table string, day time.Time) string {
	return fmt.Sprintf("%s-%s.csv.gz", table, day.Format("2006-01-02"))
}

// ExportAll zapíše obě tabulky do dir jako gzip CSV. Soubor se nejdřív píše
// pod dočasným jménem a přejmenuje se až po úspěšném zápisu, takže
// v adresáři se nikdy neobjeví napůl zapsaný archiv.
func ExportAll(ctx context.Context, src Source, dir string, day time.Time) ([]File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	jobs := []struct {
		table string
		write func(context.Context, io.Writer, Source) (int, error)
	}{
		{"levellog", WriteLevels},
		{"temperaturelog", WriteTemperatures},
	}

	files := make([]File, 0, len(jobs))
	for _, job := range jobs {
		path := filepath.Join(dir, FileName(job.table, day))
		rows, err := writeGzip(ctx, path, src, job.write)
		if err != nil {
			return files, fmt.Errorf("export %s: %w", job.table, err)
		}
		files = append(files, File{Path: path, Rows: rows})
	}
	return files, nil
}

func writeGzip(ctx context.Context, path string, src Source, write func(context.Context, io.Writer, Source) (int, error)) (rows int, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	zw := gzip.NewWriter(tmp)
	zw.Name = filepath.Base(path[:len(path)-len(".gz")])

	if rows, err = write(ctx, zw, src); err != nil {
		return rows, err
	}
	if err = zw.Close(); err != nil {
		return rows, err
	}
	if err = tmp.Sync(); err != nil {
		return rows, err
	}
	if err = tmp.Close(); err != nil {
		return rows, err
	}
	return rows, os.Rename(tmp.Name(), path)
}
