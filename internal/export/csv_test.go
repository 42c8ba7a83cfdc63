package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hendranatadiria/tfg-backend/internal/storage"
	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

var day = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := storage.NewMemoryStore()

	_, err := s.EnsureDevice(ctx, "D1")
	require.NoError(t, err)

	_, err = s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: day.Add(2 * time.Hour), Height: 12.5, Level: 87.5})
	require.NoError(t, err)
	_, err = s.AppendLevel(ctx, telemetry.LevelReading{DeviceID: "D1", Timestamp: day.Add(time.Hour), Height: 60, Level: 40})
	require.NoError(t, err)
	_, err = s.UpdateLevelBaseline(ctx, "D1", day.Add(2*time.Hour), true)
	require.NoError(t, err)

	_, err = s.AppendTemperature(ctx, telemetry.TemperatureReading{DeviceID: "D1", Timestamp: day.Add(90 * time.Second), Value: -3.25})
	require.NoError(t, err)
	return s
}

func TestWriteLevels(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteLevels(context.Background(), &buf, seeded(t))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	want := `"deviceId";"timestamp";"height";"level";"isBaseline"
"D1";"2024-06-01 01:00:00";"60";"40";False
"D1";"2024-06-01 02:00:00";"12.5";"87.5";True
`
	assert.Equal(t, want, buf.String())
}

func TestWriteTemperatures(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteTemperatures(context.Background(), &buf, seeded(t))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	want := `"deviceId";"timestamp";"temperature"
"D1";"2024-06-01 00:01:30";"-3.25"
`
	assert.Equal(t, want, buf.String())
}

func TestWriteEmptyTableHasHeader(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteTemperatures(context.Background(), &buf, storage.NewMemoryStore())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "\"deviceId\";\"timestamp\";\"temperature\"\n", buf.String())
}

func TestQuoteEscapes(t *testing.T) {
	assert.Equal(t, `"a""b"`, quote(`a"b`))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteLevelsPropagatesWriterError(t *testing.T) {
	_, err := WriteLevels(context.Background(), failingWriter{}, seeded(t))
	assert.EqualError(t, err, "disk full")
}

func TestExportAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")

	files, err := ExportAll(context.Background(), seeded(t), dir, day)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, filepath.Join(dir, "levellog-2024-06-01.csv.gz"), files[0].Path)
	assert.Equal(t, 2, files[0].Rows)
	assert.Equal(t, filepath.Join(dir, "temperaturelog-2024-06-01.csv.gz"), files[1].Path)
	assert.Equal(t, 1, files[1].Rows)

	f, err := os.Open(files[1].Path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = out.ReadFrom(zr)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"D1";"2024-06-01 00:01:30";"-3.25"`)
	assert.Equal(t, "temperaturelog-2024-06-01.csv", zr.Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}

type brokenSource struct{ *storage.MemoryStore }

func (brokenSource) ScanTemperatures(ctx context.Context, fn func(telemetry.TemperatureReading) error) error {
	return errors.New("connection lost")
}

func TestExportAllFailureLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()

	files, err := ExportAll(context.Background(), brokenSource{seeded(t)}, dir, day)
	require.Error(t, err)
	require.Len(t, files, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "levellog-2024-06-01.csv.gz", entries[0].Name())
}
