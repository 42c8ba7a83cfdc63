// Package export zapisuje archiv měření do CSV ve formátu, který čte
// stávající analytika: oddělovač ';', hodnoty v uvozovkách, čas UTC
// "yyyy-MM-dd HH:mm:ss" a booleany bez uvozovek jako True/False.
package export

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	levelHeader       = []string{"deviceId", "timestamp", "height", "level", "isBaseline"}
	temperatureHeader = []string{"deviceId", "timestamp", "temperature"}
)

// Source je čtecí část archivu, ze které se exportuje.
type Source interface {
	ScanLevels(ctx context.Context, fn func(telemetry.LevelReading) error) error
	ScanTemperatures(ctx context.Context, fn func(telemetry.TemperatureReading) error) error
}

// rowWriter skládá řádky CSV. První chyba zápisu se pamatuje a vrací z flush.
type rowWriter struct {
	w   *bufio.Writer
	err error
}

func newRowWriter(w io.Writer) *rowWriter {
	return &rowWriter{w: bufio.NewWriter(w)}
}

func (rw *rowWriter) row(cells ...string) error {
	if rw.err != nil {
		return rw.err
	}
	_, rw.err = rw.w.WriteString(strings.Join(cells, ";") + "\n")
	return rw.err
}

func (rw *rowWriter) flush() error {
	if rw.err != nil {
		return rw.err
	}
	return rw.w.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = quote(c)
	}
	return out
}

func formatTime(t time.Time) string {
	return quote(t.UTC().Format(timeLayout))
}

func formatFloat(v float64) string {
	return quote(strconv.FormatFloat(v, 'f', -1, 64))
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// WriteLevels zapíše všechna měření hladiny vzestupně podle času. Vrací počet řádků.
func WriteLevels(ctx context.Context, w io.Writer, src Source) (int, error) {
	rw := newRowWriter(w)
	if err := rw.row(quoteAll(levelHeader)...); err != nil {
		return 0, err
	}

	n := 0
	err := src.ScanLevels(ctx, func(r telemetry.LevelReading) error {
		n++
		return rw.row(
			quote(r.DeviceID),
			formatTime(r.Timestamp),
			formatFloat(r.Height),
			formatFloat(r.Level),
			formatBool(r.Baseline),
		)
	})
	if err != nil {
		return n, err
	}
	return n, rw.flush()
}

// WriteTemperatures zapíše všechna měření teploty vzestupně podle času.
func WriteTemperatures(ctx context.Context, w io.Writer, src Source) (int, error) {
	rw := newRowWriter(w)
	if err := rw.row(quoteAll(temperatureHeader)...); err != nil {
		return 0, err
	}

	n := 0
	err := src.ScanTemperatures(ctx, func(r telemetry.TemperatureReading) error {
		n++
		return rw.row(
			quote(r.DeviceID),
			formatTime(r.Timestamp),
			formatFloat(r.Value),
		)
	})
	if err != nil {
		return n, err
	}
	return n, rw.flush()
}
