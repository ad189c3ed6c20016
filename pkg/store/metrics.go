package store

import (
	"io/fs"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tradepost_store_ops_total",
		Help: "Document store operations by kind.",
	}, []string{"op"})

	readMarksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tradepost_store_read_marks_total",
		Help: "Messages whose read set was extended.",
	})

	diskUsage = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "tradepost_store_disk_bytes",
		Help: "Best-effort on-disk size of the document store directory.",
	}, func() float64 { return float64(DiskUsage()) })
)

func init() {
	prometheus.MustRegister(opsTotal, readMarksTotal, diskUsage)
}

// DiskUsage computes the total byte size of files under the store
// directory. Best-effort: unreadable entries are skipped.
func DiskUsage() uint64 {
	if db == nil || dbPath == "" {
		return 0
	}
	var total uint64
	_ = filepath.WalkDir(dbPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}
