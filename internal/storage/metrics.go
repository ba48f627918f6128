package storage

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors updated by writers and readers. A single
// Metrics value may be shared by any number of them.
type Metrics struct {
	// Writer
	bytesWritten     prometheus.Counter
	filesWritten     *prometheus.CounterVec
	columnsEncoded   *prometheus.CounterVec
	blocksWritten    *prometheus.CounterVec
	offsetPromotions prometheus.Counter
	writeDuration    prometheus.Histogram

	// Reader
	bytesRead      prometheus.Counter
	columnsDecoded *prometheus.CounterVec
	corruptFiles   prometheus.Counter
	readDuration   prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feather_writer_bytes_total",
			Help: "Total number of bytes written to feather files.",
		}),
		filesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feather_writer_files_total",
			Help: "Total number of feather files written, by outcome.",
		}, []string{"status"}),
		columnsEncoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feather_writer_columns_encoded_total",
			Help: "Total number of columns encoded, by data type.",
		}, []string{"type"}),
		blocksWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feather_writer_blocks_total",
			Help: "Total number of blocks written, by kind and compression codec.",
		}, []string{"kind", "compression"}),
		offsetPromotions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feather_writer_offset_promotions_total",
			Help: "Total number of columns re-encoded with 64-bit offsets.",
		}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feather_writer_write_duration_seconds",
			Help:    "Time taken to encode and write a feather file.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),

		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feather_reader_bytes_total",
			Help: "Total number of bytes read from feather files.",
		}),
		columnsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feather_reader_columns_decoded_total",
			Help: "Total number of columns decoded, by data type.",
		}, []string{"type"}),
		corruptFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feather_reader_corrupt_files_total",
			Help: "Total number of reads rejected because the file is corrupt.",
		}),
		readDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feather_reader_read_duration_seconds",
			Help:    "Time taken to read and decode a projection of a feather file.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.bytesWritten,
		m.filesWritten,
		m.columnsEncoded,
		m.blocksWritten,
		m.offsetPromotions,
		m.writeDuration,
		m.bytesRead,
		m.columnsDecoded,
		m.corruptFiles,
		m.readDuration,
	}
}

// Register registers all collectors with reg. Collectors that are already
// registered are ignored.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, collector := range m.collectors() {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

func (m *Metrics) Unregister(reg prometheus.Registerer) {
	for _, collector := range m.collectors() {
		reg.Unregister(collector)
	}
}
