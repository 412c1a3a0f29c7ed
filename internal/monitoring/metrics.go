package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus counters shared across pipeline stages.
type Metrics struct {
	PagesFetched     prometheus.Counter
	FetchErrors      *prometheus.CounterVec
	RecordsExtracted prometheus.Counter
	RecordsRejected  *prometheus.CounterVec
	ImagesUploaded   prometheus.Counter
	ImageFailures    prometheus.Counter
	BatchesWritten   prometheus.Counter
	BatchFailures    prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		PagesFetched: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_scraper_pages_fetched_total",
			Help: "The total number of upstream pages fetched",
		}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_scraper_fetch_errors_total",
			Help: "The total number of fetch failures",
		}, []string{"kind"}), // 'transport', 'status'
		RecordsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_scraper_records_extracted_total",
			Help: "The total number of candidate records extracted",
		}),
		RecordsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_scraper_records_rejected_total",
			Help: "The total number of candidates rejected by validation",
		}, []string{"reason"}),
		ImagesUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_scraper_images_uploaded_total",
			Help: "The total number of product images uploaded",
		}),
		ImageFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_scraper_image_failures_total",
			Help: "The total number of image fetch/upload failures",
		}),
		BatchesWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_scraper_batches_written_total",
			Help: "The total number of catalog batches written",
		}),
		BatchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "catalog_scraper_batch_failures_total",
			Help: "The total number of catalog batch write failures",
		}),
	}
}
