package migrate

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	plog = logger.GetLogger("migrate")
)

// Counters are registered in the default VictoriaMetrics set and can be exported
// with metrics.WritePrometheus.
var (
	keysScanned   = metrics.NewCounter(`redisimp_keys_scanned_total`)
	keysVanished  = metrics.NewCounter(`redisimp_keys_skipped_total{reason="vanished"}`)
	keysExisting  = metrics.NewCounter(`redisimp_keys_skipped_total{reason="exists"}`)
	keysBusy      = metrics.NewCounter(`redisimp_keys_skipped_total{reason="busy"}`)
	batchDuration = metrics.NewHistogram(`redisimp_batch_duration_seconds`)
)

// restoredCounter returns the counter of keys written by the given mode.
func restoredCounter(mode Mode) *metrics.Counter {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`redisimp_keys_restored_total{mode=%q}`, mode.String()))
}
