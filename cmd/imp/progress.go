package imp

import (
	"fmt"
	"io"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// progressInterval is the number of keys between two progress updates
const progressInterval = 1000

// progress reports the copied keys of a run on out.
//
// In verbose mode every key is printed on its own line, otherwise the running
// count is rewritten in place every progressInterval keys.
type progress struct {
	out     io.Writer
	verbose bool
	count   int64
	meter   gometrics.Meter
	start   time.Time
}

func newProgress(out io.Writer, verbose bool) *progress {
	return &progress{
		out:     out,
		verbose: verbose,
		meter:   gometrics.NewMeter(),
		start:   time.Now(),
	}
}

// Add records one copied key. Not safe for concurrent use.
func (p *progress) Add(key string) {
	p.count++
	p.meter.Mark(1)
	if p.verbose {
		fmt.Fprintln(p.out, key)
		return
	}
	if p.count%progressInterval == 0 {
		fmt.Fprintf(p.out, "\r%d", p.count)
	}
}

// Count returns the number of recorded keys
func (p *progress) Count() int64 {
	return p.count
}

// Done stops the meter and prints the summary line
func (p *progress) Done() {
	rate := p.meter.RateMean()
	p.meter.Stop()

	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "processed %d keys\n", p.count)
	plog.Infof("copied %d keys in %s (%.0f keys/s)", p.count, time.Since(p.start).Round(time.Millisecond), rate)
}
