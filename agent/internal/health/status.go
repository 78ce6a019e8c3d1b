package health

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Status is a summary of a textfile written by a running agent.
type Status struct {
	Heartbeats    uint64
	LastHeartbeat time.Time
	LastSuccess   time.Time
	Cycles        map[string]uint64 // by outcome, summed over triggers
	Attempts      map[string]uint64 // by outcome
}

// ReadFile parses the textfile at path.
func ReadFile(path string) (Status, error) {
	f, err := os.Open(path)
	if err != nil {
		return Status{}, fmt.Errorf("health: open: %w", err)
	}
	defer f.Close()
	return ReadText(f)
}

// ReadText parses Prometheus text written by Recorder.WriteText.
func ReadText(r io.Reader) (Status, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return Status{}, fmt.Errorf("health: parse text: %w", err)
	}

	st := Status{
		Heartbeats:    uint64(sumFamily(mfs[MetricHeartbeats])),
		LastHeartbeat: fromUnix(sumFamily(mfs[MetricLastHeartbeat])),
		LastSuccess:   fromUnix(sumFamily(mfs[MetricLastSuccess])),
		Cycles:        byLabel(mfs[MetricCycles], "outcome"),
		Attempts:      byLabel(mfs[MetricAttempts], "outcome"),
	}
	return st, nil
}

// sumFamily adds up all counter and gauge values in mf. Returns 0 if mf is
// nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

func byLabel(mf *dto.MetricFamily, name string) map[string]uint64 {
	out := make(map[string]uint64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name {
				out[lp.GetValue()] += uint64(m.GetCounter().GetValue())
			}
		}
	}
	return out
}

func fromUnix(sec float64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
