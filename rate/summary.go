package rate

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RunSummary aggregates a parameter store's scored events.
type RunSummary struct {
	Events         int
	Detectable     int
	DetectableFrac float64
	MeanSNR        float64
	MaxSNR         float64
}

// Summarize scans the named SNR field of a store against the detection
// threshold.
func Summarize(store *ParamStore, snrField string, threshold float64) (*RunSummary, error) {
	snrs := store.Field(snrField)
	if snrs == nil {
		return nil, fmt.Errorf("store %s has no field %q", store.Path(), snrField)
	}
	if len(snrs) == 0 {
		return &RunSummary{}, nil
	}

	detectable := 0
	for _, r := range snrs {
		if r > threshold {
			detectable++
		}
	}
	return &RunSummary{
		Events:         len(snrs),
		Detectable:     detectable,
		DetectableFrac: float64(detectable) / float64(len(snrs)),
		MeanSNR:        stat.Mean(snrs, nil),
		MaxSNR:         floats.Max(snrs),
	}, nil
}

// Log prints the summary at Info level under a run label.
func (s *RunSummary) Log(label string) {
	logrus.Infof("[%s] events=%d detectable=%d (%.4f%%) mean_snr=%.3f max_snr=%.3f",
		label, s.Events, s.Detectable, 100*s.DetectableFrac, s.MeanSNR, s.MaxSNR)
}
