package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-tech/baro_fdr/internal/status"
)

// Screen is what the display loop draws on.
type Screen interface {
	Show(f status.Frame) error
}

// FrameFor converts a snapshot to a display frame.
func FrameFor(st Status) status.Frame {
	return status.Frame{
		Ready:       st.Barometer.Ready,
		Model:       st.Barometer.Model,
		Pressure:    st.Barometer.Pressure,
		Temperature: st.Barometer.Temperature,
		Recording:   st.Recorder.Active,
		Elapsed:     st.Elapsed(),
		Samples:     st.Recorder.Samples,
	}
}

// RunDisplay refreshes screen every interval until ctx is done.
func RunDisplay(ctx context.Context, screen Screen, ctrl *Controller, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := screen.Show(FrameFor(ctrl.Status())); err != nil {
				log.Debug("display update failed", zap.Error(err))
			}
		}
	}
}
