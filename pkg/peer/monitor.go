package peer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/haivivi/scullring/pkg/history"
	"github.com/haivivi/scullring/pkg/scull"
)

// Sample is the status of every monitored device at one instant.
type Sample struct {
	Time     time.Time             `json:"time" yaml:"time"`
	Channels []scull.ChannelStatus `json:"channels" yaml:"channels"`
}

// Monitor samples the status of its devices once per Interval.
type Monitor struct {
	Devices []scull.Device

	// Interval defaults to two seconds.
	Interval time.Duration

	// Store, if set, receives one history record per channel per sample.
	Store history.Store

	// OnSample, if set, is called with every sample.
	OnSample func(Sample)

	Logger *slog.Logger

	now func() time.Time
}

// Run samples immediately and then once per Interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if len(m.Devices) == 0 {
		return errors.New("peer: monitor has no devices")
	}
	interval := m.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.Sample(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sample takes one sample. Devices whose status fails are left out of it.
// Only a failing Store is returned as an error.
func (m *Monitor) Sample(ctx context.Context) (Sample, error) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := Sample{Time: now()}
	for i, d := range m.Devices {
		st, err := d.Status(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("status failed", "channel", d.Name(), "error", err)
			}
			continue
		}
		s.Channels = append(s.Channels, scull.ChannelStatus{Index: i, Name: d.Name(), Status: st})
	}
	if len(s.Channels) == 0 {
		return s, nil
	}

	if m.Store != nil {
		for _, cs := range s.Channels {
			r := history.Record{Time: s.Time, Channel: cs.Name, Status: cs.Status}
			if err := m.Store.Append(ctx, r); err != nil {
				return s, err
			}
		}
	}
	if m.OnSample != nil {
		m.OnSample(s)
	}
	return s, nil
}
