package dataplane

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// DropReason explains why a frame was not forwarded.
type DropReason string

const (
	DropNone DropReason = ""
	// DropNotIPv4 is used for frames that are not Ethernet/IPv4.
	DropNotIPv4 DropReason = "not_ipv4"
	// DropTTLExceeded is used for packets whose TTL would reach zero.
	DropTTLExceeded DropReason = "ttl_exceeded"
	// DropNoRoute is used when the destination resolves to the default
	// action.
	DropNoRoute DropReason = "no_route"
	// DropUnknownPort is used when the route points to a port that is not
	// configured.
	DropUnknownPort DropReason = "unknown_port"
)

var dropReasons = []DropReason{DropNotIPv4, DropTTLExceeded, DropNoRoute, DropUnknownPort}

// Stats holds packet counters of the forwarding loop.
type Stats struct {
	rx      prometheus.Counter
	tx      *prometheus.CounterVec
	dropped *prometheus.CounterVec
}

// NewStats creates the counters and registers them in reg.
func NewStats(reg prometheus.Registerer) (*Stats, error) {
	m := &Stats{
		rx: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "l3fwd",
			Name:      "rx_packets_total",
			Help:      "Frames received by the forwarding loop.",
		}),
		tx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "l3fwd",
			Name:      "tx_packets_total",
			Help:      "Frames forwarded, by egress port.",
		}, []string{"port"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "l3fwd",
			Name:      "dropped_packets_total",
			Help:      "Frames dropped, by reason.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{m.rx, m.tx, m.dropped} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register counters: %w", err)
		}
	}

	// Expose every reason from the start, even at zero.
	for _, reason := range dropReasons {
		m.dropped.WithLabelValues(string(reason))
	}

	return m, nil
}

func (m *Stats) txCounter(port uint16) prometheus.Counter {
	return m.tx.WithLabelValues(strconv.Itoa(int(port)))
}

func (m *Stats) dropCounter(reason DropReason) prometheus.Counter {
	return m.dropped.WithLabelValues(string(reason))
}

// Summary is a point-in-time copy of the counters.
type Summary struct {
	RX      uint64
	TX      map[uint16]uint64
	Dropped map[DropReason]uint64
}

// Summary reads the current counter values.
func (m *Stats) Summary() (Summary, error) {
	summary := Summary{
		TX:      map[uint16]uint64{},
		Dropped: map[DropReason]uint64{},
	}

	var metric dto.Metric
	if err := m.rx.Write(&metric); err != nil {
		return Summary{}, err
	}
	summary.RX = uint64(metric.GetCounter().GetValue())

	err := collect(m.tx, func(label string, value uint64) error {
		port, err := strconv.ParseUint(label, 10, 16)
		if err != nil {
			return err
		}
		summary.TX[uint16(port)] = value
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	err = collect(m.dropped, func(label string, value uint64) error {
		summary.Dropped[DropReason(label)] = value
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	return summary, nil
}

// collect reads every child of a single-label counter vector.
func collect(vec *prometheus.CounterVec, fn func(label string, value uint64) error) error {
	ch := make(chan prometheus.Metric)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()

	var firstErr error
	for metric := range ch {
		if firstErr != nil {
			continue
		}

		var m dto.Metric
		if err := metric.Write(&m); err != nil {
			firstErr = err
			continue
		}
		labels := m.GetLabel()
		if len(labels) != 1 {
			continue
		}
		if err := fn(labels[0].GetValue(), uint64(m.GetCounter().GetValue())); err != nil {
			firstErr = err
		}
	}

	return firstErr
}
