package metrics

import (
	"net"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gotcp/relay"
)

const namespace = "relay"

// Observer records reactor events as prometheus metrics.
type Observer struct {
	// AcceptsTotal counts accepted connections
	AcceptsTotal prometheus.Counter
	// ClosesTotal counts closed connections
	ClosesTotal prometheus.Counter
	// ErrorsTotal counts reactor errors by error code
	ErrorsTotal *prometheus.CounterVec
	// BytesTotal counts transferred bytes by direction (in/out)
	BytesTotal *prometheus.CounterVec
	// ConnectionsOpen tracks currently registered connections
	ConnectionsOpen prometheus.Gauge
}

func NewObserver(reg prometheus.Registerer) *Observer {
	var factory = promauto.With(reg)
	return &Observer{
		AcceptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accepts_total",
			Help:      "Total accepted connections",
		}),
		ClosesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closes_total",
			Help:      "Total closed connections",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total reactor errors by error code",
		}, []string{"code"}),
		BytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Total bytes transferred by direction",
		}, []string{"direction"}),
		ConnectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Number of currently registered connections",
		}),
	}
}

func (o *Observer) OnAccept(fd int, addr net.Addr) {
	o.AcceptsTotal.Inc()
	o.ConnectionsOpen.Inc()
}

func (o *Observer) OnClose(fd int) {
	o.ClosesTotal.Inc()
	o.ConnectionsOpen.Dec()
}

func (o *Observer) OnError(fd int, code relay.ErrorCode, err error) {
	o.ErrorsTotal.WithLabelValues(code.String()).Inc()
}

func (o *Observer) OnBytes(fd int, dir relay.Direction, n int) {
	o.BytesTotal.WithLabelValues(dir.String()).Add(float64(n))
}

var _ relay.Observer = (*Observer)(nil)

// RegisterReactor exports buffer pool, worker pool and backlog gauges read
// from r at scrape time.
func RegisterReactor(reg prometheus.Registerer, r *relay.Reactor) {
	var factory = promauto.With(reg)
	var buffers = r.Buffers()

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffers_in_use",
		Help:      "Inbound buffers currently held",
	}, func() float64 {
		return float64(buffers.Stats().InUse)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buffers_allocated",
		Help:      "Inbound buffers allocated since start",
	}, func() float64 {
		return float64(buffers.Stats().Allocated)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "buffers_capacity",
		Help:        "Maximum number of inbound buffers",
		ConstLabels: prometheus.Labels{"size": strconv.Itoa(buffers.Size())},
	}, func() float64 {
		return float64(buffers.Stats().Capacity)
	})

	if wp := r.Workers(); wp != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_tasks_pending",
			Help:      "Decode tasks queued or running",
		}, func() float64 {
			return float64(wp.Pending())
		})
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_executed_total",
			Help:      "Decode tasks executed by the worker pool",
		}, func() float64 {
			return float64(wp.Executed())
		})
	}
}
