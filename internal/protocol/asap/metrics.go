package asap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "asap"

// Metrics 投递指标
type Metrics struct {
	Enqueued        prometheus.Counter
	Superseded      prometheus.Counter
	Sent            prometheus.Counter
	SendFailures    prometheus.Counter
	LinkUnavailable prometheus.Counter
	Expired         prometheus.Counter
	Acked           prometheus.Counter
	StaleReceipts   prometheus.Counter
	Received        prometheus.Counter
	Duplicates      prometheus.Counter
	HandlerFailures prometheus.Counter
	ReceiptFailures prometheus.Counter
	DecodeFailures  prometheus.Counter
	QueueLength     prometheus.Gauge
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      name,
		Help:      help,
	})
}

// NewMetrics 创建指标，reg 非 nil 时注册
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Enqueued:        newCounter("enqueued_total", "Messages accepted by Send."),
		Superseded:      newCounter("superseded_total", "Pending messages replaced by a newer message with the same key."),
		Sent:            newCounter("sent_total", "Delivery frames handed to the link."),
		SendFailures:    newCounter("send_failures_total", "Link send attempts that returned an error."),
		LinkUnavailable: newCounter("link_unavailable_total", "Transmission attempts skipped because the link was not open."),
		Expired:         newCounter("expired_total", "Messages dropped at the head of the queue after their deadline."),
		Acked:           newCounter("acked_total", "Messages removed by a matching receipt."),
		StaleReceipts:   newCounter("stale_receipts_total", "Receipts for ids no longer queued."),
		Received:        newCounter("received_total", "Inbound delivery frames."),
		Duplicates:      newCounter("duplicates_total", "Inbound delivery frames suppressed by the duplicate filter."),
		HandlerFailures: newCounter("handler_failures_total", "Inbound handler errors and panics."),
		ReceiptFailures: newCounter("receipt_failures_total", "Receipts the link failed to send."),
		DecodeFailures:  newCounter("decode_failures_total", "Inbound frames that could not be decoded."),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_length",
			Help:      "Messages currently pending delivery.",
		}),
	}

	if reg != nil {
		for _, c := range m.collectors() {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Enqueued, m.Superseded, m.Sent, m.SendFailures, m.LinkUnavailable,
		m.Expired, m.Acked, m.StaleReceipts, m.Received, m.Duplicates,
		m.HandlerFailures, m.ReceiptFailures, m.DecodeFailures, m.QueueLength,
	}
}
