package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/dosebox/dosebox-core/internal/infrastructure/config"
	"github.com/dosebox/dosebox-core/internal/infrastructure/logging"
	"github.com/dosebox/dosebox-core/internal/infrastructure/mqtt"
)

// How long one append may take before the ingestor gives up on it.
const appendTimeout = 5 * time.Second

// Subscriber is the broker surface the ingestor needs.
// *mqtt.Client satisfies this; tests substitute a fake.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	DisconnectedSince() (time.Time, bool)
}

// MetricsRecorder mirrors ingest activity to a time-series store.
// *influxdb.Client satisfies this; a nil recorder disables mirroring.
type MetricsRecorder interface {
	WriteTelemetryIngest(topic string, payloadBytes int)
}

// Ingestor subscribes to a telemetry topic filter and appends every
// received message to the log.
//
// Reconnection after a broker drop is handled by the client underneath;
// the ingestor's job is to supervise it. While the client retries with
// backoff the ingestor keeps waiting, but once the connection has been
// down longer than the configured outage bound, Run returns
// ErrOutageExceeded instead of letting the process sit in a silent retry
// loop forever. The operator decides what restarting means.
type Ingestor struct {
	sub     Subscriber
	repo    Repository
	metrics MetricsRecorder
	logger  *logging.Logger

	topic       string
	qos         byte
	outageBound time.Duration

	// pollInterval controls how often the outage bound is checked.
	pollInterval time.Duration
}

// NewIngestor creates an Ingestor for one topic filter (wildcards allowed,
// e.g. "status/#"). metrics may be nil.
func NewIngestor(sub Subscriber, repo Repository, metrics MetricsRecorder, cfg config.MQTTConfig, topic string, logger *logging.Logger) *Ingestor {
	return &Ingestor{
		sub:          sub,
		repo:         repo,
		metrics:      metrics,
		logger:       logger.With("component", "telemetry", "topic_filter", topic),
		topic:        topic,
		qos:          byte(cfg.QoS),
		outageBound:  cfg.Reconnect.OutageBound(),
		pollInterval: 5 * time.Second,
	}
}

// Run subscribes and blocks until the context is cancelled or the broker
// outage bound is exceeded.
//
// On cancellation the subscription is removed before returning, so the
// broker stops queueing QoS 1 messages for a consumer that is gone. The
// caller disconnects the client afterwards.
func (i *Ingestor) Run(ctx context.Context) error {
	if err := i.sub.Subscribe(i.topic, i.qos, i.handleMessage); err != nil {
		return fmt.Errorf("subscribing to telemetry: %w", err)
	}

	i.logger.Info("telemetry ingestion started", "qos", i.qos, "outage_bound", i.outageBound.String())

	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := i.sub.Unsubscribe(i.topic); err != nil {
				i.logger.Warn("unsubscribe on shutdown failed", "error", err)
			}
			i.logger.Info("telemetry ingestion stopped")
			return nil

		case <-ticker.C:
			down, ok := i.sub.DisconnectedSince()
			if !ok || i.outageBound <= 0 {
				continue
			}
			if outage := time.Since(down); outage > i.outageBound {
				i.logger.Error("broker outage bound exceeded",
					"down_since", down,
					"outage", outage.String(),
					"bound", i.outageBound.String())
				return fmt.Errorf("%w: down %s, bound %s", ErrOutageExceeded, outage.Round(time.Second), i.outageBound)
			}
		}
	}
}

// handleMessage appends one inbound message to the log. Errors are returned
// to the client wrapper, which logs them; a failed append does not stop
// ingestion of later messages.
func (i *Ingestor) handleMessage(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	record, err := i.repo.Append(ctx, topic, payload)
	if err != nil {
		return err
	}

	if i.metrics != nil {
		i.metrics.WriteTelemetryIngest(topic, len(payload))
	}

	i.logger.Debug("telemetry appended",
		"record_id", record.ID,
		"message_topic", topic,
		"bytes", len(payload))

	return nil
}
