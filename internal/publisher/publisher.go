package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/upsi-probe/internal/metrics"
	"github.com/Checker-Finance/upsi-probe/internal/probe"
	"github.com/Checker-Finance/upsi-probe/pkg/logger"
	"github.com/Checker-Finance/upsi-probe/pkg/model"
)

// SubjectProbeReport is where completed probe runs are announced.
const SubjectProbeReport = "evt.probe.report.v1"

// jetStream is the slice of nats.JetStreamContext the publisher needs.
// Narrow on purpose so tests can fake it with one method.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher emits probe reports as canonical event envelopes over NATS
// JetStream, so monitoring consumers see every diagnostic run.
type Publisher struct {
	js      jetStream
	service string
}

// New creates a Publisher with JetStream enabled.
func New(nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{js: js, service: service}, nil
}

// PublishReport wraps the report in an envelope and publishes it.
func (p *Publisher) PublishReport(ctx context.Context, report *probe.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	correlation, err := uuid.Parse(report.RunID)
	if err != nil {
		correlation = uuid.New()
	}

	env := &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: correlation,
		Topic:         SubjectProbeReport,
		EventType:     "probe.report",
		Version:       "1.0.0",
		Service:       p.service,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
	}
	return p.publishEnvelope(ctx, SubjectProbeReport, env)
}

func (p *Publisher) publishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{env.Service},
			"content_type":   []string{"application/json"},
		},
	}

	start := time.Now()
	_, err = p.js.PublishMsg(msg)
	metrics.ObserveDuration(metrics.NATSMessageLatency, start, subject)

	if err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	logger.S().Infow("publisher.publish_success",
		"subject", subject,
		"event_type", env.EventType,
	)
	metrics.IncNATSMessage(subject, "ok")
	return nil
}
