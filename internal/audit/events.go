// Tenantgate - Multi-Tenant School Platform Authorization Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantgate

package audit

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/tenantgate/internal/logging"
)

// TopicDenied carries every audited denial as a JSON-encoded Record.
const TopicDenied = "audit.denied"

// EventBus fans audit records out to in-process subscribers (Watermill
// gochannel Pub/Sub). Subscribers observe denials without touching the
// store; the bus carries copies, not the durable records.
type EventBus struct {
	pubsub *gochannel.GoChannel
}

// NewEventBus creates an in-process event bus.
func NewEventBus(buffer int64) *EventBus {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: buffer,
	}, watermillLogger{})
	return &EventBus{pubsub: pubsub}
}

// Publish broadcasts one record. Best-effort: marshal or publish errors
// are logged and swallowed.
func (b *EventBus) Publish(record *Record) {
	payload, err := json.Marshal(record)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal audit event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicDenied, msg); err != nil {
		logging.Error().Err(err).Msg("Failed to publish audit event")
	}
}

// Subscribe returns a channel of denial events. The subscription ends
// when ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, TopicDenied)
}

// Close shuts the bus down, ending all subscriptions.
func (b *EventBus) Close() error {
	return b.pubsub.Close()
}

// RunDenialNotifier consumes denial events and surfaces them in the
// security log until ctx is cancelled. It is the default bus subscriber;
// operational alerting hangs off this log stream.
func RunDenialNotifier(ctx context.Context, bus *EventBus) error {
	messages, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for msg := range messages {
		var record Record
		if err := json.Unmarshal(msg.Payload, &record); err != nil {
			logging.Error().Err(err).Msg("Malformed audit event payload")
			msg.Ack()
			continue
		}

		logging.Warn().
			Str("tenant", record.TenantID).
			Str("actor", record.ActorID).
			Str("role", record.ActorRole).
			Str("action", string(record.Action)).
			Str("detail", record.Detail).
			Msg("Security denial recorded")
		msg.Ack()
	}
	return nil
}

// watermillLogger adapts Watermill's logging onto zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

func (w watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.event(logging.Error().Err(err), fields).Msg(msg)
}

func (w watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.event(logging.Debug(), fields).Msg(msg) // watermill info is noisy; demote
}

func (w watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.event(logging.Debug(), fields).Msg(msg)
}

func (w watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.event(logging.Trace(), fields).Msg(msg)
}

func (w watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return watermillLogger{fields: w.fields.Add(fields)}
}

func (w watermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range w.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}
