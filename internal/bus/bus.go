// Package bus routes messages between the Telegram channel and the
// journal pipeline: voice notes and text queries inbound, answers and
// status replies outbound.
package bus

import (
	"context"
)

// InboundMessage is one message received from the transport.
// Exactly one of Text or Voice is set.
type InboundMessage struct {
	ChatID    string
	MessageID string // transport message ID, used as SourceMessageID
	SenderID  string
	SentAt    int64 // unix seconds from the message itself
	Text      string
	Voice     *VoicePayload
}

// VoicePayload carries a downloaded voice note.
type VoicePayload struct {
	Audio           []byte
	MIMEType        string
	DurationSeconds int
}

// OutboundMessage is one reply to send through the transport.
type OutboundMessage struct {
	ChatID string
	Text   string
}

// MessageBus is a pair of buffered queues decoupling the transport from
// pipeline processing. The pipeline consumes inbound messages one at a
// time, which keeps per-user ordering without any locking downstream.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

// New creates a message bus.
func New() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, 100),
		outbound: make(chan OutboundMessage, 100),
	}
}

// PublishInbound queues an inbound message from the channel.
func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.inbound <- msg
}

// ConsumeInbound blocks until an inbound message is available or ctx is
// cancelled.
func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-mb.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound queues a reply for the channel.
func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.outbound <- msg
}

// ConsumeOutbound blocks until a reply is available or ctx is cancelled.
func (mb *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-mb.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}
