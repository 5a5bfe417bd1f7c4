package announcer

import (
	"context"
	"log/slog"
	"net"
	"time"

	"usd/internal/codec"
	"usd/internal/message"
	"usd/internal/util/logger/sl"
)

// send queues one batch for group. Before the first Start there is no group and nothing is sent,
// Start announces the local services itself.
func (a *Announcer) send(group *net.UDPAddr, batch ...message.Message) {
	if group == nil {
		a.log.Debug("not started, skipping announcement", slog.Int("messages", len(batch)))
		return
	}
	a.queue.push(func(ctx context.Context) {
		a.transmit(ctx, group, batch)
	})
}

// transmit writes the batch over a transient socket, pausing SendDelay between packets.
// The first failure abandons the rest of the batch.
func (a *Announcer) transmit(ctx context.Context, group *net.UDPAddr, batch []message.Message) {
	op := "announcer.transmit"
	log := a.log.With(slog.String("op", op), slog.String("group", group.String()))

	packets := make([][]byte, 0, len(batch))
	for _, msg := range batch {
		b, err := codec.Marshal(msg)
		if err != nil {
			a.metrics.SendFailed()
			log.Error("encode announcement", slog.String("message", msg.String()), sl.Err(err))
			return
		}
		packets = append(packets, b)
	}

	conn, err := a.transport.Dial(group)
	if err != nil {
		a.metrics.SendFailed()
		log.Error("open sender", sl.Err(err))
		return
	}
	defer conn.Close()

	for i, b := range packets {
		if i > 0 && !a.pause(ctx) {
			return
		}
		if err := conn.WritePacket(b); err != nil {
			a.metrics.SendFailed()
			log.Error("send announcement", slog.Int("sent", i), slog.Int("batch", len(packets)), sl.Err(err))
			return
		}
		a.metrics.PacketSent()
	}
	log.Debug("batch sent", slog.Int("messages", len(packets)))
}

func (a *Announcer) pause(ctx context.Context) bool {
	if a.cfg.SendDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(a.cfg.SendDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
