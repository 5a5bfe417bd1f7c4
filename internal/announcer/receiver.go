package announcer

import (
	"context"
	"errors"
	"log/slog"

	"usd/internal/codec"
	"usd/internal/message"
	"usd/internal/transport"
	"usd/internal/util/logger/sl"
)

// receive reads the group until ctx is done or the transport fails. It never reconnects,
// a failed receiver is replaced by calling Start again.
func (a *Announcer) receive(ctx context.Context, conn transport.Receiver) {
	op := "announcer.receive"
	log := a.log.With(slog.String("op", op))

	var received int64
	defer func() {
		conn.Close()
		a.running.Store(false)
		log.Info("receiver stopped", slog.Int64("bytes_received", received))
	}()

	buf := make([]byte, a.cfg.ReadBuffer)
	for ctx.Err() == nil {
		n, from, err := conn.ReadPacket(buf, a.cfg.PollTimeout)
		if errors.Is(err, transport.ErrTimeout) {
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				log.Error("receive failed", sl.Err(err))
			}
			return
		}

		received += int64(n)
		a.metrics.PacketReceived(n)

		msg, err := codec.Unmarshal(buf[:n])
		if err != nil {
			a.metrics.PacketMalformed()
			log.Debug("dropping malformed packet", slog.Any("from", from), slog.Int("size", n), sl.Err(err))
			continue
		}
		a.dispatch(msg)
	}
}

// dispatch applies a decoded message. Added is tested before removed because
// the removed predicate also holds for added.
func (a *Announcer) dispatch(msg message.Message) {
	info, _ := msg.Service()
	switch {
	case msg.IsStateRequest():
		a.rebroadcast()
	case msg.IsAdded():
		a.addRemote(info)
	case msg.IsRemoved():
		a.removeRemote(info)
	default:
		a.log.Debug("ignoring message", slog.String("message", msg.String()))
	}
}
