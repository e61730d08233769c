package client

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/oscbridge-project/oscbridge/internal/metrics"
	"github.com/oscbridge-project/oscbridge/internal/osc"
)

// receiver runs the perpetual datagram receive loop. Each datagram is
// appended to the overflow carried from the previous cycle, the combined
// stream is dissected, and whatever did not yet form a complete message
// is kept for the next cycle. The loop only ends when the client is
// closed: Close cancels the context and closes the socket, which
// unblocks the pending read.
type receiver struct {
	conn      *net.UDPConn
	client    *Client
	dissector *osc.Dissector
	logger    zerolog.Logger

	// overflow is owned exclusively by the receive loop.
	overflow []byte
}

func newReceiver(conn *net.UDPConn, c *Client) *receiver {
	return &receiver{
		conn:      conn,
		client:    c,
		dissector: osc.NewDissector(),
		logger:    log.With().Str("component", "receiver").Str("bind", conn.LocalAddr().String()).Logger(),
		overflow:  make([]byte, 0, osc.MaxPacketSize),
	}
}

// run blocks on the socket until cancellation.
func (r *receiver) run(ctx context.Context) {
	buf := make([]byte, osc.MaxPacketSize)
	for {
		n, err := r.conn.Read(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				r.logger.Debug().Msg("receive loop stopping")
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Error().Err(err).Msg("UDP read error")
			continue
		}

		metrics.DatagramsReceived.Inc()
		r.ingest(ctx, buf[:n])
	}
}

// ingest runs one reassembly cycle over previous overflow + data.
func (r *receiver) ingest(ctx context.Context, data []byte) {
	r.overflow = append(r.overflow, data...)

	msgs, consumed, dropped := r.dissector.Dissect(r.overflow)
	if dropped > 0 {
		metrics.StreamResyncBytes.Add(float64(dropped))
	}

	remaining := len(r.overflow) - consumed
	copy(r.overflow, r.overflow[consumed:])
	r.overflow = r.overflow[:remaining]
	if remaining > osc.MaxPacketSize {
		// An incomplete message can never legitimately exceed one full
		// datagram buffer. Drop the carryover instead of growing forever.
		r.logger.Warn().Int("bytes", remaining).Msg("overflow buffer exceeded limit, dropping")
		r.overflow = r.overflow[:0]
	}
	metrics.OverflowBytes.Set(float64(len(r.overflow)))

	for _, m := range msgs {
		metrics.MessagesParsed.WithLabelValues(string(m.Tag)).Inc()
		r.client.handleMessage(ctx, m)
	}
}
