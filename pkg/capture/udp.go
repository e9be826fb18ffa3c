package capture

import (
	"context"
	"errors"
	"net"

	"github.com/norasector/irdecode/pkg/ir"
	"github.com/rs/zerolog"
)

const maxDatagramSize = 65535

// UDPSource accepts one text capture per datagram.
type UDPSource struct {
	conn   net.PacketConn
	build  Builder
	logger zerolog.Logger
}

func NewUDPSource(addr string, build Builder, logger zerolog.Logger) (*UDPSource, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	if build == nil {
		build = NewCapture
	}
	return &UDPSource{conn: conn, build: build, logger: logger}, nil
}

func (u *UDPSource) Name() string {
	return "udp:" + u.conn.LocalAddr().String()
}

func (u *UDPSource) Addr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDPSource) Start(ctx context.Context, out chan<- *ir.Capture) error {
	go func() {
		<-ctx.Done()
		u.conn.Close()
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := u.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		entries, err := Parse(string(buf[:n]))
		if err != nil {
			u.logger.Warn().Err(err).Str("from", from.String()).Msg("skipping unparseable datagram")
			continue
		}
		if err := send(ctx, out, u.build(entries)); err != nil {
			return err
		}
	}
}

func (u *UDPSource) Stop() error {
	err := u.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

var _ Source = (*UDPSource)(nil)
var _ Source = (*FileSource)(nil)
