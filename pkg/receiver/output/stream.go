package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/irdecode/pkg/config"
	"github.com/norasector/irdecode/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const senders = 4

// UDPOutput sends each record as a length-prefixed protobuf Struct to every destination.
type UDPOutput struct {
	dests    []config.OutputDestination
	recvChan chan *store.Record
	metrics  api.WriteAPI
	logger   zerolog.Logger
}

func NewUDPOutput(dests []config.OutputDestination, metrics api.WriteAPI) *UDPOutput {
	return &UDPOutput{
		dests:    dests,
		recvChan: make(chan *store.Record, recordBufferLength),
		metrics:  metrics,
		logger:   log.Logger,
	}
}

func (s *UDPOutput) Receive() chan<- *store.Record {
	return s.recvChan
}

// RecordStruct flattens rec into a protobuf Struct. Codes are sent as hex
// strings since Struct numbers are doubles.
func RecordStruct(rec *store.Record) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"id":      float64(rec.ID),
		"time":    rec.Time.UTC().Format(time.RFC3339Nano),
		"entries": float64(len(rec.Entries)),
	}
	if rec.Source != "" {
		fields["source"] = rec.Source
	}
	if rec.Error != "" {
		fields["error"] = rec.Error
	}
	if res := rec.Result; res != nil {
		fields["protocol"] = res.Protocol.String()
		fields["bits"] = float64(res.Bits)
		fields["repeat"] = res.Repeat
		fields["code"] = res.Hex()
		if sc, ok := res.Scalar(); ok {
			fields["address"] = float64(sc.Address)
			fields["command"] = float64(sc.Command)
		}
	}
	return structpb.NewStruct(fields)
}

// Frame encodes rec for the wire: a little endian uint16 length, then the message.
func Frame(rec *store.Record) ([]byte, error) {
	msg, err := RecordStruct(rec)
	if err != nil {
		return nil, err
	}
	encoded, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if len(encoded) > 0xffff {
		return nil, fmt.Errorf("record %d too large to frame: %d bytes", rec.ID, len(encoded))
	}

	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, err
	}
	msgBuf.Write(encoded)
	return msgBuf.Bytes(), nil
}

func (s *UDPOutput) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		s.logger.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}

	for i := 0; i < senders; i++ {
		eg.Go(func() error {
			conn, err := net.ListenUDP("udp", nil)
			if err != nil {
				return err
			}
			defer conn.Close()

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case rec := <-s.recvChan:
					frame, err := Frame(rec)
					if err != nil {
						s.logger.Warn().Err(err).Msg("error framing record")
						continue
					}

					sent := 0
					var bytesWritten int
					for _, destAddr := range destAddrs {
						n, err := conn.WriteToUDP(frame, destAddr)
						if err != nil {
							s.logger.Error().Err(err).Msg("error writing")
							continue
						}
						sent++
						bytesWritten += n
					}

					go s.metrics.WritePoint(influxdb2.NewPoint("ir.sent_record",
						map[string]string{
							"protocol": protocolTag(rec),
						},
						map[string]interface{}{
							"bytes_written": bytesWritten,
							"frame_length":  len(frame),
							"sent":          sent,
							"dropped":       len(destAddrs) - sent,
						}, time.Now()))
				}
			}
		})
	}

	return eg.Wait()
}

func protocolTag(rec *store.Record) string {
	if rec.Result == nil {
		return "UNKNOWN"
	}
	return rec.Result.Protocol.String()
}
