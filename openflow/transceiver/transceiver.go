/*
 * Fabricd - A Spine-Leaf Fabric Controller
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package transceiver

import (
	"context"
	"encoding"
	"encoding/binary"
	"time"

	"fabricd/openflow"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("transceiver")
)

const (
	// Allowed idle time before we send an echo request to a switch.
	maxIdleTime = 10 * time.Second
	// I/O timeouts (These timeouts should be less than maxIdleTime).
	readTimeout  = 1 * time.Second
	writeTimeout = readTimeout * 2
)

type Writer interface {
	Write(msg encoding.BinaryMarshaler) error
}

type WriteCloser interface {
	Writer
	Close() error
}

// Handler receives the inbound messages a fabric controller reacts to. The
// message set is closed: anything else coming off the wire is dropped inside
// the transceiver.
type Handler interface {
	OnHello(Writer, *openflow.Hello) error
	OnError(Writer, *openflow.Error) error
	OnFeaturesReply(Writer, *openflow.FeaturesReply) error
	OnDescReply(Writer, *openflow.DescReply) error
	OnPortDescReply(Writer, *openflow.PortDescReply) error
	OnPortStatsReply(Writer, *openflow.PortStatsReply) error
	OnPortStatus(Writer, *openflow.PortStatus) error
	OnFlowRemoved(Writer, *openflow.FlowRemoved) error
	OnPacketIn(Writer, *openflow.PacketIn) error
}

type Transceiver struct {
	stream      *Stream
	observer    Handler
	negotiated  bool
	pingCounter uint
}

func NewTransceiver(stream *Stream, handler Handler) *Transceiver {
	if stream == nil {
		panic("stream is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}

	return &Transceiver{
		stream:   stream,
		observer: handler,
	}
}

// Negotiated returns whether the HELLO exchange completed.
func (r *Transceiver) Negotiated() bool {
	return r.negotiated
}

func isTimeout(err error) bool {
	type Timeout interface {
		Timeout() bool
	}

	if v, ok := err.(Timeout); ok {
		return v.Timeout()
	}

	return false
}

func (r *Transceiver) sendEchoRequest() error {
	if r.pingCounter > 2 {
		return errors.New("device does not respond to our echo request")
	}

	// We use current timestamp to check network latency between our
	// controller and a switch.
	timestamp, err := time.Now().GobEncode()
	if err != nil {
		return err
	}
	if err := r.Write(openflow.NewEchoRequest(timestamp)); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REQUEST message")
	}
	r.pingCounter++

	return nil
}

func (r *Transceiver) Run(ctx context.Context) error {
	defer logger.Info("transceiver is closed")
	r.stream.SetReadTimeout(readTimeout)
	r.stream.SetWriteTimeout(writeTimeout)

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	reader := r.runReader(readerCtx)

	packet, err := r.negotiate(ctx, reader)
	if err != nil {
		return errors.Wrap(err, "failed to negotiate the protocol version")
	}

	for {
		if err := r.dispatch(packet); err != nil {
			if !isTemporaryErr(err) {
				return err
			}
			// Ignore the temporary error. Just log it and keep go on.
			logger.Errorf("failed to dispatch the packet: %v", err)
		}

		var ok bool
		select {
		case <-ctx.Done():
			logger.Info("context done")
			return nil
		case packet, ok = <-reader:
			if !ok {
				logger.Info("the reader channel is closed")
				return nil
			}
			remain := len(reader)
			if remain > 0 {
				logger.Debugf("%v remaining unread packet(s) in the reader channel", remain)
			}
		}
	}
}

func (r *Transceiver) negotiate(ctx context.Context, reader <-chan []byte) (packet []byte, err error) {
	select {
	case <-ctx.Done():
		return nil, errors.New("context done")
	case <-time.After(30 * time.Second):
		return nil, errors.New("inactive for too long")
	case packet, ok := <-reader:
		if !ok {
			return nil, errors.New("the reader channel is closed")
		}
		// The first message should be HELLO.
		if packet[1] != openflow.OFPT_HELLO {
			return nil, errors.New("missing HELLO message")
		}
		// We only speak 1.3. A 1.0-only switch has no place in this
		// fabric, so the session ends here.
		if packet[0] < openflow.Version {
			return nil, openflow.ErrUnsupportedVersion
		}
		r.negotiated = true
		logger.Info("negotiated to openflow version 1.3")

		// Return the initial packet to dispatch it.
		return packet, nil
	}
}

func (r *Transceiver) runReader(ctx context.Context) <-chan []byte {
	c := make(chan []byte, 4096)
	go func() {
		// Closing c notifies the consumer that the connection is gone.
		defer close(c)
		defer logger.Info("transceiver reader is closed")

		lastActivated := time.Now()
		for {
			select {
			case <-ctx.Done():
				logger.Info("context done")
				return
			default:
			}

			packet, err := r.readPacket()
			if err != nil {
				if !isTimeout(err) {
					logger.Errorf("failed to read the next packet: %v", err)
					return
				}
				// Timeout occurred. Send a ping request if necessary.
				if time.Now().After(lastActivated.Add(maxIdleTime)) {
					if err := r.sendEchoRequest(); err != nil {
						logger.Errorf("failed to send an echo request: %v", err)
						return
					}
				}
				continue
			}
			lastActivated = time.Now()

			ok, err := r.handleEcho(packet)
			if err != nil {
				logger.Errorf("failed to handle the echo request or response: %v", err)
				return
			}
			if ok {
				// Echo messages stop here.
				continue
			}

			select {
			case c <- packet:
			default:
				// Drop the packet if we cannot immediately carry it.
				logger.Error("transceiver buffer full: drop the incoming packet!")
			}
		}
	}()

	return c
}

func isTemporaryErr(err error) bool {
	e, ok := errors.Cause(err).(interface {
		Temporary() bool
	})
	return ok && e.Temporary()
}

func (r *Transceiver) readPacket() ([]byte, error) {
	header, err := r.stream.Peek(8) // peek ofp_header
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if length < 8 {
		return nil, openflow.ErrInvalidPacketLength
	}
	return r.stream.ReadN(int(length))
}

func (r *Transceiver) Write(msg encoding.BinaryMarshaler) error {
	packet, err := msg.MarshalBinary()
	if err != nil {
		return err
	}

	if _, err := r.stream.Write(packet); err != nil {
		return err
	}

	return nil
}

func (r *Transceiver) Close() error {
	return r.stream.Close()
}

func (r *Transceiver) handleEcho(packet []byte) (handled bool, err error) {
	switch packet[1] {
	case openflow.OFPT_ECHO_REQUEST:
		req := new(openflow.EchoRequest)
		if err := req.UnmarshalBinary(packet); err != nil {
			return false, err
		}
		// Return the payload as is.
		return true, r.Write(openflow.NewEchoReply(req.Payload()))
	case openflow.OFPT_ECHO_REPLY:
		reply := new(openflow.EchoReply)
		if err := reply.UnmarshalBinary(packet); err != nil {
			return false, err
		}
		data := reply.Payload()
		if len(data) > 0 {
			var timestamp time.Time
			if err := timestamp.GobDecode(data); err == nil {
				logger.Debugf("network latency: %v", time.Since(timestamp))
			}
		}
		r.pingCounter = 0
		return true, nil
	default:
		return false, nil
	}
}

// dispatch decodes an inbound packet and routes it to the matching handler
// callback. Message types outside the closed set are dropped.
func (r *Transceiver) dispatch(packet []byte) error {
	if packet[0] != openflow.Version {
		return openflow.ErrUnsupportedVersion
	}

	switch packet[1] {
	case openflow.OFPT_HELLO:
		msg := new(openflow.Hello)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnHello(r, msg)
	case openflow.OFPT_ERROR:
		msg := new(openflow.Error)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnError(r, msg)
	case openflow.OFPT_FEATURES_REPLY:
		msg := new(openflow.FeaturesReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnFeaturesReply(r, msg)
	case openflow.OFPT_MULTIPART_REPLY:
		return r.dispatchMultipart(packet)
	case openflow.OFPT_PORT_STATUS:
		msg := new(openflow.PortStatus)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnPortStatus(r, msg)
	case openflow.OFPT_FLOW_REMOVED:
		msg := new(openflow.FlowRemoved)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnFlowRemoved(r, msg)
	case openflow.OFPT_PACKET_IN:
		msg := new(openflow.PacketIn)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnPacketIn(r, msg)
	default:
		// Unsupported message. Do nothing.
		return nil
	}
}

func (r *Transceiver) dispatchMultipart(packet []byte) error {
	mpType, ok := openflow.MultipartType(packet)
	if !ok {
		return openflow.ErrInvalidPacketLength
	}

	switch mpType {
	case openflow.OFPMP_DESC:
		msg := new(openflow.DescReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnDescReply(r, msg)
	case openflow.OFPMP_PORT_DESC:
		msg := new(openflow.PortDescReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnPortDescReply(r, msg)
	case openflow.OFPMP_PORT_STATS:
		msg := new(openflow.PortStatsReply)
		if err := msg.UnmarshalBinary(packet); err != nil {
			return err
		}
		return r.observer.OnPortStatsReply(r, msg)
	default:
		// Unsupported message. Do nothing.
		return nil
	}
}
