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

package openflow

import (
	"encoding/binary"
	"strings"
)

func newMultipartRequest(mpType uint16, body []byte) Message {
	msg := NewMessage(OFPT_MULTIPART_REQUEST)
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], mpType)
	// v[2:4] is flags, v[4:8] is padding
	msg.SetPayload(append(v, body...))
	return msg
}

// MultipartType extracts the multipart type of a raw MULTIPART_REPLY packet.
func MultipartType(packet []byte) (uint16, bool) {
	if len(packet) < 10 {
		return 0, false
	}
	return binary.BigEndian.Uint16(packet[8:10]), true
}

type DescRequest struct {
	Message
}

func NewDescRequest() *DescRequest {
	return &DescRequest{
		Message: newMultipartRequest(OFPMP_DESC, nil),
	}
}

type DescReply struct {
	Message
	Manufacturer string
	Hardware     string
	Software     string
	Serial       string
	Description  string
}

func (r *DescReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8+1056 {
		return ErrInvalidPacketLength
	}
	body := payload[8:]
	str := func(v []byte) string {
		return strings.TrimRight(string(v), "\x00")
	}
	r.Manufacturer = str(body[0:256])
	r.Hardware = str(body[256:512])
	r.Software = str(body[512:768])
	r.Serial = str(body[768:800])
	r.Description = str(body[800:1056])

	return nil
}

type PortDescRequest struct {
	Message
}

func NewPortDescRequest() *PortDescRequest {
	return &PortDescRequest{
		Message: newMultipartRequest(OFPMP_PORT_DESC, nil),
	}
}

type PortDescReply struct {
	Message
	Ports []PhysicalPort
}

func (r *PortDescReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return ErrInvalidPacketLength
	}
	body := payload[8:]
	nPorts := len(body) / 64
	for i := 0; i < nPorts; i++ {
		var p PhysicalPort
		if err := p.UnmarshalBinary(body[i*64:]); err != nil {
			return err
		}
		r.Ports = append(r.Ports, p)
	}

	return nil
}

type PortStatsRequest struct {
	Message
	// PortNo limits the request to one port. OFPP_ANY asks for all ports.
	PortNo uint32
}

func NewPortStatsRequest(portNo uint32) *PortStatsRequest {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], portNo)
	// body[4:8] is padding
	return &PortStatsRequest{
		Message: newMultipartRequest(OFPMP_PORT_STATS, body),
		PortNo:  portNo,
	}
}

// PortStat is one ofp_port_stats entry (112 bytes).
type PortStat struct {
	PortNo       uint32
	RxPackets    uint64
	TxPackets    uint64
	RxBytes      uint64
	TxBytes      uint64
	RxDropped    uint64
	TxDropped    uint64
	RxErrors     uint64
	TxErrors     uint64
	RxFrameErr   uint64
	RxOverErr    uint64
	RxCRCErr     uint64
	Collisions   uint64
	DurationSec  uint32
	DurationNSec uint32
}

func (r *PortStat) UnmarshalBinary(data []byte) error {
	if len(data) < 112 {
		return ErrInvalidPacketLength
	}

	r.PortNo = binary.BigEndian.Uint32(data[0:4])
	// data[4:8] is padding
	r.RxPackets = binary.BigEndian.Uint64(data[8:16])
	r.TxPackets = binary.BigEndian.Uint64(data[16:24])
	r.RxBytes = binary.BigEndian.Uint64(data[24:32])
	r.TxBytes = binary.BigEndian.Uint64(data[32:40])
	r.RxDropped = binary.BigEndian.Uint64(data[40:48])
	r.TxDropped = binary.BigEndian.Uint64(data[48:56])
	r.RxErrors = binary.BigEndian.Uint64(data[56:64])
	r.TxErrors = binary.BigEndian.Uint64(data[64:72])
	r.RxFrameErr = binary.BigEndian.Uint64(data[72:80])
	r.RxOverErr = binary.BigEndian.Uint64(data[80:88])
	r.RxCRCErr = binary.BigEndian.Uint64(data[88:96])
	r.Collisions = binary.BigEndian.Uint64(data[96:104])
	r.DurationSec = binary.BigEndian.Uint32(data[104:108])
	r.DurationNSec = binary.BigEndian.Uint32(data[108:112])

	return nil
}

type PortStatsReply struct {
	Message
	Stats []PortStat
}

func (r *PortStatsReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return ErrInvalidPacketLength
	}
	body := payload[8:]
	nStats := len(body) / 112
	for i := 0; i < nStats; i++ {
		var s PortStat
		if err := s.UnmarshalBinary(body[i*112:]); err != nil {
			return err
		}
		r.Stats = append(r.Stats, s)
	}

	return nil
}
