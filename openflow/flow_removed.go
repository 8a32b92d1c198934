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
)

type FlowRemoved struct {
	Message
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	TableID      uint8
	DurationSec  uint32
	DurationNSec uint32
	IdleTimeout  uint16
	HardTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
	Match        *Match
}

func (r *FlowRemoved) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 48 {
		return ErrInvalidPacketLength
	}
	r.Cookie = binary.BigEndian.Uint64(payload[0:8])
	r.Priority = binary.BigEndian.Uint16(payload[8:10])
	r.Reason = payload[10]
	r.TableID = payload[11]
	r.DurationSec = binary.BigEndian.Uint32(payload[12:16])
	r.DurationNSec = binary.BigEndian.Uint32(payload[16:20])
	r.IdleTimeout = binary.BigEndian.Uint16(payload[20:22])
	r.HardTimeout = binary.BigEndian.Uint16(payload[22:24])
	r.PacketCount = binary.BigEndian.Uint64(payload[24:32])
	r.ByteCount = binary.BigEndian.Uint64(payload[32:40])

	r.Match = NewMatch()
	return r.Match.UnmarshalBinary(payload[40:])
}
