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
	"net"
	"strings"
)

// PhysicalPort is the 64-byte ofp_port description.
type PhysicalPort struct {
	Number       uint32
	MAC          net.HardwareAddr
	Name         string
	Config       uint32
	State        uint32
	Current      uint32
	Advertised   uint32
	Supported    uint32
	Peer         uint32
	CurrentSpeed uint32 // kbps
	MaxSpeed     uint32 // kbps
}

// IsPortDown returns whether the port is administratively down.
func (r *PhysicalPort) IsPortDown() bool {
	return r.Config&OFPPC_PORT_DOWN != 0
}

// IsLinkDown returns whether the physical link is down.
func (r *PhysicalPort) IsLinkDown() bool {
	return r.State&OFPPS_LINK_DOWN != 0
}

func (r *PhysicalPort) UnmarshalBinary(data []byte) error {
	if len(data) < 64 {
		return ErrInvalidPacketLength
	}

	r.Number = binary.BigEndian.Uint32(data[0:4])
	// data[4:8] is padding
	r.MAC = make(net.HardwareAddr, 6)
	copy(r.MAC, data[8:14])
	// data[14:16] is padding
	r.Name = strings.TrimRight(string(data[16:32]), "\x00")
	r.Config = binary.BigEndian.Uint32(data[32:36])
	r.State = binary.BigEndian.Uint32(data[36:40])
	r.Current = binary.BigEndian.Uint32(data[40:44])
	r.Advertised = binary.BigEndian.Uint32(data[44:48])
	r.Supported = binary.BigEndian.Uint32(data[48:52])
	r.Peer = binary.BigEndian.Uint32(data[52:56])
	r.CurrentSpeed = binary.BigEndian.Uint32(data[56:60])
	r.MaxSpeed = binary.BigEndian.Uint32(data[60:64])

	return nil
}

type PortStatus struct {
	Message
	Reason uint8
	Port   PhysicalPort
}

func (r *PortStatus) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 72 {
		return ErrInvalidPacketLength
	}
	r.Reason = payload[0]
	// payload[1:8] is padding
	return r.Port.UnmarshalBinary(payload[8:])
}
