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
	"errors"
)

type PacketOut struct {
	Message
	// InPort is the ingress port of the carried frame, or OFPP_CONTROLLER
	// for controller-originated frames.
	InPort uint32
	Action *Action
	Data   []byte
}

func NewPacketOut(inPort uint32, action *Action, data []byte) *PacketOut {
	return &PacketOut{
		Message: NewMessage(OFPT_PACKET_OUT),
		InPort:  inPort,
		Action:  action,
		Data:    data,
	}
}

func (r *PacketOut) MarshalBinary() ([]byte, error) {
	if r.Action == nil {
		return nil, errors.New("empty action")
	}
	action, err := r.Action.MarshalBinary()
	if err != nil {
		return nil, err
	}

	v := make([]byte, 16)
	binary.BigEndian.PutUint32(v[0:4], OFP_NO_BUFFER)
	binary.BigEndian.PutUint32(v[4:8], r.InPort)
	binary.BigEndian.PutUint16(v[8:10], uint16(len(action)))
	// v[10:16] is padding
	v = append(v, action...)
	if len(r.Data) > 0 {
		v = append(v, r.Data...)
	}

	r.SetPayload(v)
	return r.Message.MarshalBinary()
}
