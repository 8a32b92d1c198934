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

package protocol

import (
	"encoding/binary"
	"errors"
)

type LLDPChassisID struct {
	SubType uint8
	Data    []byte
}

type LLDPPortID struct {
	SubType uint8
	Data    []byte
}

type LLDP struct {
	ChassisID LLDPChassisID
	PortID    LLDPPortID
	TTL       uint16
}

func (r *LLDP) marshalChassisID() ([]byte, error) {
	if r.ChassisID.Data == nil {
		return nil, errors.New("nil chassis ID")
	}
	if len(r.ChassisID.Data) > 255 {
		return nil, errors.New("too long chassis ID")
	}

	length := len(r.ChassisID.Data) + 1
	header := uint16(1<<9 | (length & 0x1FF))

	v := make([]byte, length+2)
	binary.BigEndian.PutUint16(v[0:2], header)
	v[2] = r.ChassisID.SubType
	copy(v[3:], r.ChassisID.Data)

	return v, nil
}

func (r *LLDP) marshalPortID() ([]byte, error) {
	if r.PortID.Data == nil {
		return nil, errors.New("nil port ID")
	}
	if len(r.PortID.Data) > 255 {
		return nil, errors.New("too long port ID")
	}

	length := len(r.PortID.Data) + 1
	header := uint16(2<<9 | (length & 0x1FF))

	v := make([]byte, length+2)
	binary.BigEndian.PutUint16(v[0:2], header)
	v[2] = r.PortID.SubType
	copy(v[3:], r.PortID.Data)

	return v, nil
}

func (r *LLDP) marshalTTL() ([]byte, error) {
	header := uint16(3<<9 | (2 & 0x1FF))

	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], header)
	binary.BigEndian.PutUint16(v[2:4], r.TTL)

	return v, nil
}

func (r *LLDP) MarshalBinary() ([]byte, error) {
	v := make([]byte, 0)

	chassis, err := r.marshalChassisID()
	if err != nil {
		return nil, err
	}
	v = append(v, chassis...)

	port, err := r.marshalPortID()
	if err != nil {
		return nil, err
	}
	v = append(v, port...)

	ttl, err := r.marshalTTL()
	if err != nil {
		return nil, err
	}
	v = append(v, ttl...)

	// End of TLV
	v = append(v, []byte{0, 0}...)

	return v, nil
}

func (r *LLDP) unmarshalTLV(data []byte, expected uint16) (subType uint8, value []byte, n int, err error) {
	if len(data) < 2 {
		return 0, nil, 0, errors.New("invalid TLV length")
	}

	header := binary.BigEndian.Uint16(data[0:2])
	tlvType := (header >> 9) & 0x7F
	if tlvType != expected {
		return 0, nil, 0, errors.New("unexpected TLV type")
	}
	tlvLength := header & 0x1FF
	if tlvLength < 1 || len(data) < int(tlvLength+2) {
		return 0, nil, 0, errors.New("invalid TLV length")
	}

	return data[2], data[3 : 2+tlvLength], int(tlvLength + 2), nil
}

func (r *LLDP) UnmarshalBinary(data []byte) error {
	// From IEEE 802.1AB-2009: three mandatory TLVs shall be included at the
	// beginning of each LLDPDU in this order: Chassis ID, Port ID, TTL.
	subType, value, n, err := r.unmarshalTLV(data, 1)
	if err != nil {
		return err
	}
	r.ChassisID = LLDPChassisID{SubType: subType, Data: value}
	offset := n

	subType, value, n, err = r.unmarshalTLV(data[offset:], 2)
	if err != nil {
		return err
	}
	r.PortID = LLDPPortID{SubType: subType, Data: value}
	offset += n

	if len(data) < offset+4 {
		return errors.New("invalid LLDP packet length")
	}
	header := binary.BigEndian.Uint16(data[offset : offset+2])
	if (header>>9)&0x7F != 3 {
		return errors.New("invalid TTL TLV type")
	}
	r.TTL = binary.BigEndian.Uint16(data[offset+2 : offset+4])

	return nil
}
