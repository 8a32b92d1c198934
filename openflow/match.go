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
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
)

// marshalOrder fixes the TLV emit order so that two matches with the same
// fields always marshal to the same bytes. Prerequisite fields come first.
var marshalOrder = []uint8{
	OFPXMT_OFB_IN_PORT,
	OFPXMT_OFB_ETH_SRC,
	OFPXMT_OFB_ETH_DST,
	OFPXMT_OFB_ETH_TYPE,
	OFPXMT_OFB_IP_PROTO,
	OFPXMT_OFB_IPV4_SRC,
	OFPXMT_OFB_IPV4_DST,
	OFPXMT_OFB_TCP_SRC,
	OFPXMT_OFB_TCP_DST,
	OFPXMT_OFB_UDP_SRC,
	OFPXMT_OFB_UDP_DST,
}

// Match is an OXM flow match. All fields of a new Match are wildcarded.
// Setters record a prerequisite violation instead of returning an error; the
// first violation surfaces from MarshalBinary.
type Match struct {
	err error
	m   map[uint8]interface{}
}

func NewMatch() *Match {
	return &Match{
		m: make(map[uint8]interface{}),
	}
}

func (r *Match) Error() error {
	return r.err
}

func (r *Match) SetInPort(port uint32) {
	r.m[OFPXMT_OFB_IN_PORT] = port
}

func (r *Match) InPort() (wildcard bool, port uint32) {
	v, ok := r.m[OFPXMT_OFB_IN_PORT]
	if !ok {
		return true, 0
	}
	return false, v.(uint32)
}

func (r *Match) SetSrcMAC(mac net.HardwareAddr) {
	if mac == nil {
		r.err = errors.New("SetSrcMAC: nil MAC address")
		return
	}
	r.m[OFPXMT_OFB_ETH_SRC] = mac
}

func (r *Match) SrcMAC() (wildcard bool, mac net.HardwareAddr) {
	v, ok := r.m[OFPXMT_OFB_ETH_SRC]
	if !ok {
		return true, nil
	}
	return false, v.(net.HardwareAddr)
}

func (r *Match) SetDstMAC(mac net.HardwareAddr) {
	if mac == nil {
		r.err = errors.New("SetDstMAC: nil MAC address")
		return
	}
	r.m[OFPXMT_OFB_ETH_DST] = mac
}

func (r *Match) DstMAC() (wildcard bool, mac net.HardwareAddr) {
	v, ok := r.m[OFPXMT_OFB_ETH_DST]
	if !ok {
		return true, nil
	}
	return false, v.(net.HardwareAddr)
}

func (r *Match) SetEtherType(etherType uint16) {
	r.m[OFPXMT_OFB_ETH_TYPE] = etherType
}

func (r *Match) EtherType() (wildcard bool, etherType uint16) {
	v, ok := r.m[OFPXMT_OFB_ETH_TYPE]
	if !ok {
		return true, 0
	}
	return false, v.(uint16)
}

func (r *Match) checkIPv4() bool {
	v, ok := r.m[OFPXMT_OFB_ETH_TYPE]
	return ok && v.(uint16) == 0x0800
}

func (r *Match) SetIPProtocol(protocol uint8) {
	if !r.checkIPv4() {
		r.err = errors.New("SetIPProtocol: missing IPv4 ether type prerequisite")
		return
	}
	r.m[OFPXMT_OFB_IP_PROTO] = protocol
}

func (r *Match) IPProtocol() (wildcard bool, protocol uint8) {
	v, ok := r.m[OFPXMT_OFB_IP_PROTO]
	if !ok {
		return true, 0
	}
	return false, v.(uint8)
}

func (r *Match) SetSrcIP(ip net.IP) {
	if !r.checkIPv4() {
		r.err = errors.New("SetSrcIP: missing IPv4 ether type prerequisite")
		return
	}
	v := ip.To4()
	if v == nil {
		r.err = errors.New("SetSrcIP: not an IPv4 address")
		return
	}
	r.m[OFPXMT_OFB_IPV4_SRC] = net.IP(v)
}

func (r *Match) SrcIP() (wildcard bool, ip net.IP) {
	v, ok := r.m[OFPXMT_OFB_IPV4_SRC]
	if !ok {
		return true, nil
	}
	return false, v.(net.IP)
}

func (r *Match) SetDstIP(ip net.IP) {
	if !r.checkIPv4() {
		r.err = errors.New("SetDstIP: missing IPv4 ether type prerequisite")
		return
	}
	v := ip.To4()
	if v == nil {
		r.err = errors.New("SetDstIP: not an IPv4 address")
		return
	}
	r.m[OFPXMT_OFB_IPV4_DST] = net.IP(v)
}

func (r *Match) DstIP() (wildcard bool, ip net.IP) {
	v, ok := r.m[OFPXMT_OFB_IPV4_DST]
	if !ok {
		return true, nil
	}
	return false, v.(net.IP)
}

func (r *Match) transportField(tcp, udp uint8) (field uint8, ok bool) {
	proto, exist := r.m[OFPXMT_OFB_IP_PROTO]
	if !exist {
		return 0, false
	}
	switch proto.(uint8) {
	case 0x06:
		return tcp, true
	case 0x11:
		return udp, true
	default:
		return 0, false
	}
}

func (r *Match) SetSrcPort(p uint16) {
	field, ok := r.transportField(OFPXMT_OFB_TCP_SRC, OFPXMT_OFB_UDP_SRC)
	if !ok {
		r.err = errors.New("SetSrcPort: missing TCP or UDP protocol prerequisite")
		return
	}
	r.m[field] = p
}

func (r *Match) SrcPort() (wildcard bool, port uint16) {
	if v, ok := r.m[OFPXMT_OFB_TCP_SRC]; ok {
		return false, v.(uint16)
	}
	if v, ok := r.m[OFPXMT_OFB_UDP_SRC]; ok {
		return false, v.(uint16)
	}
	return true, 0
}

func (r *Match) SetDstPort(p uint16) {
	field, ok := r.transportField(OFPXMT_OFB_TCP_DST, OFPXMT_OFB_UDP_DST)
	if !ok {
		r.err = errors.New("SetDstPort: missing TCP or UDP protocol prerequisite")
		return
	}
	r.m[field] = p
}

func (r *Match) DstPort() (wildcard bool, port uint16) {
	if v, ok := r.m[OFPXMT_OFB_TCP_DST]; ok {
		return false, v.(uint16)
	}
	if v, ok := r.m[OFPXMT_OFB_UDP_DST]; ok {
		return false, v.(uint16)
	}
	return true, 0
}

func marshalTLVHeader(field uint8, length int) []byte {
	v := make([]byte, 4)
	header := uint32(OFPXMC_OPENFLOW_BASIC)<<16 | uint32(field)<<9 | uint32(length&0xFF)
	binary.BigEndian.PutUint32(v, header)
	return v
}

func marshalTLV(field uint8, value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case uint8:
		return append(marshalTLVHeader(field, 1), v), nil
	case uint16:
		tlv := marshalTLVHeader(field, 2)
		tlv = append(tlv, 0, 0)
		binary.BigEndian.PutUint16(tlv[4:6], v)
		return tlv, nil
	case uint32:
		tlv := marshalTLVHeader(field, 4)
		tlv = append(tlv, 0, 0, 0, 0)
		binary.BigEndian.PutUint32(tlv[4:8], v)
		return tlv, nil
	case net.HardwareAddr:
		if len(v) != 6 {
			return nil, errors.New("invalid MAC address length")
		}
		return append(marshalTLVHeader(field, 6), v...), nil
	case net.IP:
		ip := v.To4()
		if ip == nil {
			return nil, errors.New("not an IPv4 address")
		}
		return append(marshalTLVHeader(field, 4), ip...), nil
	default:
		return nil, fmt.Errorf("unsupported TLV value type: %T", value)
	}
}

func (r *Match) MarshalBinary() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], OFPMT_OXM)
	for _, field := range marshalOrder {
		v, ok := r.m[field]
		if !ok {
			continue
		}
		tlv, err := marshalTLV(field, v)
		if err != nil {
			return nil, err
		}
		data = append(data, tlv...)
	}
	// ofp_match.length does not include padding
	binary.BigEndian.PutUint16(data[2:4], uint16(len(data)))
	// Add padding to align as a multiple of 8
	rem := len(data) % 8
	if rem > 0 {
		data = append(data, bytes.Repeat([]byte{0}, 8-rem)...)
	}

	return data, nil
}

func (r *Match) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return ErrInvalidPacketLength
	}
	if binary.BigEndian.Uint16(data[0:2]) != OFPMT_OXM {
		return errors.New("unsupported match type")
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if int(length) > len(data) {
		return ErrInvalidPacketLength
	}

	offset := 4
	for offset+4 <= int(length) {
		header := binary.BigEndian.Uint32(data[offset : offset+4])
		class := uint16(header >> 16)
		field := uint8(header >> 9 & 0x7F)
		hasMask := header>>8&0x1 == 1
		tlvLength := int(header & 0xFF)
		if offset+4+tlvLength > len(data) {
			return ErrInvalidPacketLength
		}
		value := data[offset+4 : offset+4+tlvLength]
		offset += 4 + tlvLength

		if class != OFPXMC_OPENFLOW_BASIC || hasMask {
			// Not a field we track. Leave it wildcarded.
			continue
		}
		if err := r.unmarshalField(field, value); err != nil {
			return err
		}
	}

	return nil
}

func (r *Match) unmarshalField(field uint8, value []byte) error {
	switch field {
	case OFPXMT_OFB_IN_PORT:
		if len(value) != 4 {
			return ErrInvalidPacketLength
		}
		r.m[field] = binary.BigEndian.Uint32(value)
	case OFPXMT_OFB_ETH_SRC, OFPXMT_OFB_ETH_DST:
		if len(value) != 6 {
			return ErrInvalidPacketLength
		}
		mac := make(net.HardwareAddr, 6)
		copy(mac, value)
		r.m[field] = mac
	case OFPXMT_OFB_ETH_TYPE:
		if len(value) != 2 {
			return ErrInvalidPacketLength
		}
		r.m[field] = binary.BigEndian.Uint16(value)
	case OFPXMT_OFB_IP_PROTO:
		if len(value) != 1 {
			return ErrInvalidPacketLength
		}
		r.m[field] = value[0]
	case OFPXMT_OFB_IPV4_SRC, OFPXMT_OFB_IPV4_DST:
		if len(value) != 4 {
			return ErrInvalidPacketLength
		}
		ip := make(net.IP, 4)
		copy(ip, value)
		r.m[field] = ip
	case OFPXMT_OFB_TCP_SRC, OFPXMT_OFB_TCP_DST, OFPXMT_OFB_UDP_SRC, OFPXMT_OFB_UDP_DST:
		if len(value) != 2 {
			return ErrInvalidPacketLength
		}
		r.m[field] = binary.BigEndian.Uint16(value)
	}

	return nil
}

// Digest returns a stable identifier of this match. Two matches with the same
// fields have the same digest, so it works as a flow table key.
func (r *Match) Digest() (string, error) {
	v, err := r.MarshalBinary()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(v), nil
}
