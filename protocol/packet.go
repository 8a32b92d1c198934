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
	"net"

	"github.com/pkg/errors"
)

// Kind discriminates the parsed payload of a Packet. A Packet carries exactly
// one payload variant, selected by Kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindARP
	KindLLDP
	KindTCP
	KindUDP
	KindICMP
	KindIPv4 // IPv4 with a transport we do not parse
)

func (r Kind) String() string {
	switch r {
	case KindARP:
		return "ARP"
	case KindLLDP:
		return "LLDP"
	case KindTCP:
		return "TCP"
	case KindUDP:
		return "UDP"
	case KindICMP:
		return "ICMP"
	case KindIPv4:
		return "IPv4"
	default:
		return "UNKNOWN"
	}
}

// Packet is a decoded Ethernet frame. Only the pointer matching Kind is
// non-nil; the others stay nil.
type Packet struct {
	Eth  Ethernet
	Kind Kind
	ARP  *ARP
	LLDP *LLDP
	IPv4 *IPv4
	TCP  *TCP
	UDP  *UDP
	ICMP *ICMPEcho
	// Data is the original frame, kept so the packet can be re-emitted
	// without a lossy re-encode.
	Data []byte
}

// Parse decodes an Ethernet frame into a tagged Packet. An unparseable inner
// payload is not an error: the packet degrades to KindUnknown (or KindIPv4
// when only the transport layer is opaque) so callers can still forward it.
func Parse(data []byte) (*Packet, error) {
	p := new(Packet)
	if err := p.Eth.UnmarshalBinary(data); err != nil {
		return nil, errors.Wrap(err, "decoding ethernet frame")
	}
	p.Data = make([]byte, len(data))
	copy(p.Data, data)

	switch p.Eth.Type {
	case EtherTypeARP:
		arp := new(ARP)
		if err := arp.UnmarshalBinary(p.Eth.Payload); err != nil {
			return p, nil
		}
		p.Kind = KindARP
		p.ARP = arp
	case EtherTypeLLDP:
		lldp := new(LLDP)
		if err := lldp.UnmarshalBinary(p.Eth.Payload); err != nil {
			return p, nil
		}
		p.Kind = KindLLDP
		p.LLDP = lldp
	case EtherTypeIPv4:
		ip := new(IPv4)
		if err := ip.UnmarshalBinary(p.Eth.Payload); err != nil {
			return p, nil
		}
		p.Kind = KindIPv4
		p.IPv4 = ip
		p.parseTransport()
	}

	return p, nil
}

func (r *Packet) parseTransport() {
	switch r.IPv4.Protocol {
	case IPProtoTCP:
		tcp := new(TCP)
		if err := tcp.UnmarshalBinary(r.IPv4.Payload); err != nil {
			return
		}
		r.Kind = KindTCP
		r.TCP = tcp
	case IPProtoUDP:
		udp := new(UDP)
		if err := udp.UnmarshalBinary(r.IPv4.Payload); err != nil {
			return
		}
		r.Kind = KindUDP
		r.UDP = udp
	case IPProtoICMP:
		icmp := new(ICMPEcho)
		if err := icmp.UnmarshalBinary(r.IPv4.Payload); err != nil {
			return
		}
		r.Kind = KindICMP
		r.ICMP = icmp
	}
}

// FiveTuple identifies a flow for hashing. Port numbers are zero for
// non-TCP/UDP traffic so all packets of such a conversation share one tuple.
type FiveTuple struct {
	SrcIP    uint32
	DstIP    uint32
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

// FiveTuple returns the flow tuple of an IPv4 packet. ok is false for
// non-IPv4 packets.
func (r *Packet) FiveTuple() (t FiveTuple, ok bool) {
	if r.IPv4 == nil {
		return FiveTuple{}, false
	}
	t.SrcIP = ipToUint32(r.IPv4.SrcIP)
	t.DstIP = ipToUint32(r.IPv4.DstIP)
	t.Protocol = r.IPv4.Protocol
	switch r.Kind {
	case KindTCP:
		t.SrcPort, t.DstPort = r.TCP.SrcPort, r.TCP.DstPort
	case KindUDP:
		t.SrcPort, t.DstPort = r.UDP.SrcPort, r.UDP.DstPort
	}

	return t, true
}

func ipToUint32(ip net.IP) uint32 {
	v := ip.To4()
	if v == nil {
		return 0
	}
	return uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3])
}
