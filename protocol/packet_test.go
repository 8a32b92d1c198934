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
	"bytes"
	"net"
	"testing"
)

func makeFrame(t *testing.T, src, dst net.HardwareAddr, etherType uint16, payload []byte) []byte {
	eth := Ethernet{
		SrcMAC:  src,
		DstMAC:  dst,
		Type:    etherType,
		Payload: payload,
	}
	v, err := eth.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal an ethernet frame: %v", err)
	}
	return v
}

func TestParseARP(t *testing.T) {
	sha, _ := net.ParseMAC("00:00:00:00:00:31")
	tha, _ := net.ParseMAC("FF:FF:FF:FF:FF:FF")
	arp := NewARPRequest(sha, net.ParseIP("10.0.0.31"), net.ParseIP("10.0.0.42"))
	payload, err := arp.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal an ARP packet: %v", err)
	}

	frame := makeFrame(t, sha, tha, EtherTypeARP, payload)
	p, err := Parse(frame)
	if err != nil {
		t.Fatalf("failed to parse a frame: %v", err)
	}
	if p.Kind != KindARP {
		t.Fatalf("unexpected packet kind: expected=%v, got=%v", KindARP, p.Kind)
	}
	if p.ARP.Operation != ARPOpRequest {
		t.Fatalf("unexpected ARP operation: expected=%v, got=%v", ARPOpRequest, p.ARP.Operation)
	}
	if !p.ARP.SPA.Equal(net.ParseIP("10.0.0.31")) {
		t.Fatalf("unexpected sender protocol address: %v", p.ARP.SPA)
	}
	if !p.ARP.TPA.Equal(net.ParseIP("10.0.0.42")) {
		t.Fatalf("unexpected target protocol address: %v", p.ARP.TPA)
	}
	if !p.Eth.IsBroadcast() {
		t.Fatal("expected a broadcast frame")
	}
}

func TestParseTCPFiveTuple(t *testing.T) {
	src, _ := net.ParseMAC("00:00:00:00:00:31")
	dst, _ := net.ParseMAC("00:00:00:00:00:41")

	tcp := &TCP{
		SrcPort:    49152,
		DstPort:    80,
		WindowSize: 65535,
	}
	tcp.SetPseudoHeader(net.ParseIP("10.0.0.31"), net.ParseIP("10.0.0.41"))
	segment, err := tcp.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal a TCP segment: %v", err)
	}
	ip := NewIPv4(net.ParseIP("10.0.0.31"), net.ParseIP("10.0.0.41"), IPProtoTCP, segment)
	payload, err := ip.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal an IPv4 packet: %v", err)
	}

	p, err := Parse(makeFrame(t, src, dst, EtherTypeIPv4, payload))
	if err != nil {
		t.Fatalf("failed to parse a frame: %v", err)
	}
	if p.Kind != KindTCP {
		t.Fatalf("unexpected packet kind: expected=%v, got=%v", KindTCP, p.Kind)
	}

	tuple, ok := p.FiveTuple()
	if !ok {
		t.Fatal("expected a five-tuple from an IPv4 packet")
	}
	expected := FiveTuple{
		SrcIP:    0x0A00001F,
		DstIP:    0x0A000029,
		SrcPort:  49152,
		DstPort:  80,
		Protocol: IPProtoTCP,
	}
	if tuple != expected {
		t.Fatalf("unexpected five-tuple: expected=%+v, got=%+v", expected, tuple)
	}
}

func TestParseICMPTupleHasZeroPorts(t *testing.T) {
	src, _ := net.ParseMAC("00:00:00:00:00:31")
	dst, _ := net.ParseMAC("00:00:00:00:00:41")

	icmp := NewICMPEchoRequest(1, 7, []byte("ping"))
	payload, err := icmp.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal an ICMP packet: %v", err)
	}
	ip := NewIPv4(net.ParseIP("10.0.0.31"), net.ParseIP("10.0.0.41"), IPProtoICMP, payload)
	v, err := ip.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal an IPv4 packet: %v", err)
	}

	p, err := Parse(makeFrame(t, src, dst, EtherTypeIPv4, v))
	if err != nil {
		t.Fatalf("failed to parse a frame: %v", err)
	}
	if p.Kind != KindICMP {
		t.Fatalf("unexpected packet kind: expected=%v, got=%v", KindICMP, p.Kind)
	}
	tuple, ok := p.FiveTuple()
	if !ok {
		t.Fatal("expected a five-tuple from an IPv4 packet")
	}
	if tuple.SrcPort != 0 || tuple.DstPort != 0 {
		t.Fatalf("expected zero ports for ICMP: got=%+v", tuple)
	}
}

func TestLLDPRoundTrip(t *testing.T) {
	tests := []struct {
		chassis []byte
		port    []byte
	}{
		{[]byte("dpid:0000000000000003"), []byte("fabricd/1")},
		{[]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05}, []byte{0x00, 0x00, 0x00, 0x02}},
	}

	for i, test := range tests {
		in := &LLDP{
			ChassisID: LLDPChassisID{SubType: 7, Data: test.chassis},
			PortID:    LLDPPortID{SubType: 7, Data: test.port},
			TTL:       120,
		}
		v, err := in.MarshalBinary()
		if err != nil {
			t.Fatalf("test #%d: failed to marshal an LLDP packet: %v", i, err)
		}

		out := new(LLDP)
		if err := out.UnmarshalBinary(v); err != nil {
			t.Fatalf("test #%d: failed to unmarshal an LLDP packet: %v", i, err)
		}
		if !bytes.Equal(out.ChassisID.Data, test.chassis) {
			t.Fatalf("test #%d: unexpected chassis ID: %v", i, out.ChassisID.Data)
		}
		if !bytes.Equal(out.PortID.Data, test.port) {
			t.Fatalf("test #%d: unexpected port ID: %v", i, out.PortID.Data)
		}
		if out.TTL != 120 {
			t.Fatalf("test #%d: unexpected TTL: %v", i, out.TTL)
		}
	}
}

func TestParseTruncatedFrame(t *testing.T) {
	if _, err := Parse([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatal("expected an error on a truncated frame")
	}
}

func TestParseUnknownEtherType(t *testing.T) {
	src, _ := net.ParseMAC("00:00:00:00:00:31")
	dst, _ := net.ParseMAC("00:00:00:00:00:41")

	p, err := Parse(makeFrame(t, src, dst, 0x86DD /* IPv6 */, make([]byte, 40)))
	if err != nil {
		t.Fatalf("failed to parse a frame: %v", err)
	}
	if p.Kind != KindUnknown {
		t.Fatalf("unexpected packet kind: expected=%v, got=%v", KindUnknown, p.Kind)
	}
}
