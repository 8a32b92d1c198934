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
	"net"
	"testing"
)

func fabricMatch(t *testing.T) *Match {
	m := NewMatch()
	m.SetEtherType(0x0800)
	m.SetIPProtocol(0x06)
	m.SetSrcIP(net.ParseIP("10.0.0.31"))
	m.SetDstIP(net.ParseIP("10.0.0.41"))
	m.SetSrcPort(49152)
	m.SetDstPort(80)
	if m.Error() != nil {
		t.Fatalf("unexpected match error: %v", m.Error())
	}
	return m
}

func TestMatchDigestDeterminism(t *testing.T) {
	first, err := fabricMatch(t).Digest()
	if err != nil {
		t.Fatalf("failed to digest a match: %v", err)
	}
	for i := 0; i < 100; i++ {
		v, err := fabricMatch(t).Digest()
		if err != nil {
			t.Fatalf("failed to digest a match: %v", err)
		}
		if v != first {
			t.Fatalf("non-deterministic match digest: #%d differs", i)
		}
	}
}

func TestMatchRoundTrip(t *testing.T) {
	in := fabricMatch(t)
	in.SetInPort(3)

	v, err := in.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal a match: %v", err)
	}
	if len(v)%8 != 0 {
		t.Fatalf("match is not 8-byte aligned: length=%v", len(v))
	}

	out := NewMatch()
	if err := out.UnmarshalBinary(v); err != nil {
		t.Fatalf("failed to unmarshal a match: %v", err)
	}

	if wildcard, port := out.InPort(); wildcard || port != 3 {
		t.Fatalf("unexpected in-port: wildcard=%v, port=%v", wildcard, port)
	}
	if wildcard, ip := out.SrcIP(); wildcard || !ip.Equal(net.ParseIP("10.0.0.31")) {
		t.Fatalf("unexpected source IP: wildcard=%v, ip=%v", wildcard, ip)
	}
	if wildcard, port := out.DstPort(); wildcard || port != 80 {
		t.Fatalf("unexpected destination port: wildcard=%v, port=%v", wildcard, port)
	}

	inDigest, _ := in.Digest()
	outDigest, _ := out.Digest()
	if inDigest != outDigest {
		t.Fatal("digest changed over a marshal round trip")
	}
}

func TestMatchPortWithoutProtocol(t *testing.T) {
	m := NewMatch()
	m.SetEtherType(0x0800)
	m.SetSrcPort(49152) // no IP protocol set
	if m.Error() == nil {
		t.Fatal("expected a prerequisite error")
	}
	if _, err := m.MarshalBinary(); err == nil {
		t.Fatal("expected the prerequisite error from MarshalBinary")
	}
}

func TestFlowModMarshal(t *testing.T) {
	m := NewMatch()
	m.SetDstMAC(net.HardwareAddr{0, 0, 0, 0, 0, 0x41})

	action := NewAction()
	action.AddOutput(2)

	mod := NewFlowMod(OFPFC_ADD)
	mod.Cookie = 0xCAFE
	mod.IdleTimeout = 30
	mod.HardTimeout = 300
	mod.Priority = 15
	mod.Match = m
	mod.Instruction = NewInstruction(action)

	v, err := mod.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal a flow mod: %v", err)
	}

	if v[0] != Version || v[1] != OFPT_FLOW_MOD {
		t.Fatalf("unexpected header: version=%#x, type=%#x", v[0], v[1])
	}
	body := v[8:]
	if body[17] != OFPFC_ADD {
		t.Fatalf("unexpected command: %v", body[17])
	}
	if got := uint16(body[22])<<8 | uint16(body[23]); got != 15 {
		t.Fatalf("unexpected priority: %v", got)
	}
	if got := uint16(body[36])<<8 | uint16(body[37]); got&OFPFF_SEND_FLOW_REM == 0 {
		t.Fatal("OFPFF_SEND_FLOW_REM flag is not set")
	}
}

func TestPacketInUnmarshal(t *testing.T) {
	match := NewMatch()
	match.SetInPort(7)
	matchData, err := match.MarshalBinary()
	if err != nil {
		t.Fatalf("failed to marshal a match: %v", err)
	}

	frame := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	payload := make([]byte, 16)
	payload[0], payload[1], payload[2], payload[3] = 0xFF, 0xFF, 0xFF, 0xFF // OFP_NO_BUFFER
	payload[4], payload[5] = 0x00, byte(len(frame))
	payload[6] = OFPR_NO_MATCH
	payload = append(payload, matchData...)
	payload = append(payload, 0, 0) // padding
	payload = append(payload, frame...)

	packet := make([]byte, 8)
	packet[0] = Version
	packet[1] = OFPT_PACKET_IN
	packet[2] = byte((8 + len(payload)) >> 8)
	packet[3] = byte(8 + len(payload))
	packet = append(packet, payload...)

	in := new(PacketIn)
	if err := in.UnmarshalBinary(packet); err != nil {
		t.Fatalf("failed to unmarshal a packet in: %v", err)
	}
	if in.InPort != 7 {
		t.Fatalf("unexpected in-port: %v", in.InPort)
	}
	if in.Reason != OFPR_NO_MATCH {
		t.Fatalf("unexpected reason: %v", in.Reason)
	}
	if !bytes.Equal(in.Data, frame) {
		t.Fatalf("unexpected frame data: %v", in.Data)
	}
}
