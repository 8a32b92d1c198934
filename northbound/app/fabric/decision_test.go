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

package fabric

import (
	"net"
	"testing"

	"fabricd/network"
	"fabricd/protocol"
)

const (
	spine1 uint64 = 0x11
	spine2 uint64 = 0x12
	leaf1  uint64 = 0x21
	leaf2  uint64 = 0x22
	leaf3  uint64 = 0x23
)

// testFabric is a 2-spine/3-leaf fabric. On every leaf, ports 1 and 2 go to
// spine 1 and spine 2; ports 3 and 4 face hosts. On every spine, ports 1-3
// go to leaf 1-3.
func testFabric() network.Snapshot {
	spinePorts := func() []network.PortInfo {
		return []network.PortInfo{
			{Number: 1, Up: true, Fabric: true},
			{Number: 2, Up: true, Fabric: true},
			{Number: 3, Up: true, Fabric: true},
		}
	}
	leafPorts := func() []network.PortInfo {
		return []network.PortInfo{
			{Number: 1, Up: true, Fabric: true},
			{Number: 2, Up: true, Fabric: true},
			{Number: 3, Up: true},
			{Number: 4, Up: true},
		}
	}

	return network.Snapshot{
		Switches: []network.SwitchInfo{
			{DPID: spine1, Role: network.RoleSpine, Ports: spinePorts()},
			{DPID: spine2, Role: network.RoleSpine, Ports: spinePorts()},
			{DPID: leaf1, Role: network.RoleLeaf, Ports: leafPorts()},
			{DPID: leaf2, Role: network.RoleLeaf, Ports: leafPorts()},
			{DPID: leaf3, Role: network.RoleLeaf, Ports: leafPorts()},
		},
		Links: []network.LinkInfo{
			{DPID: spine1, Port: 1, PeerDPID: leaf1, PeerPort: 1},
			{DPID: spine1, Port: 2, PeerDPID: leaf2, PeerPort: 1},
			{DPID: spine1, Port: 3, PeerDPID: leaf3, PeerPort: 1},
			{DPID: spine2, Port: 1, PeerDPID: leaf1, PeerPort: 2},
			{DPID: spine2, Port: 2, PeerDPID: leaf2, PeerPort: 2},
			{DPID: spine2, Port: 3, PeerDPID: leaf3, PeerPort: 2},
		},
	}
}

func tcpPacket(srcIP, dstIP net.IP, srcPort, dstPort uint16) *protocol.Packet {
	return &protocol.Packet{
		Eth: protocol.Ethernet{
			SrcMAC: net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
			DstMAC: net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02},
			Type:   protocol.EtherTypeIPv4,
		},
		Kind: protocol.KindTCP,
		IPv4: &protocol.IPv4{SrcIP: srcIP, DstIP: dstIP, Protocol: protocol.IPProtoTCP},
		TCP:  &protocol.TCP{SrcPort: srcPort, DstPort: dstPort},
	}
}

func broadcastPacket() *protocol.Packet {
	return &protocol.Packet{
		Eth: protocol.Ethernet{
			SrcMAC: net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01},
			DstMAC: net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			Type:   protocol.EtherTypeARP,
		},
		Kind: protocol.KindARP,
		ARP:  protocol.NewARPRequest(net.HardwareAddr{0, 0, 0, 0, 0, 1}, net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2)),
	}
}

func TestDecideSameLeafUnicast(t *testing.T) {
	d := decide(decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleLeaf,
		ingressDPID: leaf1,
		ingressPort: 3,
		packet:      tcpPacket(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 40000, 80),
		dst:         network.Host{DPID: leaf1, Port: 4},
		dstKnown:    true,
	})
	if d.Outcome != OutcomeUnicast || d.OutPort != 4 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestDecideHairpinDrop(t *testing.T) {
	d := decide(decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleLeaf,
		ingressDPID: leaf1,
		ingressPort: 3,
		packet:      tcpPacket(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2), 40000, 80),
		dst:         network.Host{DPID: leaf1, Port: 3},
		dstKnown:    true,
	})
	if d.Outcome != OutcomeDrop {
		t.Fatalf("expected drop, got %+v", d)
	}
}

func TestDecideECMPDeterminism(t *testing.T) {
	in := decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleLeaf,
		ingressDPID: leaf1,
		ingressPort: 3,
		packet:      tcpPacket(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 1, 2), 40000, 80),
		dst:         network.Host{DPID: leaf2, Port: 3},
		dstKnown:    true,
	}

	first := decide(in)
	if first.Outcome != OutcomeECMP {
		t.Fatalf("expected ECMP, got %+v", first)
	}
	if first.OutPort != 1 && first.OutPort != 2 {
		t.Fatalf("ECMP picked a non-uplink port: %v", first.OutPort)
	}
	// Same conversation, same uplink. Every time.
	for i := 0; i < 100; i++ {
		if d := decide(in); d.OutPort != first.OutPort {
			t.Fatalf("ECMP pick changed from %v to %v", first.OutPort, d.OutPort)
		}
	}
}

func TestDecideECMPDistribution(t *testing.T) {
	in := decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleLeaf,
		ingressDPID: leaf1,
		ingressPort: 3,
		dst:         network.Host{DPID: leaf2, Port: 3},
		dstKnown:    true,
	}

	counts := make(map[uint32]int)
	const flows = 10000
	for i := 0; i < flows; i++ {
		srcPort := uint16(10000 + i)
		in.packet = tcpPacket(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 1, 2), srcPort, 80)
		d := decide(in)
		if d.Outcome != OutcomeECMP {
			t.Fatalf("expected ECMP, got %+v", d)
		}
		counts[d.OutPort]++
	}

	if len(counts) != 2 {
		t.Fatalf("expected both uplinks used, got %v", counts)
	}
	// A fair hash lands roughly half the conversations on each uplink.
	for port, n := range counts {
		ratio := float64(n) / flows
		if ratio < 0.45 || ratio > 0.55 {
			t.Fatalf("uplink %v got %.1f%% of conversations", port, ratio*100)
		}
	}
}

func TestDecideECMPNoUplinks(t *testing.T) {
	snapshot := testFabric()
	// Cut leaf1 off: both uplinks down.
	for i, sw := range snapshot.Switches {
		if sw.DPID != leaf1 {
			continue
		}
		for j := range sw.Ports {
			if sw.Ports[j].Fabric {
				snapshot.Switches[i].Ports[j].Up = false
			}
		}
	}

	d := decide(decisionInput{
		snapshot:    snapshot,
		role:        network.RoleLeaf,
		ingressDPID: leaf1,
		ingressPort: 3,
		packet:      tcpPacket(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 1, 2), 40000, 80),
		dst:         network.Host{DPID: leaf2, Port: 3},
		dstKnown:    true,
	})
	if d.Outcome != OutcomeDrop {
		t.Fatalf("expected drop on an isolated leaf, got %+v", d)
	}
}

func TestDecideECMPSingleUplink(t *testing.T) {
	snapshot := testFabric()
	// Take down the leaf1 - spine1 uplink. All conversations converge on
	// the survivor.
	for i, sw := range snapshot.Switches {
		if sw.DPID != leaf1 {
			continue
		}
		snapshot.Switches[i].Ports[0].Up = false
	}

	for i := 0; i < 100; i++ {
		d := decide(decisionInput{
			snapshot:    snapshot,
			role:        network.RoleLeaf,
			ingressDPID: leaf1,
			ingressPort: 3,
			packet:      tcpPacket(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 1, 2), uint16(20000+i), 80),
			dst:         network.Host{DPID: leaf2, Port: 3},
			dstKnown:    true,
		})
		if d.Outcome != OutcomeECMP || d.OutPort != 2 {
			t.Fatalf("expected uplink 2, got %+v", d)
		}
	}
}

func TestDecideLeafFloodFromHost(t *testing.T) {
	d := decide(decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleLeaf,
		ingressDPID: leaf1,
		ingressPort: 3,
		packet:      broadcastPacket(),
	})
	if d.Outcome != OutcomeFlood {
		t.Fatalf("expected flood, got %+v", d)
	}

	hasIngress, hasHost4, uplinks := false, false, 0
	for _, p := range d.FloodPorts {
		switch p {
		case 3:
			hasIngress = true
		case 4:
			hasHost4 = true
		case 1, 2:
			uplinks++
		}
	}
	if hasIngress {
		t.Fatal("flood went back out the ingress port")
	}
	if !hasHost4 {
		t.Fatal("flood missed the other local host port")
	}
	// Exactly one uplink so the fabric sees a single copy.
	if uplinks != 1 {
		t.Fatalf("expected exactly 1 uplink in the flood, got %v", uplinks)
	}
}

func TestDecideLeafFloodFromFabric(t *testing.T) {
	d := decide(decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleLeaf,
		ingressDPID: leaf1,
		ingressPort: 1,
		packet:      broadcastPacket(),
	})
	if d.Outcome != OutcomeFlood {
		t.Fatalf("expected flood, got %+v", d)
	}
	for _, p := range d.FloodPorts {
		if p == 1 || p == 2 {
			t.Fatal("a flood from the fabric must never go back up")
		}
	}
	if len(d.FloodPorts) != 2 {
		t.Fatalf("expected both host ports, got %v", d.FloodPorts)
	}
}

func TestDecideSpineUnicast(t *testing.T) {
	d := decide(decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleSpine,
		ingressDPID: spine1,
		ingressPort: 1,
		packet:      tcpPacket(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 1, 2), 40000, 80),
		dst:         network.Host{DPID: leaf2, Port: 3},
		dstKnown:    true,
	})
	if d.Outcome != OutcomeUnicast || d.OutPort != 2 {
		t.Fatalf("expected unicast to port 2, got %+v", d)
	}
}

func TestDecideSpineFlood(t *testing.T) {
	d := decide(decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleSpine,
		ingressDPID: spine1,
		ingressPort: 1,
		packet:      broadcastPacket(),
	})
	if d.Outcome != OutcomeFlood {
		t.Fatalf("expected flood, got %+v", d)
	}
	if len(d.FloodPorts) != 2 {
		t.Fatalf("expected the 2 other leaf ports, got %v", d.FloodPorts)
	}
	for _, p := range d.FloodPorts {
		if p == 1 {
			t.Fatal("spine flood went back to the source leaf")
		}
	}
}

func TestDecideSpineStaleHostDrop(t *testing.T) {
	// The destination's leaf fell out of the topology but the host entry
	// is still around.
	d := decide(decisionInput{
		snapshot:    testFabric(),
		role:        network.RoleSpine,
		ingressDPID: spine1,
		ingressPort: 1,
		packet:      tcpPacket(net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 1, 2), 40000, 80),
		dst:         network.Host{DPID: 0x99, Port: 3},
		dstKnown:    true,
	})
	if d.Outcome != OutcomeDrop {
		t.Fatalf("expected drop, got %+v", d)
	}
}
