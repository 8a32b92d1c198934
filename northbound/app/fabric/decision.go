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
	"encoding/binary"
	"hash/fnv"

	"fabricd/network"
	"fabricd/protocol"
)

type Outcome int

const (
	OutcomeDrop Outcome = iota
	OutcomeUnicast
	OutcomeECMP
	OutcomeFlood
)

func (r Outcome) String() string {
	switch r {
	case OutcomeUnicast:
		return "unicast"
	case OutcomeECMP:
		return "ecmp"
	case OutcomeFlood:
		return "flood"
	default:
		return "drop"
	}
}

// Decision is what should happen to one packet on one switch. OutPort is set
// for unicast and ECMP, FloodPorts for flood.
type Decision struct {
	Outcome    Outcome
	OutPort    uint32
	FloodPorts []uint32
}

// decisionInput is everything decide needs. It is all values: decide never
// touches shared state, so it needs no locks and its results are repeatable.
type decisionInput struct {
	snapshot    network.Snapshot
	role        network.Role
	ingressDPID uint64
	ingressPort uint32
	packet      *protocol.Packet
	dst         network.Host
	dstKnown    bool
}

// hashTuple folds a five tuple into a uint32 with FNV-1a. The hash is
// deterministic across runs so a conversation sticks to one uplink even
// after a controller restart.
func hashTuple(t protocol.FiveTuple) uint32 {
	h := fnv.New32a()
	var buf [13]byte
	binary.BigEndian.PutUint32(buf[0:4], t.SrcIP)
	binary.BigEndian.PutUint32(buf[4:8], t.DstIP)
	binary.BigEndian.PutUint16(buf[8:10], t.SrcPort)
	binary.BigEndian.PutUint16(buf[10:12], t.DstPort)
	buf[12] = t.Protocol
	h.Write(buf[:])

	return h.Sum32()
}

func hashMACs(src, dst []byte) uint32 {
	h := fnv.New32a()
	h.Write(src)
	h.Write(dst)

	return h.Sum32()
}

// conversationHash prefers the five tuple and degrades to the MAC pair for
// traffic without one. Every packet of a conversation yields the same value.
func conversationHash(packet *protocol.Packet) uint32 {
	if t, ok := packet.FiveTuple(); ok {
		return hashTuple(t)
	}
	return hashMACs(packet.Eth.SrcMAC, packet.Eth.DstMAC)
}

// pickUplink chooses one of uplinks for this packet's conversation.
func pickUplink(uplinks []uint32, packet *protocol.Packet) (uint32, bool) {
	if len(uplinks) == 0 {
		return 0, false
	}
	return uplinks[conversationHash(packet)%uint32(len(uplinks))], true
}

func decide(in decisionInput) Decision {
	if in.role == network.RoleSpine {
		return decideOnSpine(in)
	}
	return decideOnLeaf(in)
}

// decideOnSpine forwards between leaves. Every up port on a spine faces a
// leaf, so a flood replicates to all of them except the one the packet came
// in on.
func decideOnSpine(in decisionInput) Decision {
	if in.dstKnown && !in.packet.Eth.IsBroadcast() && !in.packet.Eth.IsMulticast() {
		port, ok := in.snapshot.PortToPeer(in.ingressDPID, in.dst.DPID)
		if !ok || port == in.ingressPort {
			// Stale host entry or the destination leaf is gone.
			return Decision{Outcome: OutcomeDrop}
		}
		return Decision{Outcome: OutcomeUnicast, OutPort: port}
	}

	ports := make([]uint32, 0)
	for _, p := range in.snapshot.UpUplinks(in.ingressDPID) {
		if p == in.ingressPort {
			continue
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return Decision{Outcome: OutcomeDrop}
	}
	return Decision{Outcome: OutcomeFlood, FloodPorts: ports}
}

func decideOnLeaf(in decisionInput) Decision {
	sw, ok := in.snapshot.Switch(in.ingressDPID)
	if !ok {
		return Decision{Outcome: OutcomeDrop}
	}
	fromFabric := false
	for _, p := range sw.Ports {
		if p.Number == in.ingressPort {
			fromFabric = p.Fabric
			break
		}
	}

	if in.dstKnown && !in.packet.Eth.IsBroadcast() && !in.packet.Eth.IsMulticast() {
		if in.dst.DPID == in.ingressDPID {
			if in.dst.Port == in.ingressPort {
				// Hairpin. The destination is on the wire the
				// packet came from.
				return Decision{Outcome: OutcomeDrop}
			}
			return Decision{Outcome: OutcomeUnicast, OutPort: in.dst.Port}
		}
		if fromFabric {
			// A frame from a spine for a host that is not here
			// means the sender worked from stale state. Sending it
			// back up would loop it.
			return Decision{Outcome: OutcomeDrop}
		}
		port, ok := pickUplink(in.snapshot.UpUplinks(in.ingressDPID), in.packet)
		if !ok {
			// The leaf is cut off from every spine.
			return Decision{Outcome: OutcomeDrop}
		}
		return Decision{Outcome: OutcomeECMP, OutPort: port}
	}

	// Broadcast or unknown destination: replicate to the local hosts. A
	// frame that arrived from a host additionally takes one uplink so the
	// rest of the fabric sees exactly one copy; a frame from the fabric
	// never goes back up.
	ports := make([]uint32, 0)
	for _, p := range in.snapshot.HostPorts(in.ingressDPID) {
		if p == in.ingressPort {
			continue
		}
		ports = append(ports, p)
	}
	if !fromFabric {
		if uplink, ok := pickUplink(in.snapshot.UpUplinks(in.ingressDPID), in.packet); ok {
			ports = append(ports, uplink)
		}
	}
	if len(ports) == 0 {
		return Decision{Outcome: OutcomeDrop}
	}
	return Decision{Outcome: OutcomeFlood, FloodPorts: ports}
}
