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

package network

// Snapshot is an immutable copy of the topology at one point in time. It is a
// plain value: safe to pass around and to compute forwarding decisions on
// without locking.
type Snapshot struct {
	Switches []SwitchInfo
	Links    []LinkInfo
}

type SwitchInfo struct {
	DPID  uint64
	Role  Role
	Ports []PortInfo
}

type PortInfo struct {
	Number uint32
	Up     bool
	// Fabric marks a port with an inter-switch link on it. Ports that are
	// not fabric ports face hosts.
	Fabric bool
}

// LinkInfo is one undirected inter-switch link.
type LinkInfo struct {
	DPID     uint64
	Port     uint32
	PeerDPID uint64
	PeerPort uint32
}

// Switch returns the info of dpid.
func (r Snapshot) Switch(dpid uint64) (info SwitchInfo, ok bool) {
	for _, sw := range r.Switches {
		if sw.DPID == dpid {
			return sw, true
		}
	}
	return SwitchInfo{}, false
}

// UpUplinks returns the up fabric port numbers of dpid in ascending order.
// On a leaf these are the ports toward the spines.
func (r Snapshot) UpUplinks(dpid uint64) []uint32 {
	sw, ok := r.Switch(dpid)
	if !ok {
		return nil
	}

	v := make([]uint32, 0, len(sw.Ports))
	for _, p := range sw.Ports {
		if p.Up && p.Fabric {
			v = append(v, p.Number)
		}
	}
	return v
}

// HostPorts returns the up non-fabric port numbers of dpid in ascending order.
func (r Snapshot) HostPorts(dpid uint64) []uint32 {
	sw, ok := r.Switch(dpid)
	if !ok {
		return nil
	}

	v := make([]uint32, 0, len(sw.Ports))
	for _, p := range sw.Ports {
		if p.Up && !p.Fabric {
			v = append(v, p.Number)
		}
	}
	return v
}

// Peer resolves the far end of a fabric port.
func (r Snapshot) Peer(dpid uint64, port uint32) (peerDPID uint64, peerPort uint32, ok bool) {
	for _, link := range r.Links {
		if link.DPID == dpid && link.Port == port {
			return link.PeerDPID, link.PeerPort, true
		}
		if link.PeerDPID == dpid && link.PeerPort == port {
			return link.DPID, link.Port, true
		}
	}
	return 0, 0, false
}

// PortToPeer returns the local port of dpid whose link ends on peerDPID.
func (r Snapshot) PortToPeer(dpid, peerDPID uint64) (port uint32, ok bool) {
	for _, link := range r.Links {
		if link.DPID == dpid && link.PeerDPID == peerDPID {
			return link.Port, true
		}
		if link.PeerDPID == dpid && link.DPID == peerDPID {
			return link.PeerPort, true
		}
	}
	return 0, false
}
