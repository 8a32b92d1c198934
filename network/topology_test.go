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

import (
	"encoding"
	"net"
	"sync"
	"testing"

	"fabricd/openflow"

	"github.com/google/go-cmp/cmp"
)

type fakeSession struct {
	mutex  sync.Mutex
	msgs   []encoding.BinaryMarshaler
	closed bool
}

func (r *fakeSession) Write(msg encoding.BinaryMarshaler) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *fakeSession) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.closed = true
	return nil
}

func (r *fakeSession) sent() []encoding.BinaryMarshaler {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	v := make([]encoding.BinaryMarshaler, len(r.msgs))
	copy(v, r.msgs)
	return v
}

func upPort(num uint32) openflow.PhysicalPort {
	return openflow.PhysicalPort{
		Number: num,
		MAC:    net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, byte(num)},
	}
}

func downPort(num uint32) openflow.PhysicalPort {
	v := upPort(num)
	v.State = openflow.OFPPS_LINK_DOWN
	return v
}

func testSwitch(dpid uint64, role Role, ports ...uint32) *Switch {
	sw := newSwitch(dpid, role, &fakeSession{})
	for _, num := range ports {
		sw.setPort(num, upPort(num))
	}
	return sw
}

type countingListener struct {
	mutex  sync.Mutex
	events int
}

func (r *countingListener) OnTopologyChange(f Finder) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events++
	return nil
}

func (r *countingListener) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.events
}

func TestTopologyLinkDiscovery(t *testing.T) {
	topo := newTopology()
	listener := &countingListener{}
	topo.setEventListener(listener)

	spine := testSwitch(0x10, RoleSpine, 1, 2, 3)
	leaf := testSwitch(0x20, RoleLeaf, 1, 2)
	topo.switchAdded(spine)
	topo.switchAdded(leaf)

	topo.linkDiscovered([2]*Port{spine.Port(1), leaf.Port(1)})
	if len(topo.Links()) != 1 {
		t.Fatalf("expected 1 link, got %v", len(topo.Links()))
	}
	// The probe flows both ways; the reverse report is the same link.
	topo.linkDiscovered([2]*Port{leaf.Port(1), spine.Port(1)})
	if len(topo.Links()) != 1 {
		t.Fatalf("expected 1 link after the reverse probe, got %v", len(topo.Links()))
	}

	if !topo.IsFabricPort(spine.Port(1)) || !topo.IsFabricPort(leaf.Port(1)) {
		t.Fatal("link endpoints should be fabric ports")
	}
	if topo.IsFabricPort(leaf.Port(2)) {
		t.Fatal("a port without a link should not be a fabric port")
	}

	uplinks := topo.UplinkPorts(leaf)
	if len(uplinks) != 1 || uplinks[0].Number() != 1 {
		t.Fatalf("unexpected uplinks: %v", uplinks)
	}

	// switchAdded x2, linkDiscovered once (the duplicate is silent).
	if listener.count() != 3 {
		t.Fatalf("expected 3 topology events, got %v", listener.count())
	}
}

func TestTopologyPortDown(t *testing.T) {
	topo := newTopology()
	spine := testSwitch(0x10, RoleSpine, 1)
	leaf := testSwitch(0x20, RoleLeaf, 1)
	topo.switchAdded(spine)
	topo.switchAdded(leaf)
	topo.linkDiscovered([2]*Port{spine.Port(1), leaf.Port(1)})

	topo.portDown(leaf.Port(1))

	if len(topo.Links()) != 0 {
		t.Fatalf("expected no links after port down, got %v", len(topo.Links()))
	}
	// The port itself stays registered on the switch.
	if leaf.Port(1) == nil {
		t.Fatal("port disappeared from the switch")
	}
	if len(topo.UplinkPorts(leaf)) != 0 {
		t.Fatal("dead uplink still reported")
	}
}

func TestTopologySwitchReplaced(t *testing.T) {
	topo := newTopology()
	spine := testSwitch(0x10, RoleSpine, 1)
	old := testSwitch(0x20, RoleLeaf, 1)
	topo.switchAdded(spine)
	topo.switchAdded(old)
	topo.linkDiscovered([2]*Port{spine.Port(1), old.Port(1)})

	// A reconnect registers a fresh device with the same DPID. The stale
	// one and its links must go.
	fresh := testSwitch(0x20, RoleLeaf, 1)
	topo.switchAdded(fresh)

	if topo.Switch(0x20) != fresh {
		t.Fatal("expected the fresh device to win")
	}
	if len(topo.Links()) != 0 {
		t.Fatalf("stale links survived the replacement: %v", len(topo.Links()))
	}

	// Removing the stale device afterwards must not evict the fresh one.
	topo.switchRemoved(old)
	if topo.Switch(0x20) != fresh {
		t.Fatal("removing the stale device evicted the fresh one")
	}
}

func TestTopologySnapshot(t *testing.T) {
	topo := newTopology()
	spine1 := testSwitch(0x11, RoleSpine, 1, 2)
	spine2 := testSwitch(0x12, RoleSpine, 1, 2)
	leaf := testSwitch(0x21, RoleLeaf, 1, 2, 3)
	leaf.setPort(4, downPort(4))
	topo.switchAdded(spine1)
	topo.switchAdded(spine2)
	topo.switchAdded(leaf)
	topo.linkDiscovered([2]*Port{spine1.Port(1), leaf.Port(1)})
	topo.linkDiscovered([2]*Port{spine2.Port(1), leaf.Port(2)})

	snapshot := topo.Snapshot()

	expected := []SwitchInfo{
		{DPID: 0x11, Role: RoleSpine, Ports: []PortInfo{
			{Number: 1, Up: true, Fabric: true},
			{Number: 2, Up: true},
		}},
		{DPID: 0x12, Role: RoleSpine, Ports: []PortInfo{
			{Number: 1, Up: true, Fabric: true},
			{Number: 2, Up: true},
		}},
		{DPID: 0x21, Role: RoleLeaf, Ports: []PortInfo{
			{Number: 1, Up: true, Fabric: true},
			{Number: 2, Up: true, Fabric: true},
			{Number: 3, Up: true},
			{Number: 4, Up: false},
		}},
	}
	if diff := cmp.Diff(expected, snapshot.Switches); diff != "" {
		t.Fatalf("unexpected switches (-want +got):\n%v", diff)
	}

	if v := snapshot.UpUplinks(0x21); len(v) != 2 || v[0] != 1 || v[1] != 2 {
		t.Fatalf("unexpected leaf uplinks: %v", v)
	}
	if v := snapshot.HostPorts(0x21); len(v) != 1 || v[0] != 3 {
		t.Fatalf("unexpected host ports: %v", v)
	}
	peerDPID, peerPort, ok := snapshot.Peer(0x21, 2)
	if !ok || peerDPID != 0x12 || peerPort != 1 {
		t.Fatalf("unexpected peer: %v %v %v", peerDPID, peerPort, ok)
	}
	port, ok := snapshot.PortToPeer(0x21, 0x11)
	if !ok || port != 1 {
		t.Fatalf("unexpected port to peer: %v %v", port, ok)
	}
}
