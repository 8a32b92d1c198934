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
	"bytes"
	"fmt"
	"sort"
	"sync"
)

// Finder is the read-only topology view handed to northbound applications.
type Finder interface {
	// Switch may return nil if a switch whose datapath ID is dpid does not exist.
	Switch(dpid uint64) *Switch
	Switches() []*Switch
	Links() []*Link
	// IsFabricPort returns whether p is an endpoint of an inter-switch link.
	IsFabricPort(p *Port) bool
	// UplinkPorts returns the up fabric ports of sw sorted by port number.
	UplinkPorts(sw *Switch) []*Port
	Snapshot() Snapshot
}

type topology struct {
	mutex sync.RWMutex
	// Key is the datapath ID.
	switches map[uint64]*Switch
	// Key is the undirected link ID.
	links    map[string]*Link
	listener TopologyEventListener
}

func newTopology() *topology {
	return &topology{
		switches: make(map[uint64]*Switch),
		links:    make(map[string]*Link),
	}
}

func (r *topology) setEventListener(l TopologyEventListener) {
	r.listener = l
}

func (r *topology) String() string {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var buf bytes.Buffer
	for _, sw := range r.switches {
		buf.WriteString(fmt.Sprintf("Switch: %v\n", sw))
	}
	for _, link := range r.links {
		buf.WriteString(fmt.Sprintf("Link: %v\n", link))
	}

	return buf.String()
}

// Caller should make sure the mutex is unlocked before calling this function.
// Otherwise, event listeners may cause a deadlock by calling other topology
// functions.
func (r *topology) sendEvent() {
	if r.listener == nil {
		return
	}

	if err := r.listener.OnTopologyChange(r); err != nil {
		logger.Errorf("executing OnTopologyChange: %v", err)
		return
	}
}

// switchAdded registers a connected switch. Re-registering a datapath ID
// replaces the previous entry along with its links, which covers a fast
// switch reconnect whose old session is not torn down yet.
func (r *topology) switchAdded(sw *Switch) {
	func() {
		// Write lock
		r.mutex.Lock()
		defer r.mutex.Unlock()

		if old, ok := r.switches[sw.DPID()]; ok {
			r.removeSwitchLinks(old)
		}
		r.switches[sw.DPID()] = sw
	}()
	r.sendEvent()
}

func (r *topology) switchRemoved(sw *Switch) {
	func() {
		// Write lock
		r.mutex.Lock()
		defer r.mutex.Unlock()

		// The same datapath ID may already belong to a newer session.
		if r.switches[sw.DPID()] != sw {
			return
		}
		r.removeSwitchLinks(sw)
		delete(r.switches, sw.DPID())
	}()
	r.sendEvent()
}

// XXX: Caller should lock the mutex.
func (r *topology) removeSwitchLinks(sw *Switch) {
	for id, link := range r.links {
		points := link.Points()
		if points[0].Switch() == sw || points[1].Switch() == sw {
			delete(r.links, id)
		}
	}
}

// linkDiscovered records an inter-switch link found by an LLDP probe.
func (r *topology) linkDiscovered(ports [2]*Port) {
	changed := func() bool {
		// Write lock
		r.mutex.Lock()
		defer r.mutex.Unlock()

		id := linkID(ports)
		if _, ok := r.links[id]; ok {
			return false
		}
		r.links[id] = newLink(ports)
		return true
	}()
	if changed {
		r.sendEvent()
	}
}

// portDown tears down every link ending on p. The port stays registered on
// its switch; only the fabric connectivity through it is gone.
func (r *topology) portDown(p *Port) {
	changed := func() bool {
		// Write lock
		r.mutex.Lock()
		defer r.mutex.Unlock()

		removed := false
		for id, link := range r.links {
			if link.HasPort(p) {
				delete(r.links, id)
				removed = true
			}
		}
		return removed
	}()
	if changed {
		r.sendEvent()
	}
}

func (r *topology) Switch(dpid uint64) *Switch {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.switches[dpid]
}

func (r *topology) Switches() []*Switch {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]*Switch, 0, len(r.switches))
	for _, sw := range r.switches {
		v = append(v, sw)
	}
	sort.Slice(v, func(i, j int) bool { return v[i].DPID() < v[j].DPID() })

	return v
}

func (r *topology) Links() []*Link {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]*Link, 0, len(r.links))
	for _, link := range r.links {
		v = append(v, link)
	}
	sort.Slice(v, func(i, j int) bool { return v[i].ID() < v[j].ID() })

	return v
}

func (r *topology) IsFabricPort(p *Port) bool {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.isFabricPort(p)
}

// XXX: Caller should lock the mutex.
func (r *topology) isFabricPort(p *Port) bool {
	for _, link := range r.links {
		if link.HasPort(p) {
			return true
		}
	}
	return false
}

func (r *topology) UplinkPorts(sw *Switch) []*Port {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]*Port, 0)
	for _, p := range sw.Ports() {
		if p.IsUp() && r.isFabricPort(p) {
			v = append(v, p)
		}
	}
	// sw.Ports() is already sorted by port number.

	return v
}

// Snapshot returns a copy-on-read value of the whole topology. Decisions
// compute on the snapshot without holding any topology lock.
func (r *topology) Snapshot() Snapshot {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	snapshot := Snapshot{}
	for _, sw := range r.switches {
		info := SwitchInfo{
			DPID: sw.DPID(),
			Role: sw.Role(),
		}
		for _, p := range sw.Ports() {
			info.Ports = append(info.Ports, PortInfo{
				Number: p.Number(),
				Up:     p.IsUp(),
				Fabric: r.isFabricPort(p),
			})
		}
		snapshot.Switches = append(snapshot.Switches, info)
	}
	sort.Slice(snapshot.Switches, func(i, j int) bool {
		return snapshot.Switches[i].DPID < snapshot.Switches[j].DPID
	})

	for _, link := range r.links {
		points := link.Points()
		snapshot.Links = append(snapshot.Links, LinkInfo{
			DPID:     points[0].Switch().DPID(),
			Port:     points[0].Number(),
			PeerDPID: points[1].Switch().DPID(),
			PeerPort: points[1].Number(),
		})
	}
	sort.Slice(snapshot.Links, func(i, j int) bool {
		a, b := snapshot.Links[i], snapshot.Links[j]
		if a.DPID != b.DPID {
			return a.DPID < b.DPID
		}
		return a.Port < b.Port
	})

	return snapshot
}
