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
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// Host is an end station learned from its traffic on a host-facing port.
type Host struct {
	MAC  net.HardwareAddr
	IP   net.IP // nil until the host reveals an IPv4 address
	DPID uint64
	Port uint32
	// LastSeen is the time of the latest learning event.
	LastSeen time.Time
}

func (r Host) String() string {
	return fmt.Sprintf("MAC=%v, IP=%v, DPID=%v, port=%v", r.MAC, r.IP, r.DPID, r.Port)
}

// HostTable maps MAC and IPv4 addresses to host attachment points. Learning
// is last-writer-wins: a host that moves, or re-appears after its switch
// reconnected, simply overwrites its stale entry on the next packet.
type HostTable struct {
	mutex sync.RWMutex
	// Keys are the textual MAC and the 4-byte IP string.
	byMAC map[string]*Host
	byIP  map[string]*Host
}

func NewHostTable() *HostTable {
	return &HostTable{
		byMAC: make(map[string]*Host),
		byIP:  make(map[string]*Host),
	}
}

// Learn records mac at (dpid, port), and its IPv4 address when ip is not nil.
// It returns whether the attachment point actually changed, so a caller can
// count moves separately from refreshes.
func (r *HostTable) Learn(mac net.HardwareAddr, ip net.IP, dpid uint64, port uint32) (moved bool) {
	if mac == nil {
		panic("MAC address is nil")
	}

	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := mac.String()
	host, ok := r.byMAC[key]
	if !ok {
		host = &Host{MAC: mac}
		r.byMAC[key] = host
	} else {
		moved = host.DPID != dpid || host.Port != port
	}
	host.DPID = dpid
	host.Port = port
	host.LastSeen = time.Now()

	if v := ip.To4(); v != nil {
		// The IP may have belonged to another MAC before (e.g. a
		// failover VIP). The newest claim wins.
		if host.IP != nil && !host.IP.Equal(v) {
			delete(r.byIP, string(host.IP))
		}
		ipCopy := make(net.IP, 4)
		copy(ipCopy, v)
		if prev, ok := r.byIP[string(ipCopy)]; ok && prev != host {
			prev.IP = nil
		}
		host.IP = ipCopy
		r.byIP[string(ipCopy)] = host
	}

	return moved
}

// LookupByMAC may report ok=false for a host we have not learned yet.
func (r *HostTable) LookupByMAC(mac net.HardwareAddr) (host Host, ok bool) {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v, ok := r.byMAC[mac.String()]
	if !ok {
		return Host{}, false
	}
	return *v, true
}

// LookupByIP may report ok=false for an address nobody has claimed yet.
func (r *HostTable) LookupByIP(ip net.IP) (host Host, ok bool) {
	v4 := ip.To4()
	if v4 == nil {
		return Host{}, false
	}

	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v, ok := r.byIP[string(v4)]
	if !ok {
		return Host{}, false
	}
	return *v, true
}

// ForgetSwitch drops every host learned behind dpid and returns how many
// were dropped. Called when the switch leaves the fabric: its hosts will be
// re-learned from their next packet wherever they show up.
func (r *HostTable) ForgetSwitch(dpid uint64) int {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for key, host := range r.byMAC {
		if host.DPID != dpid {
			continue
		}
		if host.IP != nil {
			delete(r.byIP, string(host.IP))
		}
		delete(r.byMAC, key)
		removed++
	}

	return removed
}

// ForgetPort drops every host learned on one port of dpid.
func (r *HostTable) ForgetPort(dpid uint64, port uint32) int {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	removed := 0
	for key, host := range r.byMAC {
		if host.DPID != dpid || host.Port != port {
			continue
		}
		if host.IP != nil {
			delete(r.byIP, string(host.IP))
		}
		delete(r.byMAC, key)
		removed++
	}

	return removed
}

// Hosts returns a copy of all learned hosts sorted by MAC address.
func (r *HostTable) Hosts() []Host {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]Host, 0, len(r.byMAC))
	for _, host := range r.byMAC {
		v = append(v, *host)
	}
	sort.Slice(v, func(i, j int) bool { return v[i].MAC.String() < v[j].MAC.String() })

	return v
}

// Count returns the number of learned MAC and IP entries.
func (r *HostTable) Count() (macs, ips int) {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.byMAC), len(r.byIP)
}
