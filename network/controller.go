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
	"context"
	"fmt"
	"net"

	"fabricd/protocol"

	"github.com/op/go-logging"
)

var logger = logging.MustGetLogger("network")

// ControllerEventListener gets notified about device and packet events.
// Callbacks run on the session goroutine of the switch that produced the
// event; a returned error terminates that session.
type ControllerEventListener interface {
	OnSwitchUp(Finder, *Switch) error
	OnSwitchDown(Finder, *Switch) error
	OnPortUp(Finder, *Port) error
	OnPortDown(Finder, *Port) error
	OnPacketIn(Finder, *Port, *protocol.Packet) error
}

// TopologyEventListener gets notified whenever the set of switches or links
// changes.
type TopologyEventListener interface {
	OnTopologyChange(Finder) error
}

type EventListener interface {
	ControllerEventListener
	TopologyEventListener
}

// Config carries the knobs a Controller needs from the configuration file.
type Config struct {
	// Spines and Leaves list the DPIDs with a fixed role. A switch whose
	// DPID appears in neither list is treated as a leaf.
	Spines []uint64
	Leaves []uint64
	// Flow timeouts for reactive entries, in seconds.
	FlowIdleTimeout uint16
	FlowHardTimeout uint16
}

// Controller owns the topology, the host table and the flow table, and
// spawns one session per switch connection.
type Controller struct {
	topo     *topology
	hosts    *HostTable
	flows    *FlowTable
	listener EventListener
	roles    map[uint64]Role
}

func NewController(c Config) *Controller {
	roles := make(map[uint64]Role)
	for _, dpid := range c.Leaves {
		roles[dpid] = RoleLeaf
	}
	for _, dpid := range c.Spines {
		roles[dpid] = RoleSpine
	}

	v := &Controller{
		hosts: NewHostTable(),
		flows: NewFlowTable(c.FlowIdleTimeout, c.FlowHardTimeout),
		roles: roles,
	}
	v.topo = newTopology()
	v.topo.setEventListener(v)

	return v
}

// SetEventListener sets the listener that receives controller and topology
// events. Call before AddConnection.
func (r *Controller) SetEventListener(l EventListener) {
	r.listener = l
}

func (r *Controller) roleOf(dpid uint64) Role {
	role, ok := r.roles[dpid]
	if !ok {
		logger.Warningf("unknown DPID %v: assuming a leaf", dpid)
		return RoleLeaf
	}
	return role
}

// AddConnection spawns the OpenFlow session for a new switch connection.
func (r *Controller) AddConnection(ctx context.Context, c net.Conn) {
	if r.listener == nil {
		panic("event listener is not set")
	}
	logger.Debugf("new device is connected from %v", c.RemoteAddr())

	s := newSession(sessionConfig{
		conn:     c,
		roleOf:   r.roleOf,
		watcher:  r.topo,
		finder:   r.topo,
		listener: r.listener,
		flows:    r.flows,
	})
	go s.Run(ctx)
}

// OnTopologyChange implements the topology's listener by forwarding to the
// configured event listener.
func (r *Controller) OnTopologyChange(f Finder) error {
	if r.listener == nil {
		return nil
	}
	return r.listener.OnTopologyChange(f)
}

// Topology returns a read-only view of the fabric.
func (r *Controller) Topology() Finder {
	return r.topo
}

func (r *Controller) Hosts() *HostTable {
	return r.hosts
}

func (r *Controller) Flows() *FlowTable {
	return r.flows
}

// String renders the controller state for the SIGHUP status dump.
func (r *Controller) String() string {
	var buf bytes.Buffer

	snapshot := r.topo.Snapshot()
	fmt.Fprintf(&buf, "** Switches: %v\n", len(snapshot.Switches))
	for _, sw := range snapshot.Switches {
		fmt.Fprintf(&buf, "   %016x (%v): %v ports\n", sw.DPID, sw.Role, len(sw.Ports))
	}
	fmt.Fprintf(&buf, "** Links: %v\n", len(snapshot.Links))
	for _, link := range snapshot.Links {
		fmt.Fprintf(&buf, "   %016x:%v <-> %016x:%v\n", link.DPID, link.Port, link.PeerDPID, link.PeerPort)
	}
	hosts := r.hosts.Hosts()
	fmt.Fprintf(&buf, "** Hosts: %v\n", len(hosts))
	for _, h := range hosts {
		fmt.Fprintf(&buf, "   %v %v on %016x:%v\n", h.MAC, h.IP, h.DPID, h.Port)
	}

	return buf.String()
}
