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
	"fmt"
	"sort"
	"sync"

	"fabricd/openflow"
	"fabricd/openflow/transceiver"

	"github.com/pkg/errors"
)

// Role of a switch in the spine-leaf fabric.
type Role int

const (
	RoleLeaf Role = iota
	RoleSpine
)

func (r Role) String() string {
	if r == RoleSpine {
		return "spine"
	}
	return "leaf"
}

var ErrClosedSwitch = errors.New("closed switch")

// Switch is a connected datapath. Its port map mutates under the session
// goroutine while the northbound side reads it, so every access goes through
// the mutex.
type Switch struct {
	mutex       sync.RWMutex
	dpid        uint64
	role        Role
	session     transceiver.WriteCloser
	ports       map[uint32]*Port
	description openflow.DescReply
	closed      bool
}

func newSwitch(dpid uint64, role Role, session transceiver.WriteCloser) *Switch {
	if session == nil {
		panic("session is nil")
	}

	return &Switch{
		dpid:    dpid,
		role:    role,
		session: session,
		ports:   make(map[uint32]*Port),
	}
}

func (r *Switch) String() string {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return fmt.Sprintf("DPID=%v, role=%v, ports=%v, closed=%v", r.dpid, r.role, len(r.ports), r.closed)
}

func (r *Switch) DPID() uint64 {
	return r.dpid
}

func (r *Switch) Role() Role {
	return r.role
}

// ID returns the canonical textual form of the datapath ID.
func (r *Switch) ID() string {
	return fmt.Sprintf("%016x", r.dpid)
}

func (r *Switch) isClosed() bool {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.closed
}

// Close marks the switch as disconnected. Further SendMessage calls return
// ErrClosedSwitch.
func (r *Switch) Close() {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closed = true
}

func (r *Switch) SendMessage(msg encoding.BinaryMarshaler) error {
	if msg == nil {
		panic("message is nil")
	}
	if r.isClosed() {
		return ErrClosedSwitch
	}

	return r.session.Write(msg)
}

func (r *Switch) setDescription(d openflow.DescReply) {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.description = d
}

func (r *Switch) Description() openflow.DescReply {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.description
}

// Port may return nil if the port number does not exist.
func (r *Switch) Port(num uint32) *Port {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.ports[num]
}

func (r *Switch) Ports() []*Port {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]*Port, 0, len(r.ports))
	for _, p := range r.ports {
		v = append(v, p)
	}
	sort.Slice(v, func(i, j int) bool { return v[i].Number() < v[j].Number() })

	return v
}

// setPort adds or updates a port description and returns the port.
func (r *Switch) setPort(num uint32, value openflow.PhysicalPort) *Port {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	port, ok := r.ports[num]
	if !ok {
		port = newPort(r, num)
		r.ports[num] = port
	}
	port.SetValue(value)

	return port
}

// RemoveAllFlows wipes every flow entry, including ones installed by a
// previous controller run, so a (re)connected switch starts clean.
func (r *Switch) RemoveAllFlows() error {
	mod := openflow.NewFlowMod(openflow.OFPFC_DELETE)
	mod.Match = openflow.NewMatch() // whole wildcard
	return r.SendMessage(mod)
}
