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
	"sync"
	"time"

	"fabricd/openflow"
)

type Port struct {
	mutex     sync.RWMutex
	sw        *Switch
	number    uint32
	value     openflow.PhysicalPort
	timestamp time.Time
}

func newPort(sw *Switch, num uint32) *Port {
	if sw == nil {
		panic("switch is nil")
	}

	return &Port{
		sw:     sw,
		number: num,
	}
}

func (r *Port) String() string {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return fmt.Sprintf("DPID=%v, port=%v, name=%v, up=%v", r.sw.DPID(), r.number, r.value.Name, !r.value.IsPortDown() && !r.value.IsLinkDown())
}

// ID globally identifies a port as <dpid>:<number>.
func (r *Port) ID() string {
	return fmt.Sprintf("%v:%v", r.sw.DPID(), r.number)
}

func (r *Port) Switch() *Switch {
	return r.sw
}

func (r *Port) Number() uint32 {
	return r.number
}

// Value returns a copy of the last port description we got from the switch.
func (r *Port) Value() openflow.PhysicalPort {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.value
}

func (r *Port) SetValue(v openflow.PhysicalPort) {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.value = v
	r.timestamp = time.Now()
}

// IsUp returns whether the port is both administratively and physically up.
func (r *Port) IsUp() bool {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return !r.value.IsPortDown() && !r.value.IsLinkDown()
}
