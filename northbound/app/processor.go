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

package app

import (
	"fabricd/network"
	"fabricd/openflow"
	"fabricd/protocol"
)

// Processor should prepare to be executed by multiple goroutines simultaneously.
type Processor interface {
	network.EventListener
	Init() error
	// Name returns the application name that is globally unique
	Name() string
	// Dependencies returns the names of applications that must be enabled
	// before this one.
	Dependencies() []string
	Next() (next Processor, ok bool)
	SetNext(Processor)
}

type BaseProcessor struct {
	next Processor
}

func (r *BaseProcessor) Init() error {
	return nil
}

func (r *BaseProcessor) Name() string {
	return "BaseProcessor"
}

func (r *BaseProcessor) Dependencies() []string {
	return nil
}

func (r *BaseProcessor) OnPacketIn(finder network.Finder, ingress *network.Port, packet *protocol.Packet) error {
	// Do nothing and execute the next processor if it exists
	next, ok := r.Next()
	if !ok {
		return nil
	}
	return next.OnPacketIn(finder, ingress, packet)
}

func (r *BaseProcessor) OnSwitchUp(finder network.Finder, sw *network.Switch) error {
	// Do nothing and execute the next processor if it exists
	next, ok := r.Next()
	if !ok {
		return nil
	}
	return next.OnSwitchUp(finder, sw)
}

func (r *BaseProcessor) OnSwitchDown(finder network.Finder, sw *network.Switch) error {
	// Do nothing and execute the next processor if it exists
	next, ok := r.Next()
	if !ok {
		return nil
	}
	return next.OnSwitchDown(finder, sw)
}

func (r *BaseProcessor) OnPortUp(finder network.Finder, port *network.Port) error {
	// Do nothing and execute the next processor if it exists
	next, ok := r.Next()
	if !ok {
		return nil
	}
	return next.OnPortUp(finder, port)
}

func (r *BaseProcessor) OnPortDown(finder network.Finder, port *network.Port) error {
	// Do nothing and execute the next processor if it exists
	next, ok := r.Next()
	if !ok {
		return nil
	}
	return next.OnPortDown(finder, port)
}

func (r *BaseProcessor) OnTopologyChange(finder network.Finder) error {
	// Do nothing and execute the next processor if it exists
	next, ok := r.Next()
	if !ok {
		return nil
	}
	return next.OnTopologyChange(finder)
}

func (r *BaseProcessor) Next() (next Processor, ok bool) {
	if r.next != nil {
		return r.next, true
	}

	return nil, false
}

func (r *BaseProcessor) SetNext(next Processor) {
	r.next = next
}

// PacketOut writes packet out of egress as if it came from the controller.
func (r *BaseProcessor) PacketOut(egress *network.Port, packet []byte) error {
	action := openflow.NewAction()
	action.AddOutput(egress.Number())
	out := openflow.NewPacketOut(openflow.OFPP_CONTROLLER, action, packet)

	return egress.Switch().SendMessage(out)
}
