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

package openflow

import (
	"encoding/binary"
	"errors"
)

// Action is an ordered list of output actions. A flood is expressed as one
// output action per egress port.
type Action struct {
	outputs []uint32
}

func NewAction() *Action {
	return new(Action)
}

// AddOutput appends an output action. port may be a physical port number or
// one of the OFPP_* reserved values.
func (r *Action) AddOutput(port uint32) {
	r.outputs = append(r.outputs, port)
}

// Outputs returns a copy of the output port list in emit order.
func (r *Action) Outputs() []uint32 {
	v := make([]uint32, len(r.outputs))
	copy(v, r.outputs)
	return v
}

func (r *Action) MarshalBinary() ([]byte, error) {
	if len(r.outputs) == 0 {
		return nil, errors.New("empty action")
	}

	result := make([]byte, 0, 16*len(r.outputs))
	for _, port := range r.outputs {
		v := make([]byte, 16)
		binary.BigEndian.PutUint16(v[0:2], OFPAT_OUTPUT)
		binary.BigEndian.PutUint16(v[2:4], 16)
		binary.BigEndian.PutUint32(v[4:8], port)
		// We don't support buffer ID and partial PACKET_IN
		binary.BigEndian.PutUint16(v[8:10], OFPCML_NO_BUFFER)
		// v[10:16] is padding
		result = append(result, v...)
	}

	return result, nil
}

// Instruction is the apply-actions instruction wrapping an Action.
type Instruction struct {
	Action *Action
}

func NewInstruction(action *Action) *Instruction {
	if action == nil {
		panic("action is nil")
	}
	return &Instruction{Action: action}
}

func (r *Instruction) MarshalBinary() ([]byte, error) {
	action, err := r.Action.MarshalBinary()
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8)
	v = append(v, action...)
	binary.BigEndian.PutUint16(v[0:2], OFPIT_APPLY_ACTIONS)
	binary.BigEndian.PutUint16(v[2:4], uint16(len(v)))
	// v[4:8] is padding

	return v, nil
}
