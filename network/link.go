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
	"strings"
)

// Link is an inter-switch connection discovered by LLDP probing. A link is
// undirected: its ID is the same regardless of probe direction, so a probe
// answered from either side lands on the same entry.
type Link struct {
	ports [2]*Port
}

func newLink(ports [2]*Port) *Link {
	if ports[0] == nil || ports[1] == nil {
		panic("nil port")
	}

	return &Link{ports: ports}
}

func linkID(ports [2]*Port) string {
	first, second := ports[0].ID(), ports[1].ID()
	if strings.Compare(first, second) > 0 {
		first, second = second, first
	}

	return fmt.Sprintf("%v/%v", first, second)
}

func (r *Link) ID() string {
	return linkID(r.ports)
}

func (r *Link) Points() [2]*Port {
	return r.ports
}

// HasPort returns whether p is one of the two link endpoints.
func (r *Link) HasPort(p *Port) bool {
	return r.ports[0] == p || r.ports[1] == p
}

// Peer returns the opposite endpoint of p, or nil if p is not on this link.
func (r *Link) Peer(p *Port) *Port {
	switch p {
	case r.ports[0]:
		return r.ports[1]
	case r.ports[1]:
		return r.ports[0]
	default:
		return nil
	}
}

func (r *Link) String() string {
	return fmt.Sprintf("%v <-> %v", r.ports[0].ID(), r.ports[1].ID())
}
