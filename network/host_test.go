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
	"net"
	"testing"
)

func TestHostTableLearn(t *testing.T) {
	table := NewHostTable()
	mac := net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	ip := net.IPv4(10, 0, 0, 1)

	if moved := table.Learn(mac, ip, 0x21, 3); moved {
		t.Fatal("first sighting reported as a move")
	}
	host, ok := table.LookupByMAC(mac)
	if !ok {
		t.Fatal("host not found by MAC")
	}
	if host.DPID != 0x21 || host.Port != 3 {
		t.Fatalf("unexpected location: %016x:%v", host.DPID, host.Port)
	}
	if host, ok = table.LookupByIP(ip); !ok || host.DPID != 0x21 {
		t.Fatal("host not found by IP")
	}

	// Seeing the same host at the same place is not a move.
	if moved := table.Learn(mac, ip, 0x21, 3); moved {
		t.Fatal("idempotent learn reported as a move")
	}
	if macs, _ := table.Count(); macs != 1 {
		t.Fatalf("expected 1 host, got %v", macs)
	}
}

func TestHostTableMove(t *testing.T) {
	table := NewHostTable()
	mac := net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	ip := net.IPv4(10, 0, 0, 1)
	table.Learn(mac, ip, 0x21, 3)

	if moved := table.Learn(mac, ip, 0x22, 5); !moved {
		t.Fatal("relocation not reported as a move")
	}
	host, _ := table.LookupByMAC(mac)
	if host.DPID != 0x22 || host.Port != 5 {
		t.Fatalf("stale location after move: %016x:%v", host.DPID, host.Port)
	}
}

func TestHostTableIPReassignment(t *testing.T) {
	table := NewHostTable()
	oldOwner := net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	newOwner := net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}
	ip := net.IPv4(10, 0, 0, 1)

	table.Learn(oldOwner, ip, 0x21, 3)
	// Last writer wins: DHCP gave the address to another machine.
	table.Learn(newOwner, ip, 0x21, 4)

	host, ok := table.LookupByIP(ip)
	if !ok {
		t.Fatal("reassigned IP not found")
	}
	if host.MAC.String() != newOwner.String() {
		t.Fatalf("IP still maps to the old owner: %v", host.MAC)
	}

	// The old owner stays known by MAC, just without that IP.
	host, ok = table.LookupByMAC(oldOwner)
	if !ok {
		t.Fatal("old owner evicted from the MAC table")
	}
	if host.IP != nil && host.IP.Equal(ip) {
		t.Fatal("old owner still claims the reassigned IP")
	}

	macs, ips := table.Count()
	if macs != 2 || ips != 1 {
		t.Fatalf("unexpected table sizes: macs=%v ips=%v", macs, ips)
	}
}

func TestHostTableLearnWithoutIP(t *testing.T) {
	table := NewHostTable()
	mac := net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x03}

	// Some hosts show up with non-IP traffic first.
	table.Learn(mac, nil, 0x21, 7)

	host, ok := table.LookupByMAC(mac)
	if !ok {
		t.Fatal("host not found by MAC")
	}
	if host.IP != nil {
		t.Fatalf("expected no IP, got %v", host.IP)
	}

	// The IP arrives later with the first ARP.
	table.Learn(mac, net.IPv4(10, 0, 0, 3), 0x21, 7)
	if _, ok := table.LookupByIP(net.IPv4(10, 0, 0, 3)); !ok {
		t.Fatal("late IP not learned")
	}
}
