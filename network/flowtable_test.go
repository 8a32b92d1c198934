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

	"fabricd/openflow"

	"github.com/stretchr/testify/require"
)

func tcpMatch(t *testing.T, srcPort uint16) *openflow.Match {
	t.Helper()
	m := openflow.NewMatch()
	m.SetEtherType(0x0800)
	m.SetIPProtocol(6)
	m.SetSrcIP(net.IPv4(10, 0, 0, 1))
	m.SetDstIP(net.IPv4(10, 0, 0, 2))
	m.SetSrcPort(srcPort)
	m.SetDstPort(80)
	return m
}

func TestFlowTableInstall(t *testing.T) {
	session := &fakeSession{}
	sw := newSwitch(0x21, RoleLeaf, session)
	table := NewFlowTable(30, 300)

	require.NoError(t, table.Install(sw, tcpMatch(t, 40000), 2, 20))
	require.Equal(t, 1, table.Count(0x21))
	require.Len(t, session.sent(), 1)

	mod, ok := session.sent()[0].(*openflow.FlowMod)
	require.True(t, ok)
	require.Equal(t, uint8(openflow.OFPFC_ADD), mod.Command)
	require.Equal(t, uint16(30), mod.IdleTimeout)
	require.Equal(t, uint16(300), mod.HardTimeout)
	require.Equal(t, uint16(20), mod.Priority)
}

func TestFlowTableInstallDedup(t *testing.T) {
	session := &fakeSession{}
	sw := newSwitch(0x21, RoleLeaf, session)
	table := NewFlowTable(30, 300)

	// A burst of identical packet-ins races the first install. Only one
	// flow mod goes out.
	for i := 0; i < 5; i++ {
		require.NoError(t, table.Install(sw, tcpMatch(t, 40000), 2, 20))
	}
	require.Len(t, session.sent(), 1)
	require.Equal(t, 1, table.Count(0x21))
}

func TestFlowTableReplaceNotDuplicate(t *testing.T) {
	session := &fakeSession{}
	sw := newSwitch(0x21, RoleLeaf, session)
	table := NewFlowTable(30, 300)

	require.NoError(t, table.Install(sw, tcpMatch(t, 40000), 2, 20))
	// The same conversation re-decided onto another port replaces the
	// record instead of adding a second one.
	require.NoError(t, table.Install(sw, tcpMatch(t, 40000), 3, 20))

	require.Equal(t, 1, table.Count(0x21))
	rules := table.Rules(0x21)
	require.Len(t, rules, 1)
	require.Equal(t, uint32(3), rules[0].OutPort)
	require.Len(t, session.sent(), 2)
}

func TestFlowTableInvalidatePort(t *testing.T) {
	session := &fakeSession{}
	sw := newSwitch(0x21, RoleLeaf, session)
	table := NewFlowTable(30, 300)

	require.NoError(t, table.Install(sw, tcpMatch(t, 40000), 2, 20))
	require.NoError(t, table.Install(sw, tcpMatch(t, 40001), 3, 20))

	removed, err := table.InvalidatePort(sw, 2)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, table.Count(0x21))
	require.Equal(t, uint32(3), table.Rules(0x21)[0].OutPort)

	// The wildcard delete filtered on the output port went to the switch.
	msgs := session.sent()
	mod, ok := msgs[len(msgs)-1].(*openflow.FlowMod)
	require.True(t, ok)
	require.Equal(t, uint8(openflow.OFPFC_DELETE), mod.Command)
	require.Equal(t, uint32(2), mod.OutPort)
}

func TestFlowTableInvalidatePortClosedSwitch(t *testing.T) {
	session := &fakeSession{}
	sw := newSwitch(0x21, RoleLeaf, session)
	table := NewFlowTable(30, 300)

	require.NoError(t, table.Install(sw, tcpMatch(t, 40000), 2, 20))
	sw.Close()

	// The session is gone; local records still get pruned.
	removed, err := table.InvalidatePort(sw, 2)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 0, table.Count(0x21))
}

func TestFlowTableOnFlowRemoved(t *testing.T) {
	session := &fakeSession{}
	sw := newSwitch(0x21, RoleLeaf, session)
	table := NewFlowTable(30, 300)

	match := tcpMatch(t, 40000)
	require.NoError(t, table.Install(sw, match, 2, 20))

	rule, ok := table.OnFlowRemoved(0x21, &openflow.FlowRemoved{
		Priority: 20,
		Match:    match,
	})
	require.True(t, ok)
	require.Equal(t, uint32(2), rule.OutPort)
	require.Equal(t, 0, table.Count(0x21))

	// A removal we no longer track is reported as such.
	_, ok = table.OnFlowRemoved(0x21, &openflow.FlowRemoved{
		Priority: 20,
		Match:    match,
	})
	require.False(t, ok)
}

func TestFlowTableForget(t *testing.T) {
	session := &fakeSession{}
	sw := newSwitch(0x21, RoleLeaf, session)
	table := NewFlowTable(30, 300)

	require.NoError(t, table.Install(sw, tcpMatch(t, 40000), 2, 20))
	require.NoError(t, table.Install(sw, tcpMatch(t, 40001), 3, 20))

	table.Forget(0x21)
	require.Equal(t, 0, table.Count(0x21))
}
