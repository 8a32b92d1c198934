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
	"testing"

	"fabricd/metrics"
	"fabricd/openflow"

	"github.com/prometheus/client_golang/prometheus"
)

func unexpectedEventCount(t *testing.T, kind string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "sdn_unexpected_events_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" && l.GetValue() == kind {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// The switch acknowledges every delete we issue with a FLOW_REMOVED for a
// rule we already dropped from the bookkeeping. Those confirmations are
// routine; only an unsolicited timeout for an untracked rule is an anomaly.
func TestFlowRemovedDeleteConfirmation(t *testing.T) {
	metrics.Register()

	s := &session{
		sw:    testSwitch(0x21, RoleLeaf, 1),
		flows: NewFlowTable(30, 0),
	}
	match := openflow.NewMatch()
	match.SetEtherType(0x0800)

	before := unexpectedEventCount(t, "untracked_flow_removed")

	removed := &openflow.FlowRemoved{Reason: openflow.OFPRR_DELETE, Match: match}
	if err := s.OnFlowRemoved(nil, removed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := unexpectedEventCount(t, "untracked_flow_removed"); got != before {
		t.Fatalf("delete confirmation counted as unexpected: %v != %v", got, before)
	}

	removed = &openflow.FlowRemoved{Reason: openflow.OFPRR_IDLE_TIMEOUT, Match: match}
	if err := s.OnFlowRemoved(nil, removed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := unexpectedEventCount(t, "untracked_flow_removed"); got != before+1 {
		t.Fatalf("untracked idle timeout not counted: %v != %v", got, before+1)
	}
}
