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

// Package metrics exposes the controller's operational state in the
// Prometheus exposition format. All metrics live under the sdn_ prefix.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	switchesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sdn_switches_total",
			Help: "Number of connected switches by role.",
		},
		[]string{"type"},
	)
	portStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sdn_port_status",
			Help: "Per-port link status (1=up, 0=down).",
		},
		[]string{"dpid", "port_no"},
	)
	portRxBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_port_rx_bytes_total",
			Help: "Bytes received on a port.",
		},
		[]string{"dpid", "port_no"},
	)
	portTxBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_port_tx_bytes_total",
			Help: "Bytes transmitted on a port.",
		},
		[]string{"dpid", "port_no"},
	)
	portRxPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_port_rx_packets_total",
			Help: "Packets received on a port.",
		},
		[]string{"dpid", "port_no"},
	)
	portTxPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_port_tx_packets_total",
			Help: "Packets transmitted on a port.",
		},
		[]string{"dpid", "port_no"},
	)
	portRxErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_port_rx_errors_total",
			Help: "Receive errors on a port.",
		},
		[]string{"dpid", "port_no"},
	)
	portTxErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_port_tx_errors_total",
			Help: "Transmit errors on a port.",
		},
		[]string{"dpid", "port_no"},
	)
	linksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sdn_links_total",
			Help: "Number of discovered inter-switch links.",
		},
	)
	flowEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sdn_flow_entries_total",
			Help: "Number of flow entries the controller tracks per switch.",
		},
		[]string{"dpid"},
	)
	flowInstalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_flow_installs_total",
			Help: "Count of flow entries sent to a switch.",
		},
		[]string{"dpid"},
	)
	flowRemovals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_flow_removed_total",
			Help: "Count of FLOW_REMOVED notifications by reason.",
		},
		[]string{"dpid", "reason"},
	)
	flowInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_flow_invalidations_total",
			Help: "Count of flow entries proactively deleted after a port or link failure.",
		},
		[]string{"dpid"},
	)
	flowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sdn_flow_lifetime_seconds",
			Help:    "Observed lifetime of removed flow entries.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
	packetIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_packet_in_total",
			Help: "Count of PACKET_IN events by reason.",
		},
		[]string{"dpid", "reason"},
	)
	arpPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_arp_packets_total",
			Help: "Count of processed ARP packets by opcode.",
		},
		[]string{"opcode"},
	)
	proxyARPReplies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sdn_proxy_arp_replies_total",
			Help: "Count of ARP replies answered from the host table.",
		},
	)
	decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_decisions_total",
			Help: "Count of forwarding decisions by outcome.",
		},
		[]string{"outcome"},
	)
	decisionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sdn_decision_duration_seconds",
			Help:    "Time spent computing one forwarding decision.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
		},
	)
	ecmpSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_ecmp_selected_total",
			Help: "Count of uplink selections per switch and port.",
		},
		[]string{"dpid", "port_no"},
	)
	learnedHosts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sdn_learned_hosts_total",
			Help: "Number of hosts in the host table.",
		},
	)
	floodDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_flood_drops_total",
			Help: "Count of broadcast frames dropped by storm control.",
		},
		[]string{"dpid"},
	)
	unexpectedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_unexpected_events_total",
			Help: "Count of protocol events that arrived out of order or malformed.",
		},
		[]string{"kind"},
	)
	sendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdn_send_errors_total",
			Help: "Count of failed message writes to a switch.",
		},
		[]string{"dpid"},
	)
)

var startTime = time.Now()

var registerMetrics sync.Once

// Register registers all controller metrics with the default registerer.
// Safe to call more than once.
func Register() {
	registerMetrics.Do(func() {
		prometheus.MustRegister(
			switchesTotal,
			portStatus,
			portRxBytes, portTxBytes, portRxPackets, portTxPackets,
			portRxErrors, portTxErrors,
			linksTotal,
			flowEntries, flowInstalls, flowRemovals, flowInvalidations, flowDuration,
			packetIn,
			arpPackets, proxyARPReplies,
			decisions, decisionDuration, ecmpSelected,
			learnedHosts,
			floodDrops,
			unexpectedEvents, sendErrors,
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "sdn_controller_uptime_seconds",
					Help: "Seconds since the controller started.",
				},
				func() float64 { return time.Since(startTime).Seconds() },
			),
		)
	})
}

func dpidLabel(dpid uint64) string {
	return strconv.FormatUint(dpid, 10)
}

func portLabel(port uint32) string {
	return strconv.FormatUint(uint64(port), 10)
}

func packetInReason(reason uint8) string {
	switch reason {
	case 0:
		return "no_match"
	case 1:
		return "action"
	case 2:
		return "invalid_ttl"
	default:
		return "unknown"
	}
}

func flowRemovedReason(reason uint8) string {
	switch reason {
	case 0:
		return "idle_timeout"
	case 1:
		return "hard_timeout"
	case 2:
		return "delete"
	case 3:
		return "group_delete"
	default:
		return "unknown"
	}
}

// RecordSwitchConnected bumps the connected switch gauge for a role.
func RecordSwitchConnected(dpid uint64, role string) {
	switchesTotal.WithLabelValues(role).Inc()
}

// RecordSwitchDisconnected drops the connected switch gauge for a role and
// removes the per-switch series that no longer have a live backing device.
func RecordSwitchDisconnected(dpid uint64, role string) {
	switchesTotal.WithLabelValues(role).Dec()
	label := prometheus.Labels{"dpid": dpidLabel(dpid)}
	portStatus.DeletePartialMatch(label)
	flowEntries.DeletePartialMatch(label)
}

// SetPortStatus records the link status of a port.
func SetPortStatus(dpid uint64, port uint32, up bool) {
	v := float64(0)
	if up {
		v = 1
	}
	portStatus.WithLabelValues(dpidLabel(dpid), portLabel(port)).Set(v)
}

// PortCounters is one port's cumulative counters as reported by the switch.
type PortCounters struct {
	RxBytes   uint64
	TxBytes   uint64
	RxPackets uint64
	TxPackets uint64
	RxErrors  uint64
	TxErrors  uint64
}

var portStatsMutex sync.Mutex
var lastPortStats = map[string]PortCounters{}

// RecordPortStats folds a cumulative port-stats sample into the counters.
// Switch counters reset when the switch reboots, so only forward deltas are
// accumulated; a sample that went backwards restarts the baseline.
func RecordPortStats(dpid uint64, port uint32, c PortCounters) {
	dl, pl := dpidLabel(dpid), portLabel(port)
	key := dl + "/" + pl

	portStatsMutex.Lock()
	last, ok := lastPortStats[key]
	lastPortStats[key] = c
	portStatsMutex.Unlock()
	if !ok {
		return
	}

	add := func(vec *prometheus.CounterVec, cur, prev uint64) {
		if cur < prev {
			return
		}
		vec.WithLabelValues(dl, pl).Add(float64(cur - prev))
	}
	add(portRxBytes, c.RxBytes, last.RxBytes)
	add(portTxBytes, c.TxBytes, last.TxBytes)
	add(portRxPackets, c.RxPackets, last.RxPackets)
	add(portTxPackets, c.TxPackets, last.TxPackets)
	add(portRxErrors, c.RxErrors, last.RxErrors)
	add(portTxErrors, c.TxErrors, last.TxErrors)
}

// SetLinks records the number of discovered inter-switch links.
func SetLinks(n int) {
	linksTotal.Set(float64(n))
}

// SetFlowEntries records the number of tracked flow entries on a switch.
func SetFlowEntries(dpid uint64, n int) {
	flowEntries.WithLabelValues(dpidLabel(dpid)).Set(float64(n))
}

// RecordFlowInstall counts a flow entry sent to a switch.
func RecordFlowInstall(dpid uint64) {
	flowInstalls.WithLabelValues(dpidLabel(dpid)).Inc()
}

// RecordFlowRemoved counts a FLOW_REMOVED notification and observes the
// flow's lifetime.
func RecordFlowRemoved(dpid uint64, reason uint8, durationSec float64) {
	flowRemovals.WithLabelValues(dpidLabel(dpid), flowRemovedReason(reason)).Inc()
	flowDuration.Observe(durationSec)
}

// RecordFlowInvalidation counts flows proactively deleted after a failure.
func RecordFlowInvalidation(dpid uint64, n int) {
	flowInvalidations.WithLabelValues(dpidLabel(dpid)).Add(float64(n))
}

// RecordPacketIn counts a PACKET_IN event.
func RecordPacketIn(dpid uint64, reason uint8) {
	packetIn.WithLabelValues(dpidLabel(dpid), packetInReason(reason)).Inc()
}

// RecordARP counts a processed ARP packet.
func RecordARP(opcode string) {
	arpPackets.WithLabelValues(opcode).Inc()
}

// RecordProxyARPReply counts an ARP reply answered from the host table.
func RecordProxyARPReply() {
	proxyARPReplies.Inc()
}

// RecordDecision counts a forwarding decision outcome: unicast, ecmp,
// flood, or drop.
func RecordDecision(outcome string) {
	decisions.WithLabelValues(outcome).Inc()
}

// RecordDecisionDuration observes how long one forwarding decision took.
func RecordDecisionDuration(seconds float64) {
	decisionDuration.Observe(seconds)
}

// RecordECMPSelection counts an uplink pick on a leaf.
func RecordECMPSelection(dpid uint64, port uint32) {
	ecmpSelected.WithLabelValues(dpidLabel(dpid), portLabel(port)).Inc()
}

// SetLearnedHosts records the host table size.
func SetLearnedHosts(n int) {
	learnedHosts.Set(float64(n))
}

// RecordFloodDrop counts a broadcast frame dropped by storm control.
func RecordFloodDrop(dpid uint64) {
	floodDrops.WithLabelValues(dpidLabel(dpid)).Inc()
}

// RecordUnexpectedEvent counts a protocol event that arrived out of order
// or malformed.
func RecordUnexpectedEvent(kind string) {
	unexpectedEvents.WithLabelValues(kind).Inc()
}

// RecordSendError counts a failed message write to a switch.
func RecordSendError(dpid uint64) {
	sendErrors.WithLabelValues(dpidLabel(dpid)).Inc()
}
