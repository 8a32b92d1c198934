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

// Package fabric is the reactive forwarding engine. It learns hosts on the
// edge, answers each table miss with a packet-out, and installs a flow so
// the rest of the conversation stays in hardware. Cross-leaf traffic spreads
// over the spines by conversation hash.
package fabric

import (
	"net"
	"time"

	"fabricd/metrics"
	"fabricd/network"
	"fabricd/northbound/app"
	"fabricd/openflow"
	"fabricd/protocol"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("fabric")

const (
	// Flow priorities. A same-leaf decision outranks an ECMP one so a
	// host move back onto the leaf takes effect without waiting for the
	// ECMP flow to idle out.
	priorityLocal uint16 = 20
	priorityECMP  uint16 = 15
	priorityMAC   uint16 = 10

	// Broadcasts allowed per second per controller.
	stormMax = 100
)

type Fabric struct {
	app.BaseProcessor
	hosts *network.HostTable
	flows *network.FlowTable
	storm *stormController
}

func New(hosts *network.HostTable, flows *network.FlowTable) *Fabric {
	if hosts == nil {
		panic("host table is nil")
	}
	if flows == nil {
		panic("flow table is nil")
	}

	v := &Fabric{
		hosts: hosts,
		flows: flows,
	}
	v.storm = newStormController(stormMax, v)

	return v
}

func (r *Fabric) Name() string {
	return "Fabric"
}

// learn records the sender on edge ports. Fabric ports never learn: the MACs
// seen there live behind other leaves.
func (r *Fabric) learn(finder network.Finder, ingress *network.Port, packet *protocol.Packet) {
	if finder.IsFabricPort(ingress) {
		return
	}
	src := packet.Eth.SrcMAC
	if len(src) != 6 || packet.Eth.IsBroadcast() || packet.Eth.IsMulticast() {
		return
	}

	var ip net.IP
	switch {
	case packet.ARP != nil:
		ip = packet.ARP.SPA
	case packet.IPv4 != nil:
		ip = packet.IPv4.SrcIP
	}

	sw := ingress.Switch()
	if moved := r.hosts.Learn(src, ip, sw.DPID(), ingress.Number()); moved {
		logger.Infof("host %v moved to %v", src, ingress.ID())
	}
	macs, _ := r.hosts.Count()
	metrics.SetLearnedHosts(macs)
}

// flowMatch builds the narrowest match we can install for packet. IPv4
// conversations match on the full tuple so ECMP spreads them; anything else
// falls back to the destination MAC.
func flowMatch(packet *protocol.Packet) (match *openflow.Match, priority uint16, byTuple bool) {
	if packet.IPv4 == nil {
		m := openflow.NewMatch()
		m.SetDstMAC(packet.Eth.DstMAC)
		return m, priorityMAC, false
	}

	m := openflow.NewMatch()
	m.SetEtherType(protocol.EtherTypeIPv4)
	m.SetIPProtocol(packet.IPv4.Protocol)
	m.SetSrcIP(packet.IPv4.SrcIP)
	m.SetDstIP(packet.IPv4.DstIP)
	switch packet.Kind {
	case protocol.KindTCP:
		m.SetSrcPort(packet.TCP.SrcPort)
		m.SetDstPort(packet.TCP.DstPort)
	case protocol.KindUDP:
		m.SetSrcPort(packet.UDP.SrcPort)
		m.SetDstPort(packet.UDP.DstPort)
	}

	return m, priorityLocal, true
}

func (r *Fabric) OnPacketIn(finder network.Finder, ingress *network.Port, packet *protocol.Packet) error {
	r.learn(finder, ingress, packet)

	sw := ingress.Switch()
	dst, dstKnown := network.Host{}, false
	if len(packet.Eth.DstMAC) == 6 {
		dst, dstKnown = r.hosts.LookupByMAC(packet.Eth.DstMAC)
	}

	start := time.Now()
	d := decide(decisionInput{
		snapshot:    finder.Snapshot(),
		role:        sw.Role(),
		ingressDPID: sw.DPID(),
		ingressPort: ingress.Number(),
		packet:      packet,
		dst:         dst,
		dstKnown:    dstKnown,
	})
	metrics.RecordDecision(d.Outcome.String())
	metrics.RecordDecisionDuration(time.Since(start).Seconds())

	switch d.Outcome {
	case OutcomeDrop:
		logger.Debugf("dropping %v from %v", packet.Kind, ingress.ID())
		return r.BaseProcessor.OnPacketIn(finder, ingress, packet)
	case OutcomeUnicast, OutcomeECMP:
		return r.forward(ingress, packet, d)
	default:
		return r.broadcast(ingress, packet, d)
	}
}

// forward installs the flow for the rest of the conversation and pushes the
// triggering packet out itself.
func (r *Fabric) forward(ingress *network.Port, packet *protocol.Packet, d Decision) error {
	sw := ingress.Switch()

	match, priority, byTuple := flowMatch(packet)
	if d.Outcome == OutcomeECMP {
		metrics.RecordECMPSelection(sw.DPID(), d.OutPort)
		if byTuple {
			priority = priorityECMP
		}
	}
	if err := r.flows.Install(sw, match, d.OutPort, priority); err != nil {
		// Keep forwarding this packet anyway; the flow can be retried
		// by the next table miss.
		logger.Errorf("failed to install a flow on %v: %v", sw.ID(), err)
		metrics.RecordSendError(sw.DPID())
	} else {
		metrics.RecordFlowInstall(sw.DPID())
		metrics.SetFlowEntries(sw.DPID(), r.flows.Count(sw.DPID()))
	}

	action := openflow.NewAction()
	action.AddOutput(d.OutPort)
	out := openflow.NewPacketOut(ingress.Number(), action, packet.Data)
	if err := sw.SendMessage(out); err != nil {
		metrics.RecordSendError(sw.DPID())
		return errors.Wrap(err, "sending a packet out")
	}

	return nil
}

func (r *Fabric) broadcast(ingress *network.Port, packet *protocol.Packet, d Decision) error {
	sent, err := r.storm.broadcast(ingress, d.FloodPorts, packet.Data)
	if err != nil {
		return err
	}
	if !sent {
		metrics.RecordFloodDrop(ingress.Switch().DPID())
	}

	return nil
}

// flood emits one packet-out replicating the frame to every port in ports.
func (r *Fabric) flood(ingress *network.Port, ports []uint32, packet []byte) error {
	sw := ingress.Switch()

	action := openflow.NewAction()
	for _, p := range ports {
		action.AddOutput(p)
	}
	out := openflow.NewPacketOut(ingress.Number(), action, packet)
	if err := sw.SendMessage(out); err != nil {
		metrics.RecordSendError(sw.DPID())
		return errors.Wrap(err, "sending a flood packet out")
	}

	return nil
}

func (r *Fabric) OnPortDown(finder network.Finder, port *network.Port) error {
	sw := port.Switch()
	if removed := r.hosts.ForgetPort(sw.DPID(), port.Number()); removed > 0 {
		logger.Infof("forgot %v hosts on %v", removed, port.ID())
		macs, _ := r.hosts.Count()
		metrics.SetLearnedHosts(macs)
	}

	return r.BaseProcessor.OnPortDown(finder, port)
}

func (r *Fabric) OnSwitchDown(finder network.Finder, sw *network.Switch) error {
	if removed := r.hosts.ForgetSwitch(sw.DPID()); removed > 0 {
		logger.Infof("forgot %v hosts behind %v", removed, sw.ID())
		macs, _ := r.hosts.Count()
		metrics.SetLearnedHosts(macs)
	}

	return r.BaseProcessor.OnSwitchDown(finder, sw)
}

func (r *Fabric) OnTopologyChange(finder network.Finder) error {
	metrics.SetLinks(len(finder.Links()))
	return r.BaseProcessor.OnTopologyChange(finder)
}
