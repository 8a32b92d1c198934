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
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"fabricd/metrics"
	"fabricd/openflow"
	"fabricd/openflow/transceiver"
	"fabricd/protocol"

	"github.com/pkg/errors"
)

type sessionState int32

const (
	// stateHandshaking lasts until FEATURES_REPLY is processed and the
	// bootstrap flows are installed.
	stateHandshaking sessionState = iota
	stateReady
	stateClosed
)

func (r sessionState) String() string {
	switch r {
	case stateHandshaking:
		return "handshaking"
	case stateReady:
		return "ready"
	default:
		return "closed"
	}
}

var lldpMulticast = net.HardwareAddr{0x01, 0x80, 0xC2, 0x00, 0x00, 0x0E}

const (
	// Re-probe interval for links and port descriptions.
	explorerInterval = 30 * time.Second

	bootstrapTableMissPriority = 0
	bootstrapARPPriority       = 5
)

type session struct {
	mutex    sync.Mutex
	state    sessionState
	sw       *Switch
	trans    *transceiver.Transceiver
	roleOf   func(dpid uint64) Role
	watcher  *topology
	finder   Finder
	listener EventListener
	flows    *FlowTable
}

type sessionConfig struct {
	conn     net.Conn
	roleOf   func(dpid uint64) Role
	watcher  *topology
	finder   Finder
	listener EventListener
	flows    *FlowTable
}

func checkParam(c sessionConfig) {
	if c.conn == nil {
		panic("connection is nil")
	}
	if c.roleOf == nil {
		panic("role resolver is nil")
	}
	if c.watcher == nil {
		panic("watcher is nil")
	}
	if c.finder == nil {
		panic("finder is nil")
	}
	if c.listener == nil {
		panic("event listener is nil")
	}
	if c.flows == nil {
		panic("flow table is nil")
	}
}

func newSession(c sessionConfig) *session {
	checkParam(c)

	v := &session{
		roleOf:   c.roleOf,
		watcher:  c.watcher,
		finder:   c.finder,
		listener: c.listener,
		flows:    c.flows,
	}
	stream := transceiver.NewStream(c.conn, 0xFFFF)
	v.trans = transceiver.NewTransceiver(stream, v)

	return v
}

func (r *session) getState() sessionState {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.state
}

func (r *session) setState(s sessionState) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.state = s
}

func (r *session) Run(ctx context.Context) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(explorerInterval)
	defer ticker.Stop()
	go r.runExplorer(sessionCtx, ticker.C)

	if err := r.trans.Run(sessionCtx); err != nil {
		logger.Errorf("openflow transceiver abnormally terminated: %v", err)
	}
	r.trans.Close()
	r.setState(stateClosed)

	if r.sw == nil {
		// The session ended before the handshake finished.
		return
	}
	r.sw.Close()
	logger.Infof("disconnected device (DPID=%v)", r.sw.DPID())

	cancel, owned := popCancellerOwned(r.sw.DPID(), r)
	if !owned {
		// A replacement session with the same DPID already took over.
		// Its registry entry, flow bookkeeping and metrics series must
		// survive our teardown.
		logger.Infof("session of DPID=%v was replaced; skipping cleanup", r.sw.DPID())
		return
	}
	// Releases the goroutine watching our session context.
	cancel()
	// All learned flows on the switch die with the connection; forwarding
	// state is rebuilt from scratch on reconnect.
	r.flows.Forget(r.sw.DPID())
	r.watcher.switchRemoved(r.sw)
	metrics.RecordSwitchDisconnected(r.sw.DPID(), r.sw.Role().String())
	if err := r.listener.OnSwitchDown(r.finder, r.sw); err != nil {
		logger.Errorf("executing OnSwitchDown: %v", err)
	}
}

// runExplorer periodically re-probes links and port descriptions so that a
// link that silently came back is re-discovered without a PORT_STATUS event.
func (r *session) runExplorer(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}
		if r.getState() != stateReady {
			continue
		}

		for _, p := range r.sw.Ports() {
			if !p.IsUp() {
				continue
			}
			if err := r.sendLLDP(p); err != nil {
				logger.Errorf("failed to send an LLDP probe: %v", err)
			}
		}
		if err := r.trans.Write(openflow.NewPortDescRequest()); err != nil {
			logger.Errorf("failed to send a port description request: %v", err)
		}
	}
}

func (r *session) OnHello(w transceiver.Writer, msg *openflow.Hello) error {
	logger.Debugf("HELLO (v%v) from %v", msg.Version(), r.trans)

	if err := w.Write(openflow.NewHello()); err != nil {
		return errors.Wrap(err, "failed to send HELLO")
	}
	if err := w.Write(openflow.NewSetConfig()); err != nil {
		return errors.Wrap(err, "failed to send SET_CONFIG")
	}
	if err := w.Write(openflow.NewFeaturesRequest()); err != nil {
		return errors.Wrap(err, "failed to send FEATURES_REQUEST")
	}
	if err := w.Write(openflow.NewBarrierRequest()); err != nil {
		return errors.Wrap(err, "failed to send BARRIER_REQUEST")
	}

	return nil
}

func (r *session) OnError(w transceiver.Writer, msg *openflow.Error) error {
	logger.Errorf("error from the device: class=%v, code=%v, data=%v", msg.Class, msg.Code, msg.Data)
	metrics.RecordUnexpectedEvent("openflow_error")
	return nil
}

func (r *session) OnFeaturesReply(w transceiver.Writer, msg *openflow.FeaturesReply) error {
	logger.Debugf("FEATURES_REPLY: DPID=%v, NumBufs=%v, NumTables=%v", msg.DPID, msg.NumBuffers, msg.NumTables)

	if r.sw != nil {
		// A second FEATURES_REPLY on one connection makes no sense.
		return errors.New("duplicated FEATURES_REPLY")
	}

	// A new session with the same DPID replaces the stale one.
	if canceller, ok := popCanceller(msg.DPID); ok {
		canceller()
		logger.Infof("terminated the previous session of DPID=%v", msg.DPID)
	}

	role := r.roleOf(msg.DPID)
	r.sw = newSwitch(msg.DPID, role, r.trans)

	if err := r.sw.RemoveAllFlows(); err != nil {
		return errors.Wrap(err, "failed to remove all flows")
	}
	if err := r.installBootstrapFlows(); err != nil {
		return errors.Wrap(err, "failed to install bootstrap flows")
	}
	if err := w.Write(openflow.NewDescRequest()); err != nil {
		return errors.Wrap(err, "failed to send DESC_REQUEST")
	}
	if err := w.Write(openflow.NewPortDescRequest()); err != nil {
		return errors.Wrap(err, "failed to send PORT_DESC_REQUEST")
	}
	if err := w.Write(openflow.NewBarrierRequest()); err != nil {
		return errors.Wrap(err, "failed to send BARRIER_REQUEST")
	}

	ctx, cancel := context.WithCancel(context.Background())
	pushCanceller(msg.DPID, r, cancel)
	go func() {
		<-ctx.Done()
		r.trans.Close()
	}()

	r.watcher.switchAdded(r.sw)
	r.setState(stateReady)
	logger.Infof("connected device (DPID=%v, role=%v)", msg.DPID, role)
	metrics.RecordSwitchConnected(msg.DPID, role.String())

	if err := r.listener.OnSwitchUp(r.finder, r.sw); err != nil {
		return errors.Wrap(err, "executing OnSwitchUp")
	}

	return nil
}

// installBootstrapFlows sets up the two baseline flows every switch needs: a
// table miss that punts unknown traffic to the controller, and an ARP
// redirect with a higher priority so ARP always reaches us even after
// reactive flows cover the rest of a conversation.
func (r *session) installBootstrapFlows() error {
	tableMiss := openflow.NewFlowMod(openflow.OFPFC_ADD)
	tableMiss.Cookie = bootstrapCookie
	tableMiss.Priority = bootstrapTableMissPriority
	tableMiss.Match = openflow.NewMatch() // whole wildcard
	action := openflow.NewAction()
	action.AddOutput(openflow.OFPP_CONTROLLER)
	tableMiss.Instruction = openflow.NewInstruction(action)
	if err := r.sw.SendMessage(tableMiss); err != nil {
		return err
	}

	arp := openflow.NewFlowMod(openflow.OFPFC_ADD)
	arp.Cookie = bootstrapCookie
	arp.Priority = bootstrapARPPriority
	match := openflow.NewMatch()
	match.SetEtherType(protocol.EtherTypeARP)
	arp.Match = match
	action = openflow.NewAction()
	action.AddOutput(openflow.OFPP_CONTROLLER)
	arp.Instruction = openflow.NewInstruction(action)

	return r.sw.SendMessage(arp)
}

func (r *session) OnDescReply(w transceiver.Writer, msg *openflow.DescReply) error {
	logger.Debugf("DESC_REPLY: Manufacturer=%v, Hardware=%v, Software=%v", msg.Manufacturer, msg.Hardware, msg.Software)

	if r.sw == nil {
		return errors.New("DESC_REPLY before FEATURES_REPLY")
	}
	r.sw.setDescription(*msg)

	return nil
}

func (r *session) OnPortDescReply(w transceiver.Writer, msg *openflow.PortDescReply) error {
	if r.sw == nil {
		return errors.New("PORT_DESC_REPLY before FEATURES_REPLY")
	}
	logger.Debugf("PORT_DESC_REPLY: DPID=%v, # of ports=%v", r.sw.DPID(), len(msg.Ports))

	for _, v := range msg.Ports {
		if v.Number > openflow.OFPP_MAX {
			// Reserved port. Not a real one.
			continue
		}
		p := r.sw.setPort(v.Number, v)
		metrics.SetPortStatus(r.sw.DPID(), v.Number, p.IsUp())
		if !p.IsUp() {
			continue
		}
		if err := r.sendLLDP(p); err != nil {
			logger.Errorf("failed to send an LLDP probe: %v", err)
		}
	}

	return nil
}

func (r *session) OnPortStatus(w transceiver.Writer, msg *openflow.PortStatus) error {
	if r.sw == nil {
		return errors.New("PORT_STATUS before FEATURES_REPLY")
	}
	if msg.Port.Number > openflow.OFPP_MAX {
		return nil
	}

	p := r.sw.setPort(msg.Port.Number, msg.Port)
	up := msg.Reason != openflow.OFPPR_DELETE && p.IsUp()
	logger.Infof("PORT_STATUS: DPID=%v, port=%v, reason=%v, up=%v", r.sw.DPID(), p.Number(), msg.Reason, up)
	metrics.SetPortStatus(r.sw.DPID(), p.Number(), up)

	if up {
		// Probe the port: it may be a fabric link coming back.
		if err := r.sendLLDP(p); err != nil {
			logger.Errorf("failed to send an LLDP probe: %v", err)
		}
		if err := r.listener.OnPortUp(r.finder, p); err != nil {
			return errors.Wrap(err, "executing OnPortUp")
		}
		return nil
	}

	// Order matters: the topology loses the link first so that decisions
	// made from OnPortDown handlers already see the degraded fabric.
	r.watcher.portDown(p)
	removed, err := r.flows.InvalidatePort(r.sw, p.Number())
	if err != nil {
		logger.Errorf("failed to invalidate flows: %v", err)
	}
	if removed > 0 {
		metrics.RecordFlowInvalidation(r.sw.DPID(), removed)
		logger.Infof("invalidated %v flows on DPID=%v port=%v", removed, r.sw.DPID(), p.Number())
	}
	if err := r.listener.OnPortDown(r.finder, p); err != nil {
		return errors.Wrap(err, "executing OnPortDown")
	}

	return nil
}

func (r *session) OnFlowRemoved(w transceiver.Writer, msg *openflow.FlowRemoved) error {
	if r.sw == nil {
		return errors.New("FLOW_REMOVED before FEATURES_REPLY")
	}
	logger.Debugf("FLOW_REMOVED: DPID=%v, reason=%v, duration=%vs", r.sw.DPID(), msg.Reason, msg.DurationSec)

	if msg.Cookie == bootstrapCookie {
		// Someone removed a baseline flow behind our back. Put it back.
		logger.Warningf("bootstrap flow removed on DPID=%v: reinstalling", r.sw.DPID())
		return r.installBootstrapFlows()
	}

	rule, tracked := r.flows.OnFlowRemoved(r.sw.DPID(), msg)
	if tracked {
		logger.Debugf("reconciled flow removal: %v/%v", rule.DPID, rule.Digest)
	} else if msg.Reason != openflow.OFPRR_DELETE {
		// Deletes echo flows we already dropped from the bookkeeping
		// ourselves (port invalidation, the management wipe). Only an
		// unsolicited timeout for an untracked rule is an anomaly.
		metrics.RecordUnexpectedEvent("untracked_flow_removed")
	}
	metrics.RecordFlowRemoved(r.sw.DPID(), msg.Reason, float64(msg.DurationSec))
	metrics.SetFlowEntries(r.sw.DPID(), r.flows.Count(r.sw.DPID()))

	return nil
}

func (r *session) OnPortStatsReply(w transceiver.Writer, msg *openflow.PortStatsReply) error {
	if r.sw == nil {
		return errors.New("PORT_STATS_REPLY before FEATURES_REPLY")
	}

	for _, v := range msg.Stats {
		if v.PortNo > openflow.OFPP_MAX {
			continue
		}
		metrics.RecordPortStats(r.sw.DPID(), v.PortNo, metrics.PortCounters{
			RxBytes:   v.RxBytes,
			TxBytes:   v.TxBytes,
			RxPackets: v.RxPackets,
			TxPackets: v.TxPackets,
			RxErrors:  v.RxErrors,
			TxErrors:  v.TxErrors,
		})
	}

	return nil
}

func (r *session) OnPacketIn(w transceiver.Writer, msg *openflow.PacketIn) error {
	if r.getState() != stateReady {
		// Forwarding state does not exist yet. Dropping is safe: the
		// sender retransmits once the fabric is up.
		metrics.RecordUnexpectedEvent("early_packet_in")
		return nil
	}

	port := r.sw.Port(msg.InPort)
	if port == nil {
		metrics.RecordUnexpectedEvent("unknown_ingress_port")
		return nil
	}
	metrics.RecordPacketIn(r.sw.DPID(), msg.Reason)

	packet, err := protocol.Parse(msg.Data)
	if err != nil {
		logger.Debugf("undecodable frame on %v: %v", port.ID(), err)
		return nil
	}

	if packet.Kind == protocol.KindLLDP {
		return r.handleLLDP(port, packet.LLDP)
	}

	if err := r.listener.OnPacketIn(r.finder, port, packet); err != nil {
		return errors.Wrap(err, "executing OnPacketIn")
	}

	return nil
}

// lldpPortPrefix tags our probes so we never interpret a foreign LLDPDU as a
// fabric link.
const lldpPortPrefix = "fabricd/"

func (r *session) sendLLDP(p *Port) error {
	chassis := make([]byte, 8)
	binary.BigEndian.PutUint64(chassis, r.sw.DPID())

	lldp := &protocol.LLDP{
		ChassisID: protocol.LLDPChassisID{SubType: 7, Data: chassis},
		PortID:    protocol.LLDPPortID{SubType: 7, Data: []byte(fmt.Sprintf("%v%v", lldpPortPrefix, p.Number()))},
		TTL:       120,
	}
	payload, err := lldp.MarshalBinary()
	if err != nil {
		return err
	}

	srcMAC := p.Value().MAC
	if len(srcMAC) != 6 {
		srcMAC = net.HardwareAddr{0, 0, 0, 0, 0, 0}
	}
	eth := protocol.Ethernet{
		SrcMAC:  srcMAC,
		DstMAC:  lldpMulticast,
		Type:    protocol.EtherTypeLLDP,
		Payload: payload,
	}
	frame, err := eth.MarshalBinary()
	if err != nil {
		return err
	}

	action := openflow.NewAction()
	action.AddOutput(p.Number())
	return r.sw.SendMessage(openflow.NewPacketOut(openflow.OFPP_CONTROLLER, action, frame))
}

// handleLLDP turns a received probe into an inter-switch link. The probe
// carries the sender's DPID and egress port; the ingress side is ours.
func (r *session) handleLLDP(ingress *Port, lldp *protocol.LLDP) error {
	if len(lldp.ChassisID.Data) != 8 {
		// Not our probe.
		return nil
	}
	dpid := binary.BigEndian.Uint64(lldp.ChassisID.Data)

	portID := string(lldp.PortID.Data)
	if !strings.HasPrefix(portID, lldpPortPrefix) {
		return nil
	}
	num, err := strconv.ParseUint(portID[len(lldpPortPrefix):], 10, 32)
	if err != nil {
		return nil
	}

	neighbor := r.finder.Switch(dpid)
	if neighbor == nil {
		// The probe sender disconnected in between.
		return nil
	}
	remote := neighbor.Port(uint32(num))
	if remote == nil {
		return nil
	}

	r.watcher.linkDiscovered([2]*Port{remote, ingress})

	return nil
}
