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

// Package api exposes the controller's state over a small management REST
// interface: the fabric topology, the learned hosts, and the flows we track
// on each switch.
package api

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"fabricd/metrics"
	"fabricd/network"
	"fabricd/openflow"
	"fabricd/protocol"

	"github.com/ant0ine/go-json-rest/rest"
	"github.com/davecgh/go-spew/spew"
	"github.com/op/go-logging"
)

var logger = logging.MustGetLogger("api")

type API struct {
	Server
	Controller *network.Controller
}

func (r *API) Serve() error {
	if r.Controller == nil {
		panic("controller is nil")
	}

	return r.serve(
		rest.Get("/api/v1/switches", r.switches),
		rest.Get("/api/v1/hosts", r.hosts),
		rest.Get("/api/v1/links", r.links),
		rest.Get("/api/v1/flows/:dpid", r.flows),
		rest.Post("/api/v1/flows/add", r.addFlow),
		rest.Post("/api/v1/flows/remove", r.removeFlows),
	)
}

type portDump struct {
	Number uint32 `json:"number"`
	Up     bool   `json:"up"`
	Fabric bool   `json:"fabric"`
}

type switchDump struct {
	DPID        string     `json:"dpid"`
	Role        string     `json:"role"`
	Description string     `json:"description,omitempty"`
	Ports       []portDump `json:"ports"`
}

func dpidString(dpid uint64) string {
	return fmt.Sprintf("%016x", dpid)
}

func (r *API) switches(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("switches request from %v", req.RemoteAddr)

	snapshot := r.Controller.Topology().Snapshot()
	dump := make([]switchDump, 0, len(snapshot.Switches))
	for _, sw := range snapshot.Switches {
		v := switchDump{
			DPID: dpidString(sw.DPID),
			Role: sw.Role.String(),
		}
		if device := r.Controller.Topology().Switch(sw.DPID); device != nil {
			desc := device.Description()
			v.Description = desc.Manufacturer
		}
		for _, p := range sw.Ports {
			v.Ports = append(v.Ports, portDump{Number: p.Number, Up: p.Up, Fabric: p.Fabric})
		}
		dump = append(dump, v)
	}

	w.WriteJson(&Response{Status: StatusOkay, Data: dump})
}

type hostDump struct {
	MAC      string    `json:"mac"`
	IP       string    `json:"ip,omitempty"`
	DPID     string    `json:"dpid"`
	Port     uint32    `json:"port"`
	LastSeen time.Time `json:"last_seen"`
}

func (r *API) hosts(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("hosts request from %v", req.RemoteAddr)

	hosts := r.Controller.Hosts().Hosts()
	dump := make([]hostDump, 0, len(hosts))
	for _, h := range hosts {
		v := hostDump{
			MAC:      h.MAC.String(),
			DPID:     dpidString(h.DPID),
			Port:     h.Port,
			LastSeen: h.LastSeen,
		}
		if h.IP != nil {
			v.IP = h.IP.String()
		}
		dump = append(dump, v)
	}

	w.WriteJson(&Response{Status: StatusOkay, Data: dump})
}

type linkDump struct {
	DPID     string `json:"dpid"`
	Port     uint32 `json:"port"`
	PeerDPID string `json:"peer_dpid"`
	PeerPort uint32 `json:"peer_port"`
}

func (r *API) links(w rest.ResponseWriter, req *rest.Request) {
	logger.Debugf("links request from %v", req.RemoteAddr)

	snapshot := r.Controller.Topology().Snapshot()
	dump := make([]linkDump, 0, len(snapshot.Links))
	for _, link := range snapshot.Links {
		dump = append(dump, linkDump{
			DPID:     dpidString(link.DPID),
			Port:     link.Port,
			PeerDPID: dpidString(link.PeerDPID),
			PeerPort: link.PeerPort,
		})
	}

	w.WriteJson(&Response{Status: StatusOkay, Data: dump})
}

type flowDump struct {
	Match       string `json:"match"`
	Priority    uint16 `json:"priority"`
	OutPort     uint32 `json:"out_port"`
	IdleTimeout uint16 `json:"idle_timeout"`
	HardTimeout uint16 `json:"hard_timeout"`
	Age         int64  `json:"age_seconds"`
}

func (r *API) flows(w rest.ResponseWriter, req *rest.Request) {
	dpid, err := strconv.ParseUint(req.PathParam("dpid"), 16, 64)
	if err != nil {
		w.WriteJson(&Response{Status: StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Debugf("flows request from %v: DPID=%016x", req.RemoteAddr, dpid)

	if r.Controller.Topology().Switch(dpid) == nil {
		w.WriteJson(&Response{Status: StatusNotFound, Message: "unknown datapath ID"})
		return
	}

	rules := r.Controller.Flows().Rules(dpid)
	dump := make([]flowDump, 0, len(rules))
	for _, rule := range rules {
		dump = append(dump, flowDump{
			Match:       rule.Digest,
			Priority:    rule.Priority,
			OutPort:     rule.OutPort,
			IdleTimeout: rule.IdleTimeout,
			HardTimeout: rule.HardTimeout,
			Age:         int64(time.Since(rule.Created).Seconds()),
		})
	}

	w.WriteJson(&Response{Status: StatusOkay, Data: dump})
}

type addParam struct {
	DPID     uint64
	Match    matchParam
	OutPort  uint32
	Priority uint16
}

type matchParam struct {
	DstMAC  string `json:"dst_mac"`
	SrcIP   string `json:"src_ip"`
	DstIP   string `json:"dst_ip"`
	IPProto uint8  `json:"ip_proto"`
	SrcPort uint16 `json:"src_port"`
	DstPort uint16 `json:"dst_port"`
}

func (r *addParam) UnmarshalJSON(data []byte) error {
	v := struct {
		DPID     string     `json:"dpid"`
		Match    matchParam `json:"match"`
		OutPort  uint32     `json:"out_port"`
		Priority uint16     `json:"priority"`
	}{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	dpid, err := strconv.ParseUint(v.DPID, 16, 64)
	if err != nil {
		return err
	}

	r.DPID = dpid
	r.Match = v.Match
	r.OutPort = v.OutPort
	r.Priority = v.Priority
	if r.Priority == 0 {
		r.Priority = 10
	}

	return nil
}

func (r *matchParam) build() (*openflow.Match, error) {
	match := openflow.NewMatch()
	if r.DstMAC != "" {
		mac, err := net.ParseMAC(r.DstMAC)
		if err != nil {
			return nil, err
		}
		match.SetDstMAC(mac)
	}
	if r.SrcIP != "" || r.DstIP != "" {
		match.SetEtherType(protocol.EtherTypeIPv4)
	}
	if r.SrcIP != "" {
		ip := net.ParseIP(r.SrcIP)
		if ip == nil {
			return nil, fmt.Errorf("invalid source IP address: %v", r.SrcIP)
		}
		match.SetSrcIP(ip)
	}
	if r.DstIP != "" {
		ip := net.ParseIP(r.DstIP)
		if ip == nil {
			return nil, fmt.Errorf("invalid destination IP address: %v", r.DstIP)
		}
		match.SetDstIP(ip)
	}
	if r.IPProto != 0 {
		match.SetIPProtocol(r.IPProto)
	}
	if r.SrcPort != 0 {
		match.SetSrcPort(r.SrcPort)
	}
	if r.DstPort != 0 {
		match.SetDstPort(r.DstPort)
	}

	return match, nil
}

// addFlow installs a manual flow through the same bookkeeping as the
// reactive ones, so listing and FLOW_REMOVED reconciliation cover it too.
func (r *API) addFlow(w rest.ResponseWriter, req *rest.Request) {
	p := new(addParam)
	if err := req.DecodeJsonPayload(p); err != nil {
		w.WriteJson(&Response{Status: StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Debugf("add request from %v: %v", req.RemoteAddr, spew.Sdump(p))

	sw := r.Controller.Topology().Switch(p.DPID)
	if sw == nil {
		w.WriteJson(&Response{Status: StatusNotFound, Message: "unknown datapath ID"})
		return
	}
	match, err := p.Match.build()
	if err != nil {
		w.WriteJson(&Response{Status: StatusInvalidParameter, Message: err.Error()})
		return
	}

	if err := r.Controller.Flows().Install(sw, match, p.OutPort, p.Priority); err != nil {
		w.WriteJson(&Response{Status: StatusInternalServerError, Message: err.Error()})
		return
	}
	metrics.RecordFlowInstall(sw.DPID())
	metrics.SetFlowEntries(sw.DPID(), r.Controller.Flows().Count(sw.DPID()))

	w.WriteJson(&Response{Status: StatusOkay})
}

type removeParam struct {
	DPID  uint64
	IsSet bool
}

func (r *removeParam) UnmarshalJSON(data []byte) error {
	v := struct {
		DPID string `json:"dpid"`
	}{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	// If DPID is empty, remove flows on all switches.
	if len(v.DPID) == 0 {
		return nil
	}

	dpid, err := strconv.ParseUint(v.DPID, 16, 64)
	if err != nil {
		return err
	}
	r.DPID = dpid
	r.IsSet = true

	return nil
}

// removeFlows wipes the reactive flows of one switch, or of every switch
// when no DPID is given. The bootstrap flows come back on their own: the
// wildcard delete triggers FLOW_REMOVED and the session reinstalls them.
func (r *API) removeFlows(w rest.ResponseWriter, req *rest.Request) {
	p := new(removeParam)
	if err := req.DecodeJsonPayload(p); err != nil {
		w.WriteJson(&Response{Status: StatusInvalidParameter, Message: err.Error()})
		return
	}
	logger.Debugf("remove request from %v: %v", req.RemoteAddr, spew.Sdump(p))

	var targets []*network.Switch
	if p.IsSet {
		sw := r.Controller.Topology().Switch(p.DPID)
		if sw == nil {
			w.WriteJson(&Response{Status: StatusNotFound, Message: "unknown datapath ID"})
			return
		}
		targets = append(targets, sw)
	} else {
		targets = r.Controller.Topology().Switches()
	}

	for _, sw := range targets {
		if err := sw.RemoveAllFlows(); err != nil {
			w.WriteJson(&Response{Status: StatusInternalServerError, Message: err.Error()})
			return
		}
		r.Controller.Flows().Forget(sw.DPID())
	}

	w.WriteJson(&Response{Status: StatusOkay})
}
