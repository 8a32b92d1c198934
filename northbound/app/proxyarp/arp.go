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

// Package proxyarp answers ARP requests for hosts the controller already
// knows, so a request for a host on another leaf never needs to cross the
// fabric. Requests for unknown addresses fall through to the flooding path.
package proxyarp

import (
	"bytes"

	"fabricd/metrics"
	"fabricd/network"
	"fabricd/northbound/app"
	"fabricd/protocol"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("proxyarp")

type ProxyARP struct {
	app.BaseProcessor
	hosts *network.HostTable
}

func New(hosts *network.HostTable) *ProxyARP {
	if hosts == nil {
		panic("host table is nil")
	}

	return &ProxyARP{
		hosts: hosts,
	}
}

func (r *ProxyARP) Name() string {
	return "ProxyARP"
}

func (r *ProxyARP) OnPacketIn(finder network.Finder, ingress *network.Port, packet *protocol.Packet) error {
	if packet.Kind != protocol.KindARP {
		return r.BaseProcessor.OnPacketIn(finder, ingress, packet)
	}
	arp := packet.ARP

	if arp.Operation != protocol.ARPOpRequest {
		metrics.RecordARP("reply")
		// Replies are plain unicast; the forwarding engine delivers
		// them and learns the sender on the way.
		return r.BaseProcessor.OnPacketIn(finder, ingress, packet)
	}
	metrics.RecordARP("request")

	if isARPAnnouncement(arp) {
		// Announcements carry no question to answer. Let them flood
		// so other hosts refresh their caches.
		logger.Debugf("passing ARP announcement from %v", arp.SPA)
		return r.BaseProcessor.OnPacketIn(finder, ingress, packet)
	}

	host, ok := r.hosts.LookupByIP(arp.TPA)
	if !ok {
		logger.Debugf("unknown host %v: falling through to flood", arp.TPA)
		return r.BaseProcessor.OnPacketIn(finder, ingress, packet)
	}
	logger.Debugf("answering ARP request for %v with %v", arp.TPA, host.MAC)

	reply, err := makeARPReply(arp, host)
	if err != nil {
		return errors.Wrap(err, "making an ARP reply")
	}
	metrics.RecordProxyARPReply()

	return r.PacketOut(ingress, reply)
}

// isARPAnnouncement reports a gratuitous ARP: the sender asks about its own
// address with a zeroed target.
func isARPAnnouncement(request *protocol.ARP) bool {
	sameAddr := request.SPA.Equal(request.TPA)
	zeroTarget := bytes.Compare(request.THA, []byte{0, 0, 0, 0, 0, 0}) == 0

	return sameAddr && zeroTarget
}

func makeARPReply(request *protocol.ARP, host network.Host) ([]byte, error) {
	v := protocol.NewARPReply(host.MAC, request.SHA, request.TPA, request.SPA)
	reply, err := v.MarshalBinary()
	if err != nil {
		return nil, err
	}
	eth := protocol.Ethernet{
		SrcMAC:  host.MAC,
		DstMAC:  request.SHA,
		Type:    protocol.EtherTypeARP,
		Payload: reply,
	}

	return eth.MarshalBinary()
}
