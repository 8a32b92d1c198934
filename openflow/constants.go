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

// Message types (ofp_type).
const (
	OFPT_HELLO uint8 = iota
	OFPT_ERROR
	OFPT_ECHO_REQUEST
	OFPT_ECHO_REPLY
	OFPT_EXPERIMENTER
	OFPT_FEATURES_REQUEST
	OFPT_FEATURES_REPLY
	OFPT_GET_CONFIG_REQUEST
	OFPT_GET_CONFIG_REPLY
	OFPT_SET_CONFIG
	OFPT_PACKET_IN
	OFPT_FLOW_REMOVED
	OFPT_PORT_STATUS
	OFPT_PACKET_OUT
	OFPT_FLOW_MOD
	OFPT_GROUP_MOD
	OFPT_PORT_MOD
	OFPT_TABLE_MOD
	OFPT_MULTIPART_REQUEST
	OFPT_MULTIPART_REPLY
	OFPT_BARRIER_REQUEST
	OFPT_BARRIER_REPLY
)

// Reserved port numbers (ofp_port_no).
const (
	OFPP_MAX        uint32 = 0xffffff00
	OFPP_IN_PORT    uint32 = 0xfffffff8
	OFPP_TABLE      uint32 = 0xfffffff9
	OFPP_NORMAL     uint32 = 0xfffffffa
	OFPP_FLOOD      uint32 = 0xfffffffb
	OFPP_ALL        uint32 = 0xfffffffc
	OFPP_CONTROLLER uint32 = 0xfffffffd
	OFPP_LOCAL      uint32 = 0xfffffffe
	OFPP_ANY        uint32 = 0xffffffff
)

// OXM match fields (oxm_ofb_match_fields) we support.
const (
	OFPXMT_OFB_IN_PORT  = 0
	OFPXMT_OFB_ETH_DST  = 3
	OFPXMT_OFB_ETH_SRC  = 4
	OFPXMT_OFB_ETH_TYPE = 5
	OFPXMT_OFB_IP_PROTO = 10
	OFPXMT_OFB_IPV4_SRC = 11
	OFPXMT_OFB_IPV4_DST = 12
	OFPXMT_OFB_TCP_SRC  = 13
	OFPXMT_OFB_TCP_DST  = 14
	OFPXMT_OFB_UDP_SRC  = 15
	OFPXMT_OFB_UDP_DST  = 16
)

const (
	// OXM class for the basic OpenFlow match fields.
	OFPXMC_OPENFLOW_BASIC = 0x8000
	// ofp_match type: OXM TLV list.
	OFPMT_OXM = 1
)

// Flow mod commands (ofp_flow_mod_command).
const (
	OFPFC_ADD uint8 = iota
	OFPFC_MODIFY
	OFPFC_MODIFY_STRICT
	OFPFC_DELETE
	OFPFC_DELETE_STRICT
)

// Flow mod flags.
const (
	OFPFF_SEND_FLOW_REM uint16 = 1 << 0
)

// Flow removed reasons (ofp_flow_removed_reason).
const (
	OFPRR_IDLE_TIMEOUT uint8 = iota
	OFPRR_HARD_TIMEOUT
	OFPRR_DELETE
	OFPRR_GROUP_DELETE
)

// Packet-in reasons (ofp_packet_in_reason).
const (
	OFPR_NO_MATCH uint8 = iota
	OFPR_ACTION
	OFPR_INVALID_TTL
)

// Port status reasons (ofp_port_reason).
const (
	OFPPR_ADD uint8 = iota
	OFPPR_DELETE
	OFPPR_MODIFY
)

// Port config and state bits.
const (
	OFPPC_PORT_DOWN uint32 = 1 << 0
	OFPPS_LINK_DOWN uint32 = 1 << 0
)

// Multipart message types (ofp_multipart_type) we support.
const (
	OFPMP_DESC       uint16 = 0
	OFPMP_PORT_STATS uint16 = 4
	OFPMP_PORT_DESC  uint16 = 13
)

// Action types.
const (
	OFPAT_OUTPUT uint16 = 0
)

// Instruction types.
const (
	OFPIT_APPLY_ACTIONS uint16 = 4
)

const (
	OFP_NO_BUFFER       uint32 = 0xffffffff
	OFPCML_NO_BUFFER    uint16 = 0xffff
	OFP_DEFAULT_PRIORITY uint16 = 0x8000
)
