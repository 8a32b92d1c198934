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
	"sort"
	"sync"
	"time"

	"fabricd/openflow"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// bootstrapCookie marks the flows installed during the handshake (table miss
// and the ARP redirect) so they are distinguishable from reactive flows.
const bootstrapCookie uint64 = 0x1 << 63

type FlowState int

const (
	// FlowPending is a rule whose FLOW_MOD has not been written yet.
	FlowPending FlowState = iota
	// FlowInstalled is a rule whose FLOW_MOD was written to the session.
	// Installation is fire-and-forget: the switch ACKs nothing, so this is
	// our best knowledge, reconciled later by FLOW_REMOVED.
	FlowInstalled
)

func (r FlowState) String() string {
	if r == FlowPending {
		return "pending"
	}
	return "installed"
}

// FlowRule is the controller-side bookkeeping of one installed flow.
type FlowRule struct {
	DPID        uint64
	Digest      string
	Priority    uint16
	OutPort     uint32
	IdleTimeout uint16
	HardTimeout uint16
	State       FlowState
	Created     time.Time
}

func ruleKey(digest string, priority uint16) string {
	return fmt.Sprintf("%v/%v", digest, priority)
}

// FlowTable mirrors what we believe each switch's flow table contains. The
// LRU cache suppresses re-installing the same rule while a burst of identical
// packet-ins is still in flight.
type FlowTable struct {
	mutex sync.RWMutex
	// Keys are the datapath ID and then ruleKey.
	rules map[uint64]map[string]*FlowRule
	cache *lru.Cache

	idleTimeout uint16
	hardTimeout uint16
}

const (
	flowCacheSize = 8192
	// A cached install suppresses duplicates for this long.
	installExpiration = 5 * time.Second
)

func NewFlowTable(idleTimeout, hardTimeout uint16) *FlowTable {
	cache, err := lru.New(flowCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create a flow cache: %v", err))
	}

	return &FlowTable{
		rules:       make(map[uint64]map[string]*FlowRule),
		cache:       cache,
		idleTimeout: idleTimeout,
		hardTimeout: hardTimeout,
	}
}

// inProgress returns whether the same install was sent recently.
func (r *FlowTable) inProgress(key string) bool {
	v, ok := r.cache.Get(key)
	if !ok {
		return false
	}
	timestamp := v.(time.Time)
	if time.Since(timestamp) > installExpiration {
		r.cache.Remove(key)
		return false
	}
	return true
}

// Install writes an ADD flow mod that forwards match to outPort and records
// the rule. A duplicate of a just-sent install is silently skipped.
func (r *FlowTable) Install(sw *Switch, match *openflow.Match, outPort uint32, priority uint16) error {
	if sw == nil {
		panic("switch is nil")
	}
	if match == nil {
		panic("match is nil")
	}

	digest, err := match.Digest()
	if err != nil {
		return errors.Wrap(err, "digesting the flow match")
	}

	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cacheKey := fmt.Sprintf("%v/%v/%v/%v", sw.DPID(), digest, outPort, priority)
	if r.inProgress(cacheKey) {
		return nil
	}

	action := openflow.NewAction()
	action.AddOutput(outPort)

	mod := openflow.NewFlowMod(openflow.OFPFC_ADD)
	mod.IdleTimeout = r.idleTimeout
	mod.HardTimeout = r.hardTimeout
	mod.Priority = priority
	mod.Match = match
	mod.Instruction = openflow.NewInstruction(action)

	rule := &FlowRule{
		DPID:        sw.DPID(),
		Digest:      digest,
		Priority:    priority,
		OutPort:     outPort,
		IdleTimeout: r.idleTimeout,
		HardTimeout: r.hardTimeout,
		State:       FlowPending,
		Created:     time.Now(),
	}

	if err := sw.SendMessage(mod); err != nil {
		// The datapath keeps forwarding per-packet through us; only
		// this rule is lost.
		return errors.Wrap(err, "sending a flow mod")
	}
	rule.State = FlowInstalled
	r.cache.Add(cacheKey, time.Now())

	table, ok := r.rules[sw.DPID()]
	if !ok {
		table = make(map[string]*FlowRule)
		r.rules[sw.DPID()] = table
	}
	// Same match and priority replaces, never duplicates.
	table[ruleKey(digest, priority)] = rule

	return nil
}

// InvalidatePort deletes, on the switch and in our records, every rule whose
// output is port. Called when the port goes down so no rule keeps steering
// traffic into a dead link.
func (r *FlowTable) InvalidatePort(sw *Switch, port uint32) (removed int, err error) {
	if sw == nil {
		panic("switch is nil")
	}

	mod := openflow.NewFlowMod(openflow.OFPFC_DELETE)
	mod.Match = openflow.NewMatch() // whole wildcard
	mod.OutPort = port
	if err := sw.SendMessage(mod); err != nil && errors.Cause(err) != ErrClosedSwitch {
		return 0, errors.Wrap(err, "sending a flow removal")
	}

	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	table := r.rules[sw.DPID()]
	for key, rule := range table {
		if rule.OutPort == port {
			delete(table, key)
			removed++
		}
	}

	return removed, nil
}

// Forget drops all local records of dpid without touching the switch. Used
// when the session is gone and the hardware state is unreachable anyway.
func (r *FlowTable) Forget(dpid uint64) {
	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.rules, dpid)
}

// OnFlowRemoved reconciles our records with a FLOW_REMOVED notification and
// returns the removed rule if we were tracking it.
func (r *FlowTable) OnFlowRemoved(dpid uint64, msg *openflow.FlowRemoved) (rule FlowRule, ok bool) {
	if msg.Match == nil {
		return FlowRule{}, false
	}
	digest, err := msg.Match.Digest()
	if err != nil {
		return FlowRule{}, false
	}

	// Write lock
	r.mutex.Lock()
	defer r.mutex.Unlock()

	table := r.rules[dpid]
	key := ruleKey(digest, msg.Priority)
	v, ok := table[key]
	if !ok {
		return FlowRule{}, false
	}
	delete(table, key)

	return *v, true
}

// Rules returns a copy of the tracked rules of dpid sorted by age.
func (r *FlowTable) Rules(dpid uint64) []FlowRule {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	v := make([]FlowRule, 0)
	for _, rule := range r.rules[dpid] {
		v = append(v, *rule)
	}
	sort.Slice(v, func(i, j int) bool { return v[i].Created.Before(v[j].Created) })

	return v
}

// Count returns the number of rules tracked for dpid.
func (r *FlowTable) Count(dpid uint64) int {
	// Read lock
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.rules[dpid])
}
