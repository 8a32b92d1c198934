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
	"sync"
)

// sessionCanceller tracks the cancel function of each connected switch session
// so that a duplicated datapath ID can kick out the stale session. Each entry
// remembers the session that registered it: a replaced session's teardown runs
// after the replacement already re-registered the DPID, and must not touch the
// replacement's entry.
type cancellerEntry struct {
	owner  *session
	cancel context.CancelFunc
}

var sessionCanceller = struct {
	mutex sync.Mutex
	m     map[uint64]cancellerEntry
}{
	m: make(map[uint64]cancellerEntry),
}

func pushCanceller(dpid uint64, owner *session, cancel context.CancelFunc) {
	sessionCanceller.mutex.Lock()
	defer sessionCanceller.mutex.Unlock()

	sessionCanceller.m[dpid] = cancellerEntry{owner: owner, cancel: cancel}
}

// popCanceller removes and returns the cancel function of dpid regardless of
// who registered it. Used to evict whichever session holds the DPID.
func popCanceller(dpid uint64) (cancel context.CancelFunc, ok bool) {
	sessionCanceller.mutex.Lock()
	defer sessionCanceller.mutex.Unlock()

	entry, ok := sessionCanceller.m[dpid]
	if ok {
		delete(sessionCanceller.m, dpid)
	}

	return entry.cancel, ok
}

// popCancellerOwned removes the entry of dpid only if owner still holds it.
// ok reports whether the entry was the caller's own.
func popCancellerOwned(dpid uint64, owner *session) (cancel context.CancelFunc, ok bool) {
	sessionCanceller.mutex.Lock()
	defer sessionCanceller.mutex.Unlock()

	entry, ok := sessionCanceller.m[dpid]
	if !ok || entry.owner != owner {
		return nil, false
	}
	delete(sessionCanceller.m, dpid)

	return entry.cancel, true
}
