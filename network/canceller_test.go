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
)

// A switch that reconnects before its old session finished unwinding must
// not have the fresh session killed by the stale session's teardown.
func TestCancellerFastReconnect(t *testing.T) {
	const dpid = 42
	staleSession, freshSession := new(session), new(session)
	var staleCancelled, freshCancelled bool

	pushCanceller(dpid, staleSession, func() { staleCancelled = true })

	// The fresh session evicts the stale one and registers itself.
	cancel, ok := popCanceller(dpid)
	if !ok {
		t.Fatal("no canceller registered for the stale session")
	}
	cancel()
	if !staleCancelled {
		t.Fatal("stale session was not cancelled")
	}
	pushCanceller(dpid, freshSession, func() { freshCancelled = true })

	// The stale session's teardown runs afterwards and must not reach
	// the fresh session's entry.
	if _, ok := popCancellerOwned(dpid, staleSession); ok {
		t.Fatal("teardown of a replaced session popped the replacement's canceller")
	}
	if freshCancelled {
		t.Fatal("teardown of a replaced session cancelled the replacement")
	}

	cancel, ok = popCancellerOwned(dpid, freshSession)
	if !ok {
		t.Fatal("fresh session lost its canceller")
	}
	cancel()
	if !freshCancelled {
		t.Fatal("fresh session's canceller did not run")
	}
}
