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

// Package monitor polls every connected switch for its port counters. The
// replies land in the metrics package via the session handlers, so this app
// only has to keep asking.
package monitor

import (
	"context"
	"time"

	"fabricd/network"
	"fabricd/northbound/app"
	"fabricd/openflow"

	"github.com/op/go-logging"
)

var logger = logging.MustGetLogger("monitor")

const defaultInterval = 10 * time.Second

type Monitor struct {
	app.BaseProcessor
	finder   network.Finder
	interval time.Duration
}

func New(finder network.Finder) *Monitor {
	if finder == nil {
		panic("finder is nil")
	}

	return &Monitor{
		finder:   finder,
		interval: defaultInterval,
	}
}

func (r *Monitor) Name() string {
	return "Monitor"
}

// Run polls until the context is cancelled. Run it on its own goroutine.
func (r *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll()
		}
	}
}

func (r *Monitor) poll() {
	for _, sw := range r.finder.Switches() {
		req := openflow.NewPortStatsRequest(openflow.OFPP_ANY)
		if err := sw.SendMessage(req); err != nil {
			// The switch may have just disconnected. Not fatal.
			logger.Debugf("failed to request port stats from %v: %v", sw.ID(), err)
		}
	}
}
