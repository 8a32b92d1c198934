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

package northbound

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"fabricd/network"
	"fabricd/northbound/app"
	"fabricd/northbound/app/fabric"
	"fabricd/northbound/app/monitor"
	"fabricd/northbound/app/proxyarp"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var logger = logging.MustGetLogger("northbound")

type EventSender interface {
	SetEventListener(network.EventListener)
}

type application struct {
	instance app.Processor
	enabled  bool
}

// Manager owns the processor chain. Applications are enabled in the order
// the configuration lists them; each packet-in walks the chain until one
// application consumes it.
type Manager struct {
	mutex      sync.Mutex
	apps       map[string]*application // Registered applications
	head, tail app.Processor
	monitor    *monitor.Monitor
}

func NewManager(hosts *network.HostTable, flows *network.FlowTable, finder network.Finder) *Manager {
	if hosts == nil {
		panic("host table is nil")
	}
	if flows == nil {
		panic("flow table is nil")
	}
	if finder == nil {
		panic("finder is nil")
	}

	v := &Manager{
		apps:    make(map[string]*application),
		monitor: monitor.New(finder),
	}
	// Registering north-bound applications
	v.register(proxyarp.New(hosts))
	v.register(fabric.New(hosts, flows))
	v.register(v.monitor)

	return v
}

func (r *Manager) register(app app.Processor) {
	r.apps[strings.ToUpper(app.Name())] = &application{
		instance: app,
		enabled:  false,
	}
}

// XXX: Caller should lock the mutex before they call this function
func (r *Manager) checkDependencies(appNames []string) error {
	if len(appNames) == 0 {
		// No dependency
		return nil
	}

	for _, name := range appNames {
		app, ok := r.apps[strings.ToUpper(name)]
		if !ok || !app.enabled {
			return fmt.Errorf("%v application is not loaded", name)
		}
	}

	return nil
}

func (r *Manager) Enable(appName string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	logger.Debugf("enabling %v application..", appName)
	v, ok := r.apps[strings.ToUpper(appName)]
	if !ok {
		return fmt.Errorf("unknown application: %v", appName)
	}
	app := v.instance

	if err := app.Init(); err != nil {
		return errors.Wrap(err, "initializing application")
	}
	if err := r.checkDependencies(app.Dependencies()); err != nil {
		return errors.Wrap(err, "checking dependencies")
	}
	v.enabled = true
	logger.Infof("enabled %v application", appName)

	if r.head == nil {
		r.head = app
		r.tail = app
		return nil
	}
	r.tail.SetNext(app)
	r.tail = app

	return nil
}

// Monitor returns the port-stats poller so the caller can run it.
func (r *Manager) Monitor() *monitor.Monitor {
	return r.monitor
}

func (r *Manager) AddEventSender(sender EventSender) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.head == nil {
		return
	}
	sender.SetEventListener(r.head)
}

func (r *Manager) String() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var buf bytes.Buffer
	app := r.head
	for app != nil {
		buf.WriteString(fmt.Sprintf("%v\n", app.Name()))
		next, ok := app.Next()
		if !ok {
			break
		}
		app = next
	}

	return buf.String()
}
