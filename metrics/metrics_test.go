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

package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRecordPortStatsDelta(t *testing.T) {
	const dpid, port = uint64(0xA1), uint32(1)

	// The first sample only establishes the baseline.
	RecordPortStats(dpid, port, PortCounters{RxBytes: 1000, TxBytes: 500})
	rx := portRxBytes.WithLabelValues(dpidLabel(dpid), portLabel(port))
	tx := portTxBytes.WithLabelValues(dpidLabel(dpid), portLabel(port))
	require.Equal(t, 0.0, testutil.ToFloat64(rx))
	require.Equal(t, 0.0, testutil.ToFloat64(tx))

	RecordPortStats(dpid, port, PortCounters{RxBytes: 1500, TxBytes: 600})
	require.Equal(t, 500.0, testutil.ToFloat64(rx))
	require.Equal(t, 100.0, testutil.ToFloat64(tx))

	RecordPortStats(dpid, port, PortCounters{RxBytes: 1500, TxBytes: 900})
	require.Equal(t, 500.0, testutil.ToFloat64(rx))
	require.Equal(t, 400.0, testutil.ToFloat64(tx))
}

func TestRecordPortStatsCounterReset(t *testing.T) {
	const dpid, port = uint64(0xA2), uint32(2)

	RecordPortStats(dpid, port, PortCounters{RxBytes: 9000})
	RecordPortStats(dpid, port, PortCounters{RxBytes: 9100})
	rx := portRxBytes.WithLabelValues(dpidLabel(dpid), portLabel(port))
	require.Equal(t, 100.0, testutil.ToFloat64(rx))

	// The switch rebooted and its counters went backwards. The sample
	// restarts the baseline without decreasing the exported counter.
	RecordPortStats(dpid, port, PortCounters{RxBytes: 50})
	require.Equal(t, 100.0, testutil.ToFloat64(rx))

	RecordPortStats(dpid, port, PortCounters{RxBytes: 80})
	require.Equal(t, 130.0, testutil.ToFloat64(rx))
}

func TestRecordPortStatsConcurrent(t *testing.T) {
	const dpid = uint64(0xA3)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(port uint32) {
			defer wg.Done()
			for n := uint64(0); n < 1000; n++ {
				RecordPortStats(dpid, port, PortCounters{RxPackets: n})
			}
		}(uint32(i))
	}
	wg.Wait()

	// Samples within one goroutine are strictly increasing, so each port
	// accumulates exactly the distance from its first to its last sample.
	for i := 0; i < 8; i++ {
		c := portRxPackets.WithLabelValues(dpidLabel(dpid), portLabel(uint32(i)))
		require.Equal(t, 999.0, testutil.ToFloat64(c))
	}
}

func histogramSampleCount(t *testing.T, h prometheus.Histogram) uint64 {
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestRecordDecisionDuration(t *testing.T) {
	before := histogramSampleCount(t, decisionDuration)

	RecordDecisionDuration(0.0005)
	RecordDecisionDuration(0.02)

	require.Equal(t, before+2, histogramSampleCount(t, decisionDuration))
}

func TestDPIDLabel(t *testing.T) {
	require.Equal(t, "1", dpidLabel(1))
	require.Equal(t, "18446744073709551615", dpidLabel(^uint64(0)))
}

func TestSwitchDisconnectCleansLabels(t *testing.T) {
	const dpid = uint64(0xA4)

	RecordSwitchConnected(dpid, "leaf")
	SetPortStatus(dpid, 1, true)
	SetPortStatus(dpid, 2, false)
	SetFlowEntries(dpid, 7)
	require.Equal(t, 2, testutil.CollectAndCount(portStatus, "sdn_port_status"))

	RecordSwitchDisconnected(dpid, "leaf")
	require.Equal(t, 0, testutil.CollectAndCount(portStatus, "sdn_port_status"))
	require.Equal(t, 0, testutil.CollectAndCount(flowEntries, "sdn_flow_entries_total"))
}
