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

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fabricd/network"

	"github.com/spf13/viper"
)

func validateConfig() error {
	port := viper.GetInt("default.port")
	if port <= 0 || port > 65535 {
		return errors.New("invalid default.port in the config file")
	}
	if viper.GetString("default.log_level") == "" {
		return errors.New("empty default.log_level in the config file")
	}
	if len(parseApplications()) == 0 {
		return errors.New("empty default.applications in the config file")
	}
	if _, err := parseDPIDs("topology.spines"); err != nil {
		return err
	}
	if _, err := parseDPIDs("topology.leaves"); err != nil {
		return err
	}
	restPort := viper.GetInt("rest.port")
	if restPort <= 0 || restPort > 65535 {
		return errors.New("invalid rest.port in the config file")
	}
	if viper.GetBool("rest.tls") == true {
		if viper.GetString("rest.cert_file") == "" {
			return errors.New("empty rest.cert_file in the config file")
		}
		if viper.GetString("rest.key_file") == "" {
			return errors.New("empty rest.key_file in the config file")
		}
	}
	metricsPort := viper.GetInt("metrics.port")
	if metricsPort <= 0 || metricsPort > 65535 {
		return errors.New("invalid metrics.port in the config file")
	}
	if v := viper.GetInt("flow.idle_timeout"); v < 0 || v > 65535 {
		return errors.New("invalid flow.idle_timeout in the config file")
	}
	if v := viper.GetInt("flow.hard_timeout"); v < 0 || v > 65535 {
		return errors.New("invalid flow.hard_timeout in the config file")
	}

	return nil
}

func parseApplications() []string {
	var ret []string
	for _, v := range strings.Split(viper.GetString("default.applications"), ",") {
		name := strings.TrimSpace(v)
		if name == "" {
			continue
		}
		ret = append(ret, name)
	}

	return ret
}

// parseDPIDs reads a list of switch datapath IDs, written as hexadecimal
// strings with or without a 0x prefix, from the config file.
func parseDPIDs(key string) ([]uint64, error) {
	values := viper.GetStringSlice(key)
	if len(values) == 0 {
		return nil, fmt.Errorf("empty %v in the config file", key)
	}

	ret := make([]uint64, 0, len(values))
	for _, v := range values {
		s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(v)), "0x")
		dpid, err := strconv.ParseUint(s, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DPID %v in %v: %v", v, key, err)
		}
		ret = append(ret, dpid)
	}

	return ret, nil
}

func controllerConfig() network.Config {
	// validateConfig already confirmed these parse.
	spines, _ := parseDPIDs("topology.spines")
	leaves, _ := parseDPIDs("topology.leaves")

	return network.Config{
		Spines:          spines,
		Leaves:          leaves,
		FlowIdleTimeout: uint16(viper.GetInt("flow.idle_timeout")),
		FlowHardTimeout: uint16(viper.GetInt("flow.hard_timeout")),
	}
}
