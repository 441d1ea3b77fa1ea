// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"math/rand"
	"net"
	"net/netip"
	"os"
	"strconv"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"go4.org/netipx"

	"github.com/someonegg/rirmatch/addrspace"
)

type ASes struct {
	ASes []*addrspace.AS `json:"ases"`
}

type Blocks struct {
	Blocks []*addrspace.Block `json:"blocks"`
}

// Files are YAML, JSON being a subset.
func loadASes(file string) ([]*addrspace.AS, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var ases ASes
	if err := yaml.Unmarshal(data, &ases); err != nil {
		return nil, err
	}
	return ases.ASes, nil
}

func loadBlocks(file string) ([]*addrspace.Block, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var blocks Blocks
	if err := yaml.Unmarshal(data, &blocks); err != nil {
		return nil, err
	}
	return blocks.Blocks, nil
}

func writeYAML(file string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0644)
}

var (
	baseNetworks = []string{"10.0.0.0/16", "172.16.0.0/12", "192.168.0.0/16", "198.51.100.0/24"}

	genLocations = []struct{ registry, country string }{
		{"RIPE", "DE"}, {"RIPE", "FR"}, {"RIPE", "SE"}, {"RIPE", "RU"},
		{"ARIN", "US"}, {"ARIN", "CA"},
		{"LACNIC", "BR"}, {"LACNIC", "AR"},
		{"APNIC", "JP"}, {"APNIC", "SG"}, {"APNIC", "AU"},
		{"AFRINIC", "ZA"}, {"AFRINIC", "KE"},
	}
)

const (
	minGenBits = 22
	maxGenBits = 29

	maxGenTries = 64
)

// randomPrefix picks a random host of a random base network, then a random
// /22 to /29 around it.
func randomPrefix(rnd *rand.Rand) (netip.Prefix, error) {
	_, base, err := net.ParseCIDR(baseNetworks[rnd.Intn(len(baseNetworks))])
	if err != nil {
		return netip.Prefix{}, err
	}
	ip, err := cidr.Host(base, rnd.Intn(int(cidr.AddressCount(base))))
	if err != nil {
		return netip.Prefix{}, err
	}
	addr, ok := netipx.FromStdIP(ip)
	if !ok {
		return netip.Prefix{}, errors.Errorf("bad host %v", ip)
	}
	bits := minGenBits + rnd.Intn(maxGenBits-minGenBits+1)
	return netip.PrefixFrom(addr, bits).Masked(), nil
}

// genPopulation builds a synthetic population. Blocks never overlap and each
// block is a single unit, so an autonomous system needs one block.
func genPopulation(rnd *rand.Rand, nASes, nBlocks int) ([]*addrspace.AS, []*addrspace.Block, error) {
	ases := make([]*addrspace.AS, nASes)
	for i := range ases {
		p, err := randomPrefix(rnd)
		if err != nil {
			return nil, nil, err
		}
		loc := genLocations[rnd.Intn(len(genLocations))]
		ases[i] = &addrspace.AS{
			ASN:      "AS" + strconv.Itoa(64512+i),
			Prefix:   p.String(),
			Held:     int64(1) << (32 - p.Bits()),
			Growth:   rnd.Float64() * 0.5,
			Registry: loc.registry,
			Country:  loc.country,
			Abuse:    rnd.Float64() * 0.3,
			Peers:    rnd.Intn(64),
			Need:     1,
		}
	}

	var (
		blocks []*addrspace.Block
		taken  netipx.IPSetBuilder
	)
	for len(blocks) < nBlocks {
		var p netip.Prefix
		for try := 0; ; try++ {
			if try == maxGenTries {
				return nil, nil, errors.Errorf("address space exhausted after %d blocks", len(blocks))
			}
			c, err := randomPrefix(rnd)
			if err != nil {
				return nil, nil, err
			}
			set, err := taken.IPSet()
			if err != nil {
				return nil, nil, err
			}
			if !set.OverlapsPrefix(c) {
				p = c
				break
			}
		}
		taken.AddPrefix(p)

		loc := genLocations[rnd.Intn(len(genLocations))]
		unitLen := p.Bits()
		blocks = append(blocks, &addrspace.Block{
			Block:       p.String(),
			Registry:    loc.registry,
			Country:     loc.country,
			Abuse:       rnd.Float64() * 0.3,
			Routability: 0.5 + rnd.Float64()*0.5,
			UnitLength:  &unitLen,
		})
	}

	return ases, blocks, nil
}

func doGen(asFile, blockFile string, nASes, nBlocks int, seed int64) error {
	ases, blocks, err := genPopulation(rand.New(rand.NewSource(seed)), nASes, nBlocks)
	if err != nil {
		return err
	}
	if err := writeYAML(asFile, ASes{ases}); err != nil {
		return errors.Wrap(err, "write as file failed")
	}
	if err := writeYAML(blockFile, Blocks{blocks}); err != nil {
		return errors.Wrap(err, "write block file failed")
	}
	return nil
}
