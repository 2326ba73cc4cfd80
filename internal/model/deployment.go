package model

import "strings"

// L2VersionSuffix marks master copy versions indexed through events instead of traces
const L2VersionSuffix = "+L2"

// MasterCopy is a Safe singleton contract that proxies delegate to
type MasterCopy struct {
	Address            string `json:"address"`
	InitialBlockNumber uint64 `json:"initial_block_number"`
	CurrentBlockNumber uint64 `json:"current_block_number"`
	Version            string `json:"version"`
	L2                 bool   `json:"l2"`
}

// ProxyFactory is a contract deploying new Safe proxies
type ProxyFactory struct {
	Address            string `json:"address"`
	InitialBlockNumber uint64 `json:"initial_block_number"`
	CurrentBlockNumber uint64 `json:"current_block_number"`
}

// MasterCopyDefinition is the desired state of a master copy
type MasterCopyDefinition struct {
	Address            string
	InitialBlockNumber uint64
	Version            string
}

// IsL2 reports whether the version carries the L2 suffix
func (d MasterCopyDefinition) IsL2() bool {
	return strings.HasSuffix(d.Version, L2VersionSuffix)
}

// ProxyFactoryDefinition is the desired state of a proxy factory
type ProxyFactoryDefinition struct {
	Address            string
	InitialBlockNumber uint64
}
