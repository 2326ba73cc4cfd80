package model

import (
	"fmt"
	"math/big"
)

// Network identifies a chain by its chain id
type Network uint64

const (
	NetworkUnknown   Network = 0
	NetworkMainnet   Network = 1
	NetworkXDC       Network = 50
	NetworkApothem   Network = 51
	NetworkEnergyWeb Network = 246
	NetworkVolta     Network = 73799
)

var networkNames = map[Network]string{
	NetworkUnknown:   "UNKNOWN",
	NetworkMainnet:   "MAINNET",
	NetworkXDC:       "XDC",
	NetworkApothem:   "APOTHEM",
	NetworkEnergyWeb: "ENERGY_WEB_CHAIN",
	NetworkVolta:     "VOLTA",
}

// NetworkFromChainID maps a chain id to a known network, or NetworkUnknown
func NetworkFromChainID(chainID *big.Int) Network {
	if chainID == nil || !chainID.IsUint64() {
		return NetworkUnknown
	}
	n := Network(chainID.Uint64())
	if _, ok := networkNames[n]; !ok {
		return NetworkUnknown
	}
	return n
}

func (n Network) String() string {
	if name, ok := networkNames[n]; ok {
		return name
	}
	return fmt.Sprintf("CHAIN_%d", uint64(n))
}
