package model

type Chain string

const (
	ChainBSC  Chain = "bsc"
	ChainTron Chain = "tron"
)

func (c Chain) String() string {
	return string(c)
}

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

func (n Network) String() string {
	return string(n)
}
