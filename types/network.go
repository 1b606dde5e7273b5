package types

// Network represents supported blockchain networks
type Network string

const (
	// EVM Networks
	NetworkBase          Network = "base"
	NetworkBaseSepolia   Network = "base-sepolia" // testnet
	NetworkPolygon       Network = "polygon"
	NetworkPolygonAmoy   Network = "polygon-amoy" // testnet
	NetworkAvalanche     Network = "avalanche"
	NetworkAvalancheFuji Network = "avalanche-fuji" // testnet

	// Solana Networks
	NetworkSolana       Network = "solana"
	NetworkSolanaDevnet Network = "solana-devnet" // testnet
)

// ChainFamily classifies a network into a blockchain family.
type ChainFamily string

const (
	ChainEVM    ChainFamily = "evm"
	ChainSolana ChainFamily = "solana"
)

// AssetInfo describes the default settlement token of a network.
type AssetInfo struct {
	Symbol   string
	Address  string
	Decimals int32
	// EIP-712 domain of the token, required by the exact scheme on EVM.
	Name    string
	Version string
}

var usdc = map[Network]AssetInfo{
	NetworkBase:          {Symbol: "USDC", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6, Name: "USD Coin", Version: "2"},
	NetworkBaseSepolia:   {Symbol: "USDC", Address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e", Decimals: 6, Name: "USDC", Version: "2"},
	NetworkPolygon:       {Symbol: "USDC", Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Decimals: 6, Name: "USD Coin", Version: "2"},
	NetworkPolygonAmoy:   {Symbol: "USDC", Address: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582", Decimals: 6, Name: "USDC", Version: "2"},
	NetworkAvalanche:     {Symbol: "USDC", Address: "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E", Decimals: 6, Name: "USD Coin", Version: "2"},
	NetworkAvalancheFuji: {Symbol: "USDC", Address: "0x5425890298aed601595a70AB815c96711a31Bc65", Decimals: 6, Name: "USD Coin", Version: "2"},
	NetworkSolana:        {Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	NetworkSolanaDevnet:  {Symbol: "USDC", Address: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", Decimals: 6},
}

// SupportedNetworks lists every network a requirement may name.
func SupportedNetworks() []Network {
	return []Network{
		NetworkBase, NetworkBaseSepolia,
		NetworkPolygon, NetworkPolygonAmoy,
		NetworkAvalanche, NetworkAvalancheFuji,
		NetworkSolana, NetworkSolanaDevnet,
	}
}

// DefaultAsset returns the USDC deployment on n.
func (n Network) DefaultAsset() (AssetInfo, bool) {
	a, ok := usdc[n]
	return a, ok
}

// Helper functions for network classification
func (n Network) IsEVM() bool {
	switch n {
	case NetworkBase, NetworkBaseSepolia, NetworkPolygon, NetworkPolygonAmoy, NetworkAvalanche, NetworkAvalancheFuji:
		return true
	}
	return false
}

func (n Network) IsSolana() bool {
	return n == NetworkSolana || n == NetworkSolanaDevnet
}

func (n Network) IsTestnet() bool {
	return n == NetworkBaseSepolia || n == NetworkPolygonAmoy || n == NetworkAvalancheFuji || n == NetworkSolanaDevnet
}

func (n Network) IsSupported() bool {
	return n.IsEVM() || n.IsSolana()
}

func (n Network) Family() ChainFamily {
	if n.IsSolana() {
		return ChainSolana
	}
	return ChainEVM
}

func (n Network) String() string {
	return string(n)
}
