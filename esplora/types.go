package esplora

type TxStats struct {
	TxCount      int    `json:"tx_count"`
	FundedTxoSum uint64 `json:"funded_txo_sum"`
	SpentTxoSum  uint64 `json:"spent_txo_sum"`
}

// AddressStats is the body of GET /address/:address
type AddressStats struct {
	Address      string  `json:"address"`
	ChainStats   TxStats `json:"chain_stats"`
	MempoolStats TxStats `json:"mempool_stats"`
}

// Used reports whether the address ever appeared in a transaction,
// confirmed or not.
func (s *AddressStats) Used() bool {
	return s.ChainStats.TxCount+s.MempoolStats.TxCount > 0
}

type TxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight int64  `json:"block_height,omitempty"`
	BlockHash   string `json:"block_hash,omitempty"`
}

// UTXO is one entry of GET /address/:address/utxo
type UTXO struct {
	TxID   string   `json:"txid"`
	Vout   uint32   `json:"vout"`
	Value  uint64   `json:"value"`
	Status TxStatus `json:"status"`
}
