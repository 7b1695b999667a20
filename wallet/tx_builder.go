package wallet

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/mezonai/walletd/types"
	"github.com/mezonai/walletd/walleterr"
)

const (
	// DustLimit is the smallest P2WPKH output relayed at the default dust fee
	DustLimit uint64 = 294

	txOverheadVBytes   = 11
	p2wpkhInputVBytes  = 68
	p2wpkhOutputVBytes = 31

	// opt in to replace-by-fee
	rbfSequence = wire.MaxTxInSequenceNum - 2
)

func estimateVSize(inputs, outputs int) uint64 {
	return uint64(txOverheadVBytes + inputs*p2wpkhInputVBytes + outputs*p2wpkhOutputVBytes)
}

// covers reports whether total pays amount plus fee.
func covers(total, amount, fee uint64) bool {
	return amount <= total && total-amount >= fee
}

// requiredSats is amount plus fee, saturating at math.MaxUint64.
func requiredSats(amount, fee uint64) uint64 {
	if amount > math.MaxUint64-fee {
		return math.MaxUint64
	}
	return amount + fee
}

type spendPlan struct {
	inputs []types.UTXO
	amount uint64
	fee    uint64
	change uint64
}

// selectCoins picks the largest outputs first until amount plus fee is
// covered. Change below the dust limit is left to the fee.
func selectCoins(utxos []types.UTXO, amount, feeRate uint64) (*spendPlan, error) {
	candidates := append([]types.UTXO(nil), utxos...)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Value != candidates[j].Value {
			return candidates[i].Value > candidates[j].Value
		}
		return candidates[i].OutPoint.String() < candidates[j].OutPoint.String()
	})

	var total uint64
	for n, u := range candidates {
		total += u.Value
		inputs := candidates[:n+1]

		withChange := feeRate * estimateVSize(len(inputs), 2)
		if covers(total, amount, withChange) {
			change := total - amount - withChange
			if change < DustLimit {
				return &spendPlan{inputs: inputs, amount: amount, fee: total - amount}, nil
			}
			return &spendPlan{inputs: inputs, amount: amount, fee: withChange, change: change}, nil
		}
		if noChange := feeRate * estimateVSize(len(inputs), 1); covers(total, amount, noChange) {
			return &spendPlan{inputs: inputs, amount: amount, fee: total - amount}, nil
		}
	}

	required := requiredSats(amount, feeRate*estimateVSize(len(candidates), 1))
	return nil, walleterr.Newf(walleterr.CodeInsufficientFunds, walleterr.MsgInsufficientFunds, required, total)
}

// inputSigner resolves the key and previous output script of a wallet UTXO.
type inputSigner func(u types.UTXO) (*btcec.PrivateKey, []byte, error)

// buildTransaction creates and signs a version 2 transaction spending the
// plan's inputs to payTo, with change to changeTo when the plan has any.
func buildTransaction(plan *spendPlan, payTo, changeTo []byte, signer inputSigner) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(2)
	fetcher := txscript.NewMultiPrevOutFetcher(make(map[wire.OutPoint]*wire.TxOut))

	keys := make([]*btcec.PrivateKey, len(plan.inputs))
	scripts := make([][]byte, len(plan.inputs))
	for i, u := range plan.inputs {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", u.OutPoint, err)
		}
		priv, script, err := signer(u)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", u.OutPoint, err)
		}
		keys[i], scripts[i] = priv, script

		op := wire.NewOutPoint(hash, u.Vout)
		in := wire.NewTxIn(op, nil, nil)
		in.Sequence = rbfSequence
		tx.AddTxIn(in)
		fetcher.AddPrevOut(*op, wire.NewTxOut(int64(u.Value), script))
	}

	tx.AddTxOut(wire.NewTxOut(int64(plan.amount), payTo))
	if plan.change > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(plan.change), changeTo))
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, u := range plan.inputs {
		witness, err := txscript.WitnessSignature(tx, sigHashes, i, int64(u.Value), scripts[i], txscript.SigHashAll, keys[i], true)
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", i, err)
		}
		tx.TxIn[i].Witness = witness
	}
	return tx, nil
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
