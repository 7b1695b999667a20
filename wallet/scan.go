package wallet

import (
	"context"
	"fmt"

	"github.com/mezonai/walletd/esplora"
	"github.com/mezonai/walletd/logx"
	"github.com/mezonai/walletd/types"
	"golang.org/x/sync/errgroup"
)

// ChainSource is the part of the Esplora client the HD engine uses.
type ChainSource interface {
	GetAddressStats(ctx context.Context, address string) (*esplora.AddressStats, error)
	GetAddressUTXOs(ctx context.Context, address string) ([]esplora.UTXO, error)
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

type scanOptions struct {
	stopGap  int
	parallel int
	// revealed indexes are always scanned, whatever the gap
	revealed uint32
}

type scanResult struct {
	usedCount uint32
	utxos     []types.UTXO
}

type addressProbe struct {
	used  bool
	utxos []esplora.UTXO
}

// scanKeychain walks kc from index 0 until stopGap consecutive unused
// addresses were seen. Requests run in batches of opts.parallel; progress
// lines are reported in index order from the calling goroutine.
func scanKeychain(ctx context.Context, chain ChainSource, kc *Keychain, opts scanOptions, progress ProgressFunc) (*scanResult, error) {
	if opts.stopGap <= 0 {
		opts.stopGap = 1
	}
	if opts.parallel <= 0 {
		opts.parallel = 1
	}

	result := &scanResult{}
	gap := 0
	next := uint32(0)

	for {
		batch := make([]uint32, 0, opts.parallel)
		for i := 0; i < opts.parallel; i++ {
			batch = append(batch, next+uint32(i))
		}
		probes := make([]addressProbe, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, index := range batch {
			i, index := i, index
			g.Go(func() error {
				addr, _, err := kc.Address(index)
				if err != nil {
					return err
				}
				stats, err := chain.GetAddressStats(gctx, addr.String())
				if err != nil {
					return err
				}
				if !stats.Used() {
					return nil
				}
				utxos, err := chain.GetAddressUTXOs(gctx, addr.String())
				if err != nil {
					return err
				}
				probes[i] = addressProbe{used: true, utxos: utxos}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("scan %s keychain at index %d: %w", kc.Kind(), next, err)
		}

		for i, index := range batch {
			if progress != nil {
				progress(fmt.Sprintf("Scanning keychain %s at index %d", kc.Kind(), index))
			}
			probe := probes[i]
			if probe.used {
				gap = 0
				result.usedCount = index + 1
				for _, u := range probe.utxos {
					result.utxos = append(result.utxos, types.UTXO{
						OutPoint:  types.OutPoint{TxID: u.TxID, Vout: u.Vout},
						Value:     u.Value,
						Keychain:  kc.Kind(),
						Index:     index,
						Confirmed: u.Status.Confirmed,
					})
				}
			} else {
				gap++
			}
			if gap >= opts.stopGap && index+1 >= opts.revealed {
				logx.Info("WALLET", fmt.Sprintf("Scan finished | keychain=%s | used=%d | utxos=%d", kc.Kind(), result.usedCount, len(result.utxos)))
				return result, nil
			}
		}
		next += uint32(len(batch))
	}
}
