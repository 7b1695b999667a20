package wallet

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	lru "github.com/hashicorp/golang-lru"
	"github.com/mezonai/walletd/types"
)

const addressCacheSize = 512

type derivedAddress struct {
	address  btcutil.Address
	pkScript []byte
}

// Keychain derives P2WPKH addresses below a wpkh(xprv/path/*) descriptor.
type Keychain struct {
	kind   types.KeychainKind
	branch *hdkeychain.ExtendedKey
	params *chaincfg.Params
	cache  *lru.Cache
}

func NewKeychain(kind types.KeychainKind, descriptor string, params *chaincfg.Params) (*Keychain, error) {
	keyStr, path, err := parseDescriptor(descriptor)
	if err != nil {
		return nil, fmt.Errorf("%s descriptor: %w", kind, err)
	}
	key, err := hdkeychain.NewKeyFromString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("%s descriptor key: %w", kind, err)
	}
	if !key.IsPrivate() {
		return nil, fmt.Errorf("%s descriptor needs a private key to sign", kind)
	}
	if !key.IsForNet(params) {
		return nil, fmt.Errorf("%s descriptor key is not for %s", kind, params.Name)
	}
	for _, step := range path {
		key, err = key.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("%s derive path: %w", kind, err)
		}
	}
	cache, err := lru.New(addressCacheSize)
	if err != nil {
		return nil, err
	}
	return &Keychain{kind: kind, branch: key, params: params, cache: cache}, nil
}

func (k *Keychain) Kind() types.KeychainKind {
	return k.kind
}

// Address returns the address at index and its output script.
func (k *Keychain) Address(index uint32) (btcutil.Address, []byte, error) {
	if cached, ok := k.cache.Get(index); ok {
		d := cached.(*derivedAddress)
		return d.address, d.pkScript, nil
	}
	child, err := k.child(index)
	if err != nil {
		return nil, nil, err
	}
	pub, err := child.ECPubKey()
	if err != nil {
		return nil, nil, fmt.Errorf("%s/%d public key: %w", k.kind, index, err)
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), k.params)
	if err != nil {
		return nil, nil, fmt.Errorf("%s/%d address: %w", k.kind, index, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%s/%d script: %w", k.kind, index, err)
	}
	k.cache.Add(index, &derivedAddress{address: addr, pkScript: script})
	return addr, script, nil
}

func (k *Keychain) PrivKey(index uint32) (*btcec.PrivateKey, error) {
	child, err := k.child(index)
	if err != nil {
		return nil, err
	}
	return child.ECPrivKey()
}

func (k *Keychain) child(index uint32) (*hdkeychain.ExtendedKey, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("%s index %d out of range", k.kind, index)
	}
	child, err := k.branch.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("%s/%d derive: %w", k.kind, index, err)
	}
	return child, nil
}

// parseDescriptor accepts wpkh(KEY/a'/b/.../*) with an optional #checksum.
func parseDescriptor(descriptor string) (string, []uint32, error) {
	desc := strings.TrimSpace(descriptor)
	if i := strings.IndexByte(desc, '#'); i >= 0 {
		desc = desc[:i]
	}
	if !strings.HasPrefix(desc, "wpkh(") || !strings.HasSuffix(desc, ")") {
		return "", nil, fmt.Errorf("only wpkh() descriptors are supported: %q", descriptor)
	}
	inner := desc[len("wpkh(") : len(desc)-1]
	if strings.HasPrefix(inner, "[") {
		return "", nil, fmt.Errorf("key origin info is not supported")
	}

	parts := strings.Split(inner, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "*" {
		return "", nil, fmt.Errorf("descriptor must end with /*")
	}

	path := make([]uint32, 0, len(parts)-2)
	for _, p := range parts[1 : len(parts)-1] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		p = strings.TrimRight(p, "'h")
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil || n >= uint64(hdkeychain.HardenedKeyStart) {
			return "", nil, fmt.Errorf("invalid path element %q", p)
		}
		step := uint32(n)
		if hardened {
			step += hdkeychain.HardenedKeyStart
		}
		path = append(path, step)
	}
	return parts[0], path, nil
}

// DescriptorFingerprint identifies a descriptor pair without revealing it.
func DescriptorFingerprint(external, internal string) string {
	sum := chainhash.HashB([]byte(strings.TrimSpace(external) + "\n" + strings.TrimSpace(internal)))
	return hex.EncodeToString(sum[:8])
}
