package wallet

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/mezonai/walletd/config"
	"github.com/mezonai/walletd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	key, path, err := parseDescriptor(config.DefaultExternalDescriptor)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "tprv"))
	h := uint32(hdkeychain.HardenedKeyStart)
	assert.Equal(t, []uint32{84 + h, 1 + h, 0 + h, 0}, path)

	_, path, err = parseDescriptor("wpkh(tprvKEY/84h/1h/0h/1/*)#abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, []uint32{84 + h, 1 + h, 0 + h, 1}, path)
}

func TestParseDescriptorRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"pkh(tprvKEY/0/*)",
		"wpkh(tprvKEY/0/1)",
		"wpkh([d34db33f/84h]tprvKEY/0/*)",
		"wpkh(tprvKEY/x/*)",
		"wpkh(tprvKEY/2147483648/*)",
	} {
		_, _, err := parseDescriptor(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestKeychainAddresses(t *testing.T) {
	external, err := NewKeychain(types.KeychainExternal, config.DefaultExternalDescriptor, &chaincfg.SigNetParams)
	require.NoError(t, err)
	internal, err := NewKeychain(types.KeychainInternal, config.DefaultInternalDescriptor, &chaincfg.SigNetParams)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := uint32(0); i < 5; i++ {
		for _, kc := range []*Keychain{external, internal} {
			addr, script, err := kc.Address(i)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(addr.String(), "tb1q"), addr.String())
			assert.Len(t, script, 22)
			assert.False(t, seen[addr.String()], "duplicate address %s", addr)
			seen[addr.String()] = true
		}
	}

	again, _, err := external.Address(3)
	require.NoError(t, err)
	first, _, err := external.Address(3)
	require.NoError(t, err)
	assert.Equal(t, first.String(), again.String())

	_, err = external.PrivKey(hdkeychain.HardenedKeyStart)
	assert.Error(t, err)
}

func TestKeychainRejectsWrongNetwork(t *testing.T) {
	_, err := NewKeychain(types.KeychainExternal, config.DefaultExternalDescriptor, &chaincfg.MainNetParams)
	assert.Error(t, err)
}

func TestDescriptorFingerprint(t *testing.T) {
	a := DescriptorFingerprint(config.DefaultExternalDescriptor, config.DefaultInternalDescriptor)
	b := DescriptorFingerprint(config.DefaultInternalDescriptor, config.DefaultExternalDescriptor)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, DescriptorFingerprint(" "+config.DefaultExternalDescriptor, config.DefaultInternalDescriptor))
}

func TestParamsForNetwork(t *testing.T) {
	params, err := ParamsForNetwork("signet")
	require.NoError(t, err)
	assert.Equal(t, "signet", params.Name)
	_, err = ParamsForNetwork("litecoin")
	assert.Error(t, err)
}
