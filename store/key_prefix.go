package store

// Declare database key prefix for objects
const (
	PrefixWalletMeta = "wallet_meta:"
	WalletMetaKey    = PrefixWalletMeta + "wallet"

	PrefixKeychain = "keychain:"
	PrefixUTXO     = "utxo:"

	PrefixApp     = "app:"
	AppDataKey    = PrefixApp + "last_update"
	AppBalanceKey = PrefixApp + "last_balance"
)
