package core

// Genesis bootstraps a brand-new AccountTree the one way every caller
// needs: reserving NFTStorageAccountId so NewNFTCounter's precondition
// holds before any MintNFT is ever processed, live or replayed.

// Genesis inserts the reserved NFT storage account into a freshly
// constructed tree. It must run exactly once, before any operation touches
// the tree — both the state keeper's cold start and data restore's
// from-genesis replay call this first.
func Genesis(tree *AccountTree) error {
	return tree.InsertAccount(NFTStorageAccountId, Account{})
}
