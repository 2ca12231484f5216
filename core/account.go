package core

import (
	"fmt"
	"math/big"
	"sync"
)

// Account is the tuple (address, nonce, pub_key_hash) per spec §3.2. Its
// balances live in a per-account balance subtree, not inline, so that
// updating one token's balance doesn't require rehashing every other token.
type Account struct {
	Address    Address
	Nonce      Nonce
	PubKeyHash PubKeyHash
}

func emptyAccountLeaf(hasher Hasher, emptyBalancesRoot Fr) Fr {
	return hasher.Hash(FrFromUint64(0), FrFromBytes(make([]byte, 20)), FrFromBytes(make([]byte, 20)), emptyBalancesRoot)
}

func accountLeafHash(hasher Hasher, acc *Account, balancesRoot Fr) Fr {
	return hasher.Hash(
		FrFromUint64(uint64(acc.Nonce)),
		FrFromBytes(acc.PubKeyHash[:]),
		FrFromBytes(acc.Address[:]),
		balancesRoot,
	)
}

// AccountUpdateKind tags the variant of an AccountUpdate, per spec §4.1's
// apply_update contract.
type AccountUpdateKind uint8

const (
	UpdateCreate AccountUpdateKind = iota
	UpdateDelete
	UpdateBalance
	UpdateChangePubKeyHash
)

// AccountUpdate is one entry of the ordered vector passed to ApplyUpdates.
// Only the fields relevant to Kind are read.
type AccountUpdate struct {
	Kind       AccountUpdateKind
	AccountId  AccountId
	Address    Address
	Token      TokenId
	OldBalance *big.Int
	NewBalance *big.Int
	OldNonce   Nonce
	NewNonce   Nonce
	OldPubKey  PubKeyHash
	NewPubKey  PubKeyHash
}

// AccountTree owns the canonical account/balance state. Per spec §3.4 it is
// exclusively mutated by the state keeper's single writer goroutine; all
// other access goes through Snapshot.
type AccountTree struct {
	mu        sync.RWMutex
	hasher    Hasher
	tree      *sparseTree // over AccountId, depth AccountTreeDepth
	accounts  map[AccountId]*Account
	byAddress map[Address]AccountId
	balances  map[AccountId]*sparseTree // over TokenId, depth BalanceTreeDepth, lazily created
	mintedNFT uint64                    // total NFTs ever minted, derived from the storage account's counter balance
}

// NewAccountTree constructs an empty tree (genesis state) using the default
// MiMC hasher over bn254.
func NewAccountTree() *AccountTree {
	return NewAccountTreeWithHasher(DefaultHasher)
}

// NewAccountTreeWithHasher allows substituting the Hasher (and thereby the
// Fr field / hash arity), per spec §9's requirement that these be
// configuration rather than hardcoded constants.
func NewAccountTreeWithHasher(hasher Hasher) *AccountTree {
	emptyBalanceLeaf := FrFromUint64(0)
	emptyBalancesRoot := computeEmptyHashes(BalanceTreeDepth, emptyBalanceLeaf, hasher)[BalanceTreeDepth]
	accLeaf := emptyAccountLeaf(hasher, emptyBalancesRoot)
	t := &AccountTree{
		hasher:    hasher,
		tree:      newSparseTree(AccountTreeDepth, accLeaf, hasher),
		accounts:  make(map[AccountId]*Account),
		byAddress: make(map[Address]AccountId),
		balances:  make(map[AccountId]*sparseTree),
	}
	return t
}

func (t *AccountTree) newBalanceTree() *sparseTree {
	return newSparseTree(BalanceTreeDepth, FrFromUint64(0), t.hasher)
}

// GetAccount returns a copy of the account record, if any.
func (t *AccountTree) GetAccount(id AccountId) (Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	acc, ok := t.accounts[id]
	if !ok {
		return Account{}, false
	}
	return *acc, true
}

// GetAccountByAddress resolves an address to its account id and record.
func (t *AccountTree) GetAccountByAddress(addr Address) (AccountId, Account, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byAddress[addr]
	if !ok {
		return 0, Account{}, false
	}
	return id, *t.accounts[id], true
}

// InsertAccount creates a fresh account slot outside of a batch (used only
// for genesis / data-restore bootstrap, where there is no prior root to
// roll back to on failure).
func (t *AccountTree) InsertAccount(id AccountId, acc Account) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.accounts[id]; exists {
		return fmt.Errorf("insert account %d: %w", id, ErrAddressAlreadyTaken)
	}
	if !acc.PubKeyHash.IsZero() {
		if existing, ok := t.byAddress[acc.Address]; ok && existing != id {
			return fmt.Errorf("insert account %d: %w", id, ErrAddressAlreadyTaken)
		}
	}
	stored := acc
	t.accounts[id] = &stored
	if !acc.Address.IsZero() {
		t.byAddress[acc.Address] = id
	}
	bt := t.newBalanceTree()
	t.balances[id] = bt
	t.tree.setLeaf(uint64(id), accountLeafHash(t.hasher, &stored, bt.root()))
	return nil
}

// BalanceOf returns the current balance for (id, token), or zero if the
// account or token has never been touched.
func (t *AccountTree) BalanceOf(id AccountId, token TokenId) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bt, ok := t.balances[id]
	if !ok {
		return big.NewInt(0)
	}
	leaf := bt.nodeAt(0, uint64(token))
	return frToBigInt(leaf)
}

func frToBigInt(f Fr) *big.Int {
	b := f.Bytes()
	return new(big.Int).SetBytes(b[:])
}

// RootHash returns hash(tree), the global state commitment.
func (t *AccountTree) RootHash() Fr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.root()
}

// AuditPath returns the sibling hashes from leaf to root for both tree
// levels, used as prover witness material.
func (t *AccountTree) AuditPath(id AccountId, token TokenId) (accountPath []Fr, balancePath []Fr) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	accountPath = t.tree.auditPath(uint64(id))
	bt, ok := t.balances[id]
	if !ok {
		bt = t.newBalanceTree()
	}
	balancePath = bt.auditPath(uint64(token))
	return
}

// ApplyUpdates applies an ordered vector of updates atomically: any
// precondition violation aborts the entire batch and the tree is left
// exactly as it was (per spec §4.1). Account-level overlays are staged per
// touched account and only merged into the committed balance trees (and the
// top-level account tree) once every update in the batch has validated.
func (t *AccountTree) ApplyUpdates(updates []AccountUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	accountOverlay := t.tree.beginBatch()
	balanceOverlays := make(map[AccountId]*treeOverlay)
	stagedAccounts := make(map[AccountId]*Account)
	stagedAddrAdds := make(map[Address]AccountId)
	newMinted := t.mintedNFT

	getAccount := func(id AccountId) (*Account, bool) {
		if a, ok := stagedAccounts[id]; ok {
			return a, true
		}
		a, ok := t.accounts[id]
		return a, ok
	}
	balanceOverlayFor := func(id AccountId) *treeOverlay {
		if ov, ok := balanceOverlays[id]; ok {
			return ov
		}
		bt, ok := t.balances[id]
		if !ok {
			bt = t.newBalanceTree()
			t.balances[id] = bt
		}
		ov := bt.beginBatch()
		balanceOverlays[id] = ov
		return ov
	}
	commitAccountLeaf := func(id AccountId, acc *Account) {
		bRoot := balanceOverlayFor(id).root()
		accountOverlay.setLeaf(uint64(id), accountLeafHash(t.hasher, acc, bRoot))
	}

	for _, u := range updates {
		switch u.Kind {
		case UpdateCreate:
			if _, exists := getAccount(u.AccountId); exists {
				return fmt.Errorf("apply update: create %d: %w", u.AccountId, ErrAddressAlreadyTaken)
			}
			acc := &Account{Address: u.Address}
			stagedAccounts[u.AccountId] = acc
			stagedAddrAdds[u.Address] = u.AccountId
			balanceOverlayFor(u.AccountId)
			commitAccountLeaf(u.AccountId, acc)

		case UpdateDelete:
			acc, exists := getAccount(u.AccountId)
			if !exists {
				return fmt.Errorf("apply update: delete %d: %w", u.AccountId, ErrUnknownAccount)
			}
			cleared := *acc
			cleared.PubKeyHash = PubKeyHash{}
			stagedAccounts[u.AccountId] = &cleared
			commitAccountLeaf(u.AccountId, &cleared)

		case UpdateBalance:
			acc, exists := getAccount(u.AccountId)
			if !exists {
				return fmt.Errorf("apply update: balance %d: %w", u.AccountId, ErrUnknownAccount)
			}
			if !fitsInBalance(u.NewBalance) {
				return fmt.Errorf("apply update: balance %d token %d: %w", u.AccountId, u.Token, ErrBalanceOverflow)
			}
			if u.NewBalance.Sign() < 0 {
				return fmt.Errorf("apply update: balance %d token %d: %w", u.AccountId, u.Token, ErrBalanceUnderflow)
			}
			if u.Token >= MinNFTTokenId && u.Token != NFTTokenId && u.NewBalance.Cmp(big.NewInt(1)) > 0 {
				return fmt.Errorf("apply update: %w", ErrNFTBalanceInvariant)
			}
			if u.NewNonce < u.OldNonce {
				return fmt.Errorf("apply update: balance %d: %w", u.AccountId, ErrNonceMismatch)
			}
			bov := balanceOverlayFor(u.AccountId)
			bov.setLeaf(uint64(u.Token), FrFromBigInt(u.NewBalance))
			updated := *acc
			updated.Nonce = u.NewNonce
			stagedAccounts[u.AccountId] = &updated
			commitAccountLeaf(u.AccountId, &updated)
			if u.AccountId == NFTStorageAccountId && u.Token == NFTTokenId {
				newMinted = u.NewBalance.Uint64() - uint64(MinNFTTokenId)
			}

		case UpdateChangePubKeyHash:
			acc, exists := getAccount(u.AccountId)
			if !exists {
				return fmt.Errorf("apply update: change pubkey %d: %w", u.AccountId, ErrUnknownAccount)
			}
			updated := *acc
			updated.PubKeyHash = u.NewPubKey
			updated.Nonce = u.NewNonce
			stagedAccounts[u.AccountId] = &updated
			commitAccountLeaf(u.AccountId, &updated)

		default:
			return fmt.Errorf("apply update: unknown kind %d", u.Kind)
		}
	}

	// All preconditions validated: commit every overlay and staged map.
	accountOverlay.commit()
	for _, ov := range balanceOverlays {
		ov.commit()
	}
	for id, acc := range stagedAccounts {
		t.accounts[id] = acc
	}
	for addr, id := range stagedAddrAdds {
		t.byAddress[addr] = id
	}
	t.mintedNFT = newMinted
	return nil
}

// TreeSnapshot is an immutable read view for concurrent API readers. It
// holds a reference to the committed maps at the moment of the snapshot;
// because ApplyUpdates never mutates a map entry in place (always replacing
// the pointer), concurrent reads of already-published entries are safe.
type TreeSnapshot struct {
	root      Fr
	accounts  map[AccountId]*Account
	byAddress map[Address]AccountId
}

// Snapshot yields a read-only view of the tree's current committed state.
func (t *AccountTree) Snapshot() *TreeSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	accCopy := make(map[AccountId]*Account, len(t.accounts))
	for k, v := range t.accounts {
		accCopy[k] = v
	}
	addrCopy := make(map[Address]AccountId, len(t.byAddress))
	for k, v := range t.byAddress {
		addrCopy[k] = v
	}
	return &TreeSnapshot{root: t.tree.root(), accounts: accCopy, byAddress: addrCopy}
}

func (s *TreeSnapshot) RootHash() Fr { return s.root }

func (s *TreeSnapshot) GetAccount(id AccountId) (Account, bool) {
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, false
	}
	return *a, true
}
