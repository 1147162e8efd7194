package node

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/crypto"
	"github.com/redesblock/tierswap/core/logging"
	"github.com/redesblock/tierswap/core/statestore/leveldb"
	"github.com/redesblock/tierswap/core/statestore/mock"
	"github.com/redesblock/tierswap/core/storage"
)

// InitStateStore will initialize the stateStore with the given path to the
// data directory. When given an empty directory path, the function will instead
// initialize an in-memory state store that will not be persisted.
func InitStateStore(log logging.Logger, dataDir string) (ret storage.StateStorer, err error) {
	if dataDir == "" {
		ret = mock.NewStateStore()
		log.Warning("using in-mem state store, no node state will be persisted")
		return ret, nil
	}
	return leveldb.NewStateStore(filepath.Join(dataDir, "statestore"), log)
}

const ledgerAddressKey = "ledger_address"

// CheckLedgerAddressWithStore checks the ledger address is the same as
// stored in the statestore.
func CheckLedgerAddressWithStore(address common.Address, storer storage.StateStorer) error {
	var stored common.Address
	err := storer.Get(ledgerAddressKey, &stored)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return storer.Put(ledgerAddressKey, address)
	}

	if stored != address {
		return fmt.Errorf("ledger address changed. was %s before but now is %s", stored, address)
	}
	return nil
}

// DeriveLedgerAddress returns the ledger address used when none is
// configured. It is the last 20 bytes of keccak256(owner || "tierswap").
func DeriveLedgerAddress(owner common.Address) (common.Address, error) {
	h, err := crypto.LegacyKeccak256(owner.Bytes(), []byte("tierswap"))
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(h[12:]), nil
}
