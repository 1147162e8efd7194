package allowance

import "github.com/ethereum/go-ethereum/common"

var AllowanceKey = allowanceKey

// PurgeCache drops every cached allowance so reads go to the state store.
func (s *Store) PurgeCache() {
	s.cache.Purge()
}

func (s *Store) Cached(account common.Address) bool {
	return s.cache.Contains(account)
}
