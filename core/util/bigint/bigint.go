package bigint

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
)

// BigInt wraps big.Int to encode it as a quoted decimal string in JSON.
type BigInt struct {
	*big.Int
}

func (i *BigInt) MarshalJSON() ([]byte, error) {
	if i.Int == nil {
		return []byte("null"), nil
	}

	return []byte(strconv.Quote(i.String())), nil
}

// UnmarshalJSON accepts both quoted and bare decimal numbers.
func (i *BigInt) UnmarshalJSON(b []byte) error {
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}

	r, ok := new(big.Int).SetString(string(num), 10)
	if !ok {
		return fmt.Errorf("%q is not a valid integer", num)
	}

	i.Int = r
	return nil
}

// Wrap wraps big.Int pointer into BigInt struct.
func Wrap(i *big.Int) *BigInt {
	return &BigInt{Int: i}
}
