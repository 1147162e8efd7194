package cmd

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redesblock/tierswap/core/roles"
	"github.com/redesblock/tierswap/core/tier"
)

// splitList flattens values that may themselves be comma separated lists,
// as set by environment variables and config files.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				out = append(out, f)
			}
		}
	}
	return out
}

func parseRatios(values []string) ([]uint64, error) {
	fields := splitList(values)
	ratios := make([]uint64, 0, len(fields))
	for _, f := range fields {
		r, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("swap ratio %q: %w", f, err)
		}
		ratios = append(ratios, r)
	}
	return ratios, nil
}

func parseEnabled(values []string) ([]bool, error) {
	fields := splitList(values)
	enabled := make([]bool, 0, len(fields))
	for _, f := range fields {
		b, err := strToBool(f)
		if err != nil {
			return nil, err
		}
		enabled = append(enabled, b)
	}
	return enabled, nil
}

// strToBool accepts y, yes, t, true, on and 1 as true and n, no, f, false,
// off and 0 as false, in any case.
func strToBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "y", "yes", "t", "true", "on", "1":
		return true, nil
	case "n", "no", "f", "false", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid truth value %q", s)
}

// scaleWholeTokens converts an integer amount of whole tokens to base units.
func scaleWholeTokens(whole string, decimals uint) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(whole), 10)
	if !ok {
		return nil, fmt.Errorf("invalid token amount %q", whole)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative token amount %q", whole)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return v.Mul(v, scale), nil
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", name, s)
	}
	return common.HexToAddress(s), nil
}

// deployment assembles the ledger deployment from the configuration.
func (c *command) deployment() (d roles.Deployment, err error) {
	owner := c.config.GetString(optionNameOwner)
	if owner == "" {
		return d, errors.New("owner address is required")
	}
	if d.Owner, err = parseAddress(optionNameOwner, owner); err != nil {
		return d, err
	}
	validator := c.config.GetString(optionNameValidator)
	if validator == "" {
		return d, errors.New("validator address is required")
	}
	if d.Validator, err = parseAddress(optionNameValidator, validator); err != nil {
		return d, err
	}

	ratios, err := parseRatios(c.config.GetStringSlice(optionNameSwapRatios))
	if err != nil {
		return d, err
	}
	enabled, err := parseEnabled(c.config.GetStringSlice(optionNameSwapEnabled))
	if err != nil {
		return d, err
	}
	if d.Tiers, err = tier.NewConfig(ratios, enabled); err != nil {
		return d, fmt.Errorf("swap tiers: %w", err)
	}

	decimals := c.config.GetUint(optionNameTokenDecimals)
	if d.MinPerTx, err = scaleWholeTokens(c.config.GetString(optionNameMinSwapAmount), decimals); err != nil {
		return d, fmt.Errorf("%s: %w", optionNameMinSwapAmount, err)
	}
	if d.MaxPerTx, err = scaleWholeTokens(c.config.GetString(optionNameMaxSwapAmount), decimals); err != nil {
		return d, fmt.Errorf("%s: %w", optionNameMaxSwapAmount, err)
	}
	return d, nil
}
