package cmd

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"io/ioutil"
	"math/big"
	"strings"

	"github.com/redesblock/tierswap/core/accounting"
	"github.com/redesblock/tierswap/core/crypto"
	"github.com/redesblock/tierswap/core/keystore/file"
	"github.com/redesblock/tierswap/core/signature"
	"github.com/spf13/cobra"
)

const validatorKeyName = "validator"

func (c *command) initSignCmd() error {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign the allowance of an account with the validator key",
		Long: `Sign the allowance of an account with the validator key.

The printed signature lets the account make its first deposit with the
given tier amounts. Amounts are in token base units.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			key, err := c.validatorKey(cmd)
			if err != nil {
				return err
			}
			signer := crypto.NewDefaultSigner(key)

			account, err := parseAddress(optionNameAccount, c.config.GetString(optionNameAccount))
			if err != nil {
				return err
			}

			fields := splitList(c.config.GetStringSlice(optionNameAmounts))
			if len(fields) != accounting.TierCount {
				return fmt.Errorf("%s: expected %d values, got %d", optionNameAmounts, accounting.TierCount, len(fields))
			}
			var amounts accounting.Limits
			for i, f := range fields {
				v, ok := new(big.Int).SetString(f, 10)
				if !ok {
					return fmt.Errorf("%s: invalid amount %q", optionNameAmounts, f)
				}
				amounts[i] = v
			}

			sig, err := signature.Sign(signer, account, amounts)
			if err != nil {
				return err
			}

			validator, err := signer.EthereumAddress()
			if err != nil {
				return err
			}
			cmd.Printf("validator: %s\n", validator)
			cmd.Printf("signature: 0x%s\n", hex.EncodeToString(sig))
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	cmd.Flags().String(optionNameValidatorKey, "", "hex encoded validator private key")
	cmd.Flags().String(optionNameKeystoreDir, "", "directory of the encrypted validator key, used when no validator key is given")
	cmd.Flags().String(optionNamePassword, "", "password for decrypting the validator key")
	cmd.Flags().String(optionNamePasswordFile, "", "path to a file that contains the password for decrypting the validator key")
	cmd.Flags().String(optionNameAccount, "", "account the allowance is signed for")
	cmd.Flags().StringSlice(optionNameAmounts, nil, "comma separated tier amounts in base units")

	c.root.AddCommand(cmd)
	return nil
}

// validatorKey returns the hex validator key if one is configured, and the
// key from the keystore directory otherwise. A missing keystore key is
// created.
func (c *command) validatorKey(cmd *cobra.Command) (*ecdsa.PrivateKey, error) {
	if keyHex := c.config.GetString(optionNameValidatorKey); keyHex != "" {
		key, err := crypto.DecodeHexPrivateKey(keyHex)
		if err != nil {
			return nil, fmt.Errorf("validator key: %w", err)
		}
		return key, nil
	}

	dir := c.config.GetString(optionNameKeystoreDir)
	if dir == "" {
		return nil, errors.New("validator key or keystore directory is required")
	}

	password, err := c.password()
	if err != nil {
		return nil, err
	}

	key, created, err := file.New(dir).Key(validatorKeyName, password)
	if err != nil {
		return nil, fmt.Errorf("validator key: %w", err)
	}
	if created {
		cmd.PrintErrf("created new validator key in %s\n", dir)
	}
	return key, nil
}

func (c *command) password() (string, error) {
	if p := c.config.GetString(optionNamePassword); p != "" {
		return p, nil
	}
	if f := c.config.GetString(optionNamePasswordFile); f != "" {
		b, err := ioutil.ReadFile(f)
		if err != nil {
			return "", err
		}
		return strings.Trim(string(b), "\n"), nil
	}
	return "", errors.New("password is required")
}
