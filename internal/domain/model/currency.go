package model

import (
	"fmt"
	"strings"
)

// Currency is the closed set of payment variants a lot can be priced in.
// It is resolved once when the lot is created and never re-derived from the
// free-form label afterwards.
type Currency string

const (
	CurrencyNativeBSC   Currency = "NATIVE_BSC"
	CurrencyTokenBEP20  Currency = "TOKEN_BEP20"
	CurrencyTokenTRC20  Currency = "TOKEN_TRC20"
	CurrencyUnsupported Currency = "UNSUPPORTED"
)

func (c Currency) String() string {
	return string(c)
}

// IsToken reports whether the variant is denominated in a token contract.
func (c Currency) IsToken() bool {
	return c == CurrencyTokenBEP20 || c == CurrencyTokenTRC20
}

// Chain returns the chain family that settles payments in this currency.
// Unsupported currencies have no chain.
func (c Currency) Chain() (Chain, bool) {
	switch c {
	case CurrencyNativeBSC, CurrencyTokenBEP20:
		return ChainBSC, true
	case CurrencyTokenTRC20:
		return ChainTron, true
	default:
		return "", false
	}
}

// ParseCurrency parses a stored variant tag.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(s); c {
	case CurrencyNativeBSC, CurrencyTokenBEP20, CurrencyTokenTRC20, CurrencyUnsupported:
		return c, nil
	}
	return "", fmt.Errorf("unknown currency tag %q", s)
}

// ResolveCurrency maps a seller-supplied currency label and optional token
// contract onto a Currency variant.
//
//	BNB, BSC*, BEP*  without contract -> NATIVE_BSC
//	BSC*, BEP*       with contract    -> TOKEN_BEP20
//	TRC*             with contract    -> TOKEN_TRC20
//	anything else                     -> UNSUPPORTED
//
// A TRC label without a contract is rejected because TRON has no native
// lookup path. Unsupported labels must not carry a contract.
func ResolveCurrency(label, tokenContract string) (Currency, error) {
	upper := strings.ToUpper(strings.TrimSpace(label))
	hasContract := strings.TrimSpace(tokenContract) != ""

	switch {
	case upper == "":
		return "", fmt.Errorf("%w: currency is required", ErrInvalidLot)
	case upper == "BNB" || strings.HasPrefix(upper, "BSC") || strings.HasPrefix(upper, "BEP"):
		if hasContract {
			return CurrencyTokenBEP20, nil
		}
		return CurrencyNativeBSC, nil
	case strings.HasPrefix(upper, "TRC"):
		if !hasContract {
			return "", fmt.Errorf("%w: %s requires a token contract", ErrInvalidLot, upper)
		}
		return CurrencyTokenTRC20, nil
	default:
		if hasContract {
			return "", fmt.Errorf("%w: token contract given for unsupported currency %s", ErrInvalidLot, upper)
		}
		return CurrencyUnsupported, nil
	}
}
