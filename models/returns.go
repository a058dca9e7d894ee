package models

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var numericPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// RoundReturns holds percentages derived from a round's prices
type RoundReturns struct {
	IPOPrice      decimal.NullDecimal
	ListingPrice  decimal.NullDecimal
	MarketPrice   decimal.NullDecimal
	ListingGain   decimal.NullDecimal
	CurrentReturn decimal.NullDecimal
}

// parsePrice pulls the first number out of a free-text price such as
// "₹1,234.50" or "Rs 98"
func parsePrice(text string) decimal.NullDecimal {
	cleaned := strings.ReplaceAll(text, ",", "")
	match := numericPattern.FindString(cleaned)
	if match == "" {
		return decimal.NullDecimal{}
	}
	value, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value)
}

func percentChange(from, to decimal.NullDecimal) decimal.NullDecimal {
	if !from.Valid || !to.Valid || from.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	change := to.Decimal.Sub(from.Decimal).Div(from.Decimal).Mul(decimal.NewFromInt(100)).Round(2)
	return decimal.NewNullDecimal(change)
}

// Returns computes listing gain and current return from the price fields.
// Values the server already reports in listing_gain / current_return win
// over the computed ones.
func (r IPORound) Returns() RoundReturns {
	returns := RoundReturns{
		IPOPrice:     parsePrice(r.IPOPrice),
		ListingPrice: parsePrice(r.ListingPrice),
		MarketPrice:  parsePrice(r.CurrentMarketPrice),
	}

	returns.ListingGain = parsePrice(r.ListingGain)
	if !returns.ListingGain.Valid {
		returns.ListingGain = percentChange(returns.IPOPrice, returns.ListingPrice)
	}

	returns.CurrentReturn = parsePrice(r.CurrentReturn)
	if !returns.CurrentReturn.Valid {
		returns.CurrentReturn = percentChange(returns.IPOPrice, returns.MarketPrice)
	}

	return returns
}

// FormatPercent renders a nullable percentage, "-" when unknown
func FormatPercent(value decimal.NullDecimal) string {
	if !value.Valid {
		return "-"
	}
	return value.Decimal.StringFixed(2) + "%"
}
