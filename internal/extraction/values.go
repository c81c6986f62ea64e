package extraction

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var (
	errUnparsableDate  = errors.New("unparsable date")
	errNotANumber      = errors.New("not a number")
	errUnknownCurrency = errors.New("not an ISO 4217 currency code")
)

// Numeric dates are read day-first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/1/2",
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2 January 2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"2-Jan-06",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

func parseDate(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, errUnparsableDate
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}, errUnparsableDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errUnparsableDate
}

func parseDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return parseDecimalString(n)
	default:
		return decimal.Zero, errNotANumber
	}
}

// parseDecimalString accepts amounts as printed, e.g. "AED 1,250.50", "Dhs. 99" or "1.250,50".
// Text around the number is dropped. When both separators appear the last one is the decimal
// point; a lone comma is decimal only when one or two digits follow it. Anything else that
// does not group digits in threes (or the Indian 2-2-3 form) is rejected.
func parseDecimalString(s string) (decimal.Decimal, error) {
	first := strings.IndexFunc(s, unicode.IsDigit)
	if first < 0 {
		return decimal.Zero, errNotANumber
	}
	last := strings.LastIndexFunc(s, unicode.IsDigit)
	// ".5" but not the dot closing an abbreviation such as "Rs.500"
	if first > 0 && s[first-1] == '.' {
		before, _ := utf8.DecodeLastRuneInString(s[:first-1])
		if first == 1 || !unicode.IsLetter(before) {
			first--
		}
	}
	negative := strings.Contains(s[:first], "-")
	core := s[first : last+1]

	intPart, frac, err := splitDecimal(core)
	if err != nil {
		return decimal.Zero, err
	}
	digits, err := ungroup(intPart)
	if err != nil {
		return decimal.Zero, err
	}
	if frac != "" {
		digits += "." + frac
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, errNotANumber
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// splitDecimal finds the decimal separator of core and returns the integer part (still
// grouped) and the fraction digits.
func splitDecimal(core string) (string, string, error) {
	dot, comma := strings.LastIndex(core, "."), strings.LastIndex(core, ",")
	sep := -1
	switch {
	case dot >= 0 && comma >= 0:
		sep = max(dot, comma)
		if strings.Count(core, core[sep:sep+1]) != 1 {
			return "", "", errNotANumber
		}
	case comma >= 0:
		if strings.Count(core, ",") == 1 {
			switch len(core) - comma - 1 {
			case 1, 2:
				sep = comma
			case 3:
			default:
				return "", "", errNotANumber
			}
		}
	case dot >= 0:
		if strings.Count(core, ".") == 1 {
			sep = dot
		}
	}
	if sep < 0 {
		return core, "", nil
	}
	frac := core[sep+1:]
	if frac == "" || strings.IndexFunc(frac, notDigit) >= 0 {
		return "", "", errNotANumber
	}
	if sep == 0 {
		return "0", frac, nil
	}
	return core[:sep], frac, nil
}

// ungroup removes thousands separators, checking the groups they delimit.
func ungroup(s string) (string, error) {
	var groups []string
	var cur strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			cur.WriteRune(r)
		case isGroupSeparator(r):
			if cur.Len() == 0 {
				return "", errNotANumber
			}
			groups = append(groups, cur.String())
			cur.Reset()
		default:
			return "", errNotANumber
		}
	}
	if cur.Len() == 0 {
		return "", errNotANumber
	}
	groups = append(groups, cur.String())
	if len(groups) == 1 {
		return groups[0], nil
	}
	if len(groups[0]) > 3 || len(groups[len(groups)-1]) != 3 {
		return "", errNotANumber
	}
	thousands, lakhs := true, len(groups[0]) <= 2
	for _, g := range groups[1 : len(groups)-1] {
		thousands = thousands && len(g) == 3
		lakhs = lakhs && len(g) == 2
	}
	if !thousands && !lakhs {
		return "", errNotANumber
	}
	return strings.Join(groups, ""), nil
}

func notDigit(r rune) bool { return !unicode.IsDigit(r) }

func isGroupSeparator(r rune) bool {
	switch r {
	case ',', '.', ' ', '\'', '\u00a0', '\u202f':
		return true
	}
	return false
}

var currencySymbols = []struct {
	token string
	code  string
}{
	{"د.إ", "AED"},
	{"Dhs", "AED"},
	{"DHS", "AED"},
	{"﷼", "SAR"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"₹", "INR"},
	{"¥", "JPY"},
	{"US$", "USD"},
	{"$", "USD"},
}

// Only codes that show up on trade paperwork are inferred from free text. Short
// uppercase words like ALL or TOP are valid ISO codes too.
var inferableCodes = map[string]bool{
	"AED": true, "USD": true, "EUR": true, "GBP": true, "SAR": true, "QAR": true, "OMR": true,
	"KWD": true, "BHD": true, "INR": true, "CNY": true, "JPY": true, "PKR": true, "EGP": true,
}

var wordPattern = regexp.MustCompile(`[A-Za-z]+`)

// normalizeCurrency validates an explicit currency field.
func normalizeCurrency(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errUnknownCurrency
	}
	s = strings.TrimSpace(s)
	for _, sym := range currencySymbols {
		if s == sym.token {
			return sym.code, nil
		}
	}
	unit, err := currency.ParseISO(strings.ToUpper(s))
	if err != nil {
		return "", errUnknownCurrency
	}
	return unit.String(), nil
}

// inferCurrency returns the earliest currency marker found in text.
func inferCurrency(text string) (string, bool) {
	best, bestPos := "", -1
	consider := func(code string, pos int) {
		if pos >= 0 && (bestPos < 0 || pos < bestPos) {
			best, bestPos = code, pos
		}
	}
	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		if word := text[loc[0]:loc[1]]; inferableCodes[word] {
			consider(word, loc[0])
			break
		}
	}
	for _, sym := range currencySymbols {
		consider(sym.code, strings.Index(text, sym.token))
	}
	return best, bestPos >= 0
}

// collectText gathers every string value of raw for currency inference. Keys are visited in
// a fixed order so that the earliest marker wins the same way on every call: currency fields,
// then amounts, then items, then everything else alphabetically.
func collectText(raw any, sb *strings.Builder) {
	switch v := raw.(type) {
	case string:
		sb.WriteString(v)
		sb.WriteByte('\n')
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(a, b string) int {
			if c := cmp.Compare(textRank(a), textRank(b)); c != 0 {
				return c
			}
			return strings.Compare(a, b)
		})
		for _, k := range keys {
			collectText(v[k], sb)
		}
	case []any:
		for _, item := range v {
			collectText(item, sb)
		}
	}
}

func textRank(key string) int {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "currency"):
		return 0
	case strings.Contains(k, "total"), strings.Contains(k, "amount"), strings.Contains(k, "price"):
		return 1
	case k == "items", k == "lineitems", k == "products", k == "materials":
		return 2
	default:
		return 3
	}
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
