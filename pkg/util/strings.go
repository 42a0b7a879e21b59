package util

import (
    "strconv"
    "strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
    if s == "" {
        return def
    }
    v, err := strconv.Atoi(s)
    if err != nil {
        return def
    }
    return v
}

// ParseSymbols splits a comma or space separated list into upper-case tickers,
// dropping blanks and duplicates while keeping first-seen order.
func ParseSymbols(s string) []string {
    fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
    out := make([]string, 0, len(fields))
    seen := make(map[string]struct{}, len(fields))
    for _, f := range fields {
        sym := strings.ToUpper(strings.TrimSpace(f))
        if sym == "" {
            continue
        }
        if _, ok := seen[sym]; ok {
            continue
        }
        seen[sym] = struct{}{}
        out = append(out, sym)
    }
    return out
}

// NormalizeSymbols applies ParseSymbols semantics to an already split list.
func NormalizeSymbols(in []string) []string {
    return ParseSymbols(strings.Join(in, ","))
}
