package zfs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/transdock/transdock/internal/result"
)

var sizeStringRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([BKMGTPEZY]?)$`)

// unitMultipliers maps a ZFS size suffix to its power-of-1024 multiplier.
var unitMultipliers = map[string]float64{
	"B": 1,
	"K": 1024,
	"M": 1024 * 1024,
	"G": 1024 * 1024 * 1024,
	"T": 1024 * 1024 * 1024 * 1024,
	"P": 1024 * 1024 * 1024 * 1024 * 1024,
	"E": 1024 * 1024 * 1024 * 1024 * 1024 * 1024,
	"Z": 1024 * 1024 * 1024 * 1024 * 1024 * 1024 * 1024,
	"Y": 1024 * 1024 * 1024 * 1024 * 1024 * 1024 * 1024 * 1024,
}

var unitOrder = []string{"B", "K", "M", "G", "T", "P", "E", "Z", "Y"}

// SizeValue is a nonnegative byte count with ZFS-suffix parse/format.
type SizeValue struct {
	bytes uint64
}

// FromBytes wraps a raw byte count.
func FromBytes(b uint64) SizeValue { return SizeValue{bytes: b} }

// ParseZFSString parses ZFS size strings: "-" , "0", "0B" all map to
// zero; otherwise a decimal magnitude plus one of B,K,M,G,T,P,E,Z,Y.
func ParseZFSString(s string) result.Result[SizeValue] {
	s = strings.TrimSpace(s)
	if s == "-" || s == "0" || s == "0B" || s == "" {
		return result.Ok(SizeValue{bytes: 0})
	}

	m := sizeStringRe.FindStringSubmatch(s)
	if m == nil {
		return result.Fail[SizeValue](result.Parse("SIZE_PARSE_ERROR", fmt.Sprintf("cannot parse zfs size string %q", s)))
	}

	magnitude, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return result.Fail[SizeValue](result.Parse("SIZE_PARSE_ERROR", fmt.Sprintf("cannot parse numeric part of %q", s)))
	}

	unit := m[2]
	if unit == "" {
		unit = "B"
	}
	multiplier, ok := unitMultipliers[unit]
	if !ok {
		return result.Fail[SizeValue](result.Parse("SIZE_PARSE_ERROR", fmt.Sprintf("unknown size suffix in %q", s)))
	}

	return result.Ok(SizeValue{bytes: uint64(math.Round(magnitude * multiplier))})
}

// Bytes returns the raw byte count.
func (s SizeValue) Bytes() uint64 { return s.bytes }

// ToHumanReadable formats the value with the largest whole unit,
// trimming a trailing ".0".
func (s SizeValue) ToHumanReadable() string {
	value := float64(s.bytes)
	unit := "B"
	for _, u := range unitOrder[1:] {
		if value < 1024 {
			break
		}
		value /= 1024
		unit = u
	}
	formatted := strconv.FormatFloat(value, 'f', 1, 64)
	formatted = strings.TrimSuffix(formatted, ".0")
	return formatted + unit
}

// ToZFSFormat renders the value the way `zfs` itself would (used when
// TransDock needs to pass a size back into a property value, e.g.
// quota).
func (s SizeValue) ToZFSFormat() string {
	if s.bytes == 0 {
		return "0"
	}
	return s.ToHumanReadable()
}

// Kilobytes, Megabytes, Gigabytes, Terabytes report the value converted
// to the named unit as a float64.
func (s SizeValue) Kilobytes() float64 { return float64(s.bytes) / unitMultipliers["K"] }
func (s SizeValue) Megabytes() float64 { return float64(s.bytes) / unitMultipliers["M"] }
func (s SizeValue) Gigabytes() float64 { return float64(s.bytes) / unitMultipliers["G"] }
func (s SizeValue) Terabytes() float64 { return float64(s.bytes) / unitMultipliers["T"] }
