package ircmd

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// DeviceZone is the fixed UTC+8 offset used for wall-clock times typed by users
// and for rendering device timestamps.
var DeviceZone = time.FixedZone("UTC+8", 8*60*60)

const absoluteLayout = "2006-01-02T15:04:05"

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ParseAbsoluteTime accepts a unix timestamp in digits or a
// YYYY-MM-DDTHH:MM:SS wall-clock time in UTC+8. Anything else yields 0.
func ParseAbsoluteTime(s string) int64 {
	if s == "" {
		return 0
	}
	if isDigits(s) {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0
		}
		return v
	}
	// ParseInLocation also takes a fractional-seconds suffix the layout
	// does not name.
	if len(s) != len(absoluteLayout) {
		return 0
	}
	t, err := time.ParseInLocation(absoluteLayout, s, DeviceZone)
	if err != nil {
		return 0
	}
	if u := t.Unix(); u > 0 {
		return u
	}
	return 0
}

// ParseDuration reads a ?d?h?m?s expression into seconds.
//
// Digits accumulate until a unit letter flushes them. Digits left at the end
// without a unit are dropped, so "5" is 0 and "1m30" is 60. Any rune outside
// [0-9dhms] invalidates the whole input.
func ParseDuration(s string) int64 {
	var total, num int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			if num > (math.MaxInt64-int64(c-'0'))/10 {
				return 0
			}
			num = num*10 + int64(c-'0')
			continue
		}
		var unit int64
		switch c {
		case 'd':
			unit = 86400
		case 'h':
			unit = 3600
		case 'm':
			unit = 60
		case 's':
			unit = 1
		default:
			return 0
		}
		if num > 0 {
			if num > math.MaxInt64/unit || total > math.MaxInt64-num*unit {
				return 0
			}
			total += num * unit
		}
		num = 0
	}
	return total
}

// ParseRepeatCount returns the value of a digit string, or 1.
func ParseRepeatCount(s string) int64 {
	if !isDigits(s) {
		return 1
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 1
	}
	return v
}

// ValidName reports whether s is a non-empty [a-zA-Z0-9_-] token.
func ValidName(s string) bool { return nameRe.MatchString(s) }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
