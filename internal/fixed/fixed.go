// Package fixed parses and renders temperatures as integers scaled by ten.
//
// data:
//
//	27.5  -> 275
//	-3.8  -> -38
//	9.6   -> 96
package fixed

import (
	"errors"
	"strconv"
)

// ErrInvalidNumber is returned for input that does not match -?D{1,2}.D.
var ErrInvalidNumber = errors.New("invalid number")

// Temp is a temperature in tenths of a degree.
type Temp int32

// Parse converts a byte slice of the form -?D{1,2}.D into tenths. It never
// reads outside of b and rejects every other width.
func Parse(b []byte) (Temp, error) {
	neg := false
	if len(b) > 0 && b[0] == '-' {
		neg = true
		b = b[1:]
	}
	var v int32
	switch len(b) {
	case 3: // d.d
		if b[1] != '.' || !isDigit(b[0]) || !isDigit(b[2]) {
			return 0, ErrInvalidNumber
		}
		v = int32(b[0]-'0')*10 + int32(b[2]-'0')
	case 4: // dd.d
		if b[2] != '.' || !isDigit(b[0]) || !isDigit(b[1]) || !isDigit(b[3]) {
			return 0, ErrInvalidNumber
		}
		v = int32(b[0]-'0')*100 + int32(b[1]-'0')*10 + int32(b[3]-'0')
	default:
		return 0, ErrInvalidNumber
	}
	if neg {
		v = -v
	}
	return Temp(v), nil
}

func isDigit(c byte) bool {
	return c-'0' < 10
}

// Mean returns sum/count in tenths, rounded half up (toward positive
// infinity). count must be positive.
func Mean(sum int64, count uint64) int64 {
	n := int64(count)
	return floorDiv(2*sum+n, 2*n)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// AppendTenths appends v/10 with exactly one fractional digit. Zero is
// rendered as 0.0, never -0.0.
func AppendTenths(dst []byte, v int64) []byte {
	if v < 0 {
		dst = append(dst, '-')
		v = -v
	}
	dst = strconv.AppendInt(dst, v/10, 10)
	return append(dst, '.', byte('0'+v%10))
}

// String renders t with one fractional digit.
func (t Temp) String() string {
	return string(AppendTenths(make([]byte, 0, 8), int64(t)))
}
