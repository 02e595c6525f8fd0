package types

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
)

const (
	// bytesPerGigabyte is the binary divisor diskutil sizes are converted with.
	bytesPerGigabyte = 1073741824

	// terabyteThreshold is the gigabyte count above which sizes are expressed in terabytes.
	terabyteThreshold = 1000
)

// Unit is the measurement unit a Size is presented in.
type Unit string

const (
	Gigabytes Unit = "GB"
	Terabytes Unit = "TB"
)

// Size is a raw byte count as reported by diskutil and hdiutil.
type Size uint64

// SizeFromGigabytes returns the Size holding exactly n binary gigabytes.
func SizeFromGigabytes(n uint64) Size {
	return Size(n * bytesPerGigabyte)
}

// Gigabytes returns the size in whole gigabytes, rounded to the nearest unit.
func (s Size) Gigabytes() float64 {
	return math.Round(float64(s) / bytesPerGigabyte)
}

// Human returns the size in gigabytes, re-expressed in terabytes when the gigabyte value exceeds 1000.
//
// The terabyte promotion divides by 1000 rather than 1024. Existing consumers of this value compare
// against the decimal figure so the mixed base is kept as is.
func (s Size) Human() (float64, Unit) {
	gb := s.Gigabytes()
	if gb > terabyteThreshold {
		return gb / terabyteThreshold, Terabytes
	}

	return gb, Gigabytes
}

func (s Size) String() string {
	value, unit := s.Human()
	return fmt.Sprintf("%g %s", value, unit)
}

// HashID derives the stable identifier used for entity equality from the given value. It is the hex encoded MD5
// digest of value.
func HashID(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
