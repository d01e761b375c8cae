package random

import (
	crand "crypto/rand"
	"math/big"
)

// upper skips 0/O and 1/I so codes can be read back over the phone.
const upper = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Code returns an upper case code suitable for invoice numbers.
func Code(length int) (string, error) {
	return fromCharset(upper, length)
}

func fromCharset(set string, length int) (string, error) {
	b := make([]byte, length)
	l := big.NewInt(int64(len(set)))
	for i := range b {
		num, err := crand.Int(crand.Reader, l)
		if err != nil {
			return "", err
		}
		b[i] = set[num.Int64()]
	}
	return string(b), nil
}
