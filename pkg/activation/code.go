package activation

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// CodeDigits is the width of activation codes.
const CodeDigits = 6

// GenerateCode draws a uniform random code in [0, 10^digits) from r and
// returns it zero-padded to digits characters.
func GenerateCode(r io.Reader, digits int) (string, error) {
	if digits <= 0 {
		return "", fmt.Errorf("invalid code width %d", digits)
	}
	if r == nil {
		r = rand.Reader
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(r, max)
	if err != nil {
		return "", fmt.Errorf("generate activation code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
