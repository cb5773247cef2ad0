/*
Package randx provides functions for generating cryptographically secure random
numbers and unique identifiers.

It is used for message IDs and for the random draws that drive the presence
churn simulator.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// MessageID generates a UUID v4 string to serve as a unique message identifier.
func MessageID() string {
	return uuid.New().String()
}

// IntN returns a uniform random int in [0, n) using crypto/rand.
func IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("randx: IntN called with non-positive bound %d", n)
	}

	num, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %v", err)
	}

	return int(num.Int64()), nil
}

// Float64 returns a uniform random float64 in [0, 1).
func Float64() (float64, error) {
	const precision = 1 << 53

	num, err := rand.Int(rand.Reader, big.NewInt(precision))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %v", err)
	}

	return float64(num.Int64()) / precision, nil
}

// Pick returns a uniformly chosen element of items.
func Pick(items []string) (string, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("randx: Pick called with empty slice")
	}

	i, err := IntN(len(items))
	if err != nil {
		return "", err
	}

	return items[i], nil
}
