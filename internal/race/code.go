package race

import (
	"fmt"

	gonanoid "github.com/jaevor/go-nanoid"
)

const (
	codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	codeLength   = 8
)

// NewCodeGenerator returns a generator of short lowercase room codes.
func NewCodeGenerator() (func() string, error) {
	gen, err := gonanoid.CustomASCII(codeAlphabet, codeLength)
	if err != nil {
		return nil, fmt.Errorf("room code generator: %w", err)
	}
	return gen, nil
}
