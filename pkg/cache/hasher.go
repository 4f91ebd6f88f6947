package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const resultPrefix = "result"

// OptionsHash fingerprints the solver settings that influence a cached
// result. Algorithm order is significant.
func OptionsHash(alpha int, validate bool, algorithms []string) string {
	canonical := fmt.Sprintf("alpha=%d;validate=%t;algorithms=%s", alpha, validate, strings.Join(algorithms, ","))
	return ShortHash([]byte(canonical))
}

// BuildResultKey builds the key of the result of one instance under one set
// of solver settings.
func BuildResultKey(instanceHash, optionsHash string) string {
	return fmt.Sprintf("%s:%s:%s", resultPrefix, instanceHash, optionsHash)
}

// InstancePattern matches every cached result of one instance.
func InstancePattern(instanceHash string) string {
	return fmt.Sprintf("%s:%s:*", resultPrefix, instanceHash)
}

// ShortHash returns the first 8 bytes of the SHA-256 of data as hex.
func ShortHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
