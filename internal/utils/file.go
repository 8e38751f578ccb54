package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// FileHash calculates the SHA-256 hash of a file and returns it as a hex string.
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// BytesHash calculates the SHA-256 hash of a byte slice as a hex string.
func BytesHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
