// Package util provides content hashing and HTML sanitizing helpers.
package util

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// SanitizeHTML strips scripts, event handlers and other unsafe markup from
// rich-text content, keeping the formatting an editor produces.
func SanitizeHTML(input string) string {
	return sanitizer.Sanitize(input)
}
