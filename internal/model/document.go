package model

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sort"
	"strings"
)

// fingerprintPrefix tags the digest algorithm so fingerprints stay
// comparable if the algorithm ever changes.
const fingerprintPrefix = "sha256:"

// Document is an uploaded file held in memory.
type Document struct {
	Name string
	Data []byte
}

// Ext returns the lowercased file extension including the dot.
func (d Document) Ext() string {
	return strings.ToLower(filepath.Ext(d.Name))
}

// BaseName returns the file name without directories.
func (d Document) BaseName() string {
	return filepath.Base(d.Name)
}

// Digest returns the hex SHA-256 of the document content.
func (d Document) Digest() string {
	sum := sha256.Sum256(d.Data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint derives the cache key for a document set. It depends only on
// document bytes: names, upload order and timestamps do not affect it.
// A single document hashes to its own content digest; a set hashes the
// sorted per-document digests.
func Fingerprint(docs ...Document) string {
	if len(docs) == 0 {
		return ""
	}
	if len(docs) == 1 {
		return fingerprintPrefix + docs[0].Digest()
	}

	digests := make([]string, len(docs))
	for i, d := range docs {
		digests[i] = d.Digest()
	}
	sort.Strings(digests)

	sum := sha256.Sum256([]byte(strings.Join(digests, "\n")))
	return fingerprintPrefix + hex.EncodeToString(sum[:])
}

// DocumentNames joins base names for display, in upload order.
func DocumentNames(docs []Document) string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.BaseName()
	}
	return strings.Join(names, ", ")
}
