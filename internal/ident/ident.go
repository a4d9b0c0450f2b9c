// Package ident computes the deterministic identifiers and checksums the
// rest of the bridge keys every Redis row by. Every function here is pure:
// the same input always produces the same 40-hex-character output,
// regardless of process, host, or restart.
package ident

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
)

// HashString returns the 40-hex-character SHA-1 content hash of s.
func HashString(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashValue returns the canonical content hash of an arbitrary value tree.
// Ordered sequences hash as the concatenation of their element hashes;
// mappings sort their keys lexicographically first so that two maps built
// in different iteration orders still hash identically; everything else
// hashes via its canonical string form.
func HashValue(v interface{}) string {
	return HashString(canonicalize(v))
}

// canonicalize renders v into a string whose hash is stable across
// encounters of equivalent values, independent of map iteration order.
func canonicalize(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "\x00"
	case string:
		return HashString(val)
	case []string:
		elems := make([]string, len(val))
		for i, e := range val {
			elems[i] = HashString(e)
		}
		return concat(elems)
	case []interface{}:
		elems := make([]string, len(val))
		for i, e := range val {
			elems[i] = canonicalize(e)
		}
		return concat(elems)
	case map[string]string:
		return canonicalizeMap(val, func(s string) string { return HashString(s) })
	case map[string]interface{}:
		return canonicalizeMap(val, canonicalize)
	case bool:
		if val {
			return HashString("true")
		}
		return HashString("false")
	case int:
		return HashString(fmt.Sprintf("%d", val))
	case int64:
		return HashString(fmt.Sprintf("%d", val))
	case float64:
		return HashString(fmt.Sprintf("%g", val))
	default:
		return HashString(fmt.Sprintf("%v", val))
	}
}

func canonicalizeMap[V any](m map[string]V, hashValue func(V) string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		parts = append(parts, HashString(k), hashValue(m[k]))
	}
	return concat(parts)
}

func concat(hashes []string) string {
	total := 0
	for _, h := range hashes {
		total += len(h)
	}
	buf := make([]byte, 0, total)
	for _, h := range hashes {
		buf = append(buf, h...)
	}
	return string(buf)
}

// ObjectID is the stable identity of a monitoring object, derived from its
// fully-qualified name. Services use "host!service" as their full name so
// that two services on different hosts never collide.
func ObjectID(fullName string) string {
	return HashString(fullName)
}

// RowID is the shared-table row key for a value salted by the environment
// id, so that identical values across objects collapse to one row: two
// hosts with the same action_url both resolve to the same row id.
func RowID(envID, value string) string {
	return HashValue([]string{envID, value})
}

// EnvID derives the environment id from the configured environment name.
func EnvID(environmentName string) string {
	return HashString(environmentName)
}
