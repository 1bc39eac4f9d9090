package vfs

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// Separator is the canonical path separator inside a container.
const Separator = `\`

// Identify returns the node id for a normalized container path.
func Identify(normalized string) NodeID {
	h := fnv.New32a()
	h.Write([]byte(normalized))
	return NodeID(h.Sum32())
}

// RootID is the id of the root directory.
var RootID = Identify(RootName)

// normalizePath builds the hashed form of a path: lower case, backslash separated, leading backslash.
func normalizePath(components []string) string {
	return strings.ToLower(Separator + strings.Join(components, Separator))
}

// splitPath breaks a container path into components. Both separators are accepted.
func splitPath(p string) (absolute bool, parts []string) {
	p = strings.TrimSpace(p)
	absolute = strings.HasPrefix(p, `\`) || strings.HasPrefix(p, "/")
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '\\' || r == '/' }) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return absolute, parts
}

// validateName checks a single path component for use as a node name.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return newError(ErrInvalidName, "validateName", name, "reserved or empty name")
	case len(name) > NameSize:
		return newError(ErrInvalidName, "validateName", name, "name longer than 32 bytes")
	case strings.ContainsAny(name, `\/`):
		return newError(ErrInvalidName, "validateName", name, "name contains a separator")
	case strings.TrimSpace(name) != name:
		return newError(ErrInvalidName, "validateName", name, "leading or trailing spaces")
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return newError(ErrInvalidName, "validateName", name, "name contains a control character")
	}
	return nil
}
