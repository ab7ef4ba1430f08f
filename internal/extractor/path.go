// Package extractor implements spec.md §4.3: path-addressed traversal
// over a valtree.Val, typed accessors, and the domain snapshot built
// from a parsed save file's meta and gamestate trees.
package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/standardbeagle/clausewitz/internal/ingesterr"
	"github.com/standardbeagle/clausewitz/internal/valtree"
)

// Sentinel causes distinguish "the key legitimately isn't there" (the
// extractor silently skips a country missing standard_economy_module)
// from a genuine shape mismatch (which always propagates).
var (
	ErrNotFound         = errors.New("path: key not found")
	ErrIndexOutOfBounds = errors.New("path: index out of bounds")
	ErrExpectedDict     = errors.New("path: expected dict at this position")
	ErrExpectedArray    = errors.New("path: expected array at this position")
)

// Component is one step of a Path: either a dict key or an array
// index, never both.
type Component struct {
	Key     string
	Index   int
	IsIndex bool
}

// K builds a dict-key path component.
func K(key string) Component { return Component{Key: key} }

// I builds an array-index path component.
func I(index int) Component { return Component{Index: index, IsIndex: true} }

// Path is a sequence of path components, e.g. K("meta"), K("name").
type Path []Component

func (p Path) String() string {
	var sb strings.Builder
	for i, c := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		if c.IsIndex {
			fmt.Fprintf(&sb, "[%d]", c.Index)
		} else {
			sb.WriteString(c.Key)
		}
	}
	return sb.String()
}

// pathFailure wraps an ingesterr.PathError (for its Error() string and
// diagnostic fields) while exposing a fixed sentinel through Unwrap so
// callers can tell failure categories apart with errors.Is.
type pathFailure struct {
	*ingesterr.PathError
	sentinel error
}

func (f *pathFailure) Unwrap() error { return f.sentinel }

func newPathFailure(sentinel error, prefix Path, reason string) error {
	return &pathFailure{PathError: ingesterr.NewPathError(prefix.String(), reason), sentinel: sentinel}
}

// dictEntries treats a Val as dict-shaped if it's a genuine Dict or
// NumberedDict, or an empty Set — the grammar's disambiguator can
// never produce an empty Dict (an empty `{}` body is always read as
// Set, since the lookahead never reaches a '=' sentinel), so an empty
// Set is the only way a save file expresses "no entries here" for
// what is conceptually a dict position.
func dictEntries(v valtree.Val) ([]valtree.Entry, bool) {
	switch v.Kind {
	case valtree.KindDict, valtree.KindNumberedDict:
		return v.Dict, true
	case valtree.KindSet:
		if len(v.Elems) == 0 {
			return nil, true
		}
		return nil, false
	default:
		return nil, false
	}
}

func lookupEntry(entries []valtree.Entry, key string) (valtree.Val, bool) {
	for _, e := range entries {
		if string(e.Key) == key {
			return e.Value, true
		}
	}
	return valtree.Val{}, false
}

// Get walks root following path, per spec.md §4.3's traversal rules: a
// dict-key component requires the current node to be a Dict (or
// NumberedDict, whose body is the same shape, or an empty Set, see
// dictEntries) and finds the first matching entry; an index component
// requires an Array and checks bounds.
func Get(root valtree.Val, path Path) (valtree.Val, error) {
	node := root
	for i, comp := range path {
		if comp.IsIndex {
			if node.Kind != valtree.KindArray {
				return valtree.Val{}, newPathFailure(ErrExpectedArray, path[:i+1], "expected array at "+path[:i].String())
			}
			if comp.Index < 0 || comp.Index >= len(node.Elems) {
				return valtree.Val{}, newPathFailure(ErrIndexOutOfBounds, path[:i+1], "index out of bounds")
			}
			node = node.Elems[comp.Index]
			continue
		}
		entries, ok := dictEntries(node)
		if !ok {
			return valtree.Val{}, newPathFailure(ErrExpectedDict, path[:i+1], "expected dict at "+path[:i].String())
		}
		val, found := lookupEntry(entries, comp.Key)
		if !found {
			return valtree.Val{}, newPathFailure(ErrNotFound, path[:i+1], fmt.Sprintf("key %q not found", comp.Key))
		}
		node = val
	}
	return node, nil
}

func typeErr(expected, found string) error {
	return ingesterr.NewTypeMismatchError("", expected, found)
}

// AsString accepts a StringLiteral or Identifier leaf.
func AsString(v valtree.Val) (string, error) {
	switch v.Kind {
	case valtree.KindStringLiteral, valtree.KindIdentifier:
		return string(v.Text), nil
	default:
		return "", typeErr("string", v.Kind.String())
	}
}

// AsInteger accepts only an Integer leaf.
func AsInteger(v valtree.Val) (int64, error) {
	if v.Kind != valtree.KindInteger {
		return 0, typeErr("integer", v.Kind.String())
	}
	return v.Integer, nil
}

// AsDecimal accepts only a Decimal leaf.
func AsDecimal(v valtree.Val) (float64, error) {
	if v.Kind != valtree.KindDecimal {
		return 0, typeErr("decimal", v.Kind.String())
	}
	return v.Decimal, nil
}

// AsNumber accepts either an Integer or a Decimal, widening an
// Integer to float64.
func AsNumber(v valtree.Val) (float64, error) {
	switch v.Kind {
	case valtree.KindInteger:
		return float64(v.Integer), nil
	case valtree.KindDecimal:
		return v.Decimal, nil
	default:
		return 0, typeErr("number", v.Kind.String())
	}
}

// AsArray accepts only an Array.
func AsArray(v valtree.Val) ([]valtree.Val, error) {
	if v.Kind != valtree.KindArray {
		return nil, typeErr("array", v.Kind.String())
	}
	return v.Elems, nil
}

// asArrayLike accepts an Array or a Set, both of which carry their
// members in v.Elems. Used where an empty collection (always a Set at
// the grammar level; disambiguation can never produce an empty Array)
// must be tolerated alongside the populated, genuinely-array case.
func asArrayLike(v valtree.Val) ([]valtree.Val, error) {
	switch v.Kind {
	case valtree.KindArray, valtree.KindSet:
		return v.Elems, nil
	default:
		return nil, typeErr("array", v.Kind.String())
	}
}

// AsDict accepts a Dict or NumberedDict and returns its entries; an
// empty Set is accepted as a dict with no entries.
func AsDict(v valtree.Val) ([]valtree.Entry, error) {
	entries, ok := dictEntries(v)
	if !ok {
		return nil, typeErr("dict", v.Kind.String())
	}
	return entries, nil
}

// stringSet accepts either a Set or an Array of string-like leaves,
// per spec.md §9's resolution of the required_dlcs Open Question: the
// format emits both shapes across minor versions and both are valid.
func stringSet(v valtree.Val) ([]string, error) {
	var elems []valtree.Val
	switch v.Kind {
	case valtree.KindSet, valtree.KindArray:
		elems = v.Elems
	default:
		return nil, typeErr("set or array", v.Kind.String())
	}
	result := make([]string, 0, len(elems))
	for _, e := range elems {
		s, err := AsString(e)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

func getString(root valtree.Val, path Path) (string, error) {
	v, err := Get(root, path)
	if err != nil {
		return "", err
	}
	return AsString(v)
}
