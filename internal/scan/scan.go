// Package scan implements the lexical layer of the Clausewitz reader:
// byte-range classification and maximal-run extraction over a
// read-only buffer, without allocating. It never looks past the
// bytes it is given and never backtracks; the grammar layer
// (internal/valtree) is the only caller.
package scan

// Class is a 256-entry membership table for one character class.
// Class[b] is true when byte b is a member.
type Class [256]bool

func buildClass(members func(b byte) bool) Class {
	var c Class
	for i := 0; i < 256; i++ {
		c[i] = members(byte(i))
	}
	return c
}

// Whitespace matches space, tab, CR, LF (spec.md §4.1).
var Whitespace = buildClass(func(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
})

// Digit matches ASCII '0'-'9'.
var Digit = buildClass(func(b byte) bool {
	return b >= '0' && b <= '9'
})

// identifierStart/identifierRest split first-byte and subsequent-byte
// membership: an identifier's first byte must not be a digit.
var identifierStart = buildClass(isAlphaOrUnderscore)
var identifierRest = buildClass(func(b byte) bool {
	return isAlphaOrUnderscore(b) || (b >= '0' && b <= '9')
})

func isAlphaOrUnderscore(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}

// StringLiteralContents matches any printable ASCII byte except the
// four structural bytes '"', '=', '{', '}', plus whitespace.
var StringLiteralContents = buildClass(func(b byte) bool {
	switch b {
	case '"', '=', '{', '}':
		return false
	}
	if b == ' ' || b == '\t' || b == '\r' || b == '\n' {
		return true
	}
	return b >= 0x21 && b < 0x7f
})

// Structural matches the three brace/equals bytes.
var Structural = buildClass(func(b byte) bool {
	return b == '{' || b == '}' || b == '='
})

const wordSize = 8

// TakeWhile returns the longest prefix of input all of whose bytes
// belong to class, and the remainder. Never fails; an empty prefix is
// legal. The scan proceeds a machine word (8 bytes) at a time when
// enough input remains, falling back to a byte loop for the tail —
// this is the "SIMD-style" fast path of spec.md §4.1, expressed
// portably (see DESIGN.md for why this repo doesn't use per-arch
// assembly intrinsics). Both paths are required to agree
// byte-for-byte; internal/scan's differential test checks that
// directly against ScalarTakeWhile.
func TakeWhile(class Class, input []byte) (consumed, remainder []byte) {
	n := len(input)
	i := 0
	for i+wordSize <= n {
		if !allMembers(class, input[i:i+wordSize]) {
			break
		}
		i += wordSize
	}
	for i < n && class[input[i]] {
		i++
	}
	return input[:i], input[i:]
}

// allMembers reports whether every byte of an 8-byte window belongs
// to class. It is the word-at-a-time analogue of the scalar loop:
// unrolled so the compiler keeps it branch-cheap, but it still
// inspects each byte, which is what keeps it provably equivalent to
// the scalar path rather than a true SIMD compare.
func allMembers(class Class, window []byte) bool {
	_ = window[7]
	return class[window[0]] && class[window[1]] && class[window[2]] && class[window[3]] &&
		class[window[4]] && class[window[5]] && class[window[6]] && class[window[7]]
}

// ScalarTakeWhile is the one-byte-at-a-time reference implementation.
// It exists purely so tests can assert it produces identical span
// boundaries to TakeWhile for arbitrary input (spec.md §8 property 1).
func ScalarTakeWhile(class Class, input []byte) (consumed, remainder []byte) {
	i := 0
	for i < len(input) && class[input[i]] {
		i++
	}
	return input[:i], input[i:]
}

// RequireSpace is TakeWhile(Whitespace, input) but fails (ok=false)
// when the prefix is empty.
func RequireSpace(input []byte) (consumed, remainder []byte, ok bool) {
	consumed, remainder = TakeWhile(Whitespace, input)
	return consumed, remainder, len(consumed) > 0
}

// DigitRun returns the longest leading run of ASCII digits.
func DigitRun(input []byte) (consumed, remainder []byte) {
	return TakeWhile(Digit, input)
}

// Identifier returns the longest leading identifier span: the first
// byte must be a letter or underscore, subsequent bytes letters,
// digits, or underscore. An empty prefix (first byte disqualified)
// is legal and returns ok=false.
func Identifier(input []byte) (consumed, remainder []byte, ok bool) {
	if len(input) == 0 || !identifierStart[input[0]] {
		return nil, input, false
	}
	i := 1
	for i < len(input) && identifierRest[input[i]] {
		i++
	}
	return input[:i], input[i:], true
}

// QuotedContents consumes up to (but not including) the next '"',
// never crossing a structural byte ('=', '{', '}') — those terminate
// the run because they are excluded from StringLiteralContents.
func QuotedContents(input []byte) (consumed, remainder []byte) {
	return TakeWhile(StringLiteralContents, input)
}

// PeekOne returns the first byte of input without consuming it.
// ok is false when input is empty.
func PeekOne(input []byte) (b byte, ok bool) {
	if len(input) == 0 {
		return 0, false
	}
	return input[0], true
}
