// Package valtree implements the grammar layer of the Clausewitz
// reader: a recursive-descent parser over internal/scan's lexical
// primitives that produces a Val tree, resolving the Dict/Array/Set
// ambiguity of a bare `{ ... }` body with the bounded single-token
// lookahead described in spec.md §4.2.
package valtree

import (
	"bytes"
	"strconv"

	"github.com/standardbeagle/clausewitz/internal/ingesterr"
	"github.com/standardbeagle/clausewitz/internal/scan"
)

// Kind discriminates the nine shapes a Val can take.
type Kind int

const (
	KindInteger Kind = iota
	KindDecimal
	KindIdentifier
	KindStringLiteral
	KindDate
	KindDict
	KindNumberedDict
	KindArray
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindIdentifier:
		return "identifier"
	case KindStringLiteral:
		return "string_literal"
	case KindDate:
		return "date"
	case KindDict:
		return "dict"
	case KindNumberedDict:
		return "numbered_dict"
	case KindArray:
		return "array"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// Date is a Clausewitz in-game calendar date: year.month.day. The year
// is any non-negative value that fits an int64 (a larger one is a Date
// error); month/day are validated to ordinary 1-12/1-31 ranges.
type Date struct {
	Year  int64
	Month int
	Day   int
}

// Entry is one key/value pair of a Dict or NumberedDict body. Keys are
// kept in input order and duplicates are preserved (spec.md §4.3): a
// Dict is a list of entries, not a map.
type Entry struct {
	Key   []byte
	Value Val
}

// Val is the tagged union produced by Parse. Only the fields relevant
// to Kind are populated; the rest are zero. Text, and every []byte
// reachable from a parsed Val, is a sub-slice of the buffer passed to
// Parse — no copies are made, so the buffer must outlive the tree.
type Val struct {
	Kind Kind

	Integer int64
	Decimal float64
	Text    []byte
	Date    Date

	// NumberedTag and Dict (reused as the body) apply to KindNumberedDict.
	NumberedTag int64
	Dict        []Entry

	// Elems applies to KindArray and KindSet.
	Elems []Val
}

// Parse reads input as a Clausewitz document: a bare dict-body with no
// enclosing braces (spec.md §4.1 "root"). The returned Val is always
// KindDict. input is retained by reference in every string leaf of the
// result.
func Parse(input []byte) (Val, error) {
	p := &parser{buf: input}
	p.skipOptionalSpace()
	entries, err := p.parseDictEntries(p.atEOF)
	if err != nil {
		return Val{}, err
	}
	return Val{Kind: KindDict, Dict: entries}, nil
}

type parser struct {
	buf []byte
	pos int
}

func (p *parser) rest() []byte { return p.buf[p.pos:] }

func (p *parser) atEOF() bool { return p.pos >= len(p.buf) }

func (p *parser) atCloseBrace() bool {
	b, ok := scan.PeekOne(p.rest())
	return ok && b == '}'
}

func (p *parser) consumeByte(b byte) bool {
	if p.pos < len(p.buf) && p.buf[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipOptionalSpace() {
	consumed, _ := scan.TakeWhile(scan.Whitespace, p.rest())
	p.pos += len(consumed)
}

func (p *parser) lexicalErr(production, msg string) error {
	return ingesterr.NewParseError(ingesterr.KindLexical, p.buf, p.pos, production, errString(msg))
}

func (p *parser) structuralErr(production, msg string) error {
	return ingesterr.NewParseError(ingesterr.KindStructural, p.buf, p.pos, production, errString(msg))
}

func (p *parser) ambiguityErr(production, msg string) error {
	return ingesterr.NewParseError(ingesterr.KindAmbiguity, p.buf, p.pos, production, errString(msg))
}

func (p *parser) numericErr(production, msg string) error {
	return ingesterr.NewParseError(ingesterr.KindNumeric, p.buf, p.pos, production, errString(msg))
}

func (p *parser) dateErr(production, msg string) error {
	return ingesterr.NewParseError(ingesterr.KindDate, p.buf, p.pos, production, errString(msg))
}

type errString string

func (e errString) Error() string { return string(e) }

// parseMembers parses a repetition of "member (REQUIRED_SPACE member)*
// OPTIONAL_SPACE" stopping when atEnd reports true, per spec.md §4.2's
// separator rule: members must be whitespace-separated, a trailing
// separator before the terminator is permitted but not required, and
// zero members is legal. parseOne is responsible for appending to its
// own closure-captured accumulator.
func (p *parser) parseMembers(atEnd func() bool, parseOne func() error) error {
	for {
		if atEnd() {
			return nil
		}
		if err := parseOne(); err != nil {
			return err
		}
		consumed, _, ok := scan.RequireSpace(p.rest())
		if ok {
			p.pos += len(consumed)
			continue
		}
		if atEnd() {
			return nil
		}
		return p.structuralErr("member_separator", "expected whitespace between members")
	}
}

func (p *parser) parseDictEntries(atEnd func() bool) ([]Entry, error) {
	var entries []Entry
	err := p.parseMembers(atEnd, func() error {
		e, err := p.parseDictEntry()
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func (p *parser) parseKey() ([]byte, error) {
	if b, ok := scan.PeekOne(p.rest()); ok && b == '"' {
		p.pos++
		content, _ := scan.QuotedContents(p.rest())
		p.pos += len(content)
		if !p.consumeByte('"') {
			return nil, p.lexicalErr("quoted_key", "unterminated quoted key")
		}
		return content, nil
	}
	ident, _, ok := scan.Identifier(p.rest())
	if !ok {
		return nil, p.lexicalErr("key", "expected identifier or quoted key")
	}
	p.pos += len(ident)
	return ident, nil
}

func (p *parser) parseDictEntry() (Entry, error) {
	key, err := p.parseKey()
	if err != nil {
		return Entry{}, err
	}
	p.skipOptionalSpace()
	if !p.consumeByte('=') {
		return Entry{}, p.structuralErr("dict_entry", "expected '=' after key")
	}
	p.skipOptionalSpace()
	val, err := p.parseValue()
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: key, Value: val}, nil
}

// parseValue dispatches on the next byte: '{' is always a bracketed
// body (resolved by parseBracketed's lookahead), '"' a quoted value
// (string literal or date), anything else an unquoted integer,
// decimal, or identifier.
func (p *parser) parseValue() (Val, error) {
	b, ok := scan.PeekOne(p.rest())
	if !ok {
		return Val{}, p.structuralErr("value", "expected a value, found end of input")
	}
	switch b {
	case '{':
		return p.parseBracketed()
	case '"':
		return p.parseQuoted()
	default:
		return p.parseUnquoted()
	}
}

func (p *parser) parseQuoted() (Val, error) {
	if !p.consumeByte('"') {
		return Val{}, p.lexicalErr("quoted_value", "expected opening quote")
	}
	content, _ := scan.QuotedContents(p.rest())
	p.pos += len(content)
	if !p.consumeByte('"') {
		return Val{}, p.lexicalErr("quoted_value", "unterminated quoted value")
	}
	if date, ok, err := parseDateContent(content); err != nil {
		return Val{}, p.dateErr("date", err.Error())
	} else if ok {
		return Val{Kind: KindDate, Date: date}, nil
	}
	return Val{Kind: KindStringLiteral, Text: content}, nil
}

// parseDateContent recognizes the three-dot-separated-integer-fields
// shape (spec.md §4.1, grounded on
// original_source/clausewitz-parser/src/clausewitz/quoted.rs: a date
// match requires the full quoted span, not merely a prefix — "2200.011"
// has only two dot-separated fields and falls back to StringLiteral).
// A content that has the three-field shape but an out-of-range month
// or day is a hard Date error (kind 5), not a silent fallback.
func parseDateContent(content []byte) (Date, bool, error) {
	parts := bytes.Split(content, []byte("."))
	if len(parts) != 3 {
		return Date{}, false, nil
	}
	for _, part := range parts {
		if len(part) == 0 {
			return Date{}, false, nil
		}
		for _, b := range part {
			if b < '0' || b > '9' {
				return Date{}, false, nil
			}
		}
	}
	year, err := strconv.ParseInt(string(parts[0]), 10, 64)
	if err != nil {
		return Date{}, false, errString("year out of range")
	}
	month, err := strconv.Atoi(string(parts[1]))
	if err != nil {
		return Date{}, false, errString("month out of range")
	}
	day, err := strconv.Atoi(string(parts[2]))
	if err != nil {
		return Date{}, false, errString("day out of range")
	}
	if month < 1 || month > 12 {
		return Date{}, false, errString("month out of range 1-12")
	}
	if day < 1 || day > 31 {
		return Date{}, false, errString("day out of range 1-31")
	}
	return Date{Year: year, Month: month, Day: day}, true, nil
}

// parseUnquoted parses an optionally-signed integer, a decimal
// (digit+ '.' digit+, both runs required), or an identifier.
func (p *parser) parseUnquoted() (Val, error) {
	buf := p.rest()
	i := 0
	if i < len(buf) && buf[i] == '-' {
		i++
	}
	digitsStart := i
	for i < len(buf) && buf[i] >= '0' && buf[i] <= '9' {
		i++
	}
	if i == digitsStart {
		if digitsStart > 0 {
			return Val{}, p.numericErr("unquoted_value", "expected digits after '-'")
		}
		ident, _, ok := scan.Identifier(buf)
		if !ok {
			return Val{}, p.structuralErr("unquoted_value", "expected integer, decimal, or identifier")
		}
		p.pos += len(ident)
		return Val{Kind: KindIdentifier, Text: ident}, nil
	}
	if i < len(buf) && buf[i] == '.' {
		j := i + 1
		fracStart := j
		for j < len(buf) && buf[j] >= '0' && buf[j] <= '9' {
			j++
		}
		if j > fracStart {
			raw := buf[:j]
			f, err := strconv.ParseFloat(string(raw), 64)
			if err != nil {
				return Val{}, p.numericErr("decimal", "malformed decimal literal")
			}
			p.pos += j
			return Val{Kind: KindDecimal, Decimal: f}, nil
		}
	}
	raw := buf[:i]
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return Val{}, p.numericErr("integer", "integer literal out of int64 range")
	}
	p.pos += i
	return Val{Kind: KindInteger, Integer: n}, nil
}

// parseIntegerHead parses an optionally-signed integer at the current
// position without falling back to identifier/decimal; used for array
// indices and numbered-dict tags, which grammar-require a bare integer.
func (p *parser) parseIntegerHead(production string) (int64, error) {
	buf := p.rest()
	i := 0
	if i < len(buf) && buf[i] == '-' {
		i++
	}
	digitsStart := i
	for i < len(buf) && buf[i] >= '0' && buf[i] <= '9' {
		i++
	}
	if i == digitsStart {
		return 0, p.structuralErr(production, "expected integer")
	}
	raw := buf[:i]
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, p.numericErr(production, "integer literal out of int64 range")
	}
	p.pos += i
	return n, nil
}

// isIntegerLiteral reports whether trimmed is, in full, a valid
// (optionally signed) integer literal — used to classify the lookahead
// head in parseBracketed.
func isIntegerLiteral(trimmed []byte) bool {
	i := 0
	if i < len(trimmed) && trimmed[i] == '-' {
		i++
	}
	if i == len(trimmed) {
		return false
	}
	for ; i < len(trimmed); i++ {
		if trimmed[i] < '0' || trimmed[i] > '9' {
			return false
		}
	}
	return true
}

func trimASCIISpace(b []byte) []byte {
	start := 0
	for start < len(b) && scan.Whitespace[b[start]] {
		start++
	}
	end := len(b)
	for end > start && scan.Whitespace[b[end-1]] {
		end--
	}
	return b[start:end]
}

// scanToSentinel implements the bounded lookahead of spec.md §4.2: the
// first byte among '{', '}', '=' found in buf, and the span skipped to
// reach it. It performs no allocation and does not mutate parser state.
func scanToSentinel(buf []byte) (head []byte, sentinel byte, ok bool) {
	for i, b := range buf {
		if b == '{' || b == '}' || b == '=' {
			return buf[:i], b, true
		}
	}
	return nil, 0, false
}

// parseBracketed resolves and parses a single `{ ... }` body using the
// bounded single-lookahead disambiguation of spec.md §4.2.
func (p *parser) parseBracketed() (Val, error) {
	if !p.consumeByte('{') {
		return Val{}, p.structuralErr("bracketed", "expected '{'")
	}
	p.skipOptionalSpace()
	bodyStart := p.pos

	head, sentinel, found := scanToSentinel(p.rest())
	if !found {
		return Val{}, p.ambiguityErr("bracketed", "unterminated bracketed body: no '{', '}', or '=' before end of input")
	}
	trimmed := trimASCIISpace(head)

	switch sentinel {
	case '}':
		p.pos = bodyStart
		elems, err := p.parseValueSet()
		if err != nil {
			return Val{}, err
		}
		if !p.consumeByte('}') {
			return Val{}, p.structuralErr("set", "expected '}'")
		}
		return Val{Kind: KindSet, Elems: elems}, nil

	case '=':
		p.pos = bodyStart
		if isIntegerLiteral(trimmed) {
			elems, err := p.parseArrayBody()
			if err != nil {
				return Val{}, err
			}
			if !p.consumeByte('}') {
				return Val{}, p.structuralErr("array", "expected '}'")
			}
			return Val{Kind: KindArray, Elems: elems}, nil
		}
		entries, err := p.parseDictEntries(p.atCloseBrace)
		if err != nil {
			return Val{}, err
		}
		if !p.consumeByte('}') {
			return Val{}, p.structuralErr("dict", "expected '}'")
		}
		return Val{Kind: KindDict, Dict: entries}, nil

	case '{':
		p.pos = bodyStart
		if isIntegerLiteral(trimmed) {
			elems, err := p.parseNumberedDictSet()
			if err != nil {
				return Val{}, err
			}
			if !p.consumeByte('}') {
				return Val{}, p.structuralErr("numbered_dict_set", "expected '}'")
			}
			return Val{Kind: KindSet, Elems: elems}, nil
		}
		elems, err := p.parseValueSet()
		if err != nil {
			return Val{}, err
		}
		if !p.consumeByte('}') {
			return Val{}, p.structuralErr("set", "expected '}'")
		}
		return Val{Kind: KindSet, Elems: elems}, nil

	default:
		return Val{}, p.structuralErr("bracketed", "unreachable sentinel")
	}
}

func (p *parser) parseValueSet() ([]Val, error) {
	var elems []Val
	err := p.parseMembers(p.atCloseBrace, func() error {
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		elems = append(elems, v)
		return nil
	})
	return elems, err
}

type indexedVal struct {
	idx int64
	val Val
}

// parseArrayBody parses "(integer '=' value)*" and returns the values
// sorted by index (spec.md §9's chosen Open Question resolution: Array
// is index-ordered, not input-ordered), discarding the indices.
func (p *parser) parseArrayBody() ([]Val, error) {
	var pairs []indexedVal
	err := p.parseMembers(p.atCloseBrace, func() error {
		idx, err := p.parseIntegerHead("array_index")
		if err != nil {
			return err
		}
		p.skipOptionalSpace()
		if !p.consumeByte('=') {
			return p.structuralErr("array_entry", "expected '=' after index")
		}
		p.skipOptionalSpace()
		val, err := p.parseValue()
		if err != nil {
			return err
		}
		pairs = append(pairs, indexedVal{idx: idx, val: val})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortIndexedVals(pairs)
	elems := make([]Val, len(pairs))
	for i, pair := range pairs {
		elems[i] = pair.val
	}
	return elems, nil
}

func sortIndexedVals(pairs []indexedVal) {
	// Insertion sort: array bodies in save files are small (tens of
	// entries), and input is already near-sorted in practice.
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j-1].idx > pairs[j].idx; j-- {
			pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
		}
	}
}

// parseNumberedDictSet parses "(integer REQUIRED_SPACE '{' dict-body
// '}')*", each pair becoming one NumberedDict element of the enclosing
// Set (spec.md §4.2 case 3; original_source's `intel` numbered-dict
// arrays are the canonical example).
func (p *parser) parseNumberedDictSet() ([]Val, error) {
	var elems []Val
	err := p.parseMembers(p.atCloseBrace, func() error {
		v, err := p.parseNumberedDictEntry()
		if err != nil {
			return err
		}
		elems = append(elems, v)
		return nil
	})
	return elems, err
}

func (p *parser) parseNumberedDictEntry() (Val, error) {
	tag, err := p.parseIntegerHead("numbered_dict_tag")
	if err != nil {
		return Val{}, err
	}
	if _, _, ok := scan.RequireSpace(p.rest()); !ok {
		return Val{}, p.structuralErr("numbered_dict", "expected space between tag and '{'")
	}
	p.skipOptionalSpace()
	if !p.consumeByte('{') {
		return Val{}, p.structuralErr("numbered_dict", "expected '{'")
	}
	p.skipOptionalSpace()
	entries, err := p.parseDictEntries(p.atCloseBrace)
	if err != nil {
		return Val{}, err
	}
	if !p.consumeByte('}') {
		return Val{}, p.structuralErr("numbered_dict", "expected '}'")
	}
	return Val{Kind: KindNumberedDict, NumberedTag: tag, Dict: entries}, nil
}
