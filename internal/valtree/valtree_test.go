package valtree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOK(t *testing.T, input string) Val {
	t.Helper()
	v, err := Parse([]byte(input))
	require.NoError(t, err)
	return v
}

func entry(v Val, key string) (Val, bool) {
	for _, e := range v.Dict {
		if string(e.Key) == key {
			return e.Value, true
		}
	}
	return Val{}, false
}

// TestParse__basics is grounded on original_source's root.rs "basics"
// test: a flat dict of an integer, a decimal, an identifier, and a
// quoted string literal.
func TestParse__basics(t *testing.T) {
	root := parseOK(t, `a=1 b=2.5 c=yes d="hello world"`)
	require.Equal(t, KindDict, root.Kind)
	require.Len(t, root.Dict, 4)

	a, _ := entry(root, "a")
	assert.Equal(t, KindInteger, a.Kind)
	assert.EqualValues(t, 1, a.Integer)

	b, _ := entry(root, "b")
	assert.Equal(t, KindDecimal, b.Kind)
	assert.InDelta(t, 2.5, b.Decimal, 1e-9)

	c, _ := entry(root, "c")
	assert.Equal(t, KindIdentifier, c.Kind)
	assert.Equal(t, "yes", string(c.Text))

	d, _ := entry(root, "d")
	assert.Equal(t, KindStringLiteral, d.Kind)
	assert.Equal(t, "hello world", string(d.Text))
}

func TestParse__negativeIntegerAndDecimal(t *testing.T) {
	root := parseOK(t, `a=-5 b=-2.25`)
	a, _ := entry(root, "a")
	assert.Equal(t, KindInteger, a.Kind)
	assert.EqualValues(t, -5, a.Integer)

	b, _ := entry(root, "b")
	assert.Equal(t, KindDecimal, b.Kind)
	assert.InDelta(t, -2.25, b.Decimal, 1e-9)
}

// TestParse__setNumbersSameLine mirrors root.rs's
// "set_numbers_same_line": a bracketed body whose lookahead sentinel is
// '}', producing a Set of bare integers.
func TestParse__setNumbersSameLine(t *testing.T) {
	root := parseOK(t, `ids={ 40 41 42 }`)
	ids, ok := entry(root, "ids")
	require.True(t, ok)
	require.Equal(t, KindSet, ids.Kind)
	require.Len(t, ids.Elems, 3)
	assert.EqualValues(t, 40, ids.Elems[0].Integer)
	assert.EqualValues(t, 41, ids.Elems[1].Integer)
	assert.EqualValues(t, 42, ids.Elems[2].Integer)
}

// TestParse__spaceNotNewLine mirrors root.rs's "space_not_new_line":
// the required separator is any whitespace run, not specifically a
// newline.
func TestParse__spaceNotNewLine(t *testing.T) {
	root := parseOK(t, "a=1\tb=2\r\nc=3")
	require.Len(t, root.Dict, 3)
	c, ok := entry(root, "c")
	require.True(t, ok)
	assert.EqualValues(t, 3, c.Integer)
}

// TestParse__emptySet mirrors root.rs's "empty__set__set": a bracketed
// body with nothing before '}' is a Set with zero elements.
func TestParse__emptySet(t *testing.T) {
	root := parseOK(t, `stale_intel={}`)
	v, ok := entry(root, "stale_intel")
	require.True(t, ok)
	assert.Equal(t, KindSet, v.Kind)
	assert.Empty(t, v.Elems)
}

// TestParse__dictOfDicts mirrors root.rs's "dict_of_dicts": a nested
// '=' sentinel at every level produces nested Dicts.
func TestParse__dictOfDicts(t *testing.T) {
	root := parseOK(t, `outer={ inner={ leaf=1 } }`)
	outer, ok := entry(root, "outer")
	require.True(t, ok)
	require.Equal(t, KindDict, outer.Kind)
	inner, ok := entry(outer, "inner")
	require.True(t, ok)
	require.Equal(t, KindDict, inner.Kind)
	leaf, ok := entry(inner, "leaf")
	require.True(t, ok)
	assert.EqualValues(t, 1, leaf.Integer)
}

// TestParse__arrayOfArrays mirrors root.rs's "array__of__arrays":
// array entries whose values are themselves arrays.
func TestParse__arrayOfArrays(t *testing.T) {
	root := parseOK(t, `grid={ 0={ 0=1 1=2 } 1={ 0=3 1=4 } }`)
	grid, ok := entry(root, "grid")
	require.True(t, ok)
	require.Equal(t, KindArray, grid.Kind)
	require.Len(t, grid.Elems, 2)
	row0 := grid.Elems[0]
	require.Equal(t, KindArray, row0.Kind)
	require.Len(t, row0.Elems, 2)
	assert.EqualValues(t, 1, row0.Elems[0].Integer)
	assert.EqualValues(t, 2, row0.Elems[1].Integer)
}

// TestParse__arrayIsIndexSorted exercises the spec's Open Question
// resolution: array elements are reordered by their integer index,
// regardless of the order they appear in the input.
func TestParse__arrayIsIndexSorted(t *testing.T) {
	root := parseOK(t, `xs={ 2=third 0=first 1=second }`)
	xs, ok := entry(root, "xs")
	require.True(t, ok)
	require.Equal(t, KindArray, xs.Kind)
	require.Len(t, xs.Elems, 3)
	assert.Equal(t, "first", string(xs.Elems[0].Text))
	assert.Equal(t, "second", string(xs.Elems[1].Text))
	assert.Equal(t, "third", string(xs.Elems[2].Text))
}

// TestParse__integerKeyedEqualsBodyIsArray checks the '=' branch of the
// disambiguator on an integer head whose values are themselves Dicts:
// this is an Array, not the NumberedDict shape (that one is keyed by
// whitespace, not '=' — see TestParse__numberedDictSet below).
func TestParse__integerKeyedEqualsBodyIsArray(t *testing.T) {
	root := parseOK(t, `intel={ 14={ intel=0 stale_intel={} } 19={ intel=5 stale_intel={} } }`)
	intel, ok := entry(root, "intel")
	require.True(t, ok)
	assert.Equal(t, KindArray, intel.Kind)
}

// TestParse__numberedDictSet is the NumberedDict shape proper: tag and
// body separated by whitespace, not '=', nested inside an outer Set
// (spec.md §8 scenario S4 / the genuine "intel" shape Stellaris emits).
func TestParse__numberedDictSet(t *testing.T) {
	root := parseOK(t, `intel={ { 14 { intel=0 stale_intel={} } } { 19 { intel=5 stale_intel={} } } }`)
	intel, ok := entry(root, "intel")
	require.True(t, ok)
	require.Equal(t, KindSet, intel.Kind)
	require.Len(t, intel.Elems, 2)

	first := intel.Elems[0]
	require.Equal(t, KindSet, first.Kind)
	require.Len(t, first.Elems, 1)
	nd := first.Elems[0]
	require.Equal(t, KindNumberedDict, nd.Kind)
	assert.EqualValues(t, 14, nd.NumberedTag)
	v, ok := entry(Val{Kind: KindDict, Dict: nd.Dict}, "intel")
	require.True(t, ok)
	assert.EqualValues(t, 0, v.Integer)

	second := intel.Elems[1]
	nd2 := second.Elems[0]
	assert.EqualValues(t, 19, nd2.NumberedTag)
}

// TestParse__quotedKeyOK mirrors root.rs's "quoted__key__ok": a dict
// key may be a quoted string instead of a bare identifier.
func TestParse__quotedKeyOK(t *testing.T) {
	root := parseOK(t, `"my key"=1`)
	v, ok := entry(root, "my key")
	require.True(t, ok)
	assert.EqualValues(t, 1, v.Integer)
}

// TestParse__rootSetOfStrings mirrors root.rs's
// "root__set_of_strings__accepted": root itself can contain a
// dict entry whose value is a Set of bare identifiers/strings.
func TestParse__rootSetOfStrings(t *testing.T) {
	root := parseOK(t, `tags={ alpha beta "gamma delta" }`)
	tags, ok := entry(root, "tags")
	require.True(t, ok)
	require.Equal(t, KindSet, tags.Kind)
	require.Len(t, tags.Elems, 3)
	assert.Equal(t, KindIdentifier, tags.Elems[0].Kind)
	assert.Equal(t, KindStringLiteral, tags.Elems[2].Kind)
	assert.Equal(t, "gamma delta", string(tags.Elems[2].Text))
}

// TestParse__identifierWithUnderscore mirrors root.rs's
// "identifier__with__underscore".
func TestParse__identifierWithUnderscore(t *testing.T) {
	root := parseOK(t, `module_flag=standard_economy_module`)
	v, ok := entry(root, "module_flag")
	require.True(t, ok)
	assert.Equal(t, KindIdentifier, v.Kind)
	assert.Equal(t, "standard_economy_module", string(v.Text))
}

func TestParse__dictKeyIdentifierPairsOK(t *testing.T) {
	root := parseOK(t, `first_key=first_value second_key=second_value`)
	require.Len(t, root.Dict, 2)
	v, ok := entry(root, "second_key")
	require.True(t, ok)
	assert.Equal(t, "second_value", string(v.Text))
}

func TestParse__duplicateKeysPreserved(t *testing.T) {
	root := parseOK(t, `country=1 country=2 country=3`)
	require.Len(t, root.Dict, 3)
	assert.EqualValues(t, 1, root.Dict[0].Value.Integer)
	assert.EqualValues(t, 2, root.Dict[1].Value.Integer)
	assert.EqualValues(t, 3, root.Dict[2].Value.Integer)
}

func TestParse__trailingSeparatorBeforeCloseBracePermitted(t *testing.T) {
	root := parseOK(t, `ids={ 1 2 3 }`)
	ids, _ := entry(root, "ids")
	assert.Len(t, ids.Elems, 3)

	root2 := parseOK(t, `a=1`)
	assert.Len(t, root2.Dict, 1)
}

func TestParse__zeroSpaceBetweenMembersIsStructuralError(t *testing.T) {
	_, err := Parse([]byte(`ids={ 1 2}extra=1`))
	require.Error(t, err)
}

// Dates -----------------------------------------------------------------

func TestParse__datesAccepted(t *testing.T) {
	for _, tc := range []struct {
		literal string
		year    int64
		month   int
		day     int
	}{
		{"2200.01.01", 2200, 1, 1},
		{"0.05.01", 0, 5, 1},
		{"9999.12.31", 9999, 12, 31},
	} {
		root := parseOK(t, `date="`+tc.literal+`"`)
		v, ok := entry(root, "date")
		require.True(t, ok, tc.literal)
		require.Equal(t, KindDate, v.Kind, tc.literal)
		assert.Equal(t, tc.year, v.Date.Year, tc.literal)
		assert.Equal(t, tc.month, v.Date.Month, tc.literal)
		assert.Equal(t, tc.day, v.Date.Day, tc.literal)
	}
}

// TestParse__twoFieldQuotedFallsBackToStringLiteral is grounded on
// quoted.rs's "2200.011" case: only two dot-separated fields, so the
// date production doesn't match at all and it's a plain string.
func TestParse__twoFieldQuotedFallsBackToStringLiteral(t *testing.T) {
	root := parseOK(t, `v="2200.011"`)
	v, ok := entry(root, "v")
	require.True(t, ok)
	assert.Equal(t, KindStringLiteral, v.Kind)
	assert.Equal(t, "2200.011", string(v.Text))
}

func TestParse__dateWithOutOfRangeMonthIsHardError(t *testing.T) {
	_, err := Parse([]byte(`v="2200.13.01"`))
	require.Error(t, err)
}

func TestParse__dateWithOutOfRangeDayIsHardError(t *testing.T) {
	_, err := Parse([]byte(`v="2200.01.32"`))
	require.Error(t, err)
}

// Error propagation -------------------------------------------------------

func TestParse__missingClosingBraceIsError(t *testing.T) {
	_, err := Parse([]byte(`a={ b=1`))
	require.Error(t, err)
}

// TestParse__noSentinelBeforeEOFIsAmbiguityError exercises the genuine
// lookahead failure: no '{', '}', or '=' appears anywhere before the
// input ends, so the disambiguator itself cannot resolve a shape.
func TestParse__noSentinelBeforeEOFIsAmbiguityError(t *testing.T) {
	_, err := Parse([]byte(`a={ just some bare words with no sentinel`))
	require.Error(t, err)
}

func TestParse__missingEqualsIsStructuralError(t *testing.T) {
	_, err := Parse([]byte(`a 1`))
	require.Error(t, err)
}

func TestParse__integerOverflowIsNumericError(t *testing.T) {
	_, err := Parse([]byte(`a=99999999999999999999999`))
	require.Error(t, err)
}

func TestParse__emptyInputIsEmptyDict(t *testing.T) {
	root := parseOK(t, "   \n\t  ")
	assert.Equal(t, KindDict, root.Kind)
	assert.Empty(t, root.Dict)
}
