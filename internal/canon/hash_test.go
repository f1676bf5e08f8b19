package canon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_KnownVectors(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(nil))
	assert.Len(t, Hash([]byte("x")), 64, "SHA-256 hex is 64 characters")
}

func TestShortHash_IsPrefix(t *testing.T) {
	data := []byte(`{"a":1.0}`)

	full := Hash(data)
	short := ShortHash(data)

	assert.Len(t, short, ShortHashLen)
	assert.Equal(t, full[:16], short)
}

func TestShort_LeavesShortInputAlone(t *testing.T) {
	assert.Equal(t, "abc", Short("abc"))
	assert.Equal(t, "", Short(""))
}

func TestHashValue_MatchesPython(t *testing.T) {
	// hashlib.sha256(json.dumps({"a": 1.0, "b": [0.5, "x"]}, sort_keys=True,
	// separators=(",", ":")).encode()).hexdigest()
	got, err := HashValue(map[string]any{"b": []any{0.5, "x"}, "a": 1.0})
	require.NoError(t, err)
	assert.Equal(t, "9599960c488d6585f2d8d14ed65724f0fdaccb87a5c74461cba586792dd52033", got)

	short, err := ShortHashValue(map[string]any{"a": 1.0, "b": []any{0.5, "x"}})
	require.NoError(t, err)
	assert.Equal(t, "9599960c488d6585", short)
}

func TestHashValue_Deterministic(t *testing.T) {
	v := Object{"session_id": String("s-1"), "seq": Int(3), "energy": Float(0.85)}

	h1, err := HashValue(v)
	require.NoError(t, err)
	h2, err := HashValue(v)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestHashValue_PropagatesSerializationError(t *testing.T) {
	_, err := HashValue(Object{"x": Float(math.Inf(1))})
	require.Error(t, err)
	assert.True(t, IsSerializationError(err))
}

func TestDomainHash_Separates(t *testing.T) {
	data := []byte(`{}`)

	assert.NotEqual(t, Hash(data), DomainHash(DomainDraft, data))
	assert.NotEqual(t, DomainHash("a", []byte("bc")), DomainHash("ab", []byte("c")),
		"null separator must prevent boundary ambiguity")
	assert.Equal(t, DomainHash(DomainDraft, data), DomainHash(DomainDraft, data))
}
