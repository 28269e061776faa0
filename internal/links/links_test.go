package links

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com", true},
		{"https://example.com/a?b=c", true},
		{"", false},
		{"ftp://example.com", false},
		{"example.com", false},
		{"http://exa mple.com", false},
		{"http://a.example/\r\nSet-Cookie: sid=1", false},
		{"http://a.example/\x00", false},
		{"http://a.example/\x7f", false},
		{"https://a.example/%0D%0A", true},
		{"http://" + strings.Repeat("a", 2041), true},
		{"http://" + strings.Repeat("a", 2042), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidURL(tt.url), tt.url)
	}
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("10wBV"))
	assert.True(t, ValidCode(strings.Repeat("z", 32)))
	assert.False(t, ValidCode(""))
	assert.False(t, ValidCode(strings.Repeat("z", 33)))
	assert.False(t, ValidCode("abc-def"))
	assert.False(t, ValidCode("../etc"))
	assert.False(t, ValidCode("ä"))
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("example.com")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", got)

	got, err = NormalizeURL("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got)

	_, err = NormalizeURL("ftp://example.com")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestEncodeBase62(t *testing.T) {
	assert.Equal(t, "0", EncodeBase62(0))
	assert.Equal(t, "z", EncodeBase62(61))
	assert.Equal(t, "10", EncodeBase62(62))
	assert.Equal(t, "10wBV", EncodeBase62(CounterSeed+1))
	assert.Equal(t, "10wBW", EncodeBase62(CounterSeed+2))
}

func TestBase62_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.Uint64().Draw(rt, "n")
		code := EncodeBase62(n)
		assert.True(rt, ValidCode(code))

		back, err := DecodeBase62(code)
		require.NoError(rt, err)
		assert.Equal(rt, n, back)
	})
}

func TestDecodeBase62_Errors(t *testing.T) {
	_, err := DecodeBase62("")
	assert.Error(t, err)
	_, err = DecodeBase62("ab-c")
	assert.Error(t, err)
	_, err = DecodeBase62(strings.Repeat("z", 12))
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 32)

	other, err := GenerateSalt()
	require.NoError(t, err)
	assert.NotEqual(t, salt, other)

	rec := Record{URL: "http://x", PasswordSalt: salt, PasswordHash: HashPassword("hunter2", salt)}
	assert.True(t, rec.Protected())
	assert.Len(t, rec.PasswordHash, 64)
	assert.True(t, Authorized(rec, "hunter2"))
	assert.False(t, Authorized(rec, "hunter3"))
	assert.False(t, Authorized(rec, ""))

	open := Record{URL: "http://x"}
	assert.False(t, open.Protected())
	assert.True(t, Authorized(open, ""))
	assert.True(t, Authorized(open, "anything"))
}

func TestHashPassword_Known(t *testing.T) {
	// sha256("salt" + "pw")
	assert.Equal(t, "21baed949b716c49cbf7d8fe79412f1dc104745650a32081ae0be0b967aeb7f3", HashPassword("pw", "salt"))
	assert.Equal(t, HashPassword("pw", "salt"), HashPassword("tpw", "sal"))
}

func TestTopURLs(t *testing.T) {
	stats := []URLVisits{
		{URL: "http://b", Visits: 3},
		{URL: "http://a", Visits: 3},
		{URL: "http://c", Visits: 9},
		{URL: "http://d", Visits: 1},
	}

	top := TopURLs(stats, 3)
	assert.Equal(t, []URLVisits{
		{URL: "http://c", Visits: 9},
		{URL: "http://a", Visits: 3},
		{URL: "http://b", Visits: 3},
	}, top)

	assert.Len(t, TopURLs(stats, 10), 4)
	assert.Equal(t, "http://b", stats[0].URL, "input must not be reordered")
}
