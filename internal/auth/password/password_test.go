package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "pbkdf2_sha256$210000$"))

	ok, err := Verify("correct horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Verify("wrong horse", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHash_SaltsEachCall(t *testing.T) {
	a, err := Hash("same")
	require.NoError(t, err)
	b, err := Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify_LowIterationHash(t *testing.T) {
	encoded := encode("secret", []byte("0123456789abcdef"), 1000)

	ok, err := Verify("secret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_Malformed(t *testing.T) {
	for _, encoded := range []string{
		"",
		"bcrypt$10$abc$def",
		"pbkdf2_sha256$notanumber$c2FsdA$a2V5",
		"pbkdf2_sha256$1000$!!!$a2V5",
		"pbkdf2_sha256$1000$c2FsdA",
		"pbkdf2_sha256$0$c2FsdA$a2V5",
	} {
		_, err := Verify("x", encoded)
		assert.ErrorIs(t, err, ErrMalformedHash, encoded)
	}
}
