package users

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassword(t *testing.T) {
	t.Run("flag value", func(t *testing.T) {
		pw, err := readPassword(strings.NewReader(""), &bytes.Buffer{}, "from-flag", false)
		require.NoError(t, err)
		assert.Equal(t, "from-flag", pw)
	})

	t.Run("stdin wins over flag", func(t *testing.T) {
		var out bytes.Buffer
		pw, err := readPassword(strings.NewReader("from-stdin\r\nignored\n"), &out, "from-flag", true)
		require.NoError(t, err)
		assert.Equal(t, "from-stdin", pw)
		assert.Equal(t, "Enter password: ", out.String())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := readPassword(strings.NewReader(""), &bytes.Buffer{}, "", false)
		assert.ErrorContains(t, err, "password is required")
	})
}
