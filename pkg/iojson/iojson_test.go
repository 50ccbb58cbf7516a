package iojson

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteWith(t *testing.T) {
	var out, errOut bytes.Buffer

	err := WriteWith(&out, &errOut, map[string]int{"version": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":3}`, out.String())
	assert.Empty(t, errOut.String())

	out.Reset()
	err = WriteWith(&out, &errOut, make(chan int))
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "json_error")
}

func TestDecode(t *testing.T) {
	type doc struct {
		Operations []map[string]string `json:"operations"`
	}

	got, err := Decode[doc](strings.NewReader(`{"operations":[{"operation":"DELETE_FILE","path":"a"}]}`))
	require.NoError(t, err)
	require.Len(t, got.Operations, 1)
	assert.Equal(t, "a", got.Operations[0]["path"])

	_, err = Decode[doc](strings.NewReader(`{"operations":`))
	require.Error(t, err)
}

func TestFileReader(t *testing.T) {
	type doc struct {
		Name string `json:"name"`
	}

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ops.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"name":"from-file"}`), 0o644))

		fr := FileReader[doc]{path: path}
		got, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, "from-file", got.Name)
	})

	t.Run("dash reads stdin", func(t *testing.T) {
		r, w, err := os.Pipe()
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		_, err = w.WriteString(`{"name":"piped"}`)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		fr := FileReader[doc]{path: "-", stdin: r}
		got, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, "piped", got.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		fr := FileReader[doc]{path: filepath.Join(t.TempDir(), "nope.json")}
		_, err := fr.Read()
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("flag usage override", func(t *testing.T) {
		fr := FileReader[doc]{Usage: "ops doc"}
		assert.Equal(t, "ops doc", fr.Flag().Usage)
		assert.Equal(t, "file", fr.Flag().Name)
	})
}
