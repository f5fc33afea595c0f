package services

import (
	"io"
	"os"
	"strings"
	"testing"

	"facture-workflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentStore(t *testing.T) {
	dir := t.TempDir()
	store := NewAttachmentStore(dir, 8)

	t.Run("save and open", func(t *testing.T) {
		name, n, err := store.Save(strings.NewReader("scan"), "image/png")
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)
		assert.True(t, strings.HasSuffix(name, ".png"))

		f, err := store.Open(name)
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, f.Close())
		require.NoError(t, err)
		assert.Equal(t, "scan", string(data))

		require.NoError(t, store.Remove(name))
		require.NoError(t, store.Remove(name), "removing twice is fine")

		_, err = store.Open(name)
		assert.ErrorIs(t, err, ErrAttachmentNotFound)
	})

	t.Run("oversize leaves nothing behind", func(t *testing.T) {
		_, _, err := store.Save(strings.NewReader("0123456789"), "application/pdf")
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "file")

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("names cannot escape the directory", func(t *testing.T) {
		_, err := store.Open("../../etc/passwd")
		assert.ErrorIs(t, err, ErrAttachmentNotFound)
	})
}
