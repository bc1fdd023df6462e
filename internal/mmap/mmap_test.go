package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRounding(t *testing.T) {
	page := PageSize()
	require.Greater(t, page, 0)

	assert.Equal(t, page, Roundup(1, page))
	assert.Equal(t, page, Roundup(page, page))
	assert.Equal(t, 2*page, Roundup(page+1, page))
	assert.Equal(t, 0, TruncateToPage(page-1))
	assert.Equal(t, page, TruncateToPage(page+7))
}

func TestMapWriteThrough(t *testing.T) {
	page := PageSize()
	name := filepath.Join(t.TempDir(), "mapped")
	f, err := os.Create(name)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(int64(2*page)))

	region, err := Map(f, int64(page), page)
	require.NoError(t, err)
	require.Len(t, region, page)

	copy(region, "hello")
	require.NoError(t, Sync(region[:page]))
	require.NoError(t, Unmap(region))

	got := make([]byte, 5)
	_, err = f.ReadAt(got, int64(page))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestMapInvalid(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "mapped"))
	require.NoError(t, err)
	defer f.Close()

	_, err = Map(f, 0, 0)
	assert.Error(t, err)
	_, err = Map(f, 1, PageSize())
	assert.Error(t, err)
	assert.NoError(t, Sync(nil))
}
