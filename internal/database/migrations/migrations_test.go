package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	r := NewRunner(nil, Options{}, nil)
	files, err := r.Files()
	require.NoError(t, err)

	ups, err := fs.Glob(files, "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(files, "*.down.sql")
	require.NoError(t, err)

	assert.Len(t, ups, 2)
	assert.Len(t, downs, len(ups))

	body, err := fs.ReadFile(files, "000001_create_tickets.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "ticket_number        VARCHAR(64) NOT NULL UNIQUE")
}

func TestFiles_MissingDirectory(t *testing.T) {
	r := NewRunner(nil, Options{Dir: "/does/not/exist"}, nil)
	_, err := r.Files()
	assert.Error(t, err)
}
