package migration

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_add_index.up.sql": {Data: []byte("CREATE INDEX x ON t(a);")},
		"migrations/000001_init.up.sql":      {Data: []byte("CREATE TABLE t(a int);")},
		"migrations/README.md":               {Data: []byte("ignored")},
	}

	got, err := Load(fsys, "migrations")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].Version)
	require.Equal(t, "init", got[0].Name)
	require.Equal(t, "add_index", got[1].Name)

	require.Len(t, Pending(got, 1), 1)
	require.Empty(t, Pending(got, 2))

	statuses := Statuses(got, 1)
	require.True(t, statuses[0].Applied)
	require.False(t, statuses[1].Applied)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{name: "no description", fsys: fstest.MapFS{"m/000001.up.sql": {}}},
		{name: "bad version", fsys: fstest.MapFS{"m/first_init.up.sql": {}}},
		{name: "duplicate version", fsys: fstest.MapFS{
			"m/000001_a.up.sql": {},
			"m/1_b.up.sql":      {},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.fsys, "m")
			require.Error(t, err)
		})
	}
}
