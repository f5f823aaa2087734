package fsaccess

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/landlock-lsm/go-landlock/landlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardenerik/parent/internal/model"
)

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	tests := map[string]struct {
		policy   model.FilesystemPolicy
		expRules []Rule
		expErr   bool
	}{
		"An empty policy should compile to an empty ruleset": {
			policy:   model.FilesystemPolicy{},
			expRules: nil,
		},

		"A read-only directory should get directory read rights": {
			policy: model.FilesystemPolicy{ReadOnly: []string{dir}},
			expRules: []Rule{
				{Path: dir, Access: landlock.AccessFSSet(readDirAccess)},
			},
		},

		"A read-only file should get file read rights only": {
			policy: model.FilesystemPolicy{ReadOnly: []string{file}},
			expRules: []Rule{
				{Path: file, Access: landlock.AccessFSSet(readFileAccess)},
			},
		},

		"A write-only directory should get directory write rights": {
			policy: model.FilesystemPolicy{WriteOnly: []string{dir}},
			expRules: []Rule{
				{Path: dir, Access: landlock.AccessFSSet(writeDirAccess)},
			},
		},

		"A read-write file should get combined file rights": {
			policy: model.FilesystemPolicy{ReadWrite: []string{file}},
			expRules: []Rule{
				{Path: file, Access: landlock.AccessFSSet(readWriteFileAccess)},
			},
		},

		"Multiple classes should compile in read, write, read-write order": {
			policy: model.FilesystemPolicy{
				ReadOnly:  []string{file},
				WriteOnly: []string{dir},
			},
			expRules: []Rule{
				{Path: file, Access: landlock.AccessFSSet(readFileAccess)},
				{Path: dir, Access: landlock.AccessFSSet(writeDirAccess)},
			},
		},

		"A missing path should fail": {
			policy: model.FilesystemPolicy{ReadOnly: []string{filepath.Join(dir, "missing")}},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			rs, err := Compile(test.policy)

			if test.expErr {
				assert.Error(err)
			} else {
				require.NoError(t, err)
				assert.Equal(test.expRules, rs.Rules)
				assert.Equal(len(test.expRules) == 0, rs.Empty())
			}
		})
	}
}
