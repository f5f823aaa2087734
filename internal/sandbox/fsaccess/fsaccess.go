// Package fsaccess restricts the filesystem paths reachable by the current
// process using landlock.
package fsaccess

import (
	"fmt"
	"os"

	"github.com/landlock-lsm/go-landlock/landlock"
	llsys "github.com/landlock-lsm/go-landlock/landlock/syscall"

	"github.com/gardenerik/parent/internal/model"
)

// Access rights per path class. Directories are granted the directory-level
// rights on top of the file rights; granting those to a plain file would be
// rejected by the kernel.
const (
	readFileAccess = llsys.AccessFSReadFile | llsys.AccessFSExecute
	readDirAccess  = readFileAccess | llsys.AccessFSReadDir

	writeFileAccess = llsys.AccessFSWriteFile
	writeDirAccess  = writeFileAccess | llsys.AccessFSReadDir | llsys.AccessFSRemoveDir |
		llsys.AccessFSRemoveFile | llsys.AccessFSMakeDir | llsys.AccessFSMakeReg

	readWriteFileAccess = readFileAccess | writeFileAccess
	readWriteDirAccess  = readDirAccess | writeDirAccess
)

// Rule grants a set of access rights under one path.
type Rule struct {
	Path   string
	Access landlock.AccessFSSet
}

// Ruleset is a compiled set of path rules. It owns no kernel resource until
// Apply is called.
type Ruleset struct {
	Rules []Rule
}

// Empty returns true when the ruleset grants nothing, meaning filesystem
// access stays unrestricted.
func (r *Ruleset) Empty() bool { return len(r.Rules) == 0 }

// Compile derives the landlock ruleset from the configured path lists. Every
// path must exist: the rights granted depend on whether it is a directory.
func Compile(policy model.FilesystemPolicy) (*Ruleset, error) {
	rs := &Ruleset{}

	classes := []struct {
		paths      []string
		fileAccess uint64
		dirAccess  uint64
	}{
		{policy.ReadOnly, readFileAccess, readDirAccess},
		{policy.WriteOnly, writeFileAccess, writeDirAccess},
		{policy.ReadWrite, readWriteFileAccess, readWriteDirAccess},
	}

	for _, class := range classes {
		for _, path := range class.paths {
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("could not stat filesystem rule path: %w", err)
			}

			access := class.fileAccess
			if info.IsDir() {
				access = class.dirAccess
			}

			rs.Rules = append(rs.Rules, Rule{Path: path, Access: landlock.AccessFSSet(access)})
		}
	}

	return rs, nil
}

// Apply installs the ruleset on the current process with a deny-by-default
// policy: every path not covered by a rule becomes inaccessible, permanently,
// for this process and its descendants. Applying an empty ruleset is a no-op.
//
// Strict mode on purpose: an unsupported kernel is a setup failure, never a
// silent downgrade to unrestricted access.
func (r *Ruleset) Apply() error {
	if r.Empty() {
		return nil
	}

	rules := make([]landlock.Rule, 0, len(r.Rules))
	for _, rule := range r.Rules {
		rules = append(rules, landlock.PathAccess(rule.Access, rule.Path))
	}

	if err := landlock.V1.RestrictPaths(rules...); err != nil {
		return fmt.Errorf("could not restrict filesystem access: %w", err)
	}

	return nil
}
