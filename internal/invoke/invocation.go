package invoke

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
)

// Outputs lists what a step writes. Dirs are created before the step runs;
// Files are removed if it fails.
type Outputs struct {
	Dirs  []string
	Files []string
}

// Invocation is one external command.
type Invocation struct {
	Name string // program, looked up in PATH when not a path
	Args []string
	Dir  string // working directory; empty inherits ours
	Outputs
	Lock string // resource key such as "cuda:0"; empty means unlocked
}

// CommandLine renders the invocation as a shell-quoted command line.
func (inv Invocation) CommandLine() string {
	return shellquote.Join(append([]string{inv.Name}, inv.Args...)...)
}

// Step is an in-process unit of work with the same output contract as an
// Invocation.
type Step struct {
	Label string
	Outputs
	Lock string
	Run  func(ctx context.Context) error
}

// SplitArgs splits a user-supplied argument string with shell quoting rules.
func SplitArgs(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	args, err := shellquote.Split(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parse extra arguments %q", s)
	}
	return args, nil
}
