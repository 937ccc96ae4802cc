// Abstractions for running subprocesses and capturing their output.

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// A Runner produces the output of an external program.  ExecRunner shells out for
// real; FileRunner substitutes captured output, for offline use and for testing.
type Runner interface {
	Run(program string, arguments []string) (stdout, stderr string, err error)
}

// Run the program with the arguments, collecting its output and returning it.  If
// there is an error in running the program or the program exits with a nonzero code
// then an error is returned along with stderr and stdout is empty, otherwise stdout
// and stderr are returned but the assumption is that the command exited with code
// zero.

type ExecRunner struct{}

func (ExecRunner) Run(program string, arguments []string) (string, string, error) {
	cmd := exec.Command(program, arguments...)
	var stdout strings.Builder
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	errs := stderr.String()
	if err != nil {
		return "", errs, errors.Join(fmt.Errorf("While running %s", program), err)
	}
	return stdout.String(), errs, nil
}

// FileRunner maps a program name to a file holding its captured output.  A program
// with no mapping yields an error, as an absent binary would.
type FileRunner map[string]string

func (fr FileRunner) Run(program string, _ []string) (string, string, error) {
	filename, found := fr[program]
	if !found {
		return "", "", fmt.Errorf("No captured output for %s", program)
	}
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return "", "", err
	}
	return string(bytes), "", nil
}
