package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/apstore/asm"
	"github.com/mna/apstore/storevars"
)

// Run parses the program named by args[0] and runs the store-variables pass
// on it, printing the resulting statements to stdio.Stdout.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFile(stdio, args[0])
}

func RunFile(stdio mainer.Stdio, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	p, err := asm.Asm(b)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	out := storevars.AddStoreStatements(p.DB, p.Statements, p.Locals, p.Params)

	dumped, err := asm.Dasm(out)
	if err != nil {
		return fmt.Errorf("print result of %s: %w", path, err)
	}
	_, err = stdio.Stdout.Write(dumped)
	return err
}
