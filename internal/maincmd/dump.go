package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/apstore/asm"
)

// Dump parses the program named by args[0] and prints it back without
// running the store-variables pass, to inspect what the assembler produced.
func (c *Cmd) Dump(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return DumpFile(stdio, args[0])
}

func DumpFile(stdio mainer.Stdio, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	p, err := asm.Asm(b)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	dumped, err := asm.Dasm(p.Statements)
	if err != nil {
		return fmt.Errorf("print %s: %w", path, err)
	}
	_, err = stdio.Stdout.Write(dumped)
	return err
}
