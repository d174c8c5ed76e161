package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/thorin-go/thorin/src/example"
)

func main() {
	buildCmd := &cli.Command{
		Name:        "build",
		Description: "construct a small example program directly through the World API and print its lambda count and entry name",
		Action:      buildAct,
	}

	verifyCmd := &cli.Command{
		Name:        "verify",
		Description: "build the example program and run structural verification over it",
		Action:      verifyAct,
	}

	lowerCmd := &cli.Command{
		Name:        "lower",
		Description: "build the example program, lower it to closure-flattened form, and report the resulting lambda count",
		Action:      lowerAct,
	}

	app := &cli.Command{
		Name:        "thorin",
		Description: "thorin is a demo driver for the thorin-go CPS IR",
		Commands: []*cli.Command{
			buildCmd,
			verifyCmd,
			lowerCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func buildAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	prog, err := example.BuildExample(ctx)
	if err != nil {
		return errors.Wrap(err, "build example")
	}

	fmt.Printf("built %d lambdas, entry %q\n", prog.Scope.Size(), prog.EntryName)

	return nil
}

func verifyAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	prog, err := example.BuildExample(ctx)
	if err != nil {
		return errors.Wrap(err, "build example")
	}

	if err := prog.Verify(ctx); err != nil {
		return errors.Wrap(err, "verify")
	}

	fmt.Println("ok")

	return nil
}

func lowerAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	prog, err := example.BuildExample(ctx)
	if err != nil {
		return errors.Wrap(err, "build example")
	}

	before := prog.Scope.Size()

	if err := prog.Lower(ctx); err != nil {
		return errors.Wrap(err, "lower")
	}

	fmt.Printf("lowered: %d lambdas before, %d after\n", before, prog.Scope.Size())

	return nil
}
