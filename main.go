package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/latentforge/latentforge/cmd"

	_ "github.com/latentforge/latentforge/backend/ort"
)

func main() {
	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
