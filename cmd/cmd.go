// cmd.go - Haupt-CLI fuer latentforge.
//
// Dieses Modul enthaelt:
// - NewCLI mit allen Commands
// - Environment-Dokumentation fuer die Hilfe-Ausgabe
package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"

	"github.com/latentforge/latentforge/envconfig"
	"github.com/latentforge/latentforge/version"
)

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "latentforge",
		Short:         "Latent diffusion image generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Printf("latentforge version %s\n", version.Version)
				return
			}
			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	generateCmd := newGenerateCmd()
	serveCmd := newServeCmd()
	schedulersCmd := newSchedulersCmd()

	envVars := envconfig.AsMap()
	appendEnvDocs(generateCmd, []envconfig.EnvVar{envVars["LATENTFORGE_HOST"]})
	appendEnvDocs(serveCmd, []envconfig.EnvVar{
		envVars["LATENTFORGE_DEBUG"],
		envVars["LATENTFORGE_HOST"],
		envVars["LATENTFORGE_MODELS"],
		envVars["LATENTFORGE_ORIGINS"],
	})

	rootCmd.AddCommand(generateCmd, serveCmd, schedulersCmd)
	return rootCmd
}

// suggest returns the closest candidate within edit distance 3, for
// "did you mean" hints on misspelled enum flags.
func suggest(input string, candidates []string) string {
	best, bestDist := "", 4
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(strings.ToLower(input), c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
