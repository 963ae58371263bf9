package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quotient-labs/quotient/internal/api"
	"github.com/quotient-labs/quotient/internal/server/endpoints"
)

var promptsForce bool

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Prompt template commands",
	Long: `Prompts are embedded in the binary. A file named <key>.tmpl under
<home>/prompts overrides the embedded text, e.g.
  ~/.quotient/prompts/stages.extract.user.tmpl`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts and their overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		resolver := newResolver(e)

		var resp endpoints.PromptsListResponse
		for _, p := range resolver.AllEmbedded() {
			r, err := resolver.Resolve(p.Key)
			if err != nil {
				return err
			}
			resp.Prompts = append(resp.Prompts, endpoints.PromptResponse{
				Key:         p.Key,
				Text:        r.Text,
				Description: p.Description,
				Variables:   r.Variables,
				Hash:        r.Hash,
				IsOverride:  r.IsOverride,
				Path:        r.Path,
			})
		}
		return api.Output(resp)
	},
}

var promptsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the embedded prompts to the override directory for editing",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		written, err := newResolver(e).ExportDefaults(promptsForce)
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Println(path)
		}
		return nil
	},
}

func init() {
	promptsExportCmd.Flags().BoolVar(&promptsForce, "force", false, "Overwrite existing override files")

	promptsCmd.AddCommand(promptsListCmd, promptsExportCmd)
	rootCmd.AddCommand(promptsCmd)
}
