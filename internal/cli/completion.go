package cli

import (
	"os"

	"github.com/guiyumin/mediadrop/internal/core/extractor"
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for mediadrop.

Bash:
  # Add to ~/.bashrc:
  source <(mediadrop completion bash)

Zsh:
  # Add to ~/.zshrc:
  source <(mediadrop completion zsh)

Fish:
  mediadrop completion fish > ~/.config/fish/completions/mediadrop.fish

PowerShell:
  mediadrop completion powershell >> $PROFILE
`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(os.Stdout)
		default:
			return cmd.Help()
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func completeMediaTypes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{string(extractor.MediaTypeVideo), string(extractor.MediaTypeAudio)}, cobra.ShellCompDirectiveNoFileComp
}

func completePlatforms(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, p := range extractor.Platforms {
		out = append(out, string(p))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
