package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/guiyumin/mediadrop/internal/core/downloader"
	"github.com/guiyumin/mediadrop/internal/core/extractor"
	"github.com/guiyumin/mediadrop/internal/core/wire"
	"github.com/spf13/cobra"
)

var (
	getOutput   string
	getType     string
	getPlatform string
	getName     string
)

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Download media into a local directory",
	Long: `Run the same acquisition the server runs and keep the files locally.
Nothing is registered; the files are moved into the output directory.

Examples:
  mediadrop get https://www.instagram.com/p/SHORTCODE/
  mediadrop get --type audio -o ~/Music https://youtu.be/dQw4w9WgXcQ
  mediadrop get --name "my song" https://open.spotify.com/track/...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runGet(ctx, args[0])
	},
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", ".", "output directory")
	getCmd.Flags().StringVarP(&getType, "type", "t", "video", "media type: video or audio")
	getCmd.Flags().StringVar(&getPlatform, "platform", "", "platform override: instagram, youtube, spotify, x")
	getCmd.Flags().StringVarP(&getName, "name", "n", "", "file name (without extension) for the first file")
	getCmd.RegisterFlagCompletionFunc("platform", completePlatforms)
	getCmd.RegisterFlagCompletionFunc("type", completeMediaTypes)

	rootCmd.AddCommand(getCmd)
}

func runGet(ctx context.Context, url string) error {
	cfg := loadConfig()

	outDir, err := filepath.Abs(expandHome(getOutput))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// stage next to the destination so the final move is a rename
	staging, err := os.MkdirTemp(outDir, ".mediadrop-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	svc := extractor.NewService(staging, nil, wire.Strategies(cfg))
	acq, err := svc.Acquire(ctx, extractor.SubmitRequest{
		URL:       url,
		Platform:  getPlatform,
		MediaType: getType,
	})
	if err != nil {
		return err
	}
	defer acq.Done()

	fmt.Printf("  %s: %d file(s)\n", acq.Platform, len(acq.Artifacts))
	for i, a := range acq.Artifacts {
		path := a.Path
		if i == 0 && strings.TrimSpace(getName) != "" {
			if renamed, err := extractor.ApplyDesiredName(path, getName); err == nil {
				path = renamed
			}
		}

		dest, err := moveInto(path, outDir)
		if err != nil {
			return err
		}
		fmt.Printf("  ✓ %s (%s)\n", dest, downloader.FormatBytes(a.Size))
	}
	return nil
}

// moveInto renames path into dir, appending _N to the name when it is
// taken.
func moveInto(path, dir string) (string, error) {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	dest := filepath.Join(dir, name)
	for n := 1; ; n++ {
		if _, err := os.Lstat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}

	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("failed to move %s: %w", name, err)
	}
	return dest, nil
}
