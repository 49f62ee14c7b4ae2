package engine

import (
	"context"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/logger"
)

// Spotdl drives the spotdl CLI.
type Spotdl struct {
	Bin     string
	Timeout time.Duration
	Runner  Runner
}

// Download runs `spotdl download <url> --output <dir> --format mp3`. The
// caller decides what counts as success; exit 0 alone does not.
func (s *Spotdl) Download(ctx context.Context, url, dir string) RunResult {
	bin := s.Bin
	if bin == "" {
		bin = "spotdl"
	}
	args := []string{"download", url, "--output", dir, "--format", "mp3"}

	res := run(ctx, s.Runner, s.Timeout, dir, bin, args)
	log.Emit(logger.DEBUG, "spotdl stdout: %s", res.Stdout)
	log.Emit(logger.DEBUG, "spotdl stderr: %s", res.Stderr)
	return res
}

// InstaloaderCLI drives the instaloader command line tool.
type InstaloaderCLI struct {
	Bin     string
	Timeout time.Duration
	Runner  Runner
}

// Download fetches the post identified by shortcode into dir. Session
// arguments are added only when both username and session file are set.
func (i *InstaloaderCLI) Download(ctx context.Context, shortcode, dir, username, sessionFile string) RunResult {
	bin := i.Bin
	if bin == "" {
		bin = "instaloader"
	}
	args := InstaloaderArgs(shortcode, dir, username, sessionFile)

	res := run(ctx, i.Runner, i.Timeout, dir, bin, args)
	log.Emit(logger.INFO, "instaloader CLI stdout: %s", res.Stdout)
	log.Emit(logger.INFO, "instaloader CLI stderr: %s", res.Stderr)
	return res
}

// InstaloaderArgs builds the argument list for a single post download. The
// shortcode is the last, positional argument.
func InstaloaderArgs(shortcode, dir, username, sessionFile string) []string {
	args := []string{
		"--dirname-pattern", dir,
		"--no-metadata-json",
		"--no-compress-json",
		"--no-captions",
		"--no-profile-pic",
	}
	if username != "" && sessionFile != "" {
		args = append(args, "--login", username, "--sessionfile", sessionFile)
	}
	return append(args, shortcode)
}

func run(ctx context.Context, r Runner, timeout time.Duration, dir, bin string, args []string) RunResult {
	if r == nil {
		r = ExecRunner{}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.Run(ctx, dir, bin, args...)
}
