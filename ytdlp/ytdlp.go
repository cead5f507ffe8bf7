package ytdlp

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// runs yt-dlp with the provided args and returns (stdout, stderr, error)
func Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	ytdlp := "yt-dlp"
	log.Infoln(ytdlp, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, ytdlp, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if err != nil {
		log.Errorf("yt-dlp error: %v", err)
		log.Infoln("stderr:", stderr.String())
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

// Download fetches the streams matched by selector into outTmpl, which is a
// yt-dlp output template (yt-dlp picks the final file name itself).
// cookieFile may be empty.
func Download(ctx context.Context, url, selector, outTmpl, cookieFile string) error {
	args := []string{
		"--no-warnings",
		"--no-playlist",
		"--geo-bypass",
		"-f", selector,
		"-o", outTmpl,
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	args = append(args, url)

	_, stderr, err := Run(ctx, args...)
	if err != nil {
		return classifyError(err, stderr)
	}
	return nil
}
