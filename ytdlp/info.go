package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrLoginRequired indicates the platform refused the request until the
// caller supplies credentials (cookies).
var ErrLoginRequired = errors.New("login required")

// Format is one raw stream descriptor exactly as yt-dlp reports it.
// Optional fields are zero when the platform omits them.
type Format struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	ABR            float64 `json:"abr"`
	TBR            float64 `json:"tbr"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	FormatNote     string  `json:"format_note"`
}

type Info struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail"`
	Duration  float64  `json:"duration"`
	Uploader  string   `json:"uploader"`
	Formats   []Format `json:"formats"`
}

// ExtractInfo resolves url into metadata plus the full stream descriptor
// list, without downloading anything. cookieFile may be empty.
func ExtractInfo(ctx context.Context, url, cookieFile string) (*Info, error) {
	args := []string{
		"--no-warnings",
		"--no-playlist",
		"--geo-bypass",
		"--user-agent", browserUserAgent,
		"-J",
	}
	if cookieFile != "" {
		args = append(args, "--cookies", cookieFile)
	}
	args = append(args, url)

	stdout, stderr, err := Run(ctx, args...)
	if err != nil {
		return nil, classifyError(err, stderr)
	}

	var info Info
	if err := json.Unmarshal(stdout, &info); err != nil {
		log.Errorln("failed to parse yt-dlp output:", err)
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	return &info, nil
}

// classifyError inspects collaborator stderr so callers can tell the user
// to supply credentials instead of reporting a generic failure.
func classifyError(err error, stderr []byte) error {
	text := strings.ToLower(string(stderr))
	for _, needle := range []string{
		"sign in",
		"log in",
		"login required",
		"--cookies",
		"account",
	} {
		if strings.Contains(text, needle) {
			return fmt.Errorf("%w: %v", ErrLoginRequired, err)
		}
	}
	return fmt.Errorf("yt-dlp: %w", err)
}
