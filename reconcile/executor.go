package reconcile

import (
	"context"
	"fmt"
	"os"
)

// buildMergeArgs shapes the ffmpeg invocation for a single H.264/AAC mp4.
// With a companion track, the primary's first video stream is paired with
// the companion's first audio stream, truncated to the shorter input.
// Without one, a silent stereo track is synthesized so the output always
// has a playable audio channel. faststart moves the index up front for
// progressive playback.
func buildMergeArgs(videoPath, audioPath, outPath string) []string {
	if audioPath != "" {
		return []string{"-y",
			"-i", videoPath,
			"-i", audioPath,
			"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
			"-c:a", "aac", "-b:a", "128k",
			"-map", "0:v:0", "-map", "1:a:0",
			"-shortest", "-movflags", "+faststart",
			outPath,
		}
	}
	return []string{"-y",
		"-i", videoPath,
		"-f", "lavfi", "-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-shortest",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		"-map", "0:v:0", "-map", "1:a:0",
		"-movflags", "+faststart",
		outPath,
	}
}

func buildMP3Args(srcPath, outPath, title, artist string) []string {
	args := []string{"-y",
		"-i", srcPath,
		"-vn",
		"-acodec", "mp3", "-b:a", "192k",
	}
	if title != "" {
		args = append(args, "-metadata", "title="+title)
	}
	if artist != "" {
		args = append(args, "-metadata", "artist="+artist)
	}
	return append(args, outPath)
}

func (e *Engine) mergeToMP4(ctx context.Context, videoPath, audioPath, outPath string) error {
	_, stderr, err := e.Transcoder.Run(ctx, buildMergeArgs(videoPath, audioPath, outPath)...)
	if err != nil {
		e.log.Errorf("ffmpeg merge: %v\n%s", err, stderr)
		return fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	if _, err := os.Stat(outPath); err != nil {
		e.log.Errorf("ffmpeg reported success but %s is missing", outPath)
		return fmt.Errorf("%w: output missing", ErrTranscode)
	}
	return nil
}

func (e *Engine) convertToMP3(ctx context.Context, srcPath, outPath, title, artist string) error {
	_, stderr, err := e.Transcoder.Run(ctx, buildMP3Args(srcPath, outPath, title, artist)...)
	if err != nil {
		e.log.Errorf("ffmpeg mp3 convert: %v\n%s", err, stderr)
		return fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	if _, err := os.Stat(outPath); err != nil {
		e.log.Errorf("ffmpeg reported success but %s is missing", outPath)
		return fmt.Errorf("%w: output missing", ErrTranscode)
	}
	return nil
}
