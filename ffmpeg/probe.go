package ffmpeg

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
)

// probeRunner is swapped out by tests
var probeRunner = Ffprobe

// HasAudio reports whether the container at path carries at least one audio
// stream. When ffprobe cannot run or its output is unreadable the answer is
// true: a wrong "yes" costs a redundant merge, a wrong "no" replaces real
// audio with silence. Known imprecision: a truly silent source can be served
// without the silent-track safeguard firing.
func HasAudio(ctx context.Context, path string) bool {
	stdout, _, err := probeRunner(ctx,
		"-v", "error",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		path)
	if err != nil {
		log.Errorln("ffprobe error, assuming audio present:", err)
		return true
	}
	return hasAudioLine(stdout)
}

func hasAudioLine(out []byte) bool {
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "audio" {
			return true
		}
	}
	return false
}

type probeStreams struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

// StreamInfo returns the codec names per stream type, e.g.
// {"audio": ["aac"], "video": ["h264"]}. Probe failures yield empty lists.
func StreamInfo(ctx context.Context, path string) map[string][]string {
	info := map[string][]string{"audio": {}, "video": {}}

	stdout, _, err := probeRunner(ctx,
		"-v", "error",
		"-show_entries", "stream=index,codec_type,codec_name",
		"-of", "json",
		path)
	if err != nil {
		return info
	}

	var parsed probeStreams
	if err := json.Unmarshal(stdout, &parsed); err != nil {
		log.Errorln("failed to parse ffprobe output:", err)
		return info
	}
	for _, s := range parsed.Streams {
		if s.CodecType == "" || s.CodecName == "" {
			continue
		}
		if _, ok := info[s.CodecType]; ok {
			info[s.CodecType] = append(info[s.CodecType], s.CodecName)
		}
	}
	return info
}

// Duration returns the container duration in seconds, or an error.
func Duration(ctx context.Context, path string) (float64, error) {
	stdout, _, err := probeRunner(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return -1, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(stdout)), 64)
}
