// Package formats turns the raw stream descriptor list reported by the
// extraction tool into a ranked, deduplicated menu of audio and video
// download options.
package formats

import (
	"fmt"
	"math"
	"strings"

	"vidfetch-api/ytdlp"
)

// Audio quality tiers, by nominal bitrate in kbps.
const (
	TierLow    = "Low"
	TierMedium = "Medium"
	TierHigh   = "High"
)

const (
	mediumTierKbps = 90
	highTierKbps   = 170

	// below this an estimated size is too unreliable to publish
	minPlausibleEstimate = 100 * 1024

	// lossy mp3 re-encode typically lands a bit under the source size
	mp3SizeRatio = 0.9
)

// Entry is one presentation-ready menu row.
type Entry struct {
	FormatID     string  `json:"format_id"`
	Ext          string  `json:"ext"`
	FormatNote   string  `json:"format_note"`
	NoteClean    string  `json:"format_note_clean,omitempty"`
	Filesize     int64   `json:"filesize,omitempty"`
	FilesizeMB   float64 `json:"filesize_mb,omitempty"`
	FilesizeText string  `json:"filesize_text"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	VCodec       string  `json:"vcodec,omitempty"`
	ACodec       string  `json:"acodec,omitempty"`
	Bitrate      int     `json:"bitrate,omitempty"`
	VideoOnly    bool    `json:"is_video_only,omitempty"`
	Conversion   bool    `json:"is_conversion,omitempty"`
}

// Tier buckets an audio-only bitrate.
func Tier(kbps float64) string {
	if kbps < mediumTierKbps {
		return TierLow
	}
	if kbps < highTierKbps {
		return TierMedium
	}
	return TierHigh
}

// codecs absent from the descriptor are treated the same as "none"
func normCodec(c string) string {
	if c == "" {
		return "none"
	}
	return c
}

func sizeText(bytes int64) (float64, string) {
	if bytes <= 0 {
		return 0, "N/A"
	}
	mb := math.Round(float64(bytes)/(1024*1024)*100) / 100
	return mb, fmt.Sprintf("%.2f MB", mb)
}

type tierPick struct {
	entry Entry
	abr   float64
}

// Classify builds the download menu for one video. duration is the video
// length in seconds and may be 0 when unknown; it is only used to estimate
// sizes the platform did not report. An empty descriptor list yields an
// empty menu, never an error.
//
// Menu order: the synthesized MP3-conversion entry (when any usable audio
// stream exists), then the best raw audio tier, then video formats in the
// order encountered.
func Classify(descriptors []ytdlp.Format, duration float64) []Entry {
	tiers := map[string]tierPick{}
	var videos []Entry

	for _, f := range descriptors {
		vcodec := normCodec(f.VCodec)
		acodec := normCodec(f.ACodec)
		if vcodec == "none" && acodec == "none" {
			continue
		}

		if vcodec == "none" {
			// audio-only descriptor
			if f.ABR <= 0 {
				continue
			}
			tier := Tier(f.ABR)
			if cur, ok := tiers[tier]; ok && f.ABR <= cur.abr {
				continue
			}

			size := reportedSize(f)
			if size == 0 && duration > 0 {
				est := int64(f.ABR * 1000 / 8 * duration)
				if est > minPlausibleEstimate {
					size = est
				}
			}

			kbps := int(math.Round(f.ABR))
			mb, text := sizeText(size)
			tiers[tier] = tierPick{
				abr: f.ABR,
				entry: Entry{
					FormatID:     f.FormatID,
					Ext:          f.Ext,
					FormatNote:   fmt.Sprintf("%s (%d kbps)", tier, kbps),
					NoteClean:    strings.ToLower(tier),
					Filesize:     size,
					FilesizeMB:   mb,
					FilesizeText: text,
					VCodec:       vcodec,
					ACodec:       acodec,
					Bitrate:      kbps,
				},
			}
			continue
		}

		// video descriptor, with or without audio
		label := "Video"
		if f.Height > 0 {
			label = fmt.Sprintf("%dp", f.Height)
		} else if f.FormatNote != "" {
			label = f.FormatNote
		}

		size := reportedSize(f)
		if size == 0 && duration > 0 && f.TBR > 0 {
			size = int64(f.TBR * 1000 / 8 * duration)
		}

		mb, text := sizeText(size)
		videos = append(videos, Entry{
			FormatID:     f.FormatID,
			Ext:          f.Ext,
			FormatNote:   label,
			Filesize:     size,
			FilesizeMB:   mb,
			FilesizeText: text,
			Width:        f.Width,
			Height:       f.Height,
			VCodec:       vcodec,
			ACodec:       acodec,
			VideoOnly:    acodec == "none",
		})
	}

	menu := make([]Entry, 0, len(videos)+2)
	if best, ok := bestTier(tiers); ok {
		menu = append(menu, synthesizeMP3(best), best)
	}
	return append(menu, videos...)
}

func reportedSize(f ytdlp.Format) int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	if f.FilesizeApprox > 0 {
		return f.FilesizeApprox
	}
	return 0
}

// bestTier picks the highest-bitrate tier entry. Lower tiers are not
// published alongside it: the menu offers one raw audio option plus the
// MP3 conversion derived from it.
func bestTier(tiers map[string]tierPick) (Entry, bool) {
	var best tierPick
	found := false
	for _, tier := range []string{TierLow, TierMedium, TierHigh} {
		pick, ok := tiers[tier]
		if !ok {
			continue
		}
		if !found || pick.abr > best.abr {
			best = pick
			found = true
		}
	}
	return best.entry, found
}

// synthesizeMP3 derives the MP3-conversion entry from the best raw audio
// tier. It reuses the source format id so a later fetch pulls the same
// stream; the bitrate is carried for size estimation only, never decoding.
func synthesizeMP3(src Entry) Entry {
	size := int64(float64(src.Filesize) * mp3SizeRatio)
	mb, text := sizeText(size)
	return Entry{
		FormatID:     src.FormatID,
		Ext:          "mp3",
		FormatNote:   fmt.Sprintf("MP3 (%d kbps)", src.Bitrate),
		NoteClean:    "mp3",
		Filesize:     size,
		FilesizeMB:   mb,
		FilesizeText: text,
		ACodec:       src.ACodec,
		VCodec:       "none",
		Bitrate:      src.Bitrate,
		Conversion:   true,
	}
}
