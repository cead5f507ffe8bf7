// Package reconcile turns possibly-incomplete source streams into one
// guaranteed-playable output file: it decides whether a chosen stream
// already carries audio, fetches a companion track when it does not, and
// merges the pair into a single container with deterministic fallback.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"vidfetch-api/config"
	"vidfetch-api/ffmpeg"
	"vidfetch-api/workspace"
	"vidfetch-api/ytdlp"
)

// Plan is the fetch/merge strategy derived from one stream selection.
// Computed per request, never persisted.
type Plan int

const (
	ServeDirect Plan = iota
	FetchCompanionAudio
	TranscodeOnly
	ConvertToAudioOnly
)

func (p Plan) String() string {
	switch p {
	case ServeDirect:
		return "serve-direct"
	case FetchCompanionAudio:
		return "fetch-companion-audio"
	case TranscodeOnly:
		return "transcode-only"
	case ConvertToAudioOnly:
		return "convert-to-audio-only"
	}
	return "unknown"
}

// Extractor resolves URLs into stream metadata and performs downloads.
// Selector syntax belongs to the external tool and is passed through.
type Extractor interface {
	ExtractInfo(ctx context.Context, url, cookieFile string) (*ytdlp.Info, error)
	Download(ctx context.Context, url, selector, outTmpl, cookieFile string) error
}

// Prober answers whether a downloaded container carries audio.
type Prober interface {
	HasAudio(ctx context.Context, path string) bool
}

// Transcoder runs the external transcoding tool.
type Transcoder interface {
	Run(ctx context.Context, args ...string) (stdout, stderr []byte, err error)
}

// CredentialProvider maps a URL to an opaque cookie-file handle, or "".
type CredentialProvider interface {
	ForURL(rawurl string) string
}

// Request is one reconciliation job. An empty FormatID asks the extraction
// tool for its best composite stream. ConvertMP3 marks the menu's
// synthesized MP3 entry, with FormatID naming the underlying audio stream.
type Request struct {
	URL        string
	FormatID   string
	ConvertMP3 bool
}

// Result is the final artifact, living inside the request's workspace.
type Result struct {
	Path      string
	Filename  string
	MediaType string
	Title     string
}

// Engine holds the injected collaborators. It keeps no per-request state,
// so one Engine serves all requests concurrently.
type Engine struct {
	Extractor   Extractor
	Prober      Prober
	Transcoder  Transcoder
	Credentials CredentialProvider

	log *logrus.Logger
}

// New returns an Engine wired to the real external tools.
func New(logger *logrus.Logger) *Engine {
	return &Engine{
		Extractor:   ytdlpExtractor{},
		Prober:      ffprobeProber{},
		Transcoder:  ffmpegTranscoder{},
		Credentials: noCredentials{},
		log:         logger,
	}
}

const (
	compositeSelector = "bestvideo+bestaudio/best"
	bestVideoSelector = "bestvideo/best"
	bestAudioSelector = "bestaudio"
	bestAnySelector   = "bestaudio/best"
)

// Run executes the full state machine: probe, classify intent, fetch,
// verify, fetch companion audio, execute. The caller owns ws and its
// cleanup; every file Run produces lives inside it.
func (e *Engine) Run(ctx context.Context, ws *workspace.Workspace, req Request) (*Result, error) {
	cookie := e.Credentials.ForURL(req.URL)
	if req.ConvertMP3 {
		return e.runAudioOnly(ctx, ws, req, cookie)
	}
	return e.runVideo(ctx, ws, req, cookie)
}

func (e *Engine) runVideo(ctx context.Context, ws *workspace.Workspace, req Request, cookie string) (*Result, error) {
	// Re-resolve the stream list. A menu handed to the client earlier may
	// be stale, and the chosen id's audio claim must come from fresh data.
	plan := ServeDirect
	selector := req.FormatID
	title := ""

	info, err := e.Extractor.ExtractInfo(ctx, req.URL, cookie)
	switch {
	case errors.Is(err, ytdlp.ErrLoginRequired):
		return nil, fmt.Errorf("%w: %v", ErrLoginRequired, err)
	case err != nil:
		// A failed lookup alone never aborts the request: assume the worst
		// (no audio) and fall back to a generic best-video fetch.
		e.log.Warnf("stream probe failed, assuming audio-less best video: %v", err)
		plan = FetchCompanionAudio
		if selector != "" {
			selector = bestVideoSelector
		}
	default:
		title = info.Title
		if req.FormatID == "" {
			selector = compositeSelector
		} else if matched := findFormat(info.Formats, req.FormatID); matched == nil {
			e.log.Warnf("format %q not offered anymore, fetching best video instead", req.FormatID)
			plan = FetchCompanionAudio
			selector = bestVideoSelector
		} else if matched.ACodec == "" || matched.ACodec == "none" {
			plan = FetchCompanionAudio
		}
	}
	if selector == "" {
		selector = compositeSelector
	}

	// Fetch the primary stream. Failure here is fatal.
	if err := e.Extractor.Download(ctx, req.URL, selector, ws.Path("%(title).200s.%(ext)s"), cookie); err != nil {
		if errors.Is(err, ytdlp.ErrLoginRequired) {
			return nil, fmt.Errorf("%w: %v", ErrLoginRequired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	primary, err := ws.LargestFile()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	// The on-disk file is the ground truth; extraction metadata can be
	// wrong or stale.
	verified := e.Prober.HasAudio(ctx, primary)
	if plan == ServeDirect && !verified {
		e.log.Infof("%s claims audio but the download has none, escalating", req.FormatID)
		plan = FetchCompanionAudio
	}

	// Companion audio is best effort: without it the executor injects
	// silence rather than failing the request.
	companion := ""
	if plan == FetchCompanionAudio {
		audioOut := ws.Path("audio.m4a")
		if err := e.Extractor.Download(ctx, req.URL, bestAudioSelector, audioOut, cookie); err != nil {
			e.log.Warnf("companion audio fetch failed, proceeding without: %v", err)
		} else if _, statErr := os.Stat(audioOut); statErr == nil {
			companion = audioOut
		}
	}

	if plan == ServeDirect {
		// Already a compliant container with verified audio: a re-encode
		// would be wasted work.
		if strings.EqualFold(filepath.Ext(primary), ".mp4") {
			e.log.Infof("plan %s: serving %s as-is", plan, primary)
			return rawResult(primary, title), nil
		}
		plan = TranscodeOnly
	}

	e.log.Infof("plan %s: primary=%s companion=%s", plan, primary, companion)

	out := ws.Path("final.mp4")
	if err := e.mergeToMP4(ctx, primary, companion, out); err != nil {
		// Best effort beats nothing: the raw fetch is still a video.
		e.log.Errorf("merge failed, serving raw download: %v", err)
		return rawResult(primary, title), nil
	}
	return &Result{
		Path:      out,
		Filename:  filepath.Base(out),
		MediaType: "video/mp4",
		Title:     title,
	}, nil
}

func (e *Engine) runAudioOnly(ctx context.Context, ws *workspace.Workspace, req Request, cookie string) (*Result, error) {
	selector := req.FormatID
	if selector == "" {
		selector = bestAnySelector
	}

	// Metadata is only needed for tags here; failures surface on the
	// fetch below if they matter.
	title, artist := "", ""
	if info, err := e.Extractor.ExtractInfo(ctx, req.URL, cookie); err == nil {
		title, artist = info.Title, info.Uploader
	} else {
		e.log.Warnf("metadata probe failed, converting untagged: %v", err)
	}

	if err := e.Extractor.Download(ctx, req.URL, selector, ws.Path("%(title).200s.%(ext)s"), cookie); err != nil {
		if errors.Is(err, ytdlp.ErrLoginRequired) {
			return nil, fmt.Errorf("%w: %v", ErrLoginRequired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	src, err := ws.LargestFile()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	e.log.Infof("plan %s: source=%s", ConvertToAudioOnly, src)

	// No fallback: serving the unconverted source as if it were an MP3
	// would be a silently-wrong file.
	out := ws.Path("audio.mp3")
	if err := e.convertToMP3(ctx, src, out, title, artist); err != nil {
		return nil, err
	}
	return &Result{
		Path:      out,
		Filename:  filepath.Base(out),
		MediaType: "audio/mpeg",
		Title:     title,
	}, nil
}

func findFormat(formats []ytdlp.Format, id string) *ytdlp.Format {
	for i := range formats {
		if formats[i].FormatID == id {
			return &formats[i]
		}
	}
	return nil
}

func rawResult(path, title string) *Result {
	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = "video/mp4"
	}
	return &Result{
		Path:      path,
		Filename:  filepath.Base(path),
		MediaType: mediaType,
		Title:     title,
	}
}

// production collaborators
//
// Each external invocation gets its own wall-clock deadline; a timeout is
// treated like any other fetch/transcode failure.

type ytdlpExtractor struct{}

func (ytdlpExtractor) ExtractInfo(ctx context.Context, url, cookieFile string) (*ytdlp.Info, error) {
	ctx, cancel := context.WithTimeout(ctx, config.GetExternalTimeout())
	defer cancel()
	return ytdlp.ExtractInfo(ctx, url, cookieFile)
}

func (ytdlpExtractor) Download(ctx context.Context, url, selector, outTmpl, cookieFile string) error {
	ctx, cancel := context.WithTimeout(ctx, config.GetExternalTimeout())
	defer cancel()
	return ytdlp.Download(ctx, url, selector, outTmpl, cookieFile)
}

type ffprobeProber struct{}

func (ffprobeProber) HasAudio(ctx context.Context, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, config.GetExternalTimeout())
	defer cancel()
	return ffmpeg.HasAudio(ctx, path)
}

type ffmpegTranscoder struct{}

func (ffmpegTranscoder) Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, config.GetExternalTimeout())
	defer cancel()
	return ffmpeg.Ffmpeg(ctx, args...)
}

type noCredentials struct{}

func (noCredentials) ForURL(string) string { return "" }
