package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"vidfetch-api/credentials"
	"vidfetch-api/reconcile"
	"vidfetch-api/users"
	"vidfetch-api/workspace"
	"vidfetch-api/ytdlp"
)

type stubExtractor struct {
	info        *ytdlp.Info
	infoErr     error
	primaryName string
	failFetch   bool
}

func (s *stubExtractor) ExtractInfo(ctx context.Context, url, cookieFile string) (*ytdlp.Info, error) {
	return s.info, s.infoErr
}

func (s *stubExtractor) Download(ctx context.Context, url, selector, outTmpl, cookieFile string) error {
	if s.failFetch {
		return errors.New("fetch refused")
	}
	name := s.primaryName
	if name == "" {
		name = "clip.mp4"
	}
	return os.WriteFile(filepath.Join(filepath.Dir(outTmpl), name), []byte("media-bytes"), 0600)
}

type stubProber struct{}

func (stubProber) HasAudio(ctx context.Context, path string) bool { return true }

type stubTranscoder struct{}

func (stubTranscoder) Run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	return nil, nil, os.WriteFile(args[len(args)-1], []byte("merged"), 0600)
}

func setupTest(t *testing.T, ex reconcile.Extractor) string {
	t.Helper()

	log = logrus.New()
	log.SetLevel(logrus.PanicLevel)
	workspace.Init(log)
	credentials.Init(log)

	var err error
	db, err = gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.AutoMigrate(&users.User{}, &DownloadRecord{})

	downloadRoot := t.TempDir()
	t.Setenv("VIDFETCH_DOWNLOAD_ROOT", downloadRoot)

	creds = credentials.NewProvider(t.TempDir())
	store = sessions.NewCookieStore([]byte("test-session-key"))

	engine = reconcile.New(log)
	engine.Extractor = ex
	engine.Prober = stubProber{}
	engine.Transcoder = stubTranscoder{}

	return downloadRoot
}

func doRequest(method, target string, handler echo.HandlerFunc, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := handler
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	h(c)
	return rec
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read %s: %v", dir, err)
	}
	if len(entries) != 0 {
		t.Fatalf("%s not empty after request: %v", dir, entries)
	}
}

func TestDownloadHandler_MissingURL(t *testing.T) {
	setupTest(t, &stubExtractor{})

	rec := doRequest(http.MethodGet, "/download", downloadHandler)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDownloadHandler_UnsupportedConversion(t *testing.T) {
	setupTest(t, &stubExtractor{})

	rec := doRequest(http.MethodGet, "/download?video_url=https://example.com/v&convert=ogg", downloadHandler)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDownloadHandler_ServesArtifactAndCleansWorkspace(t *testing.T) {
	info := &ytdlp.Info{
		Title: "Demo",
		Formats: []ytdlp.Format{
			{FormatID: "22", Ext: "mp4", VCodec: "avc1", ACodec: "mp4a"},
		},
	}
	root := setupTest(t, &stubExtractor{info: info})

	rec := doRequest(http.MethodGet, "/download?video_url=https://example.com/v&format_id=22", downloadHandler)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s, want 200", rec.Code, rec.Body.String())
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty response body for a served artifact")
	}
	assertEmptyDir(t, root)

	var count int64
	db.Model(&DownloadRecord{}).Where("status = ?", "completed").Count(&count)
	if count != 1 {
		t.Fatalf("completed download records = %d, want 1", count)
	}
}

func TestDownloadHandler_FetchFailureCleansWorkspace(t *testing.T) {
	root := setupTest(t, &stubExtractor{failFetch: true})

	rec := doRequest(http.MethodGet, "/download?video_url=https://example.com/v&format_id=22", downloadHandler)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error response is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Fatal("error response has no message")
	}
	assertEmptyDir(t, root)
}

func TestDownloadHandler_ExtractorDownIsFatal(t *testing.T) {
	infoErr := errors.New("extractor down")
	setupTest(t, &stubExtractor{infoErr: infoErr, failFetch: true})

	// with both probe and fetch failing the request is fatal, generic 500
	rec := doRequest(http.MethodGet, "/download?video_url=https://example.com/v&format_id=22", downloadHandler)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestFetchInfoHandler_MissingURL(t *testing.T) {
	setupTest(t, &stubExtractor{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/fetch_info", nil)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	fetchInfoHandler(e.NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHistoryHandler_RequiresLogin(t *testing.T) {
	setupTest(t, &stubExtractor{})

	rec := doRequest(http.MethodGet, "/history", historyHandler, authMiddleware)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
