package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"

	"vidfetch-api/config"
	"vidfetch-api/formats"
	"vidfetch-api/reconcile"
	"vidfetch-api/users"
	"vidfetch-api/workspace"
	"vidfetch-api/ytdlp"
)

func rootHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "running",
		"gitsha":    config.GetGitSHA(),
		"builddate": config.GetBuildDate(),
	})
}

type fetchInfoRequest struct {
	URL string `json:"url"`
}

func fetchInfoHandler(c echo.Context) error {
	infoRequests.Add(1)

	var req fetchInfoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing 'url' field"})
	}
	if strings.Contains(url, "instagram.com/reels/audio") {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Instagram audio pages are not downloadable. Use the actual reel link instead.",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), config.GetExternalTimeout())
	defer cancel()

	info, err := ytdlp.ExtractInfo(ctx, url, creds.ForURL(url))
	if err != nil {
		if errors.Is(err, ytdlp.ErrLoginRequired) {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "this video requires login; supply cookies for the site",
			})
		}
		log.Errorln("fetch_info:", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not resolve video info"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":        info.ID,
		"title":     info.Title,
		"thumbnail": info.Thumbnail,
		"duration":  info.Duration,
		"uploader":  info.Uploader,
		"formats":   formats.Classify(info.Formats, info.Duration),
	})
}

func downloadHandler(c echo.Context) error {
	downloadRequests.Add(1)

	videoURL := strings.TrimSpace(c.QueryParam("video_url"))
	formatID := c.QueryParam("format_id")
	convert := strings.ToLower(c.QueryParam("convert"))
	if videoURL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "missing 'video_url' parameter"})
	}
	if convert != "" && convert != "mp3" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unsupported conversion: " + convert})
	}

	rec := recordDownloadStart(videoURL, formatID, convert, c.RealIP())

	// workspace creation failure aborts before any external call
	ws, err := workspace.New(config.GetDownloadRoot())
	if err != nil {
		log.Errorln("workspace:", err)
		recordDownloadFailed(rec, "workspace creation failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not allocate scratch space"})
	}
	// tied to the request lifetime: runs after the response file has been
	// streamed, and on every error path including client disconnect
	defer ws.Cleanup()

	res, err := engine.Run(c.Request().Context(), ws, reconcile.Request{
		URL:        videoURL,
		FormatID:   formatID,
		ConvertMP3: convert == "mp3",
	})
	if err != nil {
		recordDownloadFailed(rec, err.Error())
		status := http.StatusInternalServerError
		message := "download failed"
		switch {
		case errors.Is(err, reconcile.ErrLoginRequired):
			status = http.StatusUnauthorized
			message = "this video requires login; supply cookies for the site"
		case errors.Is(err, reconcile.ErrFetch):
			message = "could not download the requested stream"
		case errors.Is(err, reconcile.ErrTranscode):
			message = "audio conversion failed"
		}
		log.Errorln("download:", err)
		return c.JSON(status, map[string]string{"error": message})
	}

	var served int64
	if fi, statErr := os.Stat(res.Path); statErr == nil {
		served = fi.Size()
	}
	recordDownloadDone(rec, served)

	c.Response().Header().Set(echo.HeaderContentType, res.MediaType)
	return c.Attachment(res.Path, res.Filename)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loginPostHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	user, err := users.Authenticate(db, req.Username, req.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
	}

	session, err := store.Get(c.Request(), "session")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to retrieve session"})
	}
	session.Values["user_id"] = user.ID
	if err := session.Save(c.Request(), c.Response().Writer); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "unable to save session"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func logoutHandler(c echo.Context) error {
	session, _ := store.Get(c.Request(), "session")
	delete(session.Values, "user_id")
	session.Save(c.Request(), c.Response().Writer)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func historyHandler(c echo.Context) error {
	var recs []DownloadRecord
	db.Order("created_at DESC").Limit(50).Find(&recs)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"info_requests":     infoRequests.Load(),
		"download_requests": downloadRequests.Load(),
		"download_failures": downloadFailures.Load(),
		"recent":            recs,
	})
}
