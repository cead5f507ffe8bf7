package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var gitSHA string
var buildDate string

func GetListenAddr() string {
	value, exists := os.LookupEnv("VIDFETCH_LISTEN")
	if exists {
		return value
	}
	return ":8080"
}

func GetDataDir() string {
	value, exists := os.LookupEnv("VIDFETCH_DATA_DIR")
	if exists {
		return value
	}
	return "data"
}

// root for per-request scratch directories
func GetDownloadRoot() string {
	value, exists := os.LookupEnv("VIDFETCH_DOWNLOAD_ROOT")
	if exists {
		return value
	}
	return "ydl_downloads"
}

// defaults to GetDataDir() / cookies
func GetCookieDir() string {
	value, exists := os.LookupEnv("VIDFETCH_COOKIE_DIR")
	if exists {
		return value
	}
	return filepath.Join(GetDataDir(), "cookies")
}

// wall-clock limit for a single yt-dlp / ffmpeg / ffprobe invocation
func GetExternalTimeout() time.Duration {
	key := "VIDFETCH_EXTERNAL_TIMEOUT_SECONDS"
	if value, exists := os.LookupEnv(key); exists {
		secs, err := strconv.Atoi(value)
		if err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 15 * time.Minute
}

func GetAdminInitialPassword() (string, error) {
	key := "VIDFETCH_ADMIN_INITIAL_PASSWORD"
	value, exists := os.LookupEnv(key)
	if exists {
		return value, nil
	}
	return "", fmt.Errorf("please set %s", key)
}

func GetSessionAuthKey() ([]byte, error) {
	key := "VIDFETCH_SESSION_AUTH_KEY"
	value, exists := os.LookupEnv(key)
	if exists {
		return []byte(value), nil
	}
	return []byte{}, fmt.Errorf("please set %s", key)
}

func GetSecure() bool {
	key := "VIDFETCH_SECURE"
	if value, exists := os.LookupEnv(key); exists {
		lower := strings.ToLower(value)
		if lower == "on" || lower == "1" || lower == "true" || lower == "yes" {
			return true
		}
	}
	return false
}

func GetGitSHA() string {
	if gitSHA == "" {
		return "<not provided>"
	} else {
		return gitSHA
	}
}

func GetBuildDate() string {
	if buildDate == "" {
		return "<not provided>"
	} else {
		return buildDate
	}
}
