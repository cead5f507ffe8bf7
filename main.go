package main

import (
	"fmt"
	golog "log"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vidfetch-api/config"
	"vidfetch-api/credentials"
	"vidfetch-api/database"
	"vidfetch-api/ffmpeg"
	"vidfetch-api/reconcile"
	"vidfetch-api/users"
	"vidfetch-api/workspace"
	"vidfetch-api/ytdlp"
)

var db *gorm.DB
var engine *reconcile.Engine
var creds *credentials.Provider

func ensureAdminAccount(db *gorm.DB) error {

	var user users.User
	if err := db.Where("username = ?", "admin").First(&user).Error; err != nil {
		// no such user

		password, err := config.GetAdminInitialPassword()
		if err != nil {
			return err
		}

		err = users.Create(db, "admin", password)
		if err != nil {
			return err
		}
	}
	return nil
}

func main() {

	initLogger()

	log.Infof("GitSHA: %s", config.GetGitSHA())
	log.Infof("BuildDate: %s", config.GetBuildDate())

	ffmpeg.Init(log)
	ytdlp.Init(log)
	workspace.Init(log)
	credentials.Init(log)

	gormLogger := logger.New(
		golog.New(os.Stdout, "\r\n", golog.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			ParameterizedQueries:      true,        // Don't include params in the SQL log
			Colorful:                  false,       // Disable color
		},
	)

	// Create data dir for the bookkeeping database
	err := os.MkdirAll(config.GetDataDir(), 0700)
	if err != nil {
		log.Panicf("failed to create data dir %s", config.GetDataDir())
	}

	// Initialize database
	dbPath := filepath.Join(config.GetDataDir(), "vidfetch.db")
	db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		log.Panicf("failed to connect to database %s", dbPath)
	}

	// set only a single connection so we don't actually have concurrent writes
	sqlDB, err := db.DB()
	if err != nil {
		log.Panicln("failed to retrieve database")
	}
	sqlDB.SetMaxOpenConns(1)

	// Migrate the schema
	db.AutoMigrate(&users.User{}, &DownloadRecord{})

	database.Init(db, log)
	defer database.Fini()

	go PeriodicCleanup()

	// create the operator user
	err = ensureAdminAccount(db)
	if err != nil {
		panic(fmt.Sprintf("failed to create admin user: %v", err))
	}

	// credential provider: per-domain cookie files handed to yt-dlp
	creds = credentials.NewProvider(config.GetCookieDir())

	// the reconciliation engine with its real collaborators
	engine = reconcile.New(log)
	engine.Credentials = creds

	// create the cookie store
	key, err := config.GetSessionAuthKey()
	if err != nil {
		panic(fmt.Sprintf("%v", err))
	}
	store = sessions.NewCookieStore(key)

	// Initialize Echo
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Routes
	e.GET("/", rootHandler)
	e.POST("/fetch_info", fetchInfoHandler)
	e.GET("/download", downloadHandler)
	e.POST("/login", loginPostHandler)
	e.GET("/logout", logoutHandler)
	e.GET("/history", historyHandler, authMiddleware)

	secure := config.GetSecure()

	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60, // seconds
		HttpOnly: true,
		Secure:   secure,
	}

	// Start server
	e.Logger.Fatal(e.Start(config.GetListenAddr()))
}
