package router

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/velmark/draftline/internal/lib/ffprobe"
	"github.com/velmark/draftline/internal/storage/sqlite"

	authSrv "github.com/velmark/draftline/internal/service/auth"
	exportSrv "github.com/velmark/draftline/internal/service/export"
	jwtSrv "github.com/velmark/draftline/internal/service/jwt"
	librarySrv "github.com/velmark/draftline/internal/service/library"
	rootSrv "github.com/velmark/draftline/internal/service/root"
	timelineSrv "github.com/velmark/draftline/internal/service/timeline"

	authCtr "github.com/velmark/draftline/internal/controller/auth"
	exportCtr "github.com/velmark/draftline/internal/controller/export"
	jwtCtr "github.com/velmark/draftline/internal/controller/jwt"
	libraryCtr "github.com/velmark/draftline/internal/controller/library"
	rootCtr "github.com/velmark/draftline/internal/controller/root"
	sessionCtr "github.com/velmark/draftline/internal/controller/session"
)

type App struct {
	log     *slog.Logger
	address string
	app     *fiber.App
}

// New returns configured router.App
func New(
	log *slog.Logger,
	storage *sqlite.Storage,
	export *exportSrv.Export,
	probe *ffprobe.Probe,
	address string,
	timeout time.Duration,
	tokenTTL time.Duration,
	secret []byte,
	rootPass []byte,
	tmpDir string,
	sourceDir string,
	sessionCapacity int,
) *App {
	// Create sevices
	jwt := jwtSrv.New(secret)

	rootPassHash, err := bcrypt.GenerateFromPassword(rootPass, bcrypt.DefaultCost)
	if err != nil {
		panic("invalid root password")
	}
	auth := authSrv.New(
		log,
		storage,
		jwt,
		rootPassHash,
		tokenTTL,
	)

	root := rootSrv.New(
		log,
		storage,
	)

	library := librarySrv.New(
		log,
		storage,
		probe,
		sourceDir,
	)

	timeline := timelineSrv.New(
		log,
		storage,
		library,
		sessionCapacity,
	)

	// Create controller helper
	jwtCtr := jwtCtr.New(secret)

	app := fiber.New()

	// Mount controllers to an app
	app.Mount("/login", authCtr.New(timeout, auth))
	app.Mount("/root", rootCtr.New(root, jwtCtr))
	app.Mount("/library", libraryCtr.New(library, jwtCtr, tmpDir))
	app.Mount("/session", sessionCtr.New(timeline, jwtCtr))
	app.Mount("/export", exportCtr.New(export, jwtCtr))

	return &App{
		log:     log,
		address: address,
		app:     app,
	}
}

func (a *App) MustRun() {
	if err := a.Run(); err != nil {
		panic(err)
	}
}

func (a *App) Run() error {
	return a.app.Listen(a.address)
}

func (a *App) Stop() {
	a.app.Shutdown()
}
