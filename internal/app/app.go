package app

import (
	"log/slog"
	"os"
	"time"

	routerApp "github.com/velmark/draftline/internal/app/router"
	"github.com/velmark/draftline/internal/lib/ffprobe"
	"github.com/velmark/draftline/internal/lib/logger/sl"
	"github.com/velmark/draftline/internal/storage/sqlite"

	billingClient "github.com/velmark/draftline/internal/client/billing"
	renderClient "github.com/velmark/draftline/internal/client/render"
	storageClient "github.com/velmark/draftline/internal/client/storage"

	exportSrv "github.com/velmark/draftline/internal/service/export"
)

type App struct {
	Router routerApp.App
	Export *exportSrv.Export

	log     *slog.Logger
	storage *sqlite.Storage
}

func New(
	log *slog.Logger,
	address string,
	storagePath string,
	timeout time.Duration,
	tokenTTL time.Duration,
	secret []byte,
	rootPass []byte,
	tmpDir string,
	sourceDir string,
	sessionCapacity int,
	workDir string,
	renderBin string,
	renderThreads int,
	renderTimeout time.Duration,
	queueLen int,
	costPerMinute int64,
	reapTTL time.Duration,
	reapFreq time.Duration,
	gatewayAddress string,
	gatewayTimeout time.Duration,
	billingAddress string,
	billingTimeout time.Duration,
) *App {
	storage, err := sqlite.New(storagePath)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	probe := ffprobe.New()

	renderer := renderClient.New(
		log,
		renderBin,
		workDir,
		renderThreads,
	)

	gateway := storageClient.New(
		log,
		gatewayAddress,
		gatewayTimeout,
	)

	billing := billingClient.New(
		log,
		billingAddress,
		billingTimeout,
	)

	export := exportSrv.New(
		log,
		storage,
		renderer,
		gateway,
		billing,
		probe,
		workDir,
		queueLen,
		renderTimeout,
		costPerMinute,
		reapTTL,
		reapFreq,
	)

	routerApp := routerApp.New(
		log,
		storage,
		export,
		probe,
		address,
		timeout,
		tokenTTL,
		secret,
		rootPass,
		tmpDir,
		sourceDir,
		sessionCapacity,
	)

	return &App{
		Router:  *routerApp,
		Export:  export,
		log:     log,
		storage: storage,
	}
}

func (a *App) Stop() {
	a.Router.Stop()
	a.Export.Stop()

	if err := a.storage.Stop(); err != nil {
		a.log.Error("failed to close storage", sl.Err(err))
	}
}
