package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/bookshelf/internal/config"
	http_controllers "github.com/mrlokans/bookshelf/internal/http"
	"github.com/mrlokans/bookshelf/internal/ratelimit"
	"github.com/mrlokans/bookshelf/internal/scheduler"
	"github.com/mrlokans/bookshelf/internal/services"
	"github.com/mrlokans/bookshelf/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting uploads before the workers go away.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Bookshelf v%s", version)

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	deps := tasks.Deps{
		Audit:    app.Audit,
		Uploads:  app.Uploads,
		Jobs:     app.Imports.Jobs(),
		Recorder: app.Audit,
	}

	var taskClient *tasks.Client
	var goroutines *services.GoroutineRunner
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ImportTimeout:   cfg.Tasks.ImportTimeout,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(tasks.NewImportQueue(app.Imports.Process))
		taskClient.Register(tasks.NewHousekeepingQueues(deps)...)
		app.Imports.SetRunner(taskClient)
		go taskClient.Start(workCtx)
	} else {
		log.Printf("Task queue disabled, imports run in-process")
		goroutines = services.NewGoroutineRunner(workCtx, app.Imports.Process)
		app.Imports.SetRunner(goroutines)
	}

	housekeeping := scheduler.NewHousekeeping(housekeepingJobs(cfg, deps, taskClient)...)
	if err := housekeeping.Start(workCtx); err != nil {
		log.Fatalf("Failed to start housekeeping: %v", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		ImportsPerWindow: cfg.RateLimit.ImportsPerWindow,
		ExportsPerWindow: cfg.RateLimit.ExportsPerWindow,
		Window:           cfg.RateLimit.Window,
	})
	defer limiter.Stop()

	defaultUser := config.DefaultUserID
	if cfg.HTTP.RequireUser {
		defaultUser = ""
	}
	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Imports:       app.Imports,
		Exports:       app.Exports,
		Limiter:       limiter,
		Database:      app.DB,
		UserHeader:    cfg.HTTP.UserHeader,
		DefaultUserID: defaultUser,
		Version:       version,
	})

	onShutdown := func(ctx context.Context) {
		housekeeping.Stop()
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
		cancelWork()
		if goroutines != nil {
			goroutines.Wait()
		}
	}

	Serve(router, cfg, onShutdown)
}

// housekeepingJobs schedules the cleanup tasks. With a queue they are
// enqueued so retries and history live in backlite; without one the same
// processors run directly.
func housekeepingJobs(cfg *config.Config, deps tasks.Deps, client *tasks.Client) []scheduler.Job {
	hk := cfg.Housekeeping
	auditTask := tasks.CleanupAuditEventsTask{RetentionDays: cfg.Audit.RetentionDays}
	pruneTask := tasks.PruneJobsTask{RetentionDays: hk.JobRetentionDays}

	if client != nil {
		enqueue := func(task backlite.Task) func(ctx context.Context) error {
			return func(ctx context.Context) error {
				_, err := client.Add(task).Ctx(ctx).Save()
				return err
			}
		}
		return []scheduler.Job{
			{Name: "expire_uploads", Schedule: hk.ExpireUploadsSchedule, Run: enqueue(tasks.ExpireUploadsTask{})},
			{Name: "prune_jobs", Schedule: hk.PruneJobsSchedule, Run: enqueue(pruneTask)},
			{Name: "cleanup_audit_events", Schedule: hk.CleanupAuditSchedule, Run: enqueue(auditTask)},
		}
	}

	expire := tasks.ExpireUploadsProcessor(deps.Uploads, deps.Recorder)
	prune := tasks.PruneJobsProcessor(deps.Jobs, deps.Recorder)
	cleanup := tasks.CleanupAuditEventsProcessor(deps.Audit)
	return []scheduler.Job{
		{Name: "expire_uploads", Schedule: hk.ExpireUploadsSchedule, Run: func(ctx context.Context) error {
			return expire(ctx, tasks.ExpireUploadsTask{})
		}},
		{Name: "prune_jobs", Schedule: hk.PruneJobsSchedule, Run: func(ctx context.Context) error {
			return prune(ctx, pruneTask)
		}},
		{Name: "cleanup_audit_events", Schedule: hk.CleanupAuditSchedule, Run: func(ctx context.Context) error {
			return cleanup(ctx, auditTask)
		}},
	}
}
