package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Audit
		Tasks
		Import
		Dedupe
		RateLimit
		Housekeeping
	}

	HTTP struct {
		Port int32
		Host string
		// UserHeader names the request header carrying the caller's user id,
		// set by whatever authenticates requests in front of the server.
		UserHeader string
		// RequireUser rejects requests without UserHeader instead of acting
		// as DefaultUserID.
		RequireUser bool
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Audit struct {
		Dir           string
		RetentionDays int
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ImportTimeout   time.Duration
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Import struct {
		MaxUploadBytes   int64
		UploadTTL        time.Duration
		StagingDir       string
		PreviewLimit     int
		ProgressEvery    int
		RecordsPerSecond float64 // used for time estimates before a job has run
	}
	Dedupe struct {
		TitleWeight    float64
		AuthorWeight   float64
		Threshold      float64
		SubstringScore float64
	}
	RateLimit struct {
		ImportsPerWindow int
		ExportsPerWindow int
		Window           time.Duration
	}
	Housekeeping struct {
		ExpireUploadsSchedule string // "off" disables
		PruneJobsSchedule     string
		CleanupAuditSchedule  string
		JobRetentionDays      int
	}
)

// LoadEnvFiles loads .env.local then .env into the environment. Variables
// already set win, and missing files are ignored.
func LoadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err == nil {
			log.Printf("Loaded environment from %s", name)
		}
	}
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("user_header", "X-User-ID")
	v.SetDefault("require_user", false)
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("audit_dir", "./audit")
	v.SetDefault("audit_retention_days", 90)

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_import_timeout", "30m")
	v.SetDefault("task_release_after", "45m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Import defaults
	v.SetDefault("import_max_upload_bytes", 100<<20)
	v.SetDefault("import_upload_ttl", "1h")
	v.SetDefault("import_staging_dir", "./uploads")
	v.SetDefault("import_preview_limit", 50)
	v.SetDefault("import_progress_every", 25)
	v.SetDefault("import_records_per_second", 50)

	// Duplicate detection defaults
	v.SetDefault("dedupe_title_weight", 0.7)
	v.SetDefault("dedupe_author_weight", 0.3)
	v.SetDefault("dedupe_threshold", 0.8)
	v.SetDefault("dedupe_substring_score", 0.8)

	v.SetDefault("rate_limit_imports", 10)
	v.SetDefault("rate_limit_exports", 30)
	v.SetDefault("rate_limit_window", "1h")

	// Housekeeping defaults
	v.SetDefault("housekeeping_expire_uploads_schedule", "*/15 * * * *")
	v.SetDefault("housekeeping_prune_jobs_schedule", "0 3 * * *")
	v.SetDefault("housekeeping_cleanup_audit_schedule", "0 0 * * 0")
	v.SetDefault("housekeeping_job_retention_days", 30)

	return &Config{
		HTTP: HTTP{
			Port:        v.GetInt32("PORT"),
			Host:        v.GetString("HOST"),
			UserHeader:  v.GetString("USER_HEADER"),
			RequireUser: v.GetBool("REQUIRE_USER"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Audit: Audit{
			Dir:           v.GetString("AUDIT_DIR"),
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ImportTimeout:   v.GetDuration("TASK_IMPORT_TIMEOUT"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Import: Import{
			MaxUploadBytes:   v.GetInt64("IMPORT_MAX_UPLOAD_BYTES"),
			UploadTTL:        v.GetDuration("IMPORT_UPLOAD_TTL"),
			StagingDir:       v.GetString("IMPORT_STAGING_DIR"),
			PreviewLimit:     v.GetInt("IMPORT_PREVIEW_LIMIT"),
			ProgressEvery:    v.GetInt("IMPORT_PROGRESS_EVERY"),
			RecordsPerSecond: v.GetFloat64("IMPORT_RECORDS_PER_SECOND"),
		},
		Dedupe: Dedupe{
			TitleWeight:    v.GetFloat64("DEDUPE_TITLE_WEIGHT"),
			AuthorWeight:   v.GetFloat64("DEDUPE_AUTHOR_WEIGHT"),
			Threshold:      v.GetFloat64("DEDUPE_THRESHOLD"),
			SubstringScore: v.GetFloat64("DEDUPE_SUBSTRING_SCORE"),
		},
		RateLimit: RateLimit{
			ImportsPerWindow: v.GetInt("RATE_LIMIT_IMPORTS"),
			ExportsPerWindow: v.GetInt("RATE_LIMIT_EXPORTS"),
			Window:           v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Housekeeping: Housekeeping{
			ExpireUploadsSchedule: v.GetString("HOUSEKEEPING_EXPIRE_UPLOADS_SCHEDULE"),
			PruneJobsSchedule:     v.GetString("HOUSEKEEPING_PRUNE_JOBS_SCHEDULE"),
			CleanupAuditSchedule:  v.GetString("HOUSEKEEPING_CLEANUP_AUDIT_SCHEDULE"),
			JobRetentionDays:      v.GetInt("HOUSEKEEPING_JOB_RETENTION_DAYS"),
		},
	}
}
