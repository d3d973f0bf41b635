package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/finlit-labs/lessonforge/internal/content"
	"github.com/finlit-labs/lessonforge/internal/handler"
	appI18n "github.com/finlit-labs/lessonforge/internal/i18n"
	"github.com/finlit-labs/lessonforge/internal/model"
	"github.com/finlit-labs/lessonforge/internal/store"
	"github.com/finlit-labs/lessonforge/internal/tutor"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lessonforge",
		Short: "Interactive lesson server for financial literacy courses",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `lessonforge --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP lesson server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "lessonforge.db", "SQLite database path")
	f.StringSliceP("lessons", "L", nil, "Paths to lesson JSON files (repeatable)")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.Bool("hints", false, "Enable tutor hints")
	f.String("tutor-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL for hints")
	f.String("tutor-key", "ollama", "API key for the tutor")
	f.String("tutor-model", "llama3.2", "Tutor model name")
	f.String("cohort-id", "", "Cohort identifier included in result exports")
	f.String("program", "", "Program name included in result exports")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /ru)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set LESSONFORGE_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export lesson results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "lessonforge.db", "SQLite database path")
	f.String("cohort-id", "", "Cohort identifier for output (required)")
	f.String("program", "", "Program name for output (required)")
	f.String("date", "", "Export date in YYYY-MM-DD format (defaults to today)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("cohort-id")
	_ = cmd.MarkFlagRequired("program")

	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("LESSONFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("lessonforge")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lessonforge")
	v.AddConfigPath("/etc/lessonforge")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Open database.
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired auth sessions", "error", err)
	}

	// Import lessons from all specified files.
	if err := loadLessons(db, v.GetStringSlice("lessons")); err != nil {
		return fmt.Errorf("load lessons: %w", err)
	}

	// Record cohort metadata for exports.
	if err := storeCohortInfo(db, v); err != nil {
		return fmt.Errorf("store cohort info: %w", err)
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	// Create the tutor client when hints are enabled.
	hints := v.GetBool("hints")
	var tutorClient *tutor.Client
	if hints {
		tutorClient = tutor.New(
			v.GetString("tutor-url"),
			v.GetString("tutor-key"),
			v.GetString("tutor-model"),
		)
		slog.Info("tutor hints enabled", "url", v.GetString("tutor-url"), "model", v.GetString("tutor-model"))
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	appCfg := model.AppConfig{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		HintsEnabled:  hints,
	}

	h := handler.New(db, tutorClient, appCfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"hints", hints,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllAttempts()
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}

	numLessons, err := db.LessonCount()
	if err != nil {
		return fmt.Errorf("count lessons: %w", err)
	}

	date := v.GetString("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	export := model.ResultsExport{
		CohortID:   v.GetString("cohort-id"),
		Program:    v.GetString("program"),
		Date:       date,
		NumLessons: numLessons,
		Results:    results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// loadLessons imports lesson files at startup. Unchanged files are skipped;
// changed files are skipped with a warning so existing attempts keep the step
// list they started with.
func loadLessons(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := content.Hash(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("lesson file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("lesson file changed since last import, skipping to avoid breaking existing attempts",
				"path", path)
			continue
		}

		lesson, err := content.Parse(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		existing, err := db.GetLessonBySlug(lesson.Slug)
		if err != nil {
			return fmt.Errorf("check slug %s: %w", lesson.Slug, err)
		}
		if existing != nil {
			slog.Warn("lesson slug already exists, skipping", "path", path, "slug", lesson.Slug)
			continue
		}

		if _, err := db.CreateLesson(model.Lesson{
			Slug:        lesson.Slug,
			Title:       lesson.Title,
			Description: lesson.Description,
		}, lesson.Steps); err != nil {
			return fmt.Errorf("store lesson from %s: %w", path, err)
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported lesson", "path", path, "slug", lesson.Slug, "steps", len(lesson.Steps))
	}

	return nil
}

// storeCohortInfo persists the cohort flags so the HTTP export endpoint can
// use them. Empty flags leave any previously stored values in place.
func storeCohortInfo(db *store.Store, v *viper.Viper) error {
	cohortID := v.GetString("cohort-id")
	program := v.GetString("program")
	if cohortID == "" && program == "" {
		return nil
	}

	info, err := db.GetCohortInfo()
	if err != nil {
		return err
	}
	if cohortID != "" {
		info.CohortID = cohortID
	}
	if program != "" {
		info.Program = program
	}
	info.Date = time.Now().Format("2006-01-02")
	info.NumLessons, err = db.LessonCount()
	if err != nil {
		return err
	}
	return db.SetCohortInfo(info)
}

func seedAdmin(db *store.Store, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or LESSONFORGE_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
