package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/anandks/papergrader/internal/gemini"
	"github.com/anandks/papergrader/internal/grade"
	"github.com/anandks/papergrader/internal/handler"
	appI18n "github.com/anandks/papergrader/internal/i18n"
	"github.com/anandks/papergrader/internal/model"
	"github.com/anandks/papergrader/internal/pipeline"
	"github.com/anandks/papergrader/internal/scorer"
	"github.com/anandks/papergrader/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "papergrader",
		Short: "Automated exam paper grading against a teacher's answer key",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `papergrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addScoringFlags registers the flags shared by serve and grade: the scoring
// backend and the Gemini collaborators.
func addScoringFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("scorer", scorer.BackendCrossEncoder, "Similarity backend (cross-encoder, embedding)")
	f.String("rerank-url", "http://localhost:8081", "Cross-encoder reranker base URL")
	f.String("embed-url", "http://localhost:11434/v1", "OpenAI-compatible embeddings API base URL")
	f.String("embed-key", "ollama", "API key for the embeddings endpoint")
	f.String("embed-model", "nomic-embed-text", "Embedding model name")
	f.String("gemini-key", "", "Gemini API key for OCR and feedback (or set PAPERGRADER_GEMINI_KEY)")
	f.String("gemini-model", "gemini-2.0-flash", "Gemini model name")
	f.Int("max-batch", pipeline.DefaultMaxBatch, "Maximum student submissions per grading run")
	f.Int("workers", 4, "Concurrent submissions during a batch")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "papergrader.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Message language (en, ru)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set PAPERGRADER_ADMIN_PASSWORD)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	addScoringFlags(cmd)
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade [student files...]",
		Short: "Grade student submissions from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.StringP("key", "k", "", "Answer key file (required)")
	f.StringP("subject", "s", "", "Subject name (required)")
	f.StringP("grader", "g", "cli", "Grader name recorded with results")
	f.String("db", "papergrader.db", "SQLite database path (empty to skip saving)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	addScoringFlags(cmd)

	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export grading results for one subject as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "papergrader.db", "SQLite database path")
	f.StringP("subject", "s", "", "Subject to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	_ = cmd.MarkFlagRequired("subject")

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

	v.SetEnvPrefix("PAPERGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("papergrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/papergrader")
	v.AddConfigPath("/etc/papergrader")
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

// buildRunner assembles the grading pipeline from flag values: the similarity
// scorer, the optional Gemini collaborators and the record store.
func buildRunner(ctx context.Context, v *viper.Viper, db *store.Store) (*pipeline.Runner, func(), error) {
	sc, err := scorer.New(scorer.Config{
		Backend:    v.GetString("scorer"),
		RerankURL:  v.GetString("rerank-url"),
		EmbedURL:   v.GetString("embed-url"),
		EmbedKey:   v.GetString("embed-key"),
		EmbedModel: v.GetString("embed-model"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create scorer: %w", err)
	}
	if err := sc.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("scorer health check: %w", err)
	}
	slog.Info("scorer OK", "backend", v.GetString("scorer"))

	var (
		ocr      pipeline.Transcriber
		feedback pipeline.Summarizer
		closeFn  = func() {}
	)
	if key := v.GetString("gemini-key"); key != "" {
		gc, err := gemini.New(ctx, key, v.GetString("gemini-model"), 2*time.Minute)
		if err != nil {
			return nil, nil, fmt.Errorf("create Gemini client: %w", err)
		}
		ocr = gc
		feedback = gc
		closeFn = func() { _ = gc.Close() }
		slog.Info("Gemini client OK", "model", v.GetString("gemini-model"))
	} else {
		slog.Warn("no Gemini API key: scanned submissions will be rejected and feedback uses a placeholder")
	}

	var rs pipeline.RecordStore
	if db != nil {
		rs = db
	}
	runner := pipeline.NewRunner(grade.New(sc), ocr, feedback, rs,
		v.GetInt("max-batch"), v.GetInt("workers"))
	return runner, closeFn, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed default admin user if no users exist.
	if err := seedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	runner, closeRunner, err := buildRunner(ctx, v, db)
	if err != nil {
		return err
	}
	defer closeRunner()

	cfg := model.ServerConfig{
		Lang:          lang,
		MaxBatch:      v.GetInt("max-batch"),
		Workers:       v.GetInt("workers"),
		SecureCookies: v.GetBool("secure-cookies"),
	}

	h, err := handler.New(db, runner, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"scorer", v.GetString("scorer"),
		"gemini_model", v.GetString("gemini-model"),
		"lang", lang,
		"max_batch", cfg.MaxBatch,
		"workers", cfg.Workers,
	)
	return http.ListenAndServe(addr, r)
}

func runGrade(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	if err := appI18n.Init("en"); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var db *store.Store
	if path := v.GetString("db"); path != "" {
		var err error
		db, err = store.New(path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
	}

	runner, closeRunner, err := buildRunner(ctx, v, db)
	if err != nil {
		return err
	}
	defer closeRunner()

	key, err := readSubmission(v.GetString("key"))
	if err != nil {
		return fmt.Errorf("read answer key: %w", err)
	}
	var students []pipeline.Submission
	for _, path := range args {
		sub, err := readSubmission(path)
		if err != nil {
			return fmt.Errorf("read submission: %w", err)
		}
		students = append(students, sub)
	}

	report, err := runner.Run(ctx, key, students, v.GetString("subject"), v.GetString("grader"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STUDENT\tSCORE\tPERCENT\tSTATUS")
	for _, res := range report.Submissions {
		if res.Err != nil {
			fmt.Fprintf(w, "%s\t-\t-\tfailed: %v\n", res.StudentName, res.Err)
			continue
		}
		status := "graded"
		if res.SaveErr != nil {
			status = "graded (not saved)"
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%.2f%%\t%s\n",
			res.StudentName,
			res.Record.Summary.TotalScore, res.Record.Summary.MaxScore,
			res.Record.Summary.Percentage, status)
	}
	return w.Flush()
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportSubject(v.GetString("subject"))
	if err != nil {
		return fmt.Errorf("export subject: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var out *os.File
	if outPath == "" || outPath == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(out)

	return nil
}

func readSubmission(path string) (pipeline.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Submission{}, err
	}
	return pipeline.Submission{Filename: path, Data: data}, nil
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
		return fmt.Errorf("admin password is required: set --admin-password flag or PAPERGRADER_ADMIN_PASSWORD env var")
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
