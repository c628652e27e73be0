package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/progression/internal/config"
	"github.com/example/progression/internal/curriculum"
	"github.com/example/progression/internal/database"
	"github.com/example/progression/internal/events"
	"github.com/example/progression/internal/graph"
	"github.com/example/progression/internal/logger"
	"github.com/example/progression/internal/notify"
	"github.com/example/progression/internal/progression"
	"github.com/example/progression/internal/scheduler"
	"github.com/example/progression/pkg/models"
)

type app struct {
	envFile string
	cfg     *config.Config
	log     *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "progression",
		Short:         "Adaptive learning progression engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.envFile)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env", ".env", "env file to load")

	root.AddCommand(
		a.serveCmd(),
		a.importCmd(),
		a.validateCmd(),
		a.convertCmd(),
		a.answerCmd(),
		a.dueCmd(),
		a.treeCmd(),
		a.userCmd(),
		a.remindCmd(),
	)
	return root
}

func (a *app) connect() error {
	if err := database.Connect(a.cfg); err != nil {
		return err
	}
	a.log.Debug("database connected", "type", a.cfg.DBType)
	return nil
}

// publisher returns the Redis publisher when configured, a no-op otherwise
func (a *app) publisher() events.Publisher {
	if a.cfg.RedisAddr == "" {
		return events.NewNop()
	}
	pub, err := events.NewRedisPublisher(a.log, a.cfg.RedisAddr, a.cfg.RedisChannel)
	if err != nil {
		a.log.Warn("redis unavailable, progression events disabled", "error", err)
		return events.NewNop()
	}
	return pub
}

// notifier returns the Telegram notifier when a bot token is configured, the log otherwise
func (a *app) notifier() (scheduler.Notifier, error) {
	if a.cfg.TelegramBotToken == "" {
		return notify.NewLogNotifier(a.log), nil
	}
	return notify.NewTelegramNotifier(a.log, a.cfg.TelegramBotToken)
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the due-review reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.connect(); err != nil {
				return err
			}
			defer database.Close()

			pub := a.publisher()
			defer pub.Close()
			svc := progression.NewService(a.log, a.cfg, progression.WithPublisher(pub))

			notifier, err := a.notifier()
			if err != nil {
				return err
			}

			sched := scheduler.New(a.log, a.cfg, svc, notifier)
			if err := sched.Start(); err != nil {
				return err
			}
			a.log.Info("scheduler started",
				"start_hour", a.cfg.NotificationStartHour,
				"end_hour", a.cfg.NotificationEndHour,
			)

			<-ctx.Done()
			sched.Stop()
			a.log.Info("scheduler stopped")
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	var mirror bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a curriculum (.xlsx, .csv, .yaml) into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.connect(); err != nil {
				return err
			}
			defer database.Close()

			importCfg := curriculum.DefaultImportConfig()
			importCfg.FilePath = args[0]
			result, err := curriculum.NewLoader(a.log).ImportFile(ctx, importCfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d skills, %d concepts, %d prerequisites\n",
				result.Skills, result.Concepts, result.Prerequisites)

			if mirror {
				return a.syncGraph(ctx, cmd)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&mirror, "neo4j", false, "mirror the prerequisite graph into Neo4j")
	return cmd
}

func (a *app) syncGraph(ctx context.Context, cmd *cobra.Command) error {
	client, err := graph.NewNeo4jClient(ctx, a.log, graph.ConfigFrom(a.cfg))
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	repo := database.NewSkillRepository()
	skills, err := repo.GetAll(ctx, database.DB)
	if err != nil {
		return err
	}
	edges, err := repo.AllPrerequisites(ctx, database.DB)
	if err != nil {
		return err
	}

	svc := graph.NewSkillGraphService(client)
	result, err := svc.Sync(ctx, skills, edges)
	if err != nil {
		return err
	}
	cyclic, err := svc.CyclicSkills(ctx)
	if err != nil {
		return err
	}
	if len(cyclic) > 0 {
		a.log.Error("graph mirror contains cycles", "skills", cyclic)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "neo4j: %d skills, %d edges (%d replaced)\n", result.Skills, result.Edges, result.Removed)
	return nil
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a curriculum file without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importCfg := curriculum.DefaultImportConfig()
			importCfg.FilePath = args[0]
			c, err := curriculum.Read(importCfg)
			if err != nil {
				return err
			}
			skills, concepts, prereqs := c.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d skills, %d concepts, %d prerequisites\n", skills, concepts, prereqs)
			return nil
		},
	}
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out.xlsx|out.yaml>",
		Short: "Convert a curriculum between workbook and yaml",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			importCfg := curriculum.DefaultImportConfig()
			importCfg.FilePath = args[0]
			c, err := curriculum.Read(importCfg)
			if err != nil {
				return err
			}
			switch strings.ToLower(filepath.Ext(args[1])) {
			case ".xlsx":
				return curriculum.WriteWorkbook(c, args[1])
			case ".yaml", ".yml":
				data, err := curriculum.MarshalYAML(c)
				if err != nil {
					return err
				}
				return os.WriteFile(args[1], data, 0o644)
			default:
				return fmt.Errorf("unsupported output %q", args[1])
			}
		},
	}
}

func (a *app) answerCmd() *cobra.Command {
	var (
		userID      int64
		conceptIDs  []int64
		conceptKeys []string
		correct     bool
		responseMs  int
	)
	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Apply one answer event",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			defer database.Close()

			concepts := database.NewConceptRepository()
			for _, key := range conceptKeys {
				c, err := concepts.GetByKey(cmd.Context(), database.DB, key)
				if err != nil {
					return err
				}
				conceptIDs = append(conceptIDs, c.ID)
			}

			pub := a.publisher()
			defer pub.Close()
			svc := progression.NewService(a.log, a.cfg, progression.WithPublisher(pub))

			event := models.AnswerEvent{UserID: userID, ConceptIDs: conceptIDs, IsCorrect: correct}
			if responseMs >= 0 {
				event.ResponseTimeMs = &responseMs
			}
			outcome, err := svc.ProcessAnswer(cmd.Context(), event)
			if err != nil {
				return err
			}
			return printJSON(cmd, outcome)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().Int64SliceVar(&conceptIDs, "concept", nil, "answered concept id (repeatable)")
	cmd.Flags().StringSliceVar(&conceptKeys, "key", nil, "answered concept key (repeatable)")
	cmd.Flags().BoolVar(&correct, "correct", false, "the answer was correct")
	cmd.Flags().IntVar(&responseMs, "ms", -1, "response time in milliseconds")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) dueCmd() *cobra.Command {
	var (
		userID int64
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List concepts due for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			defer database.Close()

			due, err := progression.NewService(a.log, a.cfg).DueReviews(cmd.Context(), userID, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, due)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of concepts")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) treeCmd() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show a user's skill tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(); err != nil {
				return err
			}
			defer database.Close()

			tree, err := progression.NewService(a.log, a.cfg).SkillTree(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, tree)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) userCmd() *cobra.Command {
	var (
		user    models.User
		enabled bool
	)
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create a user or update their reminder settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user.ID <= 0 {
				return fmt.Errorf("user id must be positive")
			}
			if user.NotificationHour < 0 || user.NotificationHour > 23 {
				return fmt.Errorf("hour must be within 0-23, got %d", user.NotificationHour)
			}
			if err := a.connect(); err != nil {
				return err
			}
			defer database.Close()

			user.NotificationEnabled = enabled
			repo := database.NewUserRepository()
			if err := repo.Upsert(cmd.Context(), database.DB, &user, time.Now()); err != nil {
				return err
			}
			stored, err := repo.GetByID(cmd.Context(), database.DB, user.ID)
			if err != nil {
				return err
			}
			return printJSON(cmd, stored)
		},
	}
	cmd.Flags().Int64Var(&user.ID, "id", 0, "user id")
	cmd.Flags().Int64Var(&user.TelegramChatID, "chat", 0, "telegram chat id (0 for none)")
	cmd.Flags().StringVar(&user.Username, "name", "", "display name")
	cmd.Flags().IntVar(&user.NotificationHour, "hour", 9, "reminder hour (UTC)")
	cmd.Flags().IntVar(&user.ReviewsPerDay, "per-day", 20, "reviews announced per reminder")
	cmd.Flags().BoolVar(&enabled, "notify", true, "send due-review reminders")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) remindCmd() *cobra.Command {
	var (
		userID int64
		at     string
	)
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send a due-review reminder to one user now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []progression.Option
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
				opts = append(opts, progression.WithClock(func() time.Time { return t }))
			}
			if err := a.connect(); err != nil {
				return err
			}
			defer database.Close()

			notifier, err := a.notifier()
			if err != nil {
				return err
			}
			svc := progression.NewService(a.log, a.cfg, opts...)
			sent, err := scheduler.New(a.log, a.cfg, svc, notifier).RunManualCheck(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{"user_id": userID, "sent": sent})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&at, "at", "", "count reviews due at this RFC3339 time instead of now")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
