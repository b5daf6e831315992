package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskline/internal/app"
	"taskline/internal/config"
	"taskline/internal/db"
	"taskline/internal/domain"
	"taskline/internal/engine"
	"taskline/internal/repo"
	"taskline/internal/server"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "tl",
	Short:   "Taskline CLI",
	Version: version,
	Long: `Taskline tracks tasks with full audit history.
- Workspace: your .taskline directory with the database; taskline.yml holds defaults.
- Tasks: work items with a TASK-xxxxxxxx code, a status, and a lifecycle state
  (active, inactive, deleted). Deleting is soft: the row and its history stay.
- Every mutation bumps the task version and lands in the event log
  ('tl log tail' to watch it).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "actor identifier (defaults from taskline.yml)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks carry a generated TASK-xxxxxxxx code and start in status 'pending'. Updates bump the version; delete is soft and reversible with 'task activate'.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskActivateCmd())
	task.AddCommand(taskDeactivateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskEventsCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				opts.ActorID = actorID(a.Config)
				f, err := a.Engine.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(f)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Code, "code", "", "task code (generated if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Type, "type", "", "task type")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (defaults to pending)")
	cmd.Flags().StringVar(&opts.OrganizationID, "org", "", "organization id")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	var state int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("state") {
				f.State = &state
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				tasks, err := a.Engine.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Code", "Name", "State", "Status", "Owner", "Version"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{
						t.Code, t.Name, domain.EntityState(t.State).String(),
						strDeref(t.Status), strDeref(t.Owner), t.Version,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&state, "state", 0, "state filter (0 inactive, 1 active, 2 deleted)")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.OrganizationID, "org", "", "organization filter")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Owner, "owner", "", "owner filter")
	cmd.Flags().BoolVar(&f.IncludeDeleted, "include-deleted", false, "include soft-deleted tasks")
	return cmd
}

func taskGetCmd() *cobra.Command {
	var byCode bool
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				var (
					f   domain.Fields
					err error
				)
				if byCode {
					f, err = a.Engine.Repo.GetTaskByCode(ctx, args[0])
				} else {
					f, err = a.Engine.GetTask(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return printJSONOrIndent(f)
			})
		},
	}
	cmd.Flags().BoolVar(&byCode, "by-code", false, "look up by TASK-xxxxxxxx code instead of id")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var code, name, description, taskType, status, org, project, owner string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{ID: args[0]}
			set := func(flag string, target **string, value *string) {
				if cmd.Flags().Changed(flag) {
					*target = value
				}
			}
			set("code", &opts.Code, &code)
			set("name", &opts.Name, &name)
			set("description", &opts.Description, &description)
			set("type", &opts.Type, &taskType)
			set("status", &opts.Status, &status)
			set("org", &opts.OrganizationID, &org)
			set("project", &opts.ProjectID, &project)
			set("owner", &opts.Owner, &owner)
			return withApp(func(ctx context.Context, a *app.App) error {
				opts.ActorID = actorID(a.Config)
				f, err := a.Engine.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrIndent(f)
			})
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "new code")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description (empty clears)")
	cmd.Flags().StringVar(&taskType, "type", "", "new type (empty clears)")
	cmd.Flags().StringVar(&status, "status", "", "new status (empty clears)")
	cmd.Flags().StringVar(&org, "org", "", "new organization id (empty clears)")
	cmd.Flags().StringVar(&project, "project", "", "new project id (empty clears)")
	cmd.Flags().StringVar(&owner, "owner", "", "new owner (empty clears)")
	return cmd
}

func taskActivateCmd() *cobra.Command {
	return transitionCmd("activate <id>", "Activate task", func(ctx context.Context, a *app.App, id string) (domain.Fields, error) {
		return a.Engine.ActivateTask(ctx, id, actorID(a.Config))
	})
}

func taskDeactivateCmd() *cobra.Command {
	return transitionCmd("deactivate <id>", "Deactivate task", func(ctx context.Context, a *app.App, id string) (domain.Fields, error) {
		return a.Engine.DeactivateTask(ctx, id, actorID(a.Config))
	})
}

func taskDeleteCmd() *cobra.Command {
	return transitionCmd("delete <id>", "Soft-delete task (data and history kept)", func(ctx context.Context, a *app.App, id string) (domain.Fields, error) {
		return a.Engine.DeleteTask(ctx, id, actorID(a.Config))
	})
}

func transitionCmd(use, short string, apply func(context.Context, *app.App, string) (domain.Fields, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				f, err := apply(ctx, a, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(f)
			})
		},
	}
}

func taskEventsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "events <id>",
		Short: "Show task audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				events, err := a.Engine.TaskEvents(ctx, args[0], n)
				if err != nil {
					return err
				}
				return printJSONOrIndent(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 50, "number of events")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in taskline.yml: default organization/project/owner applied to new tasks, the server address, and webhook targets.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				return printJSONOrIndent(a.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate taskline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default taskline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing file")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task counts by lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				counts, err := a.Engine.Repo.CountTasksByState(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"task_counts": counts})
				}
				fmt.Println("Tasks:")
				for _, state := range []string{"active", "inactive", "deleted"} {
					fmt.Printf("  %s: %d\n", state, counts[state])
				}
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened to your tasks.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				events, err := a.Engine.Repo.LatestEvents(ctx, n, evtType)
				if err != nil {
					return err
				}
				return printJSONOrIndent(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter (e.g. task.updated)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				if basePath == "" {
					basePath = a.Config.Server.BasePath
				}
				authCfg := server.AuthConfig{JWTSecret: a.Config.Server.JWTSecret}
				if secret := os.Getenv("TASKLINE_JWT_SECRET"); secret != "" {
					authCfg.JWTSecret = secret
				}
				if authCfg.JWTSecret == "" {
					// local dev only: trust the X-Actor-Id header
					authCfg.AllowLegacyActorHeader = true
					fmt.Println("WARNING: no JWT secret configured; accepting X-Actor-Id header")
				}
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Taskline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults from config)")
	return cmd
}

// --- helpers ---

func withApp(fn func(context.Context, *app.App) error) error {
	a, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(context.Background(), a)
}

func actorID(cfg *config.Config) string {
	if actor := viper.GetString("actor-id"); actor != "" {
		return actor
	}
	return cfg.Defaults.ActorID
}

func printJSONOrIndent(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func strDeref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
