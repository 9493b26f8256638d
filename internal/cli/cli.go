package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vmitrev/agentmesh/internal/config"
	internal_http "github.com/vmitrev/agentmesh/internal/http"
	"github.com/vmitrev/agentmesh/internal/log"
	internal_storage "github.com/vmitrev/agentmesh/internal/storage"
	"github.com/vmitrev/agentmesh/pkg/audit"
	"github.com/vmitrev/agentmesh/pkg/decompose"
	"github.com/vmitrev/agentmesh/pkg/service"
	"github.com/vmitrev/agentmesh/pkg/worker"
)

// SetupCLI registers all agentmesh subcommands on the root command.
func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("config", "", "Path to agentmesh.yaml (optional)")
	rootCmd.PersistentFlags().String("db", "", "Database connection string (overrides config)")

	decomposeCmd := &cobra.Command{
		Use:   "decompose [description]",
		Short: "Decompose a task description into a workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, store := initService(cmd)
			defer store.Close()
			contextID, _ := cmd.Flags().GetString("context")
			createdBy, _ := cmd.Flags().GetString("created-by")
			wf, err := svc.Decompose(cmd.Context(), args[0], contextID, createdBy)
			if err != nil {
				fatalf("failed to decompose task: %v", err)
			}
			printJSON(wf)
		},
	}
	decomposeCmd.Flags().String("context", "", "Context (project/tenant) id")
	decomposeCmd.Flags().String("created-by", "", "Creator id recorded on the workflow")

	executeCmd := &cobra.Command{
		Use:   "execute [workflow-id]",
		Short: "Execute a stored workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, store := initService(cmd)
			defer store.Close()
			timeout, _ := cmd.Flags().GetDuration("timeout")
			wf, err := svc.Execute(cmd.Context(), args[0], timeout)
			if err != nil {
				fatalf("failed to execute workflow: %v", err)
			}
			printJSON(wf)
		},
	}
	executeCmd.Flags().Duration("timeout", 0, "Workflow wall-clock timeout (default from config)")

	statusCmd := &cobra.Command{
		Use:   "status [workflow-id]",
		Short: "Show a workflow with its subtasks and aggregated result",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, store := initService(cmd)
			defer store.Close()
			wf, err := svc.GetStatus(args[0])
			if err != nil {
				fatalf("failed to get workflow: %v", err)
			}
			printJSON(wf)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all workflows",
		Run: func(cmd *cobra.Command, args []string) {
			svc, store := initService(cmd)
			defer store.Close()
			workflows, err := svc.ListWorkflows()
			if err != nil {
				fatalf("failed to list workflows: %v", err)
			}
			if len(workflows) == 0 {
				fmt.Fprintln(os.Stdout, "No workflows found.")
				return
			}
			for _, wf := range workflows {
				fmt.Fprintf(os.Stdout, "- ID: %s, Name: %s, Status: %s, Created: %s\n",
					wf.ID, wf.Name, wf.Status, wf.CreatedAt.Format(time.RFC3339))
			}
		},
	}

	auditCmd := &cobra.Command{
		Use:   "audit [workflow-id]",
		Short: "Show the audit trail of a workflow",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			svc, store := initService(cmd)
			defer store.Close()
			events, err := svc.AuditTrail(args[0])
			if err != nil {
				fatalf("failed to list audit events: %v", err)
			}
			printJSON(events)
		},
	}

	workersCmd := &cobra.Command{
		Use:   "workers",
		Short: "List the configured worker catalog",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			for _, ep := range cfg.Workers {
				fmt.Fprintf(os.Stdout, "- %s (%s) at %s\n", ep.WorkerID, ep.Name, ep.URL)
				for _, cap := range ep.Capabilities {
					fmt.Fprintf(os.Stdout, "    %s: %s\n", cap.ID, cap.Description)
				}
			}
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agentmesh HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			svc, store := buildService(cmd, cfg)
			defer store.Close()
			if err := internal_http.StartServer(cfg.Server.Port, svc, cfg.Dispatcher.WorkflowTimeout); err != nil {
				fatalf("server error: %v", err)
			}
		},
	}

	rootCmd.AddCommand(decomposeCmd, executeCmd, statusCmd, listCmd, auditCmd, workersCmd, serveCmd)
}

func loadConfig(cmd *cobra.Command) *config.Config {
	if err := godotenv.Load(); err != nil {
		log.GetLogger().Debugf("No .env file loaded: %v", err)
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("failed to load config: %v", err)
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Database.URL = db
	}
	return cfg
}

func initService(cmd *cobra.Command) (*service.WorkflowService, *internal_storage.PostgresStore) {
	return buildService(cmd, loadConfig(cmd))
}

func buildService(cmd *cobra.Command, cfg *config.Config) (*service.WorkflowService, *internal_storage.PostgresStore) {
	logger := log.GetLogger()
	store, err := internal_storage.InitStore(cfg.Database.URL)
	if err != nil {
		fatalf("failed to initialize store: %v", err)
	}

	directory := cfg.Directory()
	client := worker.NewHTTPClient(nil)
	decompSvc := decompose.NewAnthropicService(cfg.Anthropic.APIKey, anthropic.Model(cfg.Anthropic.Model))
	builder := decompose.NewGraphBuilder(decompSvc, directory, logger)
	sink := audit.MultiSink{audit.NewStoreSink(store, logger), audit.NewLogSink(logger)}
	dispatcher := service.NewDispatcher(store, directory, client, sink, logger, service.DispatcherConfig{
		Workers:      cfg.Dispatcher.PoolSize,
		PollInterval: cfg.Dispatcher.PollInterval,
	})
	return service.NewWorkflowService(store, builder, dispatcher, sink, logger), store
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("failed to encode output: %v", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
}

func fatalf(format string, args ...interface{}) {
	log.GetLogger().Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
