// Package cli implements tenantctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/tenantmaster/internal/app"
	"github.com/fatflowers/tenantmaster/internal/app/service/catalog"
	"github.com/fatflowers/tenantmaster/internal/app/service/orchestrator"
	"github.com/fatflowers/tenantmaster/internal/app/service/provisioning"
	"github.com/fatflowers/tenantmaster/internal/models"
)

type Deployer interface {
	Deploy(ctx context.Context, req *orchestrator.DeployRequest) *orchestrator.DeployResult
	InitializeProductRepo(ctx context.Context, name, actor string) (*orchestrator.InitRepoResult, error)
	SyncAllDatabaseStats(ctx context.Context, actor string) (int, error)
}

type DatabaseAdmin interface {
	BackupDatabase(ctx context.Context, name, dir string) (*provisioning.Backup, error)
	RestoreDatabase(ctx context.Context, name, path string) error
	ServerStatus(ctx context.Context) *provisioning.ServerStatus
	Vacuum(ctx context.Context, name string) error
}

type ProductSeeder interface {
	Seed(ctx context.Context) ([]*models.Product, error)
}

// Env holds the services a command runs against.
type Env struct {
	Orchestrator Deployer
	Databases    DatabaseAdmin
	Catalog      ProductSeeder
}

// Opener builds an Env; the returned func releases it.
type Opener func(ctx context.Context) (*Env, func(), error)

// OpenApp starts the application graph without the HTTP server.
func OpenApp(ctx context.Context) (*Env, func(), error) {
	var (
		orch *orchestrator.Service
		dbs  *provisioning.Service
		cat  *catalog.Service
	)
	a := fx.New(app.Core, fx.NopLogger, fx.Populate(&orch, &dbs, &cat))
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return nil, nil, fmt.Errorf("failed to start: %w", err)
	}
	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}
	return &Env{Orchestrator: orch, Databases: dbs, Catalog: cat}, stop, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewRootCommand builds tenantctl. Each command opens its Env through open.
func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Operate tenant workspaces, product repositories and tenant databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	withEnv := func(fn func(cmd *cobra.Command, env *Env, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			env, release, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer release()
			return fn(cmd, env, args)
		}
	}

	var port int
	deploy := &cobra.Command{
		Use:   "deploy <product> <subdomain> <db_name> <db_user> <db_password>",
		Short: "Materialize and publish a dedicated workspace whose database already exists",
		Long: `Copies the product's base code into the tenant directory, writes its
deployment manifest and publishes it as {product}-{subdomain}.

The result is printed as JSON. The command exits non-zero when success is false.`,
		Args: cobra.ExactArgs(5),
		RunE: withEnv(func(cmd *cobra.Command, env *Env, args []string) error {
			res := env.Orchestrator.Deploy(cmd.Context(), &orchestrator.DeployRequest{
				Product: args[0], Subdomain: args[1], DBName: args[2], DBUser: args[3], DBPassword: args[4], Port: port,
			})
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("deploy failed: %s", res.Error)
			}
			return nil
		}),
	}
	deploy.Flags().IntVar(&port, "port", 0, "dedicated port assigned to the workspace")
	_ = deploy.MarkFlagRequired("port")

	var actor string
	initRepo := &cobra.Command{
		Use:   "init-product-repo <product>",
		Short: "Create the product's base code directory and publish it as {product}-system",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, env *Env, args []string) error {
			res, err := env.Orchestrator.InitializeProductRepo(cmd.Context(), args[0], actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
	initRepo.Flags().StringVar(&actor, "actor", defaultActor(), "operator recorded in the audit log")

	var dir string
	backup := &cobra.Command{
		Use:   "backup <db_name>",
		Short: "Dump a tenant database",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, env *Env, args []string) error {
			b, err := env.Databases.BackupDatabase(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		}),
	}
	backup.Flags().StringVar(&dir, "dir", "", "backup directory (defaults to provisioning.backup_dir)")

	restore := &cobra.Command{
		Use:   "restore <db_name> <path>",
		Short: "Restore a tenant database from a dump",
		Args:  cobra.ExactArgs(2),
		RunE: withEnv(func(cmd *cobra.Command, env *Env, args []string) error {
			if err := env.Databases.RestoreDatabase(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", args[0], args[1])
			return err
		}),
	}

	dbStatus := &cobra.Command{
		Use:   "db-status",
		Short: "Report whether the tenant database server is reachable",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, env *Env, _ []string) error {
			st := env.Databases.ServerStatus(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), st); err != nil {
				return err
			}
			if !st.Online {
				return fmt.Errorf("database server %s is offline", st.Host+":"+strconv.Itoa(st.Port))
			}
			return nil
		}),
	}

	seed := &cobra.Command{
		Use:   "seed-products",
		Short: "Upsert the configured products by name",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, env *Env, _ []string) error {
			products, err := env.Catalog.Seed(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), products)
		}),
	}

	vacuum := &cobra.Command{
		Use:   "vacuum <db_name>",
		Short: "Run VACUUM ANALYZE in a tenant database",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, env *Env, args []string) error {
			if err := env.Databases.Vacuum(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "vacuumed %s\n", args[0])
			return err
		}),
	}

	syncStats := &cobra.Command{
		Use:   "sync-stats",
		Short: "Refresh the recorded size of every tenant database",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, env *Env, _ []string) error {
			n, err := env.Orchestrator.SyncAllDatabaseStats(cmd.Context(), actor)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "synced %d workspaces\n", n)
			return err
		}),
	}
	syncStats.Flags().StringVar(&actor, "actor", defaultActor(), "operator recorded in the audit log")

	root.AddCommand(deploy, initRepo, backup, restore, dbStatus, seed, vacuum, syncStats)
	return root
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "tenantctl"
}
