/*


Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/lunarway/dwh-pipeline/internal/infrastructure/redshift"
	"github.com/lunarway/dwh-pipeline/internal/infrastructure/service"
	"github.com/lunarway/dwh-pipeline/pkg/configuration"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	waitStatus bool

	rootCmd = &cobra.Command{
		Use:   "dwhctl",
		Short: "Provision a Redshift data warehouse and load it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	clusterCreateCmd = &cobra.Command{
		Use:   "cluster-create",
		Short: "Create the IAM role and the cluster, open the port and persist the endpoint",
		Run: runStage("cluster-create", func(ctx context.Context, stages *service.Stages) error {
			return stages.CreateCluster(ctx)
		}),
	}

	clusterStatusCmd = &cobra.Command{
		Use:   "cluster-status",
		Short: "Show the cluster status",
		Run: runStage("cluster-status", func(ctx context.Context, stages *service.Stages) error {
			return stages.Status(ctx, waitStatus)
		}),
	}

	clusterConnectCmd = &cobra.Command{
		Use:   "cluster-connect",
		Short: "Connect to the warehouse and list its tables",
		Run: runStage("cluster-connect", func(ctx context.Context, stages *service.Stages) error {
			return stages.ListTables(ctx)
		}),
	}

	clusterDeleteCmd = &cobra.Command{
		Use:   "cluster-delete",
		Short: "Detach the role policy and delete the cluster without a final snapshot",
		Run: runStage("cluster-delete", func(ctx context.Context, stages *service.Stages) error {
			return stages.DeleteCluster(ctx)
		}),
	}

	createTablesCmd = &cobra.Command{
		Use:   "create-tables",
		Short: "Drop and create the staging, dimension and fact tables",
		Run: runStage("create-tables", func(ctx context.Context, stages *service.Stages) error {
			return stages.CreateTables(ctx)
		}),
	}

	etlCmd = &cobra.Command{
		Use:   "etl",
		Short: "Copy the S3 feeds into staging, populate the warehouse and count rows",
		Run: runStage("etl", func(ctx context.Context, stages *service.Stages) error {
			return stages.Etl(ctx)
		}),
	}

	analyticsCmd = &cobra.Command{
		Use:   "analytics",
		Short: "Run the analytical queries",
		Run: runStage("analytics", func(ctx context.Context, stages *service.Stages) error {
			return stages.Analytics(ctx)
		}),
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "dwh.cfg", "Path to the warehouse configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", log.InfoLevel.String(), "The logging level")
	clusterStatusCmd.Flags().BoolVar(&waitStatus, "wait", false, "Keep polling until the cluster endpoint is available")
}

func setupLogger(logLevelStr string) logr.Logger {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "01-02-2006 15:04:05",
	})

	level, err := log.ParseLevel(logLevelStr)
	if err != nil {
		log.WithError(err).Warnf("invalid log level %s, using info", logLevelStr)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	verbosity := 0
	if level >= log.DebugLevel {
		verbosity = 1
	}

	entry := log.WithField("app", "dwhctl")
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			entry.Infof("%s: %s", prefix, args)
			return
		}
		entry.Info(args)
	}, funcr.Options{Verbosity: verbosity})
}

// runStage wraps a stage so that its failure is reported instead of ending the process.
func runStage(name string, stage func(ctx context.Context, stages *service.Stages) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		logger := setupLogger(logLevel)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := configuration.Open(configPath)
		if err != nil {
			service.NewStages(nil, service.DefaultAwsClients, redshift.NewClient, cmd.OutOrStdout(), logger).Report(name, err)
			return
		}

		stages := service.NewStages(store, service.DefaultAwsClients, redshift.NewClient, cmd.OutOrStdout(), logger)
		stages.Report(name, stage(ctx, stages))
	}
}

func main() {
	rootCmd.AddCommand(clusterCreateCmd, clusterStatusCmd, clusterConnectCmd, clusterDeleteCmd, createTablesCmd, etlCmd, analyticsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
	}
}
