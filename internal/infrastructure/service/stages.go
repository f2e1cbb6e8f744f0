package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
	"github.com/lunarway/dwh-pipeline/internal/infrastructure/cluster"
	"github.com/lunarway/dwh-pipeline/internal/infrastructure/iam"
	"github.com/lunarway/dwh-pipeline/internal/infrastructure/redshift"
	"github.com/lunarway/dwh-pipeline/pkg/configuration"
)

type IamEventRecorder struct {
	logger logr.Logger
}

func (e *IamEventRecorder) Handle(eventType iam.ApplyEventType, name string) {
	e.logger.Info("Event occurred", "eventType", eventType.ToString(), "name", name)
}

type ClusterEventRecorder struct {
	logger logr.Logger
}

func (e *ClusterEventRecorder) Handle(eventType cluster.ApplyEventType, name string) {
	if eventType == cluster.ClusterPolled {
		e.logger.V(1).Info("Event occurred", "eventType", eventType.ToString(), "name", name)
		return
	}
	e.logger.Info("Event occurred", "eventType", eventType.ToString(), "name", name)
}

type RedshiftEventRecorder struct {
	logger logr.Logger
}

func (e *RedshiftEventRecorder) Handle(eventType redshift.ApplyEventType, name string) {
	e.logger.Info("Event occurred", "eventType", eventType.ToString(), "name", name)
}

// ConfigStore is the configuration a stage reads and writes discovered settings to.
type ConfigStore interface {
	configuration.Writer
	Configuration() configuration.Configuration
}

// AwsClients builds the control-plane clients for one stage.
type AwsClients func(conf configuration.AwsConfiguration) (*iam.Client, *cluster.Client)

// Connector opens the warehouse connection for one stage.
type Connector func(settings configuration.ConnectionSettings) (*redshift.Client, error)

func DefaultAwsClients(conf configuration.AwsConfiguration) (*iam.Client, *cluster.Client) {
	session := iam.NewSessionFactory(conf).CreateSession()
	return iam.New(session), cluster.New(session)
}

/*
Stages are the operator entry points. Each one is independent and reads what
earlier stages persisted from the configuration:

	cluster-create   provision role, create cluster, wait, open port, persist endpoint
	cluster-status   describe the cluster
	cluster-connect  list the warehouse tables
	create-tables    drop and create all tables
	etl              copy, populate and count
	analytics        run the reporting queries
	cluster-delete   detach policy, delete cluster, wait until gone

A stage returns its error. Deciding to report and continue is left to the caller.
*/
type Stages struct {
	config     ConfigStore
	awsClients AwsClients
	connect    Connector
	out        io.Writer
	logger     logr.Logger
}

func NewStages(config ConfigStore, awsClients AwsClients, connect Connector, out io.Writer, logger logr.Logger) *Stages {
	return &Stages{
		config:     config,
		awsClients: awsClients,
		connect:    connect,
		out:        out,
		logger:     logger,
	}
}

// waitContext bounds the poll loops by the configured wait timeout, if any.
func (s *Stages) waitContext(ctx context.Context, conf configuration.Configuration) (context.Context, context.CancelFunc) {
	if conf.Dwh.WaitTimeout > 0 {
		return context.WithTimeout(ctx, conf.Dwh.WaitTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Stages) components(conf configuration.Configuration) (*iam.Provisioner, *cluster.Manager) {
	iamClient, clusterClient := s.awsClients(conf.Aws)
	provisioner := iam.NewProvisioner(iamClient, s.config, &IamEventRecorder{logger: s.logger}, s.logger.WithName("iam"))
	manager := cluster.NewManager(clusterClient, s.config, conf.Dwh.IngressCidr, &ClusterEventRecorder{logger: s.logger}, s.logger.WithName("cluster"))
	return provisioner, manager
}

func (s *Stages) CreateCluster(ctx context.Context) error {
	conf := s.config.Configuration()
	provisioner, manager := s.components(conf)

	RenderParams(s.out, conf.Dwh)

	grant, err := provisioner.ProvisionRole(ctx, conf.Dwh.IamRoleName, iam.RedshiftServicePrincipal, conf.Dwh.PolicyArn)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "IAM role ARN: %s\n", grant.Arn)

	if err := manager.Create(ctx, conf.ClusterSpec(), grant); err != nil {
		return err
	}

	waitCtx, cancel := s.waitContext(ctx, conf)
	defer cancel()

	record, err := manager.WaitUntilAvailable(waitCtx, conf.Dwh.ClusterIdentifier, conf.Dwh.PollInterval)
	if err != nil {
		return err
	}
	RenderClusterRecord(s.out, record)

	if err := manager.AuthorizeNetworkIngress(ctx, record, conf.Dwh.Port); err != nil {
		return err
	}

	if err := manager.PersistEndpoint(record); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Endpoint AVAILABLE: %s\n", record.Endpoint.Address)
	return nil
}

// Status describes the cluster. With wait set it keeps polling until the
// endpoint is available.
func (s *Stages) Status(ctx context.Context, wait bool) error {
	conf := s.config.Configuration()
	_, manager := s.components(conf)

	RenderParams(s.out, conf.Dwh)

	record, err := manager.Describe(ctx, conf.Dwh.ClusterIdentifier)
	if err != nil {
		return err
	}
	RenderClusterRecord(s.out, record)

	if record.Ready() || !wait {
		return nil
	}

	waitCtx, cancel := s.waitContext(ctx, conf)
	defer cancel()

	record, err = manager.WaitUntilAvailable(waitCtx, conf.Dwh.ClusterIdentifier, conf.Dwh.PollInterval)
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Cluster Endpoint AVAILABLE: %s\n", record.Endpoint.String())
	return nil
}

func (s *Stages) DeleteCluster(ctx context.Context) error {
	conf := s.config.Configuration()
	provisioner, manager := s.components(conf)

	if err := provisioner.RevokeRole(ctx, conf.Dwh.IamRoleName, conf.Dwh.PolicyArn); err != nil {
		return err
	}

	if err := manager.Delete(ctx, conf.Dwh.ClusterIdentifier); err != nil {
		return err
	}

	record, err := manager.Describe(ctx, conf.Dwh.ClusterIdentifier)
	switch {
	case err == nil:
		RenderClusterRecord(s.out, record)
	case errors.Is(err, dwh.ErrNotFound):
	default:
		return err
	}

	waitCtx, cancel := s.waitContext(ctx, conf)
	defer cancel()

	if err := manager.WaitUntilAbsent(waitCtx, conf.Dwh.ClusterIdentifier, conf.Dwh.PollInterval); err != nil {
		return err
	}

	fmt.Fprintln(s.out, "DELETED. Cluster not present now.")
	return nil
}

// withWarehouse opens the single warehouse connection and closes it when fn returns.
func (s *Stages) withWarehouse(ctx context.Context, fn func(client *redshift.Client) error) error {
	settings, err := s.config.Configuration().Connection()
	if err != nil {
		return err
	}

	client, err := s.connect(settings)
	if err != nil {
		return connectError(settings, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.logger.Error(err, "Unable to close warehouse connection")
		}
	}()

	if err := client.Ping(ctx); err != nil {
		return connectError(settings, err)
	}

	s.logger.Info("Connected to warehouse", "host", settings.Host, "database", settings.Database)
	return fn(client)
}

func connectError(settings configuration.ConnectionSettings, err error) error {
	return &dwh.TransitionError{
		Component:  "warehouse",
		Transition: "connect",
		Err:        fmt.Errorf("unable to connect to %s:%d/%s: %w", settings.Host, settings.Port, settings.Database, err),
	}
}

func (s *Stages) recorder() *RedshiftEventRecorder {
	return &RedshiftEventRecorder{logger: s.logger}
}

func (s *Stages) ListTables(ctx context.Context) error {
	return s.withWarehouse(ctx, func(client *redshift.Client) error {
		runner := redshift.NewAnalyticsRunner(client, s.recorder(), s.logger.WithName("redshift"))
		results, err := runner.Run(ctx, []dwh.Statement{dwh.ListTablesQuery})
		if err != nil {
			return err
		}
		RenderResults(s.out, results)
		return nil
	})
}

func (s *Stages) CreateTables(ctx context.Context) error {
	return s.withWarehouse(ctx, func(client *redshift.Client) error {
		schema := redshift.NewSchemaManager(client, s.recorder(), s.logger.WithName("redshift"))

		fmt.Fprint(s.out, "Dropping Tables in Cluster...")
		if err := schema.DropAll(ctx, dwh.Tables()); err != nil {
			fmt.Fprintln(s.out)
			return err
		}
		fmt.Fprintln(s.out, "Dropped!")

		fmt.Fprint(s.out, "Creating Tables in Cluster...")
		if err := schema.CreateAll(ctx, dwh.Tables()); err != nil {
			fmt.Fprintln(s.out)
			return err
		}
		fmt.Fprintln(s.out, "Created!")
		return nil
	})
}

func (s *Stages) Etl(ctx context.Context) error {
	sources, err := s.config.Configuration().Sources()
	if err != nil {
		return err
	}

	return s.withWarehouse(ctx, func(client *redshift.Client) error {
		pipeline := redshift.NewLoadPipeline(client, s.recorder(), s.logger.WithName("redshift"))
		counts, err := pipeline.Run(ctx, sources)
		if err != nil {
			return err
		}
		RenderCounts(s.out, counts)
		return nil
	})
}

func (s *Stages) Analytics(ctx context.Context) error {
	return s.withWarehouse(ctx, func(client *redshift.Client) error {
		runner := redshift.NewAnalyticsRunner(client, s.recorder(), s.logger.WithName("redshift"))
		results, err := runner.Run(ctx, dwh.AnalyticalQueries())
		if err != nil {
			return err
		}
		RenderResults(s.out, results)
		return nil
	})
}

// Report prints the terminal marker of a stage and logs its error, if any.
func (s *Stages) Report(stage string, err error) {
	if err == nil {
		fmt.Fprintf(s.out, "%s: DONE\n", stage)
		return
	}
	s.logger.Error(err, "Stage failed", "stage", stage, "kind", dwh.KindOf(err).String())
	fmt.Fprintf(s.out, "%s: FAILED (%s): %v\n", stage, dwh.KindOf(err), err)
}
