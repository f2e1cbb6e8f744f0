package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
	"github.com/lunarway/dwh-pipeline/pkg/configuration"
	"github.com/sethvargo/go-retry"
)

const DefaultPollInterval = 5 * time.Second

type ApplyEventType int

const (
	ClusterCreateRequested ApplyEventType = iota
	ClusterPolled
	ClusterAvailable
	IngressAuthorized
	IngressAlreadyAuthorized
	EndpointPersisted
	ClusterDeleteRequested
	ClusterAlreadyAbsent
	ClusterAbsent
)

func (t ApplyEventType) ToString() string {
	return [...]string{"ClusterCreateRequested", "ClusterPolled", "ClusterAvailable", "IngressAuthorized",
		"IngressAlreadyAuthorized", "EndpointPersisted", "ClusterDeleteRequested", "ClusterAlreadyAbsent", "ClusterAbsent"}[t]
}

type ApplyEventLister interface {
	Handle(eventType ApplyEventType, name string)
}

/*
The manager drives a cluster through its lifecycle:

	[absent] --Create--> [creating] --poll--> [available] --AuthorizeNetworkIngress--> [available]
	[any] --Delete--> [deleting] --poll--> [absent]

It only observes the cluster, the control plane owns it. Polling runs at a fixed
interval without an attempt limit and only stops when the awaited state is
observed, the control plane returns an error, or ctx is done.

No transition is rolled back when a later one fails, e.g. a failed ingress
authorization leaves the cluster running.
*/
type Manager struct {
	client        *Client
	config        configuration.Writer
	ingressCidr   string
	eventListener ApplyEventLister
	logger        logr.Logger
}

func NewManager(client *Client, config configuration.Writer, ingressCidr string, eventListener ApplyEventLister, logger logr.Logger) *Manager {
	return &Manager{
		client:        client,
		config:        config,
		ingressCidr:   ingressCidr,
		eventListener: eventListener,
		logger:        logger,
	}
}

func transitionError(transition string, err error) error {
	return &dwh.TransitionError{Component: "cluster", Transition: transition, Err: err}
}

var errNotYet = errors.New("awaited cluster state not observed yet")

func poll(ctx context.Context, interval time.Duration, check func(ctx context.Context) (bool, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return retry.Do(ctx, retry.NewConstant(interval), func(ctx context.Context) error {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if !done {
			return retry.RetryableError(errNotYet)
		}
		return nil
	})
}

// Create requests the cluster and returns without waiting for it.
func (m *Manager) Create(ctx context.Context, spec dwh.ClusterSpec, role dwh.RoleGrant) error {

	if err := spec.Validate(); err != nil {
		return transitionError("create", err)
	}

	m.logger.Info("Creating cluster", "cluster", spec.Identifier, "nodeType", spec.NodeType, "nodes", spec.NumberOfNodes)
	err := m.client.CreateCluster(ctx, spec, role)
	if err != nil {
		return transitionError("create", err)
	}

	m.eventListener.Handle(ClusterCreateRequested, spec.Identifier)
	return nil
}

func (m *Manager) Describe(ctx context.Context, identifier string) (dwh.ClusterRecord, error) {
	record, err := m.client.DescribeCluster(ctx, identifier)
	if err != nil {
		return dwh.ClusterRecord{}, transitionError("describe", err)
	}
	return record, nil
}

// WaitUntilAvailable returns once the cluster is available and has an endpoint.
func (m *Manager) WaitUntilAvailable(ctx context.Context, identifier string, interval time.Duration) (dwh.ClusterRecord, error) {

	m.logger.Info("Waiting for cluster endpoint", "cluster", identifier, "interval", interval.String())

	var record dwh.ClusterRecord
	err := poll(ctx, interval, func(ctx context.Context) (bool, error) {
		observed, err := m.client.DescribeCluster(ctx, identifier)
		if err != nil {
			return false, err
		}
		record = observed
		m.eventListener.Handle(ClusterPolled, fmt.Sprintf("%s:%s", identifier, observed.RawStatus))
		m.logger.V(1).Info("Polled cluster", "cluster", identifier, "status", observed.RawStatus, "endpoint", observed.Endpoint != nil)
		return observed.Ready(), nil
	})

	if err != nil {
		return record, transitionError("wait-available", err)
	}

	m.eventListener.Handle(ClusterAvailable, identifier)
	m.logger.Info("Cluster available", "cluster", identifier, "endpoint", record.Endpoint.String())
	return record, nil
}

// AuthorizeNetworkIngress opens port on the default security group of the
// cluster's VPC. A rule that exists already is not an error.
func (m *Manager) AuthorizeNetworkIngress(ctx context.Context, record dwh.ClusterRecord, port int64) error {

	if !record.Ready() {
		return transitionError("authorize-ingress", fmt.Errorf("cluster %s is not available (status %s)", record.Identifier, record.Status))
	}

	group, err := m.client.DefaultSecurityGroup(ctx, record.VpcId)
	if err != nil {
		return transitionError("authorize-ingress", err)
	}

	groupId := *group.GroupId
	m.logger.Info("Opening TCP port in VPC", "vpc", record.VpcId, "securityGroup", groupId, "cidr", m.ingressCidr, "port", port)

	err = m.client.AuthorizeIngress(ctx, groupId, m.ingressCidr, port)

	switch {
	case err == nil:
		m.eventListener.Handle(IngressAuthorized, groupId)
	case errors.Is(err, dwh.ErrAlreadyExists):
		m.eventListener.Handle(IngressAlreadyAuthorized, groupId)
		m.logger.Info("Ingress rule already exists", "securityGroup", groupId, "port", port)
	default:
		return transitionError("authorize-ingress", err)
	}

	return nil
}

func (m *Manager) PersistEndpoint(record dwh.ClusterRecord) error {

	if record.Endpoint == nil {
		return transitionError("persist-endpoint", fmt.Errorf("cluster %s has no endpoint", record.Identifier))
	}

	m.config.Set(configuration.SectionDwh, configuration.KeyEndpoint, record.Endpoint.Address)
	if _, err := m.config.Persist(); err != nil {
		return transitionError("persist-endpoint", err)
	}

	m.eventListener.Handle(EndpointPersisted, record.Endpoint.Address)
	return nil
}

// Delete requests deletion without a final snapshot. Deleting a cluster that
// does not exist is not an error.
func (m *Manager) Delete(ctx context.Context, identifier string) error {

	m.logger.Info("Deleting cluster", "cluster", identifier)
	err := m.client.DeleteCluster(ctx, identifier)

	switch {
	case err == nil:
		m.eventListener.Handle(ClusterDeleteRequested, identifier)
	case errors.Is(err, dwh.ErrNotFound):
		m.eventListener.Handle(ClusterAlreadyAbsent, identifier)
		m.logger.Info("Cluster does not exist", "cluster", identifier)
	default:
		return transitionError("delete", err)
	}

	return nil
}

// WaitUntilAbsent returns once the control plane no longer knows the cluster.
func (m *Manager) WaitUntilAbsent(ctx context.Context, identifier string, interval time.Duration) error {

	m.logger.Info("Waiting for cluster deletion", "cluster", identifier, "interval", interval.String())

	err := poll(ctx, interval, func(ctx context.Context) (bool, error) {
		observed, err := m.client.DescribeCluster(ctx, identifier)
		if errors.Is(err, dwh.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		m.eventListener.Handle(ClusterPolled, fmt.Sprintf("%s:%s", identifier, observed.RawStatus))
		m.logger.V(1).Info("Polled cluster", "cluster", identifier, "status", observed.RawStatus)
		return false, nil
	})

	if err != nil {
		return transitionError("wait-absent", err)
	}

	m.eventListener.Handle(ClusterAbsent, identifier)
	m.logger.Info("Cluster deleted", "cluster", identifier)
	return nil
}
