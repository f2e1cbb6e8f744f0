package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
	"github.com/lunarway/dwh-pipeline/pkg/configuration"
)

const RedshiftServicePrincipal = "redshift.amazonaws.com"

type ApplyEventType int

const (
	RoleCreated ApplyEventType = iota
	RoleAlreadyExists
	PolicyAttached
	PolicyAlreadyAttached
	PolicyDetached
	PolicyAlreadyDetached
	RoleArnPersisted
)

func (t ApplyEventType) ToString() string {
	switch t {
	case RoleCreated:
		return "RoleCreated"
	case RoleAlreadyExists:
		return "RoleAlreadyExists"
	case PolicyAttached:
		return "PolicyAttached"
	case PolicyAlreadyAttached:
		return "PolicyAlreadyAttached"
	case PolicyDetached:
		return "PolicyDetached"
	case PolicyAlreadyDetached:
		return "PolicyAlreadyDetached"
	case RoleArnPersisted:
		return "RoleArnPersisted"
	default:
		return fmt.Sprintf("%d", int(t))
	}
}

type ApplyEventLister interface {
	Handle(eventType ApplyEventType, name string)
}

/*
The provisioner creates the role the Redshift cluster assumes when it reads from S3.

A role that already exists is an accepted end state, so provisioning can be re-run
after a partial failure. A policy that is already attached is not attached
again. The resulting ARN is written back into the configuration so later
stages do not have to provision again.
*/
type Provisioner struct {
	client        *Client
	config        configuration.Writer
	eventListener ApplyEventLister
	logger        logr.Logger
}

func NewProvisioner(client *Client, config configuration.Writer, eventListener ApplyEventLister, logger logr.Logger) *Provisioner {
	return &Provisioner{
		client:        client,
		config:        config,
		eventListener: eventListener,
		logger:        logger,
	}
}

func transitionError(transition string, err error) error {
	return &dwh.TransitionError{Component: "iam", Transition: transition, Err: err}
}

func (p *Provisioner) ProvisionRole(ctx context.Context, name string, principal string, policyArn string) (dwh.RoleGrant, error) {

	trustDocument, err := TrustDocument(principal)
	if err != nil {
		return dwh.RoleGrant{}, transitionError("create-role", err)
	}

	p.logger.Info("Creating IAM role", "role", name, "principal", principal)
	_, err = p.client.CreateServiceRole(ctx, name, "Allows Redshift clusters to call AWS services on your behalf.", trustDocument)

	switch {
	case err == nil:
		p.eventListener.Handle(RoleCreated, name)
	case errors.Is(err, dwh.ErrAlreadyExists):
		p.eventListener.Handle(RoleAlreadyExists, name)
		p.logger.Info("IAM role already exists", "role", name)
	default:
		return dwh.RoleGrant{}, transitionError("create-role", err)
	}

	attached, err := p.client.ListAttachedPolicyArns(ctx, name)
	if err != nil {
		return dwh.RoleGrant{}, transitionError("list-policies", err)
	}

	if contains(attached, policyArn) {
		p.eventListener.Handle(PolicyAlreadyAttached, policyArn)
		p.logger.Info("Policy is already attached", "role", name, "policy", policyArn)
	} else {
		p.logger.Info("Attaching policy to IAM role", "role", name, "policy", policyArn)
		err = p.client.AttachPolicy(ctx, name, policyArn)
		if err != nil {
			return dwh.RoleGrant{}, transitionError("attach-policy", err)
		}
		p.eventListener.Handle(PolicyAttached, policyArn)
	}

	arn, err := p.client.GetRoleArn(ctx, name)
	if err != nil {
		return dwh.RoleGrant{}, transitionError("get-role", err)
	}

	grant := dwh.RoleGrant{RoleName: name, Arn: arn}

	p.config.Set(configuration.SectionDwh, configuration.KeyRoleArn, arn)
	if _, err := p.config.Persist(); err != nil {
		return grant, transitionError("persist-role-arn", err)
	}
	p.eventListener.Handle(RoleArnPersisted, arn)
	p.logger.Info("IAM role provisioned", "role", name, "arn", arn)

	return grant, nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// RevokeRole detaches the data access policy. The role itself is kept.
func (p *Provisioner) RevokeRole(ctx context.Context, name string, policyArn string) error {

	p.logger.Info("Detaching policy from IAM role", "role", name, "policy", policyArn)
	err := p.client.DetachPolicy(ctx, name, policyArn)

	switch {
	case err == nil:
		p.eventListener.Handle(PolicyDetached, policyArn)
	case errors.Is(err, dwh.ErrNotFound):
		p.eventListener.Handle(PolicyAlreadyDetached, policyArn)
		p.logger.Info("Policy is not attached", "role", name, "policy", policyArn)
	default:
		return transitionError("detach-policy", err)
	}

	return nil
}
