package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
	log "github.com/sirupsen/logrus"
)

var rolePath = "/"

type Client struct {
	api iamiface.IAMAPI
}

func New(session *session.Session) *Client {
	return &Client{api: iam.New(session)}
}

func NewWithAPI(api iamiface.IAMAPI) *Client {
	return &Client{api: api}
}

type policyStatement struct {
	Effect    string            `json:"Effect"`
	Action    string            `json:"Action"`
	Principal map[string]string `json:"Principal"`
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// TrustDocument allows exactly the given service principal to assume the role.
func TrustDocument(principal string) (string, error) {
	document := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect:    "Allow",
				Action:    "sts:AssumeRole",
				Principal: map[string]string{"Service": principal},
			},
		},
	}

	b, err := json.Marshal(document)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (client *Client) assertNotTruncated(truncated *bool) error {
	if truncated != nil && *truncated {
		return fmt.Errorf("internal error: Response was truncated, please increase page size or implement paging")
	}
	return nil
}

func isErrorCode(err error, code string) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == code
	}
	return false
}

// CreateServiceRole returns an error wrapping dwh.ErrAlreadyExists when a role
// with the name exists already.
func (client *Client) CreateServiceRole(ctx context.Context, name string, description string, trustDocument string) (*iam.Role, error) {

	response, err := client.api.CreateRoleWithContext(ctx, &iam.CreateRoleInput{
		AssumeRolePolicyDocument: aws.String(trustDocument),
		Description:              aws.String(description),
		Path:                     &rolePath,
		RoleName:                 aws.String(name),
	})

	if err != nil {
		if isErrorCode(err, iam.ErrCodeEntityAlreadyExistsException) {
			return nil, fmt.Errorf("role %s: %w", name, dwh.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("unable to create role %s: %w", name, err)
	}

	log.Debug(response.String())

	return response.Role, nil
}

func (client *Client) AttachPolicy(ctx context.Context, roleName string, policyArn string) error {

	_, err := client.api.AttachRolePolicyWithContext(ctx, &iam.AttachRolePolicyInput{
		PolicyArn: aws.String(policyArn),
		RoleName:  aws.String(roleName),
	})

	if err != nil {
		return fmt.Errorf("unable to attach policy %s to role %s: %w", policyArn, roleName, err)
	}

	return nil
}

// DetachPolicy returns an error wrapping dwh.ErrNotFound when the policy is not
// attached or the role does not exist.
func (client *Client) DetachPolicy(ctx context.Context, roleName string, policyArn string) error {

	_, err := client.api.DetachRolePolicyWithContext(ctx, &iam.DetachRolePolicyInput{
		PolicyArn: aws.String(policyArn),
		RoleName:  aws.String(roleName),
	})

	if err != nil {
		if isErrorCode(err, iam.ErrCodeNoSuchEntityException) {
			return fmt.Errorf("policy %s on role %s: %w", policyArn, roleName, dwh.ErrNotFound)
		}
		return fmt.Errorf("unable to detach policy %s from role %s: %w", policyArn, roleName, err)
	}

	return nil
}

func (client *Client) GetRoleArn(ctx context.Context, name string) (string, error) {

	response, err := client.api.GetRoleWithContext(ctx, &iam.GetRoleInput{
		RoleName: aws.String(name),
	})

	if err != nil {
		if isErrorCode(err, iam.ErrCodeNoSuchEntityException) {
			return "", fmt.Errorf("role %s: %w", name, dwh.ErrNotFound)
		}
		return "", fmt.Errorf("unable to get role %s: %w", name, err)
	}

	if response.Role == nil || response.Role.Arn == nil {
		return "", fmt.Errorf("role %s has no arn", name)
	}

	return *response.Role.Arn, nil
}

func (client *Client) ListAttachedPolicyArns(ctx context.Context, roleName string) ([]string, error) {
	maxItems := int64(500)

	response, err := client.api.ListAttachedRolePoliciesWithContext(ctx, &iam.ListAttachedRolePoliciesInput{
		MaxItems: &maxItems,
		RoleName: aws.String(roleName),
	})

	if err != nil {
		return nil, fmt.Errorf("unable to list attached policies for %s: %w", roleName, err)
	}

	err = client.assertNotTruncated(response.IsTruncated)

	if err != nil {
		return nil, fmt.Errorf("unable to list attached policies for %s: %w", roleName, err)
	}

	log.Debug(response.String())

	var result []string
	for _, policy := range response.AttachedPolicies {
		result = append(result, aws.StringValue(policy.PolicyArn))
	}
	return result, nil
}
