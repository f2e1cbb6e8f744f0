package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/redshift"
	"github.com/aws/aws-sdk-go/service/redshift/redshiftiface"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
	log "github.com/sirupsen/logrus"
)

// ec2 does not export its error codes.
const errCodeDuplicatePermission = "InvalidPermission.Duplicate"

type Client struct {
	redshift redshiftiface.RedshiftAPI
	ec2      ec2iface.EC2API
}

func New(session *session.Session) *Client {
	return &Client{
		redshift: redshift.New(session),
		ec2:      ec2.New(session),
	}
}

func NewWithAPI(redshiftAPI redshiftiface.RedshiftAPI, ec2API ec2iface.EC2API) *Client {
	return &Client{redshift: redshiftAPI, ec2: ec2API}
}

func isErrorCode(err error, code string) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == code
	}
	return false
}

func (c *Client) CreateCluster(ctx context.Context, spec dwh.ClusterSpec, role dwh.RoleGrant) error {

	input := &redshift.CreateClusterInput{
		ClusterType:        aws.String(spec.ClusterType),
		NodeType:           aws.String(spec.NodeType),
		DBName:             aws.String(spec.DatabaseName),
		ClusterIdentifier:  aws.String(spec.Identifier),
		MasterUsername:     aws.String(spec.MasterUsername),
		MasterUserPassword: aws.String(spec.MasterPassword),
		Port:               aws.Int64(spec.Port),
		IamRoles:           []*string{aws.String(role.Arn)},
	}

	// single-node clusters reject an explicit node count
	if spec.ClusterType == "multi-node" {
		input.NumberOfNodes = aws.Int64(spec.NumberOfNodes)
	}

	response, err := c.redshift.CreateClusterWithContext(ctx, input)

	if err != nil {
		return fmt.Errorf("unable to create cluster %s: %w", spec.Identifier, err)
	}

	log.Debug(response.String())

	return nil
}

// DescribeCluster returns an error wrapping dwh.ErrNotFound once the cluster is gone.
func (c *Client) DescribeCluster(ctx context.Context, identifier string) (dwh.ClusterRecord, error) {

	response, err := c.redshift.DescribeClustersWithContext(ctx, &redshift.DescribeClustersInput{
		ClusterIdentifier: aws.String(identifier),
	})

	if err != nil {
		if isErrorCode(err, redshift.ErrCodeClusterNotFoundFault) {
			return dwh.ClusterRecord{}, fmt.Errorf("cluster %s: %w", identifier, dwh.ErrNotFound)
		}
		return dwh.ClusterRecord{}, fmt.Errorf("unable to describe cluster %s: %w", identifier, err)
	}

	if len(response.Clusters) == 0 {
		return dwh.ClusterRecord{}, fmt.Errorf("cluster %s: %w", identifier, dwh.ErrNotFound)
	}

	log.Debug(response.String())

	return toRecord(response.Clusters[0]), nil
}

func toRecord(cluster *redshift.Cluster) dwh.ClusterRecord {
	status := aws.StringValue(cluster.ClusterStatus)

	record := dwh.ClusterRecord{
		Identifier:     aws.StringValue(cluster.ClusterIdentifier),
		Status:         dwh.ParseClusterStatus(status),
		RawStatus:      status,
		VpcId:          aws.StringValue(cluster.VpcId),
		NodeType:       aws.StringValue(cluster.NodeType),
		NumberOfNodes:  aws.Int64Value(cluster.NumberOfNodes),
		MasterUsername: aws.StringValue(cluster.MasterUsername),
		DatabaseName:   aws.StringValue(cluster.DBName),
	}

	if cluster.Endpoint != nil && aws.StringValue(cluster.Endpoint.Address) != "" {
		record.Endpoint = &dwh.Endpoint{
			Address: aws.StringValue(cluster.Endpoint.Address),
			Port:    aws.Int64Value(cluster.Endpoint.Port),
		}
	}

	return record
}

// DeleteCluster skips the final snapshot. It returns an error wrapping
// dwh.ErrNotFound when there is no such cluster.
func (c *Client) DeleteCluster(ctx context.Context, identifier string) error {

	response, err := c.redshift.DeleteClusterWithContext(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:        aws.String(identifier),
		SkipFinalClusterSnapshot: aws.Bool(true),
	})

	if err != nil {
		if isErrorCode(err, redshift.ErrCodeClusterNotFoundFault) {
			return fmt.Errorf("cluster %s: %w", identifier, dwh.ErrNotFound)
		}
		return fmt.Errorf("unable to delete cluster %s: %w", identifier, err)
	}

	log.Debug(response.String())

	return nil
}

// DefaultSecurityGroup picks the group named "default" in the VPC, or the first
// group when there is none by that name.
func (c *Client) DefaultSecurityGroup(ctx context.Context, vpcId string) (*ec2.SecurityGroup, error) {

	response, err := c.ec2.DescribeSecurityGroupsWithContext(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []*ec2.Filter{
			{
				Name:   aws.String("vpc-id"),
				Values: []*string{aws.String(vpcId)},
			},
		},
	})

	if err != nil {
		return nil, fmt.Errorf("unable to list security groups of vpc %s: %w", vpcId, err)
	}

	if len(response.SecurityGroups) == 0 {
		return nil, fmt.Errorf("vpc %s has no security groups", vpcId)
	}

	for _, group := range response.SecurityGroups {
		if aws.StringValue(group.GroupName) == "default" {
			return group, nil
		}
	}

	return response.SecurityGroups[0], nil
}

// AuthorizeIngress returns an error wrapping dwh.ErrAlreadyExists when the rule
// is in place already.
func (c *Client) AuthorizeIngress(ctx context.Context, groupId string, cidr string, port int64) error {

	_, err := c.ec2.AuthorizeSecurityGroupIngressWithContext(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:    aws.String(groupId),
		CidrIp:     aws.String(cidr),
		IpProtocol: aws.String("tcp"),
		FromPort:   aws.Int64(port),
		ToPort:     aws.Int64(port),
	})

	if err != nil {
		if isErrorCode(err, errCodeDuplicatePermission) {
			return fmt.Errorf("ingress %s:%d on %s: %w", cidr, port, groupId, dwh.ErrAlreadyExists)
		}
		return fmt.Errorf("unable to authorize ingress %s:%d on %s: %w", cidr, port, groupId, err)
	}

	return nil
}
