package iam

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/endpoints"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/lunarway/dwh-pipeline/pkg/configuration"
)

type SessionFactory interface {
	CreateSession() *session.Session
}

type LocalStackSessionFactory struct {
	Endpoint string
}

// AwsSessionFactory uses the static key pair when one is configured and the
// shared config/credential chain otherwise.
type AwsSessionFactory struct {
	Key      string
	Secret   string
	Region   string
	Endpoint string
}

func NewSessionFactory(conf configuration.AwsConfiguration) SessionFactory {
	return AwsSessionFactory{
		Key:      conf.Key,
		Secret:   conf.Secret,
		Region:   conf.Region,
		Endpoint: conf.Endpoint,
	}
}

func (f LocalStackSessionFactory) CreateSession() *session.Session {
	endpoint := f.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}
	return session.Must(session.NewSessionWithOptions(session.Options{
		Config: aws.Config{
			Credentials: credentials.NewStaticCredentials("foo", "var", ""),
			Region:      aws.String(endpoints.UsWest2RegionID),
			Endpoint:    aws.String(endpoint),
		},
	}))
}

func (f AwsSessionFactory) CreateSession() *session.Session {
	config := aws.Config{Region: aws.String(f.Region)}

	if f.Key != "" && f.Secret != "" {
		config.Credentials = credentials.NewStaticCredentials(f.Key, f.Secret, "")
	}
	if f.Endpoint != "" {
		config.Endpoint = aws.String(f.Endpoint)
	}

	return session.Must(session.NewSessionWithOptions(session.Options{
		Config:            config,
		SharedConfigState: session.SharedConfigEnable,
	}))
}
