package configuration

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
)

const (
	SectionAws = "AWS"
	SectionDwh = "DWH"
	SectionS3  = "S3"

	KeyRoleArn  = "DWH_ROLE_ARN"
	KeyEndpoint = "DWH_ENDPOINT"

	EnvPrefix = "DWHCFG_"
)

type ErrorCollector struct {
	Missing []string
}

func (e *ErrorCollector) Register(name string) {
	e.Missing = append(e.Missing, name)
}

func (e *ErrorCollector) Error() error {
	if len(e.Missing) == 0 {
		return nil
	}
	var messages []string
	for _, name := range e.Missing {
		messages = append(messages, fmt.Sprintf("setting %s was not found", name))
	}
	return fmt.Errorf("%s", strings.Join(messages, ", "))
}

type AwsConfiguration struct {
	Key    string `koanf:"key"`
	Secret string `koanf:"secret"`
	Region string `koanf:"region"`
	// Endpoint overrides the service endpoints, e.g. for LocalStack.
	Endpoint string `koanf:"endpoint"`
}

type DwhConfiguration struct {
	ClusterType       string        `koanf:"dwh_cluster_type"`
	NumNodes          int64         `koanf:"dwh_num_nodes"`
	NodeType          string        `koanf:"dwh_node_type"`
	ClusterIdentifier string        `koanf:"dwh_cluster_identifier"`
	DB                string        `koanf:"dwh_db"`
	DBUser            string        `koanf:"dwh_db_user"`
	DBPassword        string        `koanf:"dwh_db_password"`
	Port              int64         `koanf:"dwh_port"`
	IamRoleName       string        `koanf:"dwh_iam_role_name"`
	RoleArn           string        `koanf:"dwh_role_arn"`
	Endpoint          string        `koanf:"dwh_endpoint"`
	PolicyArn         string        `koanf:"dwh_policy_arn"`
	IngressCidr       string        `koanf:"dwh_ingress_cidr"`
	SslMode           string        `koanf:"dwh_sslmode"`
	PollInterval      time.Duration `koanf:"dwh_poll_interval"`
	WaitTimeout       time.Duration `koanf:"dwh_wait_timeout"`
}

type S3Configuration struct {
	LogData     string `koanf:"log_data"`
	LogJsonPath string `koanf:"log_jsonpath"`
	SongData    string `koanf:"song_data"`
}

type Configuration struct {
	Aws AwsConfiguration `koanf:"aws"`
	Dwh DwhConfiguration `koanf:"dwh"`
	S3  S3Configuration  `koanf:"s3"`
}

var defaults = map[string]interface{}{
	"aws.region":            "us-west-2",
	"dwh.dwh_cluster_type":  "multi-node",
	"dwh.dwh_port":          5439,
	"dwh.dwh_policy_arn":    "arn:aws:iam::aws:policy/AmazonS3ReadOnlyAccess",
	"dwh.dwh_ingress_cidr":  "0.0.0.0/0",
	"dwh.dwh_sslmode":       "require",
	"dwh.dwh_poll_interval": "5s",
	"dwh.dwh_wait_timeout":  "0s",
}

// build layers defaults, the file values and DWHCFG_ environment variables, in
// that order. DWHCFG_DWH__DWH_DB_PASSWORD overrides [DWH] DWH_DB_PASSWORD.
func build(values map[string]interface{}) (Configuration, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return Configuration{}, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return Configuration{}, fmt.Errorf("failed to load config values: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", 1)
	}), nil); err != nil {
		return Configuration{}, fmt.Errorf("failed to load env vars: %w", err)
	}

	var result Configuration
	if err := k.Unmarshal("", &result); err != nil {
		return Configuration{}, fmt.Errorf("unable to decode config: %w", err)
	}

	return result, result.validate()
}

func (c Configuration) validate() error {
	errorCollector := &ErrorCollector{}

	required := []struct {
		name  string
		value string
	}{
		{"AWS.REGION", c.Aws.Region},
		{"DWH.DWH_CLUSTER_TYPE", c.Dwh.ClusterType},
		{"DWH.DWH_NODE_TYPE", c.Dwh.NodeType},
		{"DWH.DWH_CLUSTER_IDENTIFIER", c.Dwh.ClusterIdentifier},
		{"DWH.DWH_DB", c.Dwh.DB},
		{"DWH.DWH_DB_USER", c.Dwh.DBUser},
		{"DWH.DWH_DB_PASSWORD", c.Dwh.DBPassword},
		{"DWH.DWH_IAM_ROLE_NAME", c.Dwh.IamRoleName},
	}

	for _, r := range required {
		if r.value == "" {
			errorCollector.Register(r.name)
		}
	}

	return errorCollector.Error()
}

func (c Configuration) ClusterSpec() dwh.ClusterSpec {
	return dwh.ClusterSpec{
		ClusterType:    c.Dwh.ClusterType,
		NodeType:       c.Dwh.NodeType,
		NumberOfNodes:  c.Dwh.NumNodes,
		Identifier:     c.Dwh.ClusterIdentifier,
		DatabaseName:   c.Dwh.DB,
		MasterUsername: c.Dwh.DBUser,
		MasterPassword: c.Dwh.DBPassword,
		Port:           c.Dwh.Port,
	}
}

// RoleGrant returns the role recorded by a previous provisioning run.
func (c Configuration) RoleGrant() (dwh.RoleGrant, error) {
	if c.Dwh.RoleArn == "" {
		return dwh.RoleGrant{}, fmt.Errorf("setting DWH.%s was not found, run cluster-create first", KeyRoleArn)
	}
	return dwh.RoleGrant{RoleName: c.Dwh.IamRoleName, Arn: c.Dwh.RoleArn}, nil
}

func (c Configuration) Sources() (dwh.Sources, error) {
	role, err := c.RoleGrant()
	if err != nil {
		return dwh.Sources{}, err
	}

	errorCollector := &ErrorCollector{}
	if c.S3.LogData == "" {
		errorCollector.Register("S3.LOG_DATA")
	}
	if c.S3.LogJsonPath == "" {
		errorCollector.Register("S3.LOG_JSONPATH")
	}
	if c.S3.SongData == "" {
		errorCollector.Register("S3.SONG_DATA")
	}
	if err := errorCollector.Error(); err != nil {
		return dwh.Sources{}, err
	}

	return dwh.Sources{
		EventsURI:       c.S3.LogData,
		EventsJSONPaths: c.S3.LogJsonPath,
		SongsURI:        c.S3.SongData,
		Region:          c.Aws.Region,
		Role:            role,
	}, nil
}

type ConnectionSettings struct {
	Host     string
	Port     int64
	Database string
	User     string
	Password string
	SslMode  string
}

func (c Configuration) Connection() (ConnectionSettings, error) {
	if c.Dwh.Endpoint == "" {
		return ConnectionSettings{}, fmt.Errorf("setting DWH.%s was not found, run cluster-create first", KeyEndpoint)
	}
	return ConnectionSettings{
		Host:     c.Dwh.Endpoint,
		Port:     c.Dwh.Port,
		Database: c.Dwh.DB,
		User:     c.Dwh.DBUser,
		Password: c.Dwh.DBPassword,
		SslMode:  c.Dwh.SslMode,
	}, nil
}
