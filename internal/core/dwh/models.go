package dwh

import "fmt"

type ClusterStatus string

const (
	StatusCreating  ClusterStatus = "creating"
	StatusAvailable ClusterStatus = "available"
	StatusDeleting  ClusterStatus = "deleting"
	StatusUnknown   ClusterStatus = "unknown"
)

func ParseClusterStatus(status string) ClusterStatus {
	switch ClusterStatus(status) {
	case StatusCreating, StatusAvailable, StatusDeleting:
		return ClusterStatus(status)
	default:
		return StatusUnknown
	}
}

// ClusterSpec is the desired shape of the cluster. It is built once from the
// configuration at the start of a provisioning run and never mutated.
type ClusterSpec struct {
	ClusterType    string
	NodeType       string
	NumberOfNodes  int64
	Identifier     string
	DatabaseName   string
	MasterUsername string
	MasterPassword string
	Port           int64
}

func (s ClusterSpec) Validate() error {
	if s.Identifier == "" {
		return fmt.Errorf("cluster identifier must be set")
	}
	if s.ClusterType == "multi-node" && s.NumberOfNodes < 2 {
		return fmt.Errorf("multi-node cluster %s needs at least 2 nodes, got %d", s.Identifier, s.NumberOfNodes)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d for cluster %s", s.Port, s.Identifier)
	}
	return nil
}

type Endpoint struct {
	Address string
	Port    int64
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// ClusterRecord is the observed state of the cluster as last reported by the
// control plane.
type ClusterRecord struct {
	Identifier     string
	Status         ClusterStatus
	RawStatus      string
	Endpoint       *Endpoint
	VpcId          string
	NodeType       string
	NumberOfNodes  int64
	MasterUsername string
	DatabaseName   string
}

// Ready reports whether the cluster is available and has been assigned an
// endpoint. An available cluster without an endpoint is not ready.
func (r ClusterRecord) Ready() bool {
	return r.Status == StatusAvailable && r.Endpoint != nil && r.Endpoint.Address != ""
}

type RoleGrant struct {
	RoleName string
	Arn      string
}

type TableKind int

const (
	Staging TableKind = iota
	Dimension
	Fact
)

func (k TableKind) String() string {
	switch k {
	case Staging:
		return "staging"
	case Dimension:
		return "dimension"
	case Fact:
		return "fact"
	default:
		return fmt.Sprintf("TableKind(%d)", int(k))
	}
}

type TableDefinition struct {
	Name   string
	Kind   TableKind
	Create string
	Drop   string
}

// Stage names a batch of statements executed sequentially on one connection.
type Stage string

const (
	CopyToStaging           Stage = "copy-to-staging"
	InsertDimensionsAndFact Stage = "insert-dimensions-and-fact"
	VerifyCounts            Stage = "verify-counts"
	DropTables              Stage = "drop-tables"
	CreateTables            Stage = "create-tables"
	RunAnalytics            Stage = "analytics"
)

// Statement is a named piece of SQL executed as one unit of work.
type Statement struct {
	Name string
	SQL  string
}

type Row []interface{}

type QueryResult struct {
	Name string
	Rows []Row
}

type Count struct {
	Label string
	Count int64
}
