package dwh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseClusterStatus(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(StatusCreating, ParseClusterStatus("creating"))
	assert.Equal(StatusAvailable, ParseClusterStatus("available"))
	assert.Equal(StatusDeleting, ParseClusterStatus("deleting"))
	assert.Equal(StatusUnknown, ParseClusterStatus("modifying"))
	assert.Equal(StatusUnknown, ParseClusterStatus(""))
}

func Test_ClusterRecordReady(t *testing.T) {
	assert := assert.New(t)

	endpoint := &Endpoint{Address: "dwhcluster.abc.us-west-2.redshift.amazonaws.com", Port: 5439}

	assert.False(ClusterRecord{Status: StatusCreating}.Ready())
	assert.False(ClusterRecord{Status: StatusCreating, Endpoint: endpoint}.Ready())
	assert.False(ClusterRecord{Status: StatusAvailable}.Ready(), "available without endpoint is not ready")
	assert.False(ClusterRecord{Status: StatusAvailable, Endpoint: &Endpoint{}}.Ready())
	assert.True(ClusterRecord{Status: StatusAvailable, Endpoint: endpoint}.Ready())
	assert.Equal("dwhcluster.abc.us-west-2.redshift.amazonaws.com:5439", endpoint.String())
}

func Test_ClusterSpecValidate(t *testing.T) {
	assert := assert.New(t)

	spec := ClusterSpec{
		ClusterType:   "multi-node",
		NodeType:      "dc2.large",
		NumberOfNodes: 4,
		Identifier:    "dwhCluster",
		Port:          5439,
	}
	assert.NoError(spec.Validate())

	single := spec
	single.NumberOfNodes = 1
	assert.Error(single.Validate())

	single.ClusterType = "single-node"
	assert.NoError(single.Validate())

	noId := spec
	noId.Identifier = ""
	assert.Error(noId.Validate())

	badPort := spec
	badPort.Port = 0
	assert.Error(badPort.Validate())
}

func TestTableKind_String(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("staging", Staging.String())
	assert.Equal("dimension", Dimension.String())
	assert.Equal("fact", Fact.String())
	assert.Equal("TableKind(7)", TableKind(7).String(), "unknown kinds do not panic")
}
