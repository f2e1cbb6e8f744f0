package service

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
	"github.com/lunarway/dwh-pipeline/pkg/configuration"
)

const masked = "********"

func newTable(w io.Writer, header ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

// RenderParams prints the configured cluster parameters. The password is never printed.
func RenderParams(w io.Writer, conf configuration.DwhConfiguration) {
	t := newTable(w, "Param", "Value")
	t.AppendRows([]table.Row{
		{"DWH_CLUSTER_TYPE", conf.ClusterType},
		{"DWH_NUM_NODES", conf.NumNodes},
		{"DWH_NODE_TYPE", conf.NodeType},
		{"DWH_CLUSTER_IDENTIFIER", conf.ClusterIdentifier},
		{"DWH_DB", conf.DB},
		{"DWH_DB_USER", conf.DBUser},
		{"DWH_DB_PASSWORD", masked},
		{"DWH_PORT", conf.Port},
		{"DWH_IAM_ROLE_NAME", conf.IamRoleName},
	})
	t.Render()
}

func RenderClusterRecord(w io.Writer, record dwh.ClusterRecord) {
	endpoint := "-"
	if record.Endpoint != nil {
		endpoint = record.Endpoint.String()
	}

	t := newTable(w, "Key", "Value")
	t.AppendRows([]table.Row{
		{"ClusterIdentifier", record.Identifier},
		{"NodeType", record.NodeType},
		{"ClusterStatus", record.RawStatus},
		{"MasterUsername", record.MasterUsername},
		{"DBName", record.DatabaseName},
		{"Endpoint", endpoint},
		{"NumberOfNodes", record.NumberOfNodes},
		{"VpcId", record.VpcId},
	})
	t.Render()
}

func RenderCounts(w io.Writer, counts []dwh.Count) {
	t := newTable(w, "Table", "Rows")
	for _, count := range counts {
		t.AppendRow(table.Row{count.Label, count.Count})
	}
	t.Render()
}

func RenderResults(w io.Writer, results []dwh.QueryResult) {
	for _, result := range results {
		_, _ = fmt.Fprintf(w, "%s\n", result.Name)
		if len(result.Rows) == 0 {
			_, _ = fmt.Fprintln(w, "(0 rows)")
			continue
		}

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		for _, row := range result.Rows {
			values := make(table.Row, len(row))
			for i, value := range row {
				values[i] = formatValue(value)
			}
			t.AppendRow(values)
		}
		t.Render()
	}
}

func formatValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return v
	}
}
