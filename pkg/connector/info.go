package connector

import (
	"github.com/Sternrassler/api-connector/pkg/spec"
	"github.com/Sternrassler/api-connector/pkg/template"
)

// TableInfo summarizes how to query a table.
type TableInfo struct {
	Name           string
	Method         string
	RequiredParams []string
	OptionalParams []string
	Pagination     spec.Strategy
	MaxPageSize    int
	Columns        []spec.Column
}

// Info describes a table: the parameters it expects and the columns it
// returns.
func (c *Connector) Info(name string) (TableInfo, error) {
	t, err := c.Table(name)
	if err != nil {
		return TableInfo{}, err
	}
	return TableInfo{
		Name:           t.Name,
		Method:         t.Method,
		RequiredParams: template.RequiredParams(t.Params),
		OptionalParams: template.OptionalParams(t.Params),
		Pagination:     t.Pagination.Strategy,
		MaxPageSize:    t.Pagination.MaxPageSize,
		Columns:        append([]spec.Column(nil), t.Response.Columns...),
	}, nil
}
