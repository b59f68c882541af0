package migration

import (
	"fmt"
	"sort"

	"github.com/chmenegatti/multiselect/pkg/dialects/common"
	"github.com/chmenegatti/multiselect/pkg/relation"
)

// PivotTableSQL returns the statements creating and dropping one pivot
// table. Both keys form the primary key; the sort column is nullable so
// links attached without a position sort first.
func PivotTableSQL(d common.Dialect, p relation.Pivot) (up, down string) {
	defs := []string{
		fmt.Sprintf("%s %s NOT NULL", d.Quote(p.ForeignKey), d.KeyType()),
		fmt.Sprintf("%s %s NOT NULL", d.Quote(p.RelatedKey), d.KeyType()),
	}
	if p.SortColumn != "" {
		defs = append(defs, fmt.Sprintf("%s %s NULL", d.Quote(p.SortColumn), d.IntType()))
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s, %s)", d.Quote(p.ForeignKey), d.Quote(p.RelatedKey)))
	return d.CreateTableSQL(p.Table, defs), "DROP TABLE IF EXISTS " + d.Quote(p.Table)
}

// PivotSQL renders every pivot, ordered by table name. Down statements come
// in reverse order. Pivots sharing a table are emitted once.
func PivotSQL(d common.Dialect, pivots []relation.Pivot) (up, down []string) {
	byTable := make(map[string]relation.Pivot, len(pivots))
	for _, p := range pivots {
		if prev, ok := byTable[p.Table]; ok && prev.SortColumn != "" {
			continue
		}
		byTable[p.Table] = p
	}
	tables := make([]string, 0, len(byTable))
	for t := range byTable {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, t := range tables {
		u, dn := PivotTableSQL(d, byTable[t])
		up = append(up, u)
		down = append([]string{dn}, down...)
	}
	return up, down
}
