package isolation

import (
	"fmt"
	"strings"

	"github.com/tenantkit/tenantkit/pkg/identifier"
)

// SchemaDescriptor declares the tables a tenant's workspace consists of.
// Providers use it to create tables during provisioning, to install RLS
// policies, and to delete rows on destroy.
type SchemaDescriptor struct {
	Tables []Table
}

// Table describes one table. TenantColumn names the column RLS policies
// and application-level filters key on; it may be empty for strategies
// that never share tables between tenants.
type Table struct {
	Name         string
	Columns      []Column
	PrimaryKey   []string
	ForeignKeys  []ForeignKey
	TenantColumn string
}

// Column describes one column.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  string
}

// ForeignKey describes a reference to another table in the same descriptor.
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

// Validate checks every table, column, key, and tenant column name
// against the SQL identifier grammar. Descriptors come from application
// code, not users, but the names end up interpolated into DDL, DELETE
// statements, and policy SQL, so they are held to the same rule.
func (d *SchemaDescriptor) Validate() error {
	for _, t := range d.Tables {
		if err := identifier.AssertSafeSchemaName(t.Name, "table name"); err != nil {
			return err
		}
		for _, c := range t.Columns {
			if err := identifier.AssertSafeSchemaName(c.Name, "column name in "+t.Name); err != nil {
				return err
			}
		}
		for _, pk := range t.PrimaryKey {
			if err := identifier.AssertSafeSchemaName(pk, "primary key in "+t.Name); err != nil {
				return err
			}
		}
		if t.TenantColumn != "" {
			if err := identifier.AssertSafeSchemaName(t.TenantColumn, "tenant column in "+t.Name); err != nil {
				return err
			}
		}
		for _, fk := range t.ForeignKeys {
			if err := identifier.AssertSafeSchemaName(fk.RefTable, "foreign key target in "+t.Name); err != nil {
				return err
			}
			for _, c := range append(append([]string{}, fk.Columns...), fk.RefColumns...) {
				if err := identifier.AssertSafeSchemaName(c, "foreign key column in "+t.Name); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// TenantColumn returns the tenant column shared by the descriptor's
// tables, or "" when none declares one.
func (d *SchemaDescriptor) TenantColumn() string {
	for _, t := range d.Tables {
		if t.TenantColumn != "" {
			return t.TenantColumn
		}
	}
	return ""
}

// Prefixed returns a copy of the descriptor with every table renamed to
// prefix+name, foreign key references included. Used by the table prefix
// strategy where all tenants share one namespace.
func (d *SchemaDescriptor) Prefixed(prefix string) *SchemaDescriptor {
	out := &SchemaDescriptor{Tables: make([]Table, len(d.Tables))}
	for i, t := range d.Tables {
		nt := t
		nt.Name = prefix + t.Name
		nt.ForeignKeys = make([]ForeignKey, len(t.ForeignKeys))
		for j, fk := range t.ForeignKeys {
			nfk := fk
			nfk.RefTable = prefix + fk.RefTable
			nt.ForeignKeys[j] = nfk
		}
		out.Tables[i] = nt
	}
	return out
}

// CreateSQL renders CREATE TABLE statements, optionally qualified with a
// schema. Tables come out in declaration order, so referenced tables must
// be declared before their dependents.
func (d *SchemaDescriptor) CreateSQL(schema string) ([]string, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if schema != "" {
		if err := identifier.AssertSafeSchemaName(schema, "schema qualifier"); err != nil {
			return nil, err
		}
	}

	stmts := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		stmts = append(stmts, t.createSQL(schema))
	}
	return stmts, nil
}

func (t Table) createSQL(schema string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (", qualify(schema, t.Name))

	defs := make([]string, 0, len(t.Columns)+1+len(t.ForeignKeys))
	for _, c := range t.Columns {
		def := c.Name + " " + c.Type
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.Default != "" {
			def += " DEFAULT " + c.Default
		}
		defs = append(defs, def)
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(t.PrimaryKey, ", ")+")")
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			strings.Join(fk.Columns, ", "), qualify(schema, fk.RefTable), strings.Join(fk.RefColumns, ", ")))
	}

	b.WriteString(strings.Join(defs, ", "))
	b.WriteString(")")
	return b.String()
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
