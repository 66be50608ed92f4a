package data

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"entgo.io/ent"
	annotation "entgo.io/ent/dialect/entsql"
	entsql "entgo.io/ent/dialect/sql"
	entschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Migrate 根据 ent/schema 定义直接生成表结构并执行自动迁移。
func Migrate(ctx context.Context, drv *entsql.Driver, defs ...ent.Interface) error {
	tables, err := Tables(defs...)
	if err != nil {
		return err
	}
	m, err := entschema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}

// Tables 将 schema 定义转换为迁移使用的表描述。
// 名为 id 的字段作为自增主键，其 StorageKey 为列名。
func Tables(defs ...ent.Interface) ([]*entschema.Table, error) {
	tables := make([]*entschema.Table, 0, len(defs))
	for _, def := range defs {
		t := entschema.NewTable(tableName(def))
		fields := def.Fields()
		var indexes []ent.Index
		for _, m := range def.Mixin() {
			fields = append(fields, m.Fields()...)
			indexes = append(indexes, m.Indexes()...)
		}
		indexes = append(indexes, def.Indexes()...)

		columns := make(map[string]string, len(fields))
		for _, f := range fields {
			d := f.Descriptor()
			if d.Err != nil {
				return nil, fmt.Errorf("table %s field %s: %w", t.Name, d.Name, d.Err)
			}
			col := columnOf(d)
			columns[d.Name] = col.Name
			if d.Name == "id" {
				col.Increment = true
				col.Nullable = false
				t.AddPrimary(col)
				continue
			}
			t.AddColumn(col)
		}
		for _, idx := range indexes {
			d := idx.Descriptor()
			cols := make([]string, 0, len(d.Fields))
			for _, name := range d.Fields {
				col, ok := columns[name]
				if !ok {
					return nil, fmt.Errorf("table %s index references unknown field %s", t.Name, name)
				}
				cols = append(cols, col)
			}
			name := d.StorageKey
			if name == "" {
				name = t.Name + "_" + strings.Join(cols, "_")
			}
			t.AddIndex(name, d.Unique, cols)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func columnOf(d *field.Descriptor) *entschema.Column {
	name := d.Name
	if d.StorageKey != "" {
		name = d.StorageKey
	}
	col := &entschema.Column{
		Name:     name,
		Type:     d.Info.Type,
		Size:     d.Size,
		Unique:   d.Unique,
		Nullable: d.Optional || d.Nillable,
	}
	if d.Default != nil && reflect.ValueOf(d.Default).Kind() != reflect.Func {
		col.Default = d.Default
	}
	return col
}

func tableName(def ent.Interface) string {
	for _, a := range def.Annotations() {
		switch ann := a.(type) {
		case annotation.Annotation:
			if ann.Table != "" {
				return ann.Table
			}
		case *annotation.Annotation:
			if ann != nil && ann.Table != "" {
				return ann.Table
			}
		}
	}
	return strings.ToLower(reflect.TypeOf(def).Name())
}
