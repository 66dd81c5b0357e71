// Package storage is RustQL's JSON-backed durability adapter (spec.md
// §5, §6): the in-memory catalog is the system of record while a
// session runs; Save/Load move it to and from one JSON file.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rustql/internal/catalog"
	"rustql/internal/types"
)

// IOError wraps a failure reading or writing the database file.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

type fkFile struct {
	ParentTable  string `json:"parent_table"`
	ParentColumn string `json:"parent_column"`
	OnDelete     string `json:"on_delete"`
	OnUpdate     string `json:"on_update"`
}

type columnFile struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	ForeignKey *fkFile `json:"foreign_key,omitempty"`
}

type tableFile struct {
	Name    string          `json:"name"`
	Columns []columnFile    `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

type indexFile struct {
	Name   string `json:"name"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

type databaseFile struct {
	Tables  []tableFile `json:"tables"`
	Indexes []indexFile `json:"indexes"`
}

func kindName(k types.Kind) string { return k.String() }

func parseKind(s string) (types.Kind, error) {
	switch s {
	case "NULL":
		return types.Null, nil
	case "INTEGER":
		return types.Integer, nil
	case "FLOAT":
		return types.Float, nil
	case "TEXT":
		return types.Text, nil
	case "BOOLEAN":
		return types.Boolean, nil
	case "DATE":
		return types.Date, nil
	case "TIME":
		return types.Time, nil
	case "DATETIME":
		return types.DateTime, nil
	}
	return types.Null, fmt.Errorf("storage: unknown column type %q", s)
}

func actionName(a catalog.FKAction) string {
	switch a {
	case catalog.Cascade:
		return "CASCADE"
	case catalog.Restrict:
		return "RESTRICT"
	case catalog.SetNull:
		return "SET_NULL"
	default:
		return "NO_ACTION"
	}
}

func parseAction(s string) (catalog.FKAction, error) {
	switch s {
	case "", "NO_ACTION":
		return catalog.NoAction, nil
	case "CASCADE":
		return catalog.Cascade, nil
	case "RESTRICT":
		return catalog.Restrict, nil
	case "SET_NULL":
		return catalog.SetNull, nil
	}
	return catalog.NoAction, fmt.Errorf("storage: unknown foreign key action %q", s)
}

// Save writes cat to path as JSON, replacing the previous file
// atomically via a temp-file-then-rename so a crash mid-write never
// leaves a truncated database behind (spec.md §5).
func Save(path string, cat *catalog.Catalog) error {
	doc := databaseFile{}
	seenIndex := map[string]bool{}
	for _, name := range cat.TableNames() {
		tbl, err := cat.Table(name)
		if err != nil {
			return &IOError{Path: path, Op: "save", Err: err}
		}
		tf := tableFile{Name: name}
		for _, col := range tbl.Columns {
			cf := columnFile{Name: col.Name, Type: kindName(col.Type)}
			if col.ForeignKey != nil {
				cf.ForeignKey = &fkFile{
					ParentTable:  col.ForeignKey.ParentTable,
					ParentColumn: col.ForeignKey.ParentColumn,
					OnDelete:     actionName(col.ForeignKey.OnDelete),
					OnUpdate:     actionName(col.ForeignKey.OnUpdate),
				}
			}
			tf.Columns = append(tf.Columns, cf)
			for _, ix := range tbl.IndexesOnColumn(col.Name) {
				if seenIndex[ix.Name] {
					continue
				}
				seenIndex[ix.Name] = true
				doc.Indexes = append(doc.Indexes, indexFile{Name: ix.Name, Table: ix.Table, Column: ix.Column})
			}
		}
		for _, row := range tbl.Rows() {
			rf := make([]interface{}, len(row.Values))
			for i, v := range row.Values {
				rf[i] = v.MarshalISO()
			}
			tf.Rows = append(tf.Rows, rf)
		}
		doc.Tables = append(doc.Tables, tf)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &IOError{Path: path, Op: "save", Err: err}
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".rustql-*.tmp")
	if err != nil {
		return &IOError{Path: path, Op: "save", Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &IOError{Path: path, Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &IOError{Path: path, Op: "save", Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &IOError{Path: path, Op: "save", Err: err}
	}
	return nil
}

// Load reads a RustQL database file, tolerating a missing indexes
// array and missing optional fields. A missing file is not an error:
// it returns a fresh, empty catalog (spec.md §6's "or creates").
func Load(path string) (*catalog.Catalog, error) {
	cat := catalog.NewCatalog()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cat, nil
	}
	if err != nil {
		return nil, &IOError{Path: path, Op: "load", Err: err}
	}
	var doc databaseFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &IOError{Path: path, Op: "load", Err: err}
	}
	for _, tf := range doc.Tables {
		var cols []catalog.Column
		for _, cf := range tf.Columns {
			kind, err := parseKind(cf.Type)
			if err != nil {
				return nil, &IOError{Path: path, Op: "load", Err: err}
			}
			col := catalog.Column{Name: cf.Name, Type: kind}
			if cf.ForeignKey != nil {
				onDelete, err := parseAction(cf.ForeignKey.OnDelete)
				if err != nil {
					return nil, &IOError{Path: path, Op: "load", Err: err}
				}
				onUpdate, err := parseAction(cf.ForeignKey.OnUpdate)
				if err != nil {
					return nil, &IOError{Path: path, Op: "load", Err: err}
				}
				col.ForeignKey = &catalog.ForeignKey{
					ParentTable:  cf.ForeignKey.ParentTable,
					ParentColumn: cf.ForeignKey.ParentColumn,
					OnDelete:     onDelete,
					OnUpdate:     onUpdate,
				}
			}
			cols = append(cols, col)
		}
		if err := cat.CreateTable(tf.Name, cols); err != nil {
			return nil, &IOError{Path: path, Op: "load", Err: err}
		}
		for _, rf := range tf.Rows {
			values := make([]types.Value, len(cols))
			for i, col := range cols {
				var raw interface{}
				if i < len(rf) {
					raw = rf[i]
				}
				v, err := types.ParseISO(col.Type, raw)
				if err != nil {
					return nil, &IOError{Path: path, Op: "load", Err: err}
				}
				values[i] = v
			}
			if _, err := cat.Insert(tf.Name, values); err != nil {
				return nil, &IOError{Path: path, Op: "load", Err: err}
			}
		}
	}
	for _, idx := range doc.Indexes {
		if err := cat.CreateIndex(idx.Name, idx.Table, idx.Column); err != nil {
			return nil, &IOError{Path: path, Op: "load", Err: err}
		}
	}
	return cat, nil
}
