// Package output renders CLI results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned tables, with wide-only columns
//   - json.go: indented JSON
//   - yaml.go: YAML via gopkg.in/yaml.v3
//
// Table columns come from struct fields. A `table:"NAME"` tag sets the
// header, `table:"NAME,wide"` hides the column unless wide output was
// asked for, and `table:"-"` skips the field.
package output
