package queue

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Field is the semantic role of a queue column.
type Field string

const (
	FieldTimestamp   Field = "timestamp"
	FieldSourceURL   Field = "source_url"
	FieldMediaURL    Field = "media_url"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldThumbnail   Field = "thumbnail"
	FieldTags        Field = "tags"
	FieldCaption     Field = "caption"
	FieldPublishedAt Field = "published_at"
	FieldCreationID  Field = "creation_id"
	FieldError       Field = "error"
)

// ErrorMode controls how new error messages land in the error cell.
type ErrorMode string

const (
	ErrorAppend    ErrorMode = "append"
	ErrorOverwrite ErrorMode = "overwrite"
)

var ErrUnknownSchema = errors.New("unknown queue schema")

//go:embed schemas/*.yaml schemas/descriptor.schema.json
var schemaFS embed.FS

// Schema maps semantic fields onto spreadsheet columns.
type Schema struct {
	Name       string           `yaml:"name" json:"name"`
	Sheet      string           `yaml:"sheet" json:"sheet"`
	HeaderRows int              `yaml:"header_rows" json:"header_rows"`
	ErrorMode  ErrorMode        `yaml:"error_mode" json:"error_mode"`
	Columns    map[Field]string `yaml:"columns" json:"columns"`

	index map[Field]int
	width int
}

// BuiltinSchemas lists the descriptors shipped with the binary.
func BuiltinSchemas() []string {
	return []string{"canonical", "simple"}
}

// LoadSchema resolves a built-in descriptor by name or reads a YAML file from disk.
func LoadSchema(nameOrPath string) (*Schema, error) {
	nameOrPath = strings.TrimSpace(nameOrPath)
	if nameOrPath == "" {
		nameOrPath = "canonical"
	}

	var content []byte
	var err error
	if isBuiltin(nameOrPath) {
		content, err = schemaFS.ReadFile("schemas/" + nameOrPath + ".yaml")
	} else if ext := filepath.Ext(nameOrPath); ext == ".yaml" || ext == ".yml" {
		content, err = os.ReadFile(filepath.Clean(nameOrPath))
	} else {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, nameOrPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", nameOrPath, err)
	}
	return ParseSchema(content)
}

// ParseSchema validates a YAML descriptor document and resolves its column letters.
func ParseSchema(content []byte) (*Schema, error) {
	var doc interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	var s Schema
	if err := yaml.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if s.Sheet == "" {
		s.Sheet = "Sheet1"
	}
	if s.ErrorMode == "" {
		s.ErrorMode = ErrorAppend
	}
	if err := s.resolve(); err != nil {
		return nil, err
	}
	return &s, nil
}

// MustSchema is LoadSchema for built-in names; it panics on failure.
func MustSchema(name string) *Schema {
	s, err := LoadSchema(name)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) resolve() error {
	s.index = make(map[Field]int, len(s.Columns))
	seen := make(map[int]Field, len(s.Columns))
	s.width = 0
	for field, letter := range s.Columns {
		col, err := excelize.ColumnNameToNumber(letter)
		if err != nil {
			return fmt.Errorf("schema %s: column %q for %s: %w", s.Name, letter, field, err)
		}
		if other, dup := seen[col]; dup {
			return fmt.Errorf("schema %s: column %s used by both %s and %s", s.Name, letter, other, field)
		}
		seen[col] = field
		s.index[field] = col
		if col > s.width {
			s.width = col
		}
	}
	return nil
}

// Column returns the 1-based column index of a field.
func (s *Schema) Column(f Field) (int, bool) {
	col, ok := s.index[f]
	return col, ok
}

func (s *Schema) Has(f Field) bool {
	_, ok := s.index[f]
	return ok
}

// Width is the number of columns spanned by the descriptor.
func (s *Schema) Width() int {
	return s.width
}

// FirstDataRow is the sheet row number of the first queue entry.
func (s *Schema) FirstDataRow() int {
	return s.HeaderRows + 1
}

// Fields returns the mapped fields in column order.
func (s *Schema) Fields() []Field {
	fields := make([]Field, 0, len(s.index))
	for f := range s.index {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return s.index[fields[i]] < s.index[fields[j]] })
	return fields
}

// Encode lays out values in column order for an appended row. Unmapped fields are dropped.
func (s *Schema) Encode(values map[Field]string) []string {
	out := make([]string, s.width)
	for f, v := range values {
		if col, ok := s.index[f]; ok {
			out[col-1] = v
		}
	}
	return out
}

// Decode builds a Row from the raw cells of sheet row index.
func (s *Schema) Decode(index int, cells []string) Row {
	values := make(map[Field]string, len(s.index))
	for f, col := range s.index {
		if col-1 < len(cells) {
			values[f] = cells[col-1]
		}
	}
	return Row{Index: index, values: values}
}

func isBuiltin(name string) bool {
	for _, b := range BuiltinSchemas() {
		if b == name {
			return true
		}
	}
	return false
}

var (
	descriptorOnce   sync.Once
	descriptorSchema *jsonschema.Schema
	descriptorErr    error
)

func compiledDescriptorSchema() (*jsonschema.Schema, error) {
	descriptorOnce.Do(func() {
		raw, err := schemaFS.ReadFile("schemas/descriptor.schema.json")
		if err != nil {
			descriptorErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("descriptor.schema.json", bytes.NewReader(raw)); err != nil {
			descriptorErr = fmt.Errorf("load descriptor schema: %w", err)
			return
		}
		descriptorSchema, descriptorErr = compiler.Compile("descriptor.schema.json")
	})
	return descriptorSchema, descriptorErr
}

func validateDocument(doc interface{}) error {
	compiled, err := compiledDescriptorSchema()
	if err != nil {
		return err
	}
	// Round-trip through JSON so the validator sees JSON-native value types.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalise schema: %w", err)
	}
	var normalised interface{}
	if err := json.Unmarshal(b, &normalised); err != nil {
		return fmt.Errorf("normalise schema: %w", err)
	}
	if err := compiled.Validate(normalised); err != nil {
		return fmt.Errorf("invalid schema descriptor: %w", err)
	}
	return nil
}
