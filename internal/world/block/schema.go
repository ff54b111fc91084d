package block

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed catalog/*.json catalog/schemas/*.json
var embeddedCatalog embed.FS

const schemaBaseURL = "https://survival-game.local/schemas/"

// catalogValidator проверяет файлы каталога по встроенным схемам
type catalogValidator struct {
	schemas map[string]*jsonschema.Schema
}

func newCatalogValidator() (*catalogValidator, error) {
	c := jsonschema.NewCompiler()
	v := &catalogValidator{schemas: make(map[string]*jsonschema.Schema)}

	names := map[string]string{
		"blocks.json":   "blocks.schema.json",
		"elements.json": "elements.schema.json",
		"items.json":    "items.schema.json",
	}
	for _, schemaFile := range names {
		data, err := embeddedCatalog.ReadFile("catalog/schemas/" + schemaFile)
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaBaseURL+schemaFile, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("схема %s: %w", schemaFile, err)
		}
	}
	for catalogFile, schemaFile := range names {
		s, err := c.Compile(schemaBaseURL + schemaFile)
		if err != nil {
			return nil, fmt.Errorf("компиляция схемы %s: %w", schemaFile, err)
		}
		v.schemas[catalogFile] = s
	}
	return v, nil
}

func (v *catalogValidator) validate(name string, data []byte) error {
	s, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("%w: нет схемы для %s", ErrInvalidCatalog, name)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, name, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, name, err)
	}
	return nil
}
