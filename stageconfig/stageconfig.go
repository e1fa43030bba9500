// Package stageconfig reads the documents that describe a collection to
// stage. Documents are JSON or YAML and are checked against a JSON schema
// before they are decoded.
package stageconfig

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ORIGYN-SA/mintgo/stage"
)

//go:embed schema.json
var schemaDoc string

var (
	argsSchema = gojsonschema.NewStringLoader(schemaDoc)

	// nftsSchema accepts {"nfts": [...]} using the definitions of the
	// stage configuration schema.
	nftsSchema gojsonschema.JSONLoader
)

func init() {
	var full map[string]interface{}
	if err := json.Unmarshal([]byte(schemaDoc), &full); err != nil {
		panic(err)
	}
	props := full["properties"].(map[string]interface{})
	nftsSchema = gojsonschema.NewGoLoader(map[string]interface{}{
		"$schema":     full["$schema"],
		"type":        "object",
		"required":    []string{"nfts"},
		"properties":  map[string]interface{}{"nfts": props["nfts"]},
		"definitions": full["definitions"],
	})
}

// Format of a stage configuration document.
type Format int

const (
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

// FormatOf guesses the format from the file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

type ValidationError struct {
	Errors []ValidationErrorDetail
}

type ValidationErrorDetail struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

func (err *ValidationError) Error() string {
	issues := make([]string, 0, len(err.Errors))
	for _, d := range err.Errors {
		issues = append(issues, d.Path+": "+d.Message)
	}
	return fmt.Sprintf("validation issues: %s", strings.Join(issues, "; "))
}

// Load reads and decodes the document at path. Relative file paths are
// resolved against the directory of the document.
func Load(fs afero.Fs, path string) (*stage.Args, error) {
	blob, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read stage configuration")
	}
	args, err := Parse(blob, FormatOf(path))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid stage configuration %s", path)
	}
	dir := filepath.Dir(path)
	for i := range args.CollectionFiles {
		args.CollectionFiles[i].Path = Resolve(dir, args.CollectionFiles[i].Path)
	}
	resolveNFTs(dir, args.NFTs)
	return args, nil
}

// LoadNFTs reads a document holding NFT definitions only, under a "nfts"
// key, as used to add NFTs to a staged collection.
func LoadNFTs(fs afero.Fs, path string) ([]stage.NFT, error) {
	blob, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read NFT definitions")
	}
	nfts, err := ParseNFTs(blob, FormatOf(path))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid NFT definitions %s", path)
	}
	resolveNFTs(filepath.Dir(path), nfts)
	return nfts, nil
}

func resolveNFTs(dir string, nfts []stage.NFT) {
	for i := range nfts {
		for j := range nfts[i].Files {
			nfts[i].Files[j].Path = Resolve(dir, nfts[i].Files[j].Path)
		}
	}
}

// Resolve joins a relative local path to dir. Absolute paths and remote
// locations are returned unchanged.
func Resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path
	}
	return filepath.Join(dir, path)
}

// Parse decodes a document. Relative file paths are kept as they are.
func Parse(blob []byte, format Format) (*stage.Args, error) {
	args := &stage.Args{}
	if err := parse(blob, format, argsSchema, args); err != nil {
		return nil, err
	}
	env, err := stage.ParseEnvironment(string(args.Environment))
	if err != nil {
		return nil, err
	}
	args.Environment = env
	if err := args.Validate(); err != nil {
		return nil, err
	}
	return args, nil
}

// ParseNFTs decodes a document holding NFT definitions.
func ParseNFTs(blob []byte, format Format) ([]stage.NFT, error) {
	var doc struct {
		NFTs []stage.NFT `json:"nfts"`
	}
	if err := parse(blob, format, nftsSchema, &doc); err != nil {
		return nil, err
	}
	return doc.NFTs, nil
}

// parse decodes blob, checks it against schema and maps it onto v.
func parse(blob []byte, format Format, schema gojsonschema.JSONLoader, v interface{}) error {
	doc, err := decode(blob, format)
	if err != nil {
		return err
	}
	m, ok := doc.(map[string]interface{})
	if !ok {
		return errors.Errorf("unexpected document of type %T", doc)
	}
	if err := coerce(m); err != nil {
		return err
	}
	if err := validate(schema, m); err != nil {
		return err
	}

	// The document is valid, a JSON round trip maps it onto the typed form.
	blob, err = json.Marshal(m)
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(blob, v), "cannot decode document")
}

// Validate checks a generic document against the stage configuration
// schema. The result is a *ValidationError when the document is invalid.
func Validate(doc interface{}) error {
	return validate(argsSchema, doc)
}

func validate(schema gojsonschema.JSONLoader, doc interface{}) error {
	res, err := gojsonschema.Validate(schema, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.Wrap(err, "cannot validate document")
	}
	if res.Valid() {
		return nil
	}
	verr := &ValidationError{}
	for _, issue := range res.Errors() {
		verr.Errors = append(verr.Errors, ValidationErrorDetail{
			Message: issue.Description(),
			Path:    issue.Field(),
		})
	}
	return verr
}

func decode(blob []byte, format Format) (interface{}, error) {
	if format == FormatAuto {
		format = FormatYAML
		if trimmed := bytes.TrimSpace(blob); len(trimmed) > 0 && trimmed[0] == '{' {
			format = FormatJSON
		}
	}
	var doc interface{}
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(blob, &doc); err != nil {
			return nil, errors.Wrap(err, "cannot decode JSON document")
		}
	default:
		if err := yaml.Unmarshal(blob, &doc); err != nil {
			return nil, errors.Wrap(err, "cannot decode YAML document")
		}
	}
	return doc, nil
}

var (
	intFields  = []string{"startNftIndex", "quantity", "size"}
	boolFields = []string{"useProxy", "soulbound", "immutable", "isNewLibrary"}
)

// coerce accepts numbers and booleans written as strings, which
// hand-written documents often contain.
func coerce(v interface{}) error {
	switch t := v.(type) {
	case map[string]interface{}:
		for _, name := range intFields {
			if s, ok := t[name].(string); ok {
				n, err := cast.ToInt64E(strings.TrimSpace(s))
				if err != nil {
					return errors.Errorf("%s: %q is not a number", name, s)
				}
				t[name] = n
			}
		}
		for _, name := range boolFields {
			if s, ok := t[name].(string); ok {
				b, err := cast.ToBoolE(strings.TrimSpace(s))
				if err != nil {
					return errors.Errorf("%s: %q is not a boolean", name, s)
				}
				t[name] = b
			}
		}
		for _, child := range t {
			if err := coerce(child); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, child := range t {
			if err := coerce(child); err != nil {
				return err
			}
		}
	}
	return nil
}
