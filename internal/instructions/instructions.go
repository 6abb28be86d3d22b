// Package instructions loads instruction files: the TOML or YAML documents
// that declare which commands to run, the files they touch, and the models
// that drive them. Loading validates the document against an embedded JSON
// Schema, decodes it into the closed command kinds, and resolves per-command
// models against the file defaults.
package instructions

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/editloop/editloop/internal/llm"
	"github.com/editloop/editloop/internal/prompt"
	"github.com/editloop/editloop/schemas"
	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

const (
	// defaultModel answers prompts when neither the command nor the file
	// defaults name a model.
	defaultModel = "gpt-4o"

	// DefaultTargetDirectory is used when the target table omits a directory.
	DefaultTargetDirectory = "output"
)

// defaultPrinter formats schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// instructionsSchema is the compiled JSON Schema for instruction files.
var instructionsSchema *jsonschema.Schema

func init() {
	instructionsSchema = mustCompileSchema(schemas.InstructionsSchemaJSON, "instructions.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// Defaults supplies fallback models for commands that do not name their own.
type Defaults struct {
	Model       string `mapstructure:"model"`
	PromptModel string `mapstructure:"prompt_model"`
}

// Target describes the directory the commands operate on and the source
// patterns that seed it on first use.
type Target struct {
	Directory string   `mapstructure:"directory"`
	Source    []string `mapstructure:"source"`
}

// File is a fully validated instruction file.
type File struct {
	// Path is where the file was loaded from.
	Path string

	Defaults      Defaults
	Target        Target
	SharedPrompts map[string]string
	Commands      []Command
}

// Command returns the command with the given id, or nil.
func (f *File) Command(id string) Command {
	for _, cmd := range f.Commands {
		if cmd.Common().ID == id {
			return cmd
		}
	}
	return nil
}

// Load reads and validates the instruction file at path. Any defect in the
// file is returned as a *ConfigurationError before a single command runs.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse validates and decodes instruction file contents. The path determines
// the markup language (.toml, .yaml or .yml) and is echoed in errors.
func Parse(path string, data []byte) (*File, error) {
	doc, err := unmarshalDocument(path, data)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	if errs := validateAgainstSchema(convertToJSONCompatible(doc)); len(errs) > 0 {
		return nil, &ConfigurationError{
			Path: path,
			Err:  fmt.Errorf("schema validation failed:\n  %s", strings.Join(errs, "\n  ")),
		}
	}

	var raw rawFile
	if err := mapstructure.Decode(doc, &raw); err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("decoding instruction file: %w", err)}
	}

	file, err := buildFile(path, raw)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return file, nil
}

// rawFile mirrors the document shape before semantic validation. Pointer and
// nil-slice fields distinguish absent keys from empty values.
type rawFile struct {
	Defaults      Defaults          `mapstructure:"defaults"`
	Target        Target            `mapstructure:"target"`
	SharedPrompts map[string]string `mapstructure:"shared_prompts"`
	Commands      []rawCommand      `mapstructure:"commands"`
}

type rawCommand struct {
	ID           string   `mapstructure:"id"`
	Type         string   `mapstructure:"type"`
	TargetFiles  []string `mapstructure:"target_files"`
	Instruction  string   `mapstructure:"instruction"`
	Context      []string `mapstructure:"context"`
	TestCommands []string `mapstructure:"test_commands"`
	MaxRetries   *int     `mapstructure:"max_retries"`
	Model        string   `mapstructure:"model"`
	PromptModel  string   `mapstructure:"prompt_model"`
}

func unmarshalDocument(path string, data []byte) (any, error) {
	var doc any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported instruction file extension %q (want .toml, .yaml or .yml)", ext)
	}
	return doc, nil
}

func validateAgainstSchema(instance any) []string {
	err := instructionsSchema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible rewrites decoder output into the generic types the
// schema validator accepts. yaml.v3 and toml both produce map[string]any
// trees already; this normalizes any nested containers that are not.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}

func buildFile(path string, raw rawFile) (*File, error) {
	file := &File{
		Path:          path,
		Defaults:      raw.Defaults,
		Target:        raw.Target,
		SharedPrompts: raw.SharedPrompts,
	}
	if file.Target.Directory == "" {
		file.Target.Directory = DefaultTargetDirectory
	}

	for name := range raw.SharedPrompts {
		if prompt.IsReservedMacro(name) {
			return nil, fmt.Errorf("shared prompt %q collides with a built-in macro", name)
		}
	}

	if err := checkModel("defaults.model", raw.Defaults.Model); err != nil {
		return nil, err
	}
	if err := checkModel("defaults.prompt_model", raw.Defaults.PromptModel); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(raw.Commands))
	for _, rc := range raw.Commands {
		if seen[rc.ID] {
			return nil, fmt.Errorf("duplicate command id %q", rc.ID)
		}
		seen[rc.ID] = true

		cmd, err := buildCommand(rc, raw.Defaults)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", rc.ID, err)
		}
		file.Commands = append(file.Commands, cmd)
	}
	return file, nil
}

func buildCommand(rc rawCommand, defaults Defaults) (Command, error) {
	meta := Meta{
		ID:          rc.ID,
		TargetFiles: rc.TargetFiles,
		Instruction: rc.Instruction,
		Context:     rc.Context,
		Model:       firstNonEmpty(rc.Model, defaults.Model, defaultModel),
		PromptModel: firstNonEmpty(rc.PromptModel, defaults.PromptModel, defaultModel),
	}
	if err := checkModel("model", meta.Model); err != nil {
		return nil, err
	}
	if err := checkModel("prompt_model", meta.PromptModel); err != nil {
		return nil, err
	}

	switch Kind(rc.Type) {
	case KindCreate:
		if err := rejectFeedbackFields(rc); err != nil {
			return nil, err
		}
		if len(rc.Context) == 0 {
			return nil, errors.New("create commands require at least one context pattern")
		}
		return &Create{Meta: meta}, nil
	case KindEdit:
		if err := rejectFeedbackFields(rc); err != nil {
			return nil, err
		}
		return &Edit{Meta: meta}, nil
	case KindFeedbackEdit:
		if len(rc.TestCommands) == 0 {
			return nil, errors.New("feedback_edit commands require test_commands")
		}
		if rc.MaxRetries == nil {
			return nil, errors.New("feedback_edit commands require max_retries")
		}
		return &FeedbackEdit{Meta: meta, TestCommands: rc.TestCommands, MaxRetries: *rc.MaxRetries}, nil
	default:
		// The schema enum rejects unknown types before this point.
		return nil, fmt.Errorf("unknown command type %q", rc.Type)
	}
}

// rejectFeedbackFields rejects feedback-loop settings on the single-shot
// kinds, where they would silently do nothing.
func rejectFeedbackFields(rc rawCommand) error {
	if rc.TestCommands != nil {
		return fmt.Errorf("test_commands is only valid for %s commands", KindFeedbackEdit)
	}
	if rc.MaxRetries != nil {
		return fmt.Errorf("max_retries is only valid for %s commands", KindFeedbackEdit)
	}
	return nil
}

func checkModel(field, model string) error {
	if model == "" || llm.Supported(model) {
		return nil
	}
	return fmt.Errorf("%s: unsupported model %q (supported: %s)",
		field, model, strings.Join(llm.SupportedModels(), ", "))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
