// Package schemas holds the embedded JSON Schemas used to validate
// instruction files before they are decoded into typed commands.
package schemas

// InstructionsSchemaJSON is the JSON Schema for instruction files
// (instructions.toml / instructions.yaml). It validates shape only;
// per-kind field requirements and cross-field rules are enforced in
// the instructions package after decoding.
const InstructionsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "instructions.schema.json",
  "title": "editloop instruction file",
  "type": "object",
  "required": ["commands"],
  "additionalProperties": false,
  "properties": {
    "defaults": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "model": { "type": "string", "minLength": 1 },
        "prompt_model": { "type": "string", "minLength": 1 }
      }
    },
    "target": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "directory": { "type": "string", "minLength": 1 },
        "source": {
          "type": "array",
          "items": { "type": "string", "minLength": 1 }
        }
      }
    },
    "shared_prompts": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    },
    "commands": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "type", "target_files", "instruction"],
        "additionalProperties": false,
        "properties": {
          "id": { "type": "string", "minLength": 1 },
          "type": { "enum": ["create", "edit", "feedback_edit"] },
          "target_files": {
            "type": "array",
            "minItems": 1,
            "items": { "type": "string", "minLength": 1 }
          },
          "instruction": { "type": "string", "minLength": 1 },
          "context": {
            "type": "array",
            "items": { "type": "string", "minLength": 1 }
          },
          "test_commands": {
            "type": "array",
            "items": { "type": "string", "minLength": 1 }
          },
          "max_retries": { "type": "integer", "minimum": 1 },
          "model": { "type": "string", "minLength": 1 },
          "prompt_model": { "type": "string", "minLength": 1 }
        }
      }
    }
  }
}`
