package phrasex

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zeebo/xxh3"
)

// On-disk artifact names, per spec.md §6.
const (
	prefixFile   = "prefix.fst"
	fuzzyFSTFile = "fuzzy.fst"
	fuzzyMSGFile = "fuzzy.msg"
	phraseFile   = "phrase.fst"
	metadataFile = "metadata.json"

	metadataVersion = 1
)

// Metadata is the build-time parameter record spec.md §6 requires at
// minimum ({max_edit_distance, word_count, phrase_count, version}), plus
// an ambient build_id and per-artifact checksums so a corrupted or
// half-written directory is detected at Open rather than trusted.
type Metadata struct {
	MaxEditDistance int               `json:"max_edit_distance"`
	WordCount       int               `json:"word_count"`
	PhraseCount     int               `json:"phrase_count"`
	Version         int               `json:"version"`
	BuildID         string            `json:"build_id"`
	Checksums       map[string]string `json:"checksums"`
}

// metadataSchema is the JSON Schema metadata.json must satisfy. It is
// compiled once at package init and reused by every Open call.
const metadataSchemaText = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["max_edit_distance", "word_count", "phrase_count", "version", "build_id", "checksums"],
	"properties": {
		"max_edit_distance": {"type": "integer", "minimum": 0},
		"word_count": {"type": "integer", "minimum": 0},
		"phrase_count": {"type": "integer", "minimum": 0},
		"version": {"type": "integer", "minimum": 1},
		"build_id": {"type": "string", "minLength": 1},
		"checksums": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		}
	}
}`

var metadataSchema = compileMetadataSchema()

func compileMetadataSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("metadata.schema.json", strings.NewReader(metadataSchemaText)); err != nil {
		panic(fmt.Sprintf("phrasex: compiling embedded metadata schema: %v", err))
	}
	return c.MustCompile("metadata.schema.json")
}

// validateMetadata parses and schema-checks raw metadata.json bytes,
// returning the decoded Metadata on success or an *OpenError{Kind:
// OpenErrSchema} on violation.
func validateMetadata(path string, raw []byte) (Metadata, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Metadata{}, &OpenError{Kind: OpenErrSchema, Path: path, Err: err}
	}
	if err := metadataSchema.Validate(doc); err != nil {
		return Metadata{}, &OpenError{Kind: OpenErrSchema, Path: path, Err: err}
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, &OpenError{Kind: OpenErrSchema, Path: path, Err: err}
	}
	return m, nil
}

// newBuildID mints a fresh build identifier, stamped once per Finalize.
func newBuildID() string { return uuid.New().String() }

// marshalMetadata renders m as indented JSON for metadata.json.
func marshalMetadata(m Metadata) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// checksumOf returns the xxh3 digest of data as a hex string.
func checksumOf(data []byte) string {
	return strconv.FormatUint(xxh3.Hash(data), 16)
}

// verifyChecksum compares the stored digest for name against a freshly
// computed one, returning an *OpenError{Kind: OpenErrChecksum} on
// mismatch.
func verifyChecksum(dir, name string, data []byte, want map[string]string) error {
	got := checksumOf(data)
	exp, ok := want[name]
	if !ok || exp != got {
		return &OpenError{Kind: OpenErrChecksum, Path: dir + "/" + name, Err: fmt.Errorf("checksum mismatch: want %s got %s", exp, got)}
	}
	return nil
}
