// Package manifest loads daisy.toml project manifests: package metadata,
// dependency specs with semver ranges, and workspace member globs.
package manifest

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var tomlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"([^"\\]|\\.)*"`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_-]*`},
	{Name: "Punct", Pattern: `[\[\]{}=,.]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// FileAST is the parsed manifest: a sequence of [section] blocks.
type FileAST struct {
	Sections []*SectionAST `parser:"@@*"`
}

// SectionAST is one [name] header with its key/value entries.
type SectionAST struct {
	Name    string      `parser:"'[' @Ident ']'"`
	Entries []*EntryAST `parser:"@@*"`
}

type EntryAST struct {
	Key   string    `parser:"@Ident '='"`
	Value *ValueAST `parser:"@@"`
}

// ValueAST is a string, integer, string array, or inline table.
type ValueAST struct {
	Str   *string    `parser:"  @String"`
	Int   *int64     `parser:"| @Int"`
	Array []string   `parser:"| '[' ( @String ( ',' @String )* )? ']'"`
	Table []*EntryAST `parser:"| '{' ( @@ ( ',' @@ )* )? '}'"`
}

var tomlParser = participle.MustBuild[FileAST](
	participle.Lexer(tomlLexer),
	participle.Elide("Whitespace", "comment"),
	participle.Unquote("String"),
)
