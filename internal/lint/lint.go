// Package lint checks a transpiled ES module tree for problems that break
// consumers of the published package: relative specifiers without a file
// extension, and CommonJS left in what should be pure ES modules.
//
// Files are tokenized with the tdewolff JavaScript lexer, so import and
// export lists split across lines are checked and comments or strings
// that merely mention require() are not.
package lint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// Rule names.
const (
	RuleImportExtension = "import-extension"
	RuleCommonJS        = "commonjs"
	RuleSyntax          = "syntax"
)

// Issue is one finding.
type Issue struct {
	File    string
	Line    int
	Rule    string
	Message string
}

// String renders the issue as file:line: message (rule).
func (i Issue) String() string {
	return fmt.Sprintf("%s:%d: %s (%s)", i.File, i.Line, i.Message, i.Rule)
}

// Result holds every issue found in one run.
type Result struct {
	Files  int
	Issues []Issue
}

// Summary describes the result on one line.
func (r *Result) Summary() string {
	if len(r.Issues) == 0 {
		return fmt.Sprintf("%d %s checked, no issues found.", r.Files, plural(r.Files, "file"))
	}

	files := make(map[string]bool)
	for _, issue := range r.Issues {
		files[issue.File] = true
	}
	return fmt.Sprintf("%d %s found in %d of %d %s.",
		len(r.Issues), plural(len(r.Issues), "issue"), len(files), r.Files, plural(r.Files, "file"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

var sourceExtensions = map[string]bool{".js": true, ".mjs": true}

// Linter checks the files under one directory.
type Linter struct {
	root string
}

// New creates a linter for the tree rooted at root.
func New(root string) *Linter {
	return &Linter{root: root}
}

// Run checks every .js and .mjs file under the root. A missing root yields
// an empty result. Issue paths are relative to the root.
func (l *Linter) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	if _, err := os.Stat(l.root); os.IsNotExist(err) {
		return result, nil
	}

	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !sourceExtensions[filepath.Ext(p)] {
			return nil
		}

		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		issues, err := lintFile(p, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		result.Files++
		result.Issues = append(result.Issues, issues...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", l.root, err)
	}

	sort.SliceStable(result.Issues, func(i, j int) bool {
		if result.Issues[i].File != result.Issues[j].File {
			return result.Issues[i].File < result.Issues[j].File
		}
		return result.Issues[i].Line < result.Issues[j].Line
	})
	return result, nil
}

// token is one significant lexeme with the line it starts on.
type token struct {
	tt   js.TokenType
	text string
	line int
}

func lintFile(p, rel string) ([]Issue, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}

	tokens, err := tokenize(data)
	if err != nil {
		return []Issue{{File: rel, Line: 1, Rule: RuleSyntax, Message: err.Error()}}, nil
	}

	var issues []Issue
	for _, spec := range specifiers(tokens) {
		if isRelative(spec.text) && path.Ext(spec.text) == "" {
			issues = append(issues, Issue{
				File:    rel,
				Line:    spec.line,
				Rule:    RuleImportExtension,
				Message: fmt.Sprintf("relative import %q has no file extension", spec.text),
			})
		}
	}

	reported := make(map[int]bool)
	for _, line := range commonJSLines(tokens) {
		if reported[line] {
			continue
		}
		reported[line] = true
		issues = append(issues, Issue{
			File:    rel,
			Line:    line,
			Rule:    RuleCommonJS,
			Message: "CommonJS usage in an ES module",
		})
	}
	return issues, nil
}

// tokenize lexes data and drops whitespace and comments. A slash is read
// as the start of a regular expression wherever a division cannot appear.
func tokenize(data []byte) ([]token, error) {
	l := js.NewLexer(parse.NewInputBytes(data))
	line := 1

	var tokens []token
	for {
		tt, text := l.Next()
		if tt == js.ErrorToken {
			if err := l.Err(); err != nil && err != io.EOF {
				return tokens, fmt.Errorf("line %d: %v", line, err)
			}
			return tokens, nil
		}
		if (tt == js.DivToken || tt == js.DivEqToken) && regexpAllowed(tokens) {
			tt, text = l.RegExp()
		}

		start := line
		line += bytes.Count(text, []byte{'\n'})

		switch tt {
		case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
			continue
		}
		tokens = append(tokens, token{tt: tt, text: string(text), line: start})
	}
}

// keywords after which an expression, and so a regular expression, starts.
var expressionKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

func regexpAllowed(tokens []token) bool {
	if len(tokens) == 0 {
		return true
	}
	prev := tokens[len(tokens)-1]
	switch prev.tt {
	case js.StringToken, js.TemplateToken, js.TemplateEndToken, js.RegExpToken:
		return false
	}
	switch prev.text {
	case ")", "]", "}":
		return false
	}
	if expressionKeywords[prev.text] {
		return true
	}
	return isWordStart(prev.text)
}

// isWordStart reports whether text is an identifier, keyword or number.
// Those end an operand, so a following slash divides.
func isWordStart(text string) bool {
	if text == "" {
		return false
	}
	c := text[0]
	return c == '_' || c == '$' || c == '.' && len(text) > 1 || c >= '0' && c <= '9' ||
		c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// specifiers collects the module specifiers of static imports and exports,
// side-effect imports and dynamic imports with a literal argument. Import
// and export lists may span any number of lines; the reported line is the
// one holding the specifier.
func specifiers(tokens []token) []token {
	var specs []token
	pending := false
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		memberAccess := i > 0 && tokens[i-1].text == "."

		switch {
		case tok.text == "import" && !memberAccess:
			next := at(tokens, i+1)
			switch {
			case next.tt == js.StringToken:
				specs = append(specs, unquoted(next))
				pending = false
				i++
			case next.text == "(":
				if arg, closing := at(tokens, i+2), at(tokens, i+3); arg.tt == js.StringToken && closing.text == ")" {
					specs = append(specs, unquoted(arg))
				}
			case next.text == ".":
				// import.meta
			default:
				pending = true
			}
		case tok.text == "export" && !memberAccess:
			next := at(tokens, i+1)
			pending = next.text == "{" || next.text == "*"
		case pending && tok.text == "from":
			if next := at(tokens, i+1); next.tt == js.StringToken {
				specs = append(specs, unquoted(next))
				pending = false
				i++
			}
		case tok.text == ";":
			pending = false
		}
	}
	return specs
}

// commonJSLines returns the lines using require(), module.exports or
// exports.<name>.
func commonJSLines(tokens []token) []int {
	var lines []int
	for i, tok := range tokens {
		if i > 0 && tokens[i-1].text == "." {
			continue
		}
		next := at(tokens, i+1)
		switch tok.text {
		case "require":
			if next.text == "(" {
				lines = append(lines, tok.line)
			}
		case "module":
			if next.text == "." && at(tokens, i+2).text == "exports" {
				lines = append(lines, tok.line)
			}
		case "exports":
			if next.text == "." {
				lines = append(lines, tok.line)
			}
		}
	}
	return lines
}

func at(tokens []token, i int) token {
	if i < len(tokens) {
		return tokens[i]
	}
	return token{tt: js.ErrorToken}
}

func unquoted(tok token) token {
	if len(tok.text) >= 2 {
		tok.text = tok.text[1 : len(tok.text)-1]
	}
	return tok
}

func isRelative(spec string) bool {
	return strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") || spec == "." || spec == ".."
}
