package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	sqlPattern    = regexp.MustCompile(`(?i)^\s*(--sql\b|select|insert|update|delete|with|create|alter|drop)\b`)
	markerPattern = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

// statement is one string constant that looks like SQL.
type statement struct {
	file   string
	name   string
	line   int
	marker string
}

// lintPaths checks every SQL constant under targets: each needs a
// well-formed marker and no two constants may share one.
func lintPaths(targets []string) ([]violation, error) {
	var stmts []statement
	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if filepath.Ext(target) == ".go" {
				found, err := collect(target)
				if err != nil {
					return nil, err
				}
				stmts = append(stmts, found...)
			}
			continue
		}
		err = filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != target && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor" || d.Name() == "testdata") {
					return filepath.SkipDir
				}
				return nil
			}
			if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			found, err := collect(path)
			if err != nil {
				return err
			}
			stmts = append(stmts, found...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return check(stmts), nil
}

func check(stmts []statement) []violation {
	var out []violation
	seen := make(map[string]statement, len(stmts))
	for _, s := range stmts {
		if !markerPattern.MatchString(s.marker) {
			out = append(out, violation{file: s.file, line: s.line, name: s.name, message: "missing or invalid --sql <uuid> marker"})
			continue
		}
		if prev, dup := seen[s.marker]; dup {
			out = append(out, violation{file: s.file, line: s.line, name: s.name, message: "marker already used by " + prev.name})
			continue
		}
		seen[s.marker] = s
	}
	return out
}

func collect(path string) ([]statement, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	var out []statement
	ast.Inspect(file, func(n ast.Node) bool {
		vs, ok := n.(*ast.ValueSpec)
		if !ok {
			return true
		}
		for i, value := range vs.Values {
			bl, ok := value.(*ast.BasicLit)
			if !ok || bl.Kind != token.STRING {
				continue
			}
			raw, err := unquote(bl.Value)
			if err != nil || !sqlPattern.MatchString(raw) {
				continue
			}
			name := ""
			if i < len(vs.Names) {
				name = vs.Names[i].Name
			}
			out = append(out, statement{
				file:   path,
				name:   name,
				line:   fset.Position(bl.Pos()).Line,
				marker: firstLine(raw),
			})
		}
		return true
	})
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
