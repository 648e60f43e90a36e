package parser

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// BuildDocs parses every non-test Go file under dirs and returns one APIDoc
// per exported symbol plus one per package. Parse errors are collected, not
// returned as failures. When two packages share a name the first definition
// of an id wins.
func BuildDocs(dirs []string) ([]*types.APIDoc, []types.ParseError, error) {
	p := New()
	b := &docBuilder{
		docs:     make(map[string]*types.APIDoc),
		packages: make(map[string]*types.APIDoc),
	}

	for _, root := range dirs {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}

			result, err := p.ParseFile(path)
			if err != nil {
				return err
			}
			b.errors = append(b.errors, result.Errors...)
			if result.PackageName == "" || strings.HasSuffix(result.PackageName, "_test") || result.PackageName == "main" {
				return nil
			}
			b.addFile(result, p.PackageDoc(path))
			return nil
		})
		if err != nil {
			return nil, b.errors, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	return b.finish(), b.errors, nil
}

func skipDir(name string) bool {
	return name == "testdata" || name == "vendor" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

type docBuilder struct {
	docs     map[string]*types.APIDoc
	packages map[string]*types.APIDoc
	errors   []types.ParseError
}

func (b *docBuilder) addFile(result *types.ParseResult, packageDoc string) {
	pkg := result.PackageName
	pkgDoc, ok := b.packages[pkg]
	if !ok {
		pkgDoc = &types.APIDoc{
			ID:        pkg,
			Extension: pkg,
			Kind:      types.KindPackage,
			Signature: "package " + pkg,
		}
		b.packages[pkg] = pkgDoc
	}
	if pkgDoc.Doc == "" {
		pkgDoc.Doc = packageDoc
	}

	for i := range result.Symbols {
		sym := &result.Symbols[i]
		id := pkg + "@" + sym.QualifiedName()
		if _, exists := b.docs[id]; exists {
			continue
		}
		b.docs[id] = &types.APIDoc{
			ID:        id,
			Extension: pkg,
			Symbol:    sym.QualifiedName(),
			Kind:      sym.Kind,
			Signature: sym.Signature,
			Doc:       sym.DocComment,
		}
	}
}

// finish links members and returns docs sorted by id
func (b *docBuilder) finish() []*types.APIDoc {
	for id, doc := range b.docs {
		if pkg, ok := b.packages[doc.Extension]; ok {
			pkg.Members = append(pkg.Members, id)
		}
		if doc.Kind == types.KindMethod {
			typeName, _, _ := strings.Cut(doc.Symbol, ".")
			if owner, ok := b.docs[doc.Extension+"@"+typeName]; ok {
				owner.Members = append(owner.Members, id)
			}
		}
	}

	out := make([]*types.APIDoc, 0, len(b.docs)+len(b.packages))
	for _, doc := range b.docs {
		sort.Strings(doc.Members)
		out = append(out, doc)
	}
	for _, doc := range b.packages {
		sort.Strings(doc.Members)
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
