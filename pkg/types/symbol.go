package types

import (
	"errors"
	"go/token"
)

// SymbolKind represents the type of an API symbol
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
	KindPackage   SymbolKind = "package"
)

// Position represents a location in source code
type Position struct {
	Line   int
	Column int
}

// Symbol represents an API symbol extracted from source for the lookup catalog
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Package    string
	Signature  string // Function signature or type definition
	DocComment string
	Receiver   string // For methods: receiver type name
	Start      Position
	End        Position
}

// QualifiedName returns Name, or Receiver.Name for methods
func (s *Symbol) QualifiedName() string {
	if s.Kind == KindMethod && s.Receiver != "" {
		return s.Receiver + "." + s.Name
	}
	return s.Name
}

// IsExported returns true if the symbol (and its receiver, for methods) is exported
func (s *Symbol) IsExported() bool {
	if !token.IsExported(s.Name) {
		return false
	}
	if s.Kind == KindMethod {
		return token.IsExported(s.Receiver)
	}
	return true
}

// ValidateKind checks if the symbol kind is valid
func (s *Symbol) ValidateKind() error {
	switch s.Kind {
	case KindFunction, KindMethod, KindStruct, KindInterface, KindType, KindConst, KindVar, KindPackage:
		return nil
	default:
		return errors.New("invalid symbol kind")
	}
}

// Validate performs comprehensive validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}

	if err := s.ValidateKind(); err != nil {
		return err
	}

	if s.Package == "" {
		return errors.New("package name is required")
	}

	// Methods must have a receiver
	if s.Kind == KindMethod && s.Receiver == "" {
		return errors.New("methods must have a receiver type")
	}

	// Non-methods should not have a receiver
	if s.Kind != KindMethod && s.Receiver != "" {
		return errors.New("only methods can have a receiver type")
	}

	if s.Start.Line > 0 && s.End.Line > 0 && s.Start.Line > s.End.Line {
		return errors.New("invalid position: start line must be before or equal to end line")
	}

	return nil
}

// ParseResult represents the output of parsing a Go source file
type ParseResult struct {
	Symbols     []Symbol
	PackageName string
	Errors      []ParseError
}

// ParseError represents an error that occurred during parsing
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}
