// Package parser extracts exported API symbols from Go source files and turns
// them into API lookup documentation.
//
// Symbols are keyed "package@Name" for functions, types, constants and
// variables and "package@Type.Method" for methods; the package itself is keyed
// by its bare name and lists its members.
//
// Syntax errors are non-fatal: the parser records them and keeps whatever
// partial AST go/parser returns, so one broken file never hides a package.
package parser
