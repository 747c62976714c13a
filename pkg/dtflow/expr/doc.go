/*
Package expr provides expression evaluation for schema rules.

# Overview

expr implements the small expression language used by entity schemas:
derived attributes, count rules, filter predicates, and sort keys are all
written in it. Expressions are parsed once at schema load and evaluated
per entity against an Env that resolves identifiers to attribute values.

# Expression Syntax

	<expr>    := <or>
	<or>      := <and> ( ('or' | '||') <and> )*
	<and>     := <unary> ( ('and' | '&&') <unary> )*
	<unary>   := ('not' | '!') <unary> | <cmp>
	<cmp>     := <sum> ( ('==' | '!=' | '<' | '>' | '<=' | '>=') <sum> )?
	<sum>     := <term> ( ('+' | '-') <term> )*
	<term>    := <factor> ( ('*' | '/' | '%') <factor> )*
	<factor>  := '-' <factor> | '(' <or> ')' | <call> | <value>
	<call>    := identifier '(' <or> ( ',' <or> )* ')'
	<value>   := 'string' | "string" | number | true | false | nil | identifier

# Value Types

Numbers evaluate as float64. Comparisons are numeric when both sides are
numeric, otherwise lexicographic on strings. Equality additionally handles
booleans and nil (nil == nil is true; nil against anything else is false).

# Builtins

	abs(x)       Absolute value
	min(a, b)    Smaller of two numbers
	max(a, b)    Larger of two numbers

Derivations beyond this operator set belong in a delegate rule, not in an
expression.

# Static Validation

Vars reports the free identifiers of a parsed expression so schemas can
verify, before any record is read, that every referenced name resolves to
an earlier-declared attribute or a metadata field.

# Examples

	e, _ := expr.Parse("nHitsPhi >= 4 && st != 4")
	ok, _ := e.Bool(expr.MapEnv{"nHitsPhi": 6.0, "st": 1.0})  // true

	e, _ := expr.Parse("abs(wheel) * 2 + 1")
	v, _ := e.Eval(expr.MapEnv{"wheel": -2.0})                // 5.0
*/
package expr
