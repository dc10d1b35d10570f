package parser

import "strings"

// skipCallees lists stdlib and builtin method names that will never resolve
// to an indexed symbol. Recording them as unresolved calls adds noise
// without value, so call sites targeting them are dropped at extraction.
var skipCallees = map[string]bool{
	// Rust common methods
	"unwrap": true, "unwrap_or": true, "unwrap_or_default": true, "unwrap_or_else": true,
	"expect": true, "ok": true, "err": true, "is_ok": true, "is_err": true,
	"is_some": true, "is_none": true,
	"map": true, "map_err": true, "and_then": true, "or_else": true, "filter": true, "flatten": true,
	"collect": true, "iter": true, "into_iter": true, "enumerate": true, "zip": true, "chain": true,
	"take": true, "skip": true, "first": true, "last": true, "get": true, "get_mut": true,
	"push": true, "pop": true, "insert": true, "remove": true, "clear": true,
	"len": true, "is_empty": true,
	"clone": true, "to_string": true, "to_owned": true, "as_ref": true, "as_mut": true,
	"into": true, "from": true, "try_into": true, "try_from": true,
	"bind": true, "fetch_all": true, "fetch_one": true, "fetch_optional": true, "execute": true,
	"send": true, "recv": true, "await": true, "spawn": true, "block_on": true,
	"min": true, "max": true, "min_by": true, "max_by": true, "sum": true, "product": true,
	"join": true, "split": true, "trim": true, "contains": true,
	"starts_with": true, "ends_with": true,
	"format": true, "write": true, "read": true, "flush": true,
	// Common trait methods
	"default": true, "new": true, "build": true, "with": true,
	// Go builtins
	"append": true, "make": true, "cap": true, "copy": true, "delete": true,
	"panic": true, "recover": true, "close": true, "print": true, "println": true,
	// Python builtins
	"str": true, "int": true, "list": true, "dict": true, "set": true, "range": true,
	"isinstance": true, "getattr": true, "setattr": true, "hasattr": true,
	// JS common
	"log": true, "error": true, "warn": true, "then": true, "catch": true,
	"foreach": true, "forEach": true, "stringify": true, "parse": true,
}

// SkipCallee reports whether a callee name is on the builtin noise list.
// Qualified names are judged by their final segment.
func SkipCallee(name string) bool {
	short := name
	if idx := strings.LastIndex(short, "::"); idx >= 0 {
		short = short[idx+2:]
	}
	if idx := strings.LastIndex(short, "."); idx >= 0 {
		short = short[idx+1:]
	}
	return skipCallees[short]
}
