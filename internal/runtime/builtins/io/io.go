package io

// IO is the minimal interface needed by builtin IO functions.
type IO interface {
	Println(string)
}
