package conformance

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Tests       []TestCase `yaml:"tests"`
}

// TestCase represents a single test within a suite
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        interface{} `yaml:"skip,omitempty"` // bool or string
	Source      string      `yaml:"source"`
	Expect      Expectation `yaml:"expect"`
}

// Expectation defines what result is expected from a test. Exactly one of
// Fault, CompileError and ParseError may be set; Value and Output apply to
// successful runs.
type Expectation struct {
	Value        *string `yaml:"value,omitempty"`         // Inspect() of the result
	Output       *string `yaml:"output,omitempty"`        // everything printed
	Fault        string  `yaml:"fault,omitempty"`         // DivisionByZero, TypeMismatch, ...
	CompileError string  `yaml:"compile_error,omitempty"` // UnresolvedIdentifier, ...
	ParseError   bool    `yaml:"parse_error,omitempty"`
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
	case string:
		if v != "" {
			return true, v
		}
	}
	return false, ""
}

func (e Expectation) validate() error {
	n := 0
	if e.Fault != "" {
		n++
	}
	if e.CompileError != "" {
		n++
	}
	if e.ParseError {
		n++
	}
	if n > 1 {
		return errConflictingExpectations
	}
	if n == 1 && (e.Value != nil || e.Output != nil) {
		return errConflictingExpectations
	}
	return nil
}
