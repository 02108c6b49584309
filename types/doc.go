// Package types provides the core types shared across the leafwise engine.
// This package has ZERO dependencies on other leafwise packages to avoid
// circular imports. All other packages should import types from here.
package types
