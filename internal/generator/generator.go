// Package generator defines the model invocation contract for the content
// tools. Implementations turn a tool prompt into a decoded JSON document.
package generator

import (
	"context"

	"github.com/onelab-hq/onelab-server/internal/tools"
)

// Invoker produces a structured document for one tool invocation. A non-nil
// error means the upstream failed and the caller must not charge the user.
type Invoker interface {
	Invoke(ctx context.Context, tool tools.Type, input map[string]any) (map[string]any, error)
	Name() string
}
