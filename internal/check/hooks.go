package check

import (
	"context"

	"github.com/electwix/sqlvet/internal/catalog"
	"github.com/electwix/sqlvet/internal/diagnostics"
)

// Hooks provides extension points in a check run.
// Each hook is called at a specific stage and can perform side effects.
type Hooks struct {
	// BeforeFile is called before a file is read.
	// Return an error to abort the run.
	BeforeFile func(ctx context.Context, path string) error

	// AfterFile is called with the issues of each checked file.
	// Return an error to abort the run.
	AfterFile func(ctx context.Context, result diagnostics.FileIssues) error

	// AfterReload is called by Watch after the catalog was reloaded.
	// An error is logged and the new catalog is not used.
	AfterReload func(ctx context.Context, cat *catalog.Catalog) error
}

// Chain combines two Hooks, calling h's hooks first, then other's hooks.
// If a hook in h returns an error, other's hook is not called.
func (h Hooks) Chain(other Hooks) Hooks {
	return Hooks{
		BeforeFile:  chainHook(h.BeforeFile, other.BeforeFile),
		AfterFile:   chainHook(h.AfterFile, other.AfterFile),
		AfterReload: chainHook(h.AfterReload, other.AfterReload),
	}
}

// chainHook chains two hooks of the same type.
func chainHook[T any](first, second func(context.Context, T) error) func(context.Context, T) error {
	if first == nil {
		return second
	}
	if second == nil {
		return first
	}
	return func(ctx context.Context, arg T) error {
		if err := first(ctx, arg); err != nil {
			return err
		}
		return second(ctx, arg)
	}
}
