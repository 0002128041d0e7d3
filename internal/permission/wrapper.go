package permission

import (
	"context"
	"strings"

	"github.com/clawinfra/trustcore/internal/approval"
)

const previewMaxLen = 200

// Tool is the minimal agent-tool surface the wrapper adapts. Adapted from
// the teacher's internal/interfaces/tool.go Tool interface, trimmed to the
// two methods the enforcer needs: everything else in the tool's schema
// passes through untouched.
type Tool interface {
	Name() string
	Execute(ctx context.Context, params map[string]interface{}) ([]ContentBlock, error)
}

// Classifier maps a tool invocation's params to the Operation and file path
// (if any) the enforcer should check, and to the approval.Action to show a
// human reviewer if the check defers.
type Classifier func(toolName string, params map[string]interface{}) (op Operation, filePath string, action approval.Action)

// WrappedTool adapts an arbitrary Tool into a permission-checked one.
type WrappedTool struct {
	inner       Tool
	classify    Classifier
	ctx         Context
	coordinator *approval.Coordinator
}

// NewWrappedTool builds a WrappedTool. coordinator may be nil, in which
// case an ask-mode denial without interactive context simply surfaces the
// denial reason (matching the "without interactive context" fallback).
func NewWrappedTool(inner Tool, classify Classifier, permCtx Context, coordinator *approval.Coordinator) *WrappedTool {
	return &WrappedTool{inner: inner, classify: classify, ctx: permCtx, coordinator: coordinator}
}

// Name returns the wrapped tool's name unchanged.
func (w *WrappedTool) Name() string { return w.inner.Name() }

// Execute runs the permission check, and on an ask-mode provisional denial
// with interactive context available, blocks on the approval coordinator
// before either re-invoking the wrapped tool or returning a denial/timeout
// content block.
func (w *WrappedTool) Execute(ctx context.Context, params map[string]interface{}) ([]ContentBlock, error) {
	op, filePath, action := w.classify(w.inner.Name(), params)
	decision := Check(op, filePath, w.ctx)

	if decision.Allowed {
		return w.inner.Execute(ctx, params)
	}

	if !decision.Provisional {
		return []ContentBlock{ErrorBlock(ErrCodePermissionDenied, decision.Reason)}, nil
	}

	if w.coordinator == nil || w.ctx.SessionKey == "" || w.ctx.RunID == "" {
		return []ContentBlock{ErrorBlock(ErrCodePermissionDenied, decision.Reason)}, nil
	}

	if action.Kind == approval.ActionWrite && action.Preview == "" {
		action.Preview = truncatePreview(previewText(params))
	}

	_, future := w.coordinator.RequestApproval(w.ctx.SessionKey, w.ctx.RunID, action, 0)

	result, err := awaitFuture(ctx, future)
	if err != nil {
		if appErr, ok := err.(*approval.Error); ok {
			switch appErr.Reason {
			case approval.FailureTimeout:
				return []ContentBlock{ErrorBlock(ErrCodeApprovalTimeout, "approval request timed out")}, nil
			default:
				return []ContentBlock{ErrorBlock(ErrCodeApprovalCancelled, string(appErr.Reason))}, nil
			}
		}
		return []ContentBlock{ErrorBlock(ErrCodeApprovalCancelled, err.Error())}, nil
	}

	if !result.Approved {
		return []ContentBlock{ErrorBlock(ErrCodePermissionDenied, "request denied by user")}, nil
	}

	return w.inner.Execute(ctx, params)
}

// awaitFuture blocks on the coordinator's future channel or ctx, whichever
// comes first.
func awaitFuture(ctx context.Context, future <-chan approval.Settlement) (approval.Result, error) {
	select {
	case s := <-future:
		return s.Result, s.Err
	case <-ctx.Done():
		return approval.Result{}, ctx.Err()
	}
}

// previewText extracts a best-effort text preview from tool params for the
// approval prompt (e.g. the "content" field of a write-file call).
func previewText(params map[string]interface{}) string {
	if v, ok := params["content"].(string); ok {
		return v
	}
	if v, ok := params["text"].(string); ok {
		return v
	}
	return ""
}

// truncatePreview limits s to 200 characters, appending an ellipsis when
// truncated.
func truncatePreview(s string) string {
	r := []rune(s)
	if len(r) <= previewMaxLen {
		return s
	}
	return strings.TrimSpace(string(r[:previewMaxLen])) + "..."
}
