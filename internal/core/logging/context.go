package logging

import "context"

// scope is the set of ids carried by a context for log enrichment.
type scope struct {
	workspaceID string
	taskID      string
}

type scopeKey struct{}

func scopeOf(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// WithWorkspaceID returns a context whose log events carry workspace_id.
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	s := scopeOf(ctx)
	s.workspaceID = workspaceID
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithTaskID returns a context whose log events carry task_id.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	s := scopeOf(ctx)
	s.taskID = taskID
	return context.WithValue(ctx, scopeKey{}, s)
}

func GetWorkspaceID(ctx context.Context) string { return scopeOf(ctx).workspaceID }

func GetTaskID(ctx context.Context) string { return scopeOf(ctx).taskID }
