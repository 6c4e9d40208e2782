// Package runaccess reads runs and approvals through the daemon API when it
// is up, and straight from the store otherwise.
package runaccess

import (
	"context"
	"strings"

	"contentfactory/internal/api"
	"contentfactory/internal/ipc"
	"contentfactory/internal/store"
)

// Access provides read operations regardless of API or direct store backing.
type Access interface {
	Source() string
	RunCounts(ctx context.Context) (map[string]int, error)
	ListRuns(ctx context.Context, limit int, statuses []string) ([]api.Run, error)
	DescribeRun(ctx context.Context, id string) (*api.RunDetail, error)
	ListApprovals(ctx context.Context, status string) ([]api.Approval, error)
}

// NewAPIAccess returns an Access backed by the daemon API.
func NewAPIAccess(client *ipc.Client) Access {
	return &apiAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(st *store.Store) Access {
	return &storeAccess{store: st}
}

type apiAccess struct {
	client *ipc.Client
}

func (a *apiAccess) Source() string { return "daemon" }

func (a *apiAccess) RunCounts(ctx context.Context) (map[string]int, error) {
	resp, err := a.client.Status(ctx)
	if err != nil {
		return nil, err
	}
	return resp.RunCounts, nil
}

func (a *apiAccess) ListRuns(ctx context.Context, limit int, statuses []string) ([]api.Run, error) {
	return a.client.ListRuns(ctx, limit, statuses...)
}

func (a *apiAccess) DescribeRun(ctx context.Context, id string) (*api.RunDetail, error) {
	detail, err := a.client.DescribeRun(ctx, id)
	if ipc.IsNotFound(err) {
		return nil, nil
	}
	return detail, err
}

func (a *apiAccess) ListApprovals(ctx context.Context, status string) ([]api.Approval, error) {
	return a.client.ListApprovals(ctx, status)
}

type storeAccess struct {
	store *store.Store
}

func (a *storeAccess) Source() string { return "database" }

func (a *storeAccess) RunCounts(ctx context.Context) (map[string]int, error) {
	counts, err := a.store.CountRunsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return api.FromRunCounts(counts), nil
}

func (a *storeAccess) ListRuns(ctx context.Context, limit int, statuses []string) ([]api.Run, error) {
	runs, err := a.store.ListPipelineRuns(ctx, limit, toRunStatuses(statuses)...)
	if err != nil {
		return nil, err
	}
	return api.FromRuns(runs), nil
}

func (a *storeAccess) DescribeRun(ctx context.Context, id string) (*api.RunDetail, error) {
	run, err := a.store.GetPipelineRun(ctx, id)
	if err != nil || run == nil {
		return nil, err
	}
	logs, err := a.store.ListPipelineLogs(ctx, id)
	if err != nil {
		return nil, err
	}
	approvals, err := a.store.ListApprovals(ctx, store.ApprovalQuery{RunID: id})
	if err != nil {
		return nil, err
	}
	return &api.RunDetail{
		Run:       api.FromRun(run),
		Logs:      api.FromLogs(logs),
		Approvals: api.FromApprovals(approvals),
	}, nil
}

func (a *storeAccess) ListApprovals(ctx context.Context, status string) ([]api.Approval, error) {
	approvals, err := a.store.ListApprovals(ctx, store.ApprovalQuery{Status: store.ApprovalStatus(strings.TrimSpace(status))})
	if err != nil {
		return nil, err
	}
	return api.FromApprovals(approvals), nil
}

func toRunStatuses(values []string) []store.RunStatus {
	out := make([]store.RunStatus, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, store.RunStatus(strings.ToLower(trimmed)))
		}
	}
	return out
}
