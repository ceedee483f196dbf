// Package lock serialises mutations of a single issue across goroutines
// and, with Redis, across processes.
package lock

import "context"

// IssueLocker acquires an exclusive lock for key. The returned unlock func
// is safe to call more than once.
type IssueLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// IssueKey namespaces an issue id.
func IssueKey(issueID string) string {
	return "issue:" + issueID
}
