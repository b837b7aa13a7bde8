// Package audittest provides an in-memory audit.Recorder for service tests.
package audittest

import (
	"context"
	"sync"

	"employeehub/internal/domain/audit"
	"employeehub/internal/platform/db"
)

type Recorder struct {
	mu        sync.Mutex
	Entries   []audit.Entry
	Published []audit.Event
	Err       error
}

func (r *Recorder) Record(_ context.Context, _ db.Querier, e audit.Entry) (audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return audit.Event{}, r.Err
	}
	r.Entries = append(r.Entries, e)
	return audit.Event{TableName: e.TableName, RecordID: e.RecordID, Action: e.Action, ActorUserID: e.ActorUserID}, nil
}

func (r *Recorder) Publish(_ context.Context, evt audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Published = append(r.Published, evt)
}

func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.TableName+":"+e.Action)
	}
	return out
}

var _ audit.Recorder = (*Recorder)(nil)
