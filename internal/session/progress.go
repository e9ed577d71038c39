package session

import "gend/pkg/types"

// progressReshaper turns raw engine download events into the protocol's
// initiate/progress/done sequence, once per artifact, in order.
type progressReshaper struct {
	pub  Publisher
	seen map[string]bool
	done map[string]bool
}

func newProgressReshaper(pub Publisher) *progressReshaper {
	return &progressReshaper{pub: pub, seen: make(map[string]bool), done: make(map[string]bool)}
}

// observe is handed to the engine as its progress callback.
func (r *progressReshaper) observe(p types.Progress) {
	if p.File == "" || r.done[p.File] {
		return
	}
	if !r.seen[p.File] {
		r.seen[p.File] = true
		r.pub.Publish(types.InitiateStatus(p.File))
		if p.Loaded == 0 {
			return
		}
	}
	if p.Done() {
		r.done[p.File] = true
		r.pub.Publish(types.DoneStatus(p.File))
		return
	}
	r.pub.Publish(types.ProgressStatus(p.File, p.Percent()))
}
