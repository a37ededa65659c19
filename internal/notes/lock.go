package notes

import "sync"

const lockStripes = 64

// timestampLocks serialises mutations of the same note. Two notes hashing to
// the same stripe contend, which is acceptable at this write volume.
type timestampLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *timestampLocks) forTimestamp(ts int64) *sync.Mutex {
	return &l.stripes[uint64(ts)%lockStripes]
}

// lockBoth acquires the stripes for two timestamps in index order so
// concurrent cross-timestamp updates cannot deadlock. The returned func
// releases whatever was acquired.
func (l *timestampLocks) lockBoth(a, b int64) func() {
	i, j := uint64(a)%lockStripes, uint64(b)%lockStripes
	if i == j {
		l.stripes[i].Lock()
		return l.stripes[i].Unlock
	}
	if i > j {
		i, j = j, i
	}
	l.stripes[i].Lock()
	l.stripes[j].Lock()
	return func() {
		l.stripes[j].Unlock()
		l.stripes[i].Unlock()
	}
}
