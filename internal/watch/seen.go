package watch

import "container/list"

// SeenSet は通知済みIDを上限件数まで記憶する集合。
// 上限を超えると最も古く追加したIDから忘れる。
type SeenSet struct {
	capacity int
	order    *list.List
	index    map[int64]*list.Element
}

// NewSeenSet は上限 capacity のSeenSetを生成する。capacity が0以下なら nil を返す。
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		return nil
	}
	return &SeenSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[int64]*list.Element, capacity),
	}
}

// Add はIDを追加し、新しく追加した場合に true を返す。
func (s *SeenSet) Add(id int64) bool {
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = s.order.PushBack(id)
	if s.order.Len() > s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(int64))
	}
	return true
}

// Contains はIDが記憶されているかどうかを返す。
func (s *SeenSet) Contains(id int64) bool {
	_, ok := s.index[id]
	return ok
}

// Len は記憶しているID数を返す。
func (s *SeenSet) Len() int {
	return s.order.Len()
}
