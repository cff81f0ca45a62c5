// Package uistate holds dashboard session state that is independent of
// device data: sidebar/modal toggles, the chart date range, and the toast
// queue. It never reads device state and the device store never reads it.
package uistate

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fog-control/internal/model"
)

const DefaultToastDuration = 5 * time.Second

type Toast struct {
	ID       string        `json:"id"`
	Variant  string        `json:"variant"` // success/error/info/warning
	Title    string        `json:"title,omitempty"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"-"`
	Sticky   bool          `json:"sticky,omitempty"` // sticky toasts stay until explicitly removed
}

type Store struct {
	mu               sync.Mutex
	sidebarCollapsed bool
	mobileMenuOpen   bool
	activeModal      string
	dateRange        model.Range
	loading          map[string]bool
	toasts           []Toast
	timers           map[string]*time.Timer
	toastSeq         atomic.Int64

	subMu sync.Mutex
	subs  map[int64]chan struct{}
	subID atomic.Int64
}

func NewStore() *Store {
	return &Store{
		dateRange: model.Range7D,
		loading:   map[string]bool{},
		timers:    map[string]*time.Timer{},
		subs:      map[int64]chan struct{}{},
	}
}

type Snapshot struct {
	SidebarCollapsed bool            `json:"sidebar_collapsed"`
	MobileMenuOpen   bool            `json:"mobile_menu_open"`
	ActiveModal      string          `json:"active_modal,omitempty"`
	DateRange        model.Range     `json:"date_range"`
	Loading          map[string]bool `json:"loading"`
	Toasts           []Toast         `json:"toasts"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	loading := make(map[string]bool, len(s.loading))
	for k, v := range s.loading {
		loading[k] = v
	}
	return Snapshot{
		SidebarCollapsed: s.sidebarCollapsed,
		MobileMenuOpen:   s.mobileMenuOpen,
		ActiveModal:      s.activeModal,
		DateRange:        s.dateRange,
		Loading:          loading,
		Toasts:           append([]Toast(nil), s.toasts...),
	}
}

func (s *Store) ToggleSidebar() {
	s.mu.Lock()
	s.sidebarCollapsed = !s.sidebarCollapsed
	s.mu.Unlock()
	s.notify()
}

func (s *Store) ToggleMobileMenu() {
	s.mu.Lock()
	s.mobileMenuOpen = !s.mobileMenuOpen
	s.mu.Unlock()
	s.notify()
}

// OpenModal makes name the single active modal, replacing any previous one.
func (s *Store) OpenModal(name string) {
	s.mu.Lock()
	s.activeModal = name
	s.mu.Unlock()
	s.notify()
}

func (s *Store) CloseModal() {
	s.mu.Lock()
	s.activeModal = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetDateRange(r model.Range) {
	s.mu.Lock()
	s.dateRange = r
	s.mu.Unlock()
	s.notify()
}

func (s *Store) DateRange() model.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dateRange
}

func (s *Store) SetLoading(key string, v bool) {
	s.mu.Lock()
	s.loading[key] = v
	s.mu.Unlock()
	s.notify()
}

// AddToast appends a toast and schedules its removal after Duration. Sticky
// toasts skip the timer and stay until RemoveToast. Returns the assigned id.
func (s *Store) AddToast(t Toast) string {
	if t.Duration <= 0 {
		t.Duration = DefaultToastDuration
	}
	// Time-based id, sequence-suffixed so bursts within one tick stay unique.
	t.ID = strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.FormatInt(s.toastSeq.Add(1), 10)

	s.mu.Lock()
	s.toasts = append(s.toasts, t)
	if !t.Sticky {
		id := t.ID
		s.timers[id] = time.AfterFunc(t.Duration, func() { s.RemoveToast(id) })
	}
	s.mu.Unlock()
	s.notify()
	return t.ID
}

func (s *Store) RemoveToast(id string) {
	s.mu.Lock()
	if tm, ok := s.timers[id]; ok {
		tm.Stop()
		delete(s.timers, id)
	}
	out := s.toasts[:0]
	removed := false
	for _, t := range s.toasts {
		if t.ID == id {
			removed = true
			continue
		}
		out = append(out, t)
	}
	s.toasts = out
	s.mu.Unlock()
	if removed {
		s.notify()
	}
}

func (s *Store) Subscribe(ctx context.Context) <-chan struct{} {
	id := s.subID.Add(1)
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	s.subs[id] = ch
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, id)
		close(ch)
		s.subMu.Unlock()
	}()

	return ch
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
