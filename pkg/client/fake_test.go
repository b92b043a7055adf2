package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/notifyhub/pkg/notice"
)

var errBackendDown = errors.New("backend down")

// fakeBackend は1人の受信者の台帳をメモリ上で再現するテスト用のBackend。
// カーソルは末尾レコードのIDをそのまま使う。
type fakeBackend struct {
	mu      sync.Mutex
	records []notice.Record // 新しい順

	listCalls   int
	deleteCalls int
	markCalls   int

	// listHook はList呼び出しのたびに呼び出し回数を渡して実行される。
	listHook func(ctx context.Context, call int) error
	// markErr が設定されている場合、MarkRead/MarkAllReadはこのエラーを返す。
	markErr error
}

var _ Backend = (*fakeBackend)(nil)

// newFakeBackend はn件の未読通知を持つfakeBackendを生成する。IDは新しい順に n-1, ..., 0。
func newFakeBackend(n int) *fakeBackend {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeBackend{}
	for i := n - 1; i >= 0; i-- {
		f.records = append(f.records, notice.Record{
			ID:          fmt.Sprintf("n-%02d", i),
			RecipientID: "user-1",
			Type:        notice.TypeEventUpdate,
			Data:        notice.Text(fmt.Sprintf("通知%d", i)),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		})
	}
	return f
}

func (f *fakeBackend) List(ctx context.Context, limit int, before string) (notice.Page, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	hook := f.listHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return notice.Page{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	start := 0
	if before != "" {
		i := slices.IndexFunc(f.records, func(r notice.Record) bool { return r.ID == before })
		if i < 0 {
			return notice.Page{}, fmt.Errorf("unknown cursor %s", before)
		}
		start = i + 1
	}
	end := min(start+limit, len(f.records))
	page := notice.Page{Notifications: slices.Clone(f.records[start:end])}
	if page.Notifications == nil {
		page.Notifications = []notice.Record{}
	}
	if n := len(page.Notifications); n > 0 {
		page.NextCursor = page.Notifications[n-1].ID
	}
	page.HasMore = len(page.Notifications) == limit
	return page, nil
}

func (f *fakeBackend) MarkRead(_ context.Context, id string) (notice.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return notice.Record{}, f.markErr
	}
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Read = true
			return f.records[i], nil
		}
	}
	return notice.Record{}, errors.New("not found")
}

func (f *fakeBackend) MarkAllRead(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return 0, f.markErr
	}
	var n int64
	for i := range f.records {
		if !f.records[i].Read {
			f.records[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) DeleteAllRead(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	before := len(f.records)
	f.records = slices.DeleteFunc(f.records, func(r notice.Record) bool { return r.Read })
	return int64(before - len(f.records)), nil
}

// setRead はサーバー側のレコードを直接既読にする。
func (f *fakeBackend) setRead(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Read = true
		}
	}
}

// serverRecord はサーバー側のレコードを返す。
func (f *fakeBackend) serverRecord(id string) (notice.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.records, func(r notice.Record) bool { return r.ID == id })
	if i < 0 {
		return notice.Record{}, false
	}
	return f.records[i], true
}

func (f *fakeBackend) counts() (list, del, mark int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.deleteCalls, f.markCalls
}
