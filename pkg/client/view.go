package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/notifyhub/pkg/notice"
)

// ErrViewClosed はビューが閉じられた後、または再度開かれた後に届いた応答を破棄したことを表す。
var ErrViewClosed = errors.New("ビューは閉じられています")

// ErrUnknownNotification はビューに表示されていない通知を操作しようとしたことを表す。
var ErrUnknownNotification = errors.New("表示中の通知ではありません")

// DefaultPageLimit は1回のフェッチで取得する件数の既定値。
const DefaultPageLimit = 25

// dispatchTimeout はリモートへの既読化呼び出し1件あたりの上限。
const dispatchTimeout = 10 * time.Second

// Option はビューの生成オプション。
type Option func(*view)

// WithLocalCache は表示内容をローカルキャッシュに保存する。
// recipientIDが空の場合は匿名スコープを使う。
func WithLocalCache(cache *LocalCache, recipientID string) Option {
	return func(v *view) {
		v.cache = cache
		v.scope = Scope(recipientID)
	}
}

// WithPageLimit は1回のフェッチで取得する件数を設定する。
func WithPageLimit(limit int) Option {
	return func(v *view) {
		if limit > 0 {
			v.limit = limit
		}
	}
}

// view はOverlayとFeedに共通する表示状態。
// フェッチは世代番号で管理し、閉じた後や開き直した後に届いた応答は反映しない。
type view struct {
	backend Backend
	cache   *LocalCache
	scope   string
	limit   int

	mu      sync.Mutex
	records []notice.Record
	next    string
	hasMore bool
	gen     uint64
	open    bool
	ctx     context.Context
	cancel  context.CancelFunc

	// pending は実行中の既読化呼び出し。
	pending sync.WaitGroup
}

func newView(backend Backend, opts []Option) *view {
	v := &view{
		backend: backend,
		scope:   AnonymousScope,
		limit:   DefaultPageLimit,
		records: []notice.Record{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// begin は新しい世代を開始し、その世代のフェッチに使うコンテキストを返す。
// 前の世代の実行中のフェッチは取り消される。
func (v *view) begin(parent context.Context, open bool) (context.Context, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
	}
	v.ctx, v.cancel = context.WithCancel(parent)
	v.gen++
	v.open = open
	return v.ctx, v.gen
}

// end は現在の世代を終了し、実行中のフェッチを取り消す。
func (v *view) end() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.open = false
	v.gen++
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.ctx = nil
}

// active は開いている世代のコンテキストと次ページのカーソルを返す。
func (v *view) active() (ctx context.Context, gen uint64, next string, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.open || v.ctx == nil {
		return nil, 0, "", false
	}
	return v.ctx, v.gen, v.next, true
}

// restore はローカルキャッシュから前回の表示内容を読み込む。
func (v *view) restore(ctx context.Context, gen uint64) {
	if v.cache == nil {
		return
	}
	snap, err := v.cache.Load(ctx, v.scope)
	if err != nil {
		log.Printf("[Client] ローカルキャッシュの読み込みに失敗しました (scope=%s): %v", v.scope, err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return
	}
	v.records = snap.Records
	v.next = snap.NextCursor
	v.hasMore = snap.HasMore
}

// fetch は1ページ取得して表示内容に反映する。appendPageがfalseの場合は置き換える。
// 置き換えのフェッチに失敗した場合は空の一覧にしたうえでエラーを返す。
func (v *view) fetch(ctx context.Context, gen uint64, before string, appendPage bool) error {
	page, err := v.backend.List(ctx, v.limit, before)

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.gen != gen {
		return ErrViewClosed
	}
	if err != nil {
		if !appendPage {
			v.records = []notice.Record{}
			v.next = ""
			v.hasMore = false
		}
		return fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}

	if appendPage {
		seen := make(map[string]struct{}, len(v.records))
		for _, r := range v.records {
			seen[r.ID] = struct{}{}
		}
		for _, r := range page.Notifications {
			if _, dup := seen[r.ID]; !dup {
				v.records = append(v.records, r)
			}
		}
	} else {
		v.records = slices.Clone(page.Notifications)
		if v.records == nil {
			v.records = []notice.Record{}
		}
	}
	v.next = page.NextCursor
	v.hasMore = page.HasMore
	v.persistLocked()
	return nil
}

// markRead は通知を仮に既読にして保存し、リモートの既読化を非同期に呼び出す。
// 既に既読の通知はリモートを呼び出さない。
func (v *view) markRead(id string) error {
	v.mu.Lock()
	i := slices.IndexFunc(v.records, func(r notice.Record) bool { return r.ID == id })
	if i < 0 {
		v.mu.Unlock()
		return ErrUnknownNotification
	}
	if v.records[i].Read {
		v.mu.Unlock()
		return nil
	}
	v.records[i].Read = true
	v.persistLocked()
	v.mu.Unlock()

	v.dispatch("既読化", func(ctx context.Context) error {
		_, err := v.backend.MarkRead(ctx, id)
		return err
	})
	return nil
}

// markAllRead は表示中の通知をすべて仮に既読にして保存し、リモートの一括既読化を非同期に呼び出す。
func (v *view) markAllRead() {
	v.mu.Lock()
	for i := range v.records {
		v.records[i].Read = true
	}
	v.persistLocked()
	v.mu.Unlock()

	v.dispatch("一括既読化", func(ctx context.Context) error {
		_, err := v.backend.MarkAllRead(ctx)
		return err
	})
}

// dispatch はリモート呼び出しをゴルーチンで実行する。
// 失敗はログに記録するだけで、ローカルの状態は戻さない。
func (v *view) dispatch(op string, call func(ctx context.Context) error) {
	v.pending.Add(1)
	go func() {
		defer v.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		if err := call(ctx); err != nil {
			log.Printf("[Client] %sに失敗しました（表示は既読のまま維持します）: %v", op, err)
		}
	}()
}

// persistLocked は表示内容をローカルキャッシュに保存する。v.muを保持して呼び出す。
func (v *view) persistLocked() {
	if v.cache == nil {
		return
	}
	snap := Snapshot{
		Records:    v.records,
		NextCursor: v.next,
		HasMore:    v.hasMore,
	}
	if err := v.cache.Save(context.Background(), v.scope, snap); err != nil {
		log.Printf("[Client] ローカルキャッシュへの保存に失敗しました (scope=%s): %v", v.scope, err)
	}
}

// Records は表示中の通知のコピーを返す。
func (v *view) Records() []notice.Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.records)
}

// UnreadCount は表示中の未読通知の件数を返す。
func (v *view) UnreadCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := 0
	for _, r := range v.records {
		if !r.Read {
			n++
		}
	}
	return n
}

// Wait は実行中の既読化呼び出しがすべて終わるまで待つ。
func (v *view) Wait() {
	v.pending.Wait()
}
