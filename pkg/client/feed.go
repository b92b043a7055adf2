package client

import "context"

// Feed はカーソルページングで通知を表示する一覧。
// 既読化は個別と一括の2つだけで、通知を削除することはない。
type Feed struct {
	*view
}

// NewFeed は新しいFeedを生成する。
func NewFeed(backend Backend, opts ...Option) *Feed {
	return &Feed{view: newView(backend, opts)}
}

// Load は先頭ページを取得して表示内容を置き換える。
func (f *Feed) Load(ctx context.Context) error {
	ctx, gen := f.begin(ctx, true)
	f.restore(ctx, gen)
	return f.fetch(ctx, gen, "", false)
}

// LoadMore は次のページを取得して末尾に追加する。続きがない場合は何もしない。
// ctxまたはFeedが閉じられた時点でフェッチは取り消される。
func (f *Feed) LoadMore(ctx context.Context) error {
	viewCtx, gen, next, ok := f.active()
	if !ok {
		return ErrViewClosed
	}
	if !f.HasMore() || next == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(viewCtx, cancel)
	defer stop()

	return f.fetch(ctx, gen, next, true)
}

// HasMore は続きのページがあるかどうかを返す。
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// MarkRead は通知を既読にする。ローカルの表示は即座に既読になり、リモート呼び出しは待たない。
func (f *Feed) MarkRead(id string) error {
	return f.markRead(id)
}

// MarkAllRead は表示中の通知をすべて既読にし、リモートの一括既読化を呼び出す。
func (f *Feed) MarkAllRead() {
	f.markAllRead()
}

// Close はFeedを閉じる。以降に届いた応答は反映しない。
// 送信済みの既読化の完了を待ってから戻る。
func (f *Feed) Close() {
	f.end()
	f.Wait()
}
