package client

import (
	"context"
	"log"
)

// Overlay は閉じるたびに既読通知を片付ける一時的な通知表示。
// 閉じる操作は既読化ではなく、既読済みの通知の削除と再取得を行う。
type Overlay struct {
	*view
}

// NewOverlay は新しいOverlayを生成する。
func NewOverlay(backend Backend, opts ...Option) *Overlay {
	return &Overlay{view: newView(backend, opts)}
}

// Open は先頭ページを取得して表示する。
// ローカルキャッシュがあれば取得完了までは前回の表示内容を使う。
// 取得に失敗した場合は空の一覧になる。取得中に閉じられた場合はErrViewClosedを返す。
func (o *Overlay) Open(ctx context.Context) error {
	ctx, gen := o.begin(ctx, true)
	o.restore(ctx, gen)
	return o.fetch(ctx, gen, "", false)
}

// IsOpen はOverlayが開いているかどうかを返す。
func (o *Overlay) IsOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

// MarkRead は通知を既読にする。ローカルの表示は即座に既読になり、リモート呼び出しは待たない。
func (o *Overlay) MarkRead(id string) error {
	return o.markRead(id)
}

// Close はOverlayを閉じる。
// 実行中のフェッチを取り消し、送信済みの既読化の完了を待ってから既読通知を削除し、
// 最後に先頭ページを取得し直して次に開くときの表示内容にする。
// 削除の失敗はログに記録するだけで、再取得のエラーのみを返す。
func (o *Overlay) Close(ctx context.Context) error {
	o.end()
	o.Wait()

	if _, err := o.backend.DeleteAllRead(ctx); err != nil {
		log.Printf("[Client] 既読通知の削除に失敗しました: %v", err)
	}

	ctx, gen := o.begin(ctx, false)
	return o.fetch(ctx, gen, "", false)
}
